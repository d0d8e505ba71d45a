package database

import (
	"sync"

	"vote-escrow-go/internal/models"

	"go.uber.org/zap"
)

const allEvents = "*"

// Subscribe registers fn for eventName, or for every event when eventName is "*". Handlers
// run synchronously after the submission commits and must not block.
func (s *Service) Subscribe(eventName string, fn func(models.ChainEvent)) (func(), error) {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	s.nextSubId++
	id := s.nextSubId
	if s.subscribers[eventName] == nil {
		s.subscribers[eventName] = make(map[uint64]func(models.ChainEvent))
	}
	s.subscribers[eventName][id] = fn

	zap.L().Debug("Event subscription added", zap.String("event", eventName), zap.Uint64("subscription_id", id))

	var once sync.Once
	return func() {
		once.Do(func() {
			s.subMu.Lock()
			defer s.subMu.Unlock()
			delete(s.subscribers[eventName], id)
		})
	}, nil
}

func (s *Service) publish(events []models.ChainEvent) {
	for _, event := range events {
		s.subMu.RLock()
		handlers := make([]func(models.ChainEvent), 0, len(s.subscribers[event.Name])+len(s.subscribers[allEvents]))
		for _, fn := range s.subscribers[event.Name] {
			handlers = append(handlers, fn)
		}
		for _, fn := range s.subscribers[allEvents] {
			handlers = append(handlers, fn)
		}
		s.subMu.RUnlock()

		for _, fn := range handlers {
			fn(event)
		}
	}
}
