package queue

import (
	"time"

	"vote-escrow-go/internal/models"

	"github.com/google/btree"
)

const defaultTreeDegree = 16

var _ btree.LessFunc[models.QueueRecord] = lessRecord

// A record is less than another when its sequence is lower; token ids break ties so that
// two records can never compare equal.
func lessRecord(a, b models.QueueRecord) bool {
	if a.Sequence != b.Sequence {
		return a.Sequence < b.Sequence
	}
	return a.TokenId < b.TokenId
}

// Book is the ordered set of active exit-queue records read from chain. Positions are the
// 1-based ranks of records by enqueue sequence, so they strictly follow enqueue order.
// A Book is built per read and is not safe for concurrent mutation.
type Book struct {
	tree    *btree.BTreeG[models.QueueRecord]
	byToken map[string]models.QueueRecord
	policy  Policy
}

func NewBook(policy Policy, records []models.QueueRecord) *Book {
	b := &Book{
		tree:    btree.NewG(defaultTreeDegree, lessRecord),
		byToken: make(map[string]models.QueueRecord, len(records)),
		policy:  policy,
	}
	for _, r := range records {
		b.Insert(r)
	}
	return b
}

// Insert adds r, replacing any existing record for the same token.
func (b *Book) Insert(r models.QueueRecord) {
	if old, ok := b.byToken[r.TokenId]; ok {
		b.tree.Delete(old)
	}
	b.tree.ReplaceOrInsert(r)
	b.byToken[r.TokenId] = r
}

func (b *Book) Remove(tokenId string) bool {
	r, ok := b.byToken[tokenId]
	if !ok {
		return false
	}
	b.tree.Delete(r)
	delete(b.byToken, tokenId)
	return true
}

func (b *Book) Len() int {
	return b.tree.Len()
}

func (b *Book) Contains(tokenId string) bool {
	_, ok := b.byToken[tokenId]
	return ok
}

// Position returns the 1-based rank of tokenId, or 0 when it is not queued.
func (b *Book) Position(tokenId string) int {
	r, ok := b.byToken[tokenId]
	if !ok {
		return 0
	}
	position := 0
	b.tree.AscendLessThan(r, func(models.QueueRecord) bool {
		position++
		return true
	})
	return position + 1
}

// Entry decorates the record for tokenId with position, readiness and estimate.
func (b *Book) Entry(tokenId string, now time.Time) (models.ExitQueueEntry, bool) {
	r, ok := b.byToken[tokenId]
	if !ok {
		return models.ExitQueueEntry{}, false
	}
	return b.entry(r, b.Position(tokenId), now), true
}

// Entries returns every entry in queue order.
func (b *Book) Entries(now time.Time) []models.ExitQueueEntry {
	entries := make([]models.ExitQueueEntry, 0, b.tree.Len())
	position := 0
	b.tree.Ascend(func(r models.QueueRecord) bool {
		position++
		entries = append(entries, b.entry(r, position, now))
		return true
	})
	return entries
}

// NextSequence returns a sequence number greater than every recorded one.
func (b *Book) NextSequence() int64 {
	last, ok := b.tree.Max()
	if !ok {
		return 1
	}
	return last.Sequence + 1
}

func (b *Book) entry(r models.QueueRecord, position int, now time.Time) models.ExitQueueEntry {
	return models.ExitQueueEntry{
		TokenId:            r.TokenId,
		Owner:              r.Owner,
		EnqueuedAt:         r.EnqueuedAt,
		Position:           position,
		ExitFeeBasisPoints: r.ExitFeeBasisPoints,
		EstimatedReadyAt:   b.policy.EstimatedReadyAt(position, r.EnqueuedAt, now),
		Ready:              b.policy.Ready(position, r.EnqueuedAt, now),
	}
}
