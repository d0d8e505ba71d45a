/**
 * Copyright 2025-present Coinbase Global, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package rpcchain

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"vote-escrow-go/internal/models"
	"vote-escrow-go/internal/store"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	maxRequestBytes = 1 << 20
	eventBuffer     = 64
	writeTimeout    = 10 * time.Second
)

// Server exposes a chain adapter over JSON-RPC at /rpc and streams its events at /events.
// Profile lookups are served when the adapter also implements store.ProfileStore.
type Server struct {
	adapter  store.ChainAdapter
	upgrader websocket.Upgrader
	mux      *http.ServeMux

	mu        sync.Mutex
	listeners int
}

func NewServer(adapter store.ChainAdapter) *Server {
	s := &Server{
		adapter: adapter,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		mux: http.NewServeMux(),
	}
	s.mux.HandleFunc("/rpc", s.handleRPC)
	s.mux.HandleFunc("/events", s.handleEvents)
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// Listeners returns the number of connected event streams
func (s *Server) Listeners() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listeners
}

func (s *Server) handleRPC(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	raw, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBytes))
	if err != nil {
		writeResponse(w, response{JsonRPC: jsonrpcVersion, Error: &rpcError{Code: codeParseError, Message: err.Error()}})
		return
	}
	var req request
	if err := json.Unmarshal(raw, &req); err != nil {
		writeResponse(w, response{JsonRPC: jsonrpcVersion, Error: &rpcError{Code: codeParseError, Message: err.Error()}})
		return
	}
	if req.JsonRPC != jsonrpcVersion || req.Method == "" {
		writeResponse(w, response{JsonRPC: jsonrpcVersion, Id: req.Id, Error: &rpcError{Code: codeInvalidRequest, Message: "invalid request"}})
		return
	}

	result, rpcErr := s.dispatch(r.Context(), req)
	resp := response{JsonRPC: jsonrpcVersion, Id: req.Id, Error: rpcErr}
	if rpcErr == nil {
		encoded, err := json.Marshal(result)
		if err != nil {
			resp.Error = &rpcError{Code: codeInternal, Message: err.Error()}
		} else {
			resp.Result = encoded
		}
	}

	zap.L().Debug("Served rpc call",
		zap.String("method", req.Method),
		zap.Uint64("id", req.Id),
		zap.Bool("error", resp.Error != nil))
	writeResponse(w, resp)
}

func (s *Server) dispatch(ctx context.Context, req request) (any, *rpcError) {
	switch req.Method {
	case MethodRead:
		var params store.ReadRequest
		if err := json.Unmarshal(req.Params, &params); err != nil {
			return nil, invalidParams(err)
		}
		result, err := s.adapter.Read(ctx, params)
		if err != nil {
			return nil, encodeError(err)
		}
		return result, nil

	case MethodSubmit:
		var params store.Submission
		if err := json.Unmarshal(req.Params, &params); err != nil {
			return nil, invalidParams(err)
		}
		handle, err := s.adapter.Submit(ctx, params)
		if err != nil {
			return nil, encodeError(err)
		}
		return submitResult{Handle: handle}, nil

	case MethodConfirm:
		var params confirmParams
		if err := json.Unmarshal(req.Params, &params); err != nil {
			return nil, invalidParams(err)
		}
		receipt, err := s.adapter.WaitForConfirmation(ctx, params.Handle)
		if err != nil {
			return nil, encodeError(err)
		}
		return receipt, nil

	case MethodProfile:
		profiles, ok := s.adapter.(store.ProfileStore)
		if !ok {
			break
		}
		var params profileParams
		if err := json.Unmarshal(req.Params, &params); err != nil {
			return nil, invalidParams(err)
		}
		status, err := profiles.GetProfileStatus(ctx, params.Address)
		if err != nil {
			return nil, encodeError(err)
		}
		return status, nil
	}
	return nil, &rpcError{Code: codeMethodNotFound, Message: fmt.Sprintf("method %q not found", req.Method)}
}

func invalidParams(err error) *rpcError {
	return &rpcError{Code: codeInvalidParams, Message: err.Error()}
}

func writeResponse(w http.ResponseWriter, resp response) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		zap.L().Warn("Failed to write rpc response", zap.Error(err))
	}
}

// handleEvents streams every adapter event to the websocket peer. A peer that falls behind by
// more than the buffer loses events rather than stalling the chain.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		zap.L().Warn("Failed to upgrade event stream", zap.Error(err))
		return
	}
	defer conn.Close()

	events := make(chan models.ChainEvent, eventBuffer)
	unsubscribe, err := s.adapter.Subscribe("*", func(event models.ChainEvent) {
		select {
		case events <- event:
		default:
			zap.L().Warn("Dropping event for slow stream",
				zap.String("event", event.Name),
				zap.String("remote", r.RemoteAddr))
		}
	})
	if err != nil {
		zap.L().Error("Failed to subscribe event stream", zap.Error(err))
		return
	}
	defer unsubscribe()

	s.mu.Lock()
	s.listeners++
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.listeners--
		s.mu.Unlock()
	}()

	// The peer never sends; reading detects its disconnect.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case event := <-events:
			_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteJSON(event); err != nil {
				zap.L().Debug("Event stream closed", zap.Error(err))
				return
			}
		case <-gone:
			return
		case <-r.Context().Done():
			return
		}
	}
}
