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
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"vote-escrow-go/internal/models"
	"vote-escrow-go/internal/store"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/net/http2"
)

var (
	_ store.ChainAdapter = (*Client)(nil)
	_ store.ProfileStore = (*Client)(nil)
)

const (
	maxResponseBytes  = 8 << 20
	reconnectMinDelay = 250 * time.Millisecond
	reconnectMaxDelay = 10 * time.Second
)

type subscription struct {
	eventName string
	fn        func(models.ChainEvent)
}

// Client is a chain adapter that talks JSON-RPC over HTTP to a chain node and receives
// events over a websocket stream.
type Client struct {
	rpcURL     string
	wsURL      string
	httpClient http.Client
	dialer     *websocket.Dialer
	nextId     atomic.Uint64

	subMu     sync.Mutex
	subs      map[uint64]subscription
	nextSubId uint64
	streaming bool

	closeOnce sync.Once
	closed    chan struct{}
	done      chan struct{}
}

func NewClient(rpcURL, wsURL string) (*Client, error) {
	if rpcURL == "" {
		return nil, fmt.Errorf("rpc url cannot be empty")
	}
	httpClient, err := createCustomHttpClient()
	if err != nil {
		return nil, fmt.Errorf("unable to create custom http client: %w", err)
	}
	return &Client{
		rpcURL:     rpcURL,
		wsURL:      wsURL,
		httpClient: httpClient,
		dialer:     &websocket.Dialer{HandshakeTimeout: 10 * time.Second, Proxy: http.ProxyFromEnvironment},
		subs:       make(map[uint64]subscription),
		closed:     make(chan struct{}),
		done:       make(chan struct{}),
	}, nil
}

func createCustomHttpClient() (http.Client, error) {
	tr := &http.Transport{
		ResponseHeaderTimeout: 30 * time.Second,
		Proxy:                 http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			KeepAlive: 30 * time.Second,
			Timeout:   15 * time.Second,
		}).DialContext,
		MaxIdleConns:          10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		MaxIdleConnsPerHost:   5,
		ExpectContinueTimeout: 5 * time.Second,
	}

	if err := http2.ConfigureTransport(tr); err != nil {
		return http.Client{}, err
	}

	return http.Client{
		Transport: tr,
		Timeout:   60 * time.Second,
	}, nil
}

func (c *Client) Read(ctx context.Context, req store.ReadRequest) (*store.ReadResult, error) {
	var result store.ReadResult
	if err := c.call(ctx, MethodRead, req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) Submit(ctx context.Context, sub store.Submission) (store.Handle, error) {
	var result submitResult
	if err := c.call(ctx, MethodSubmit, sub, &result); err != nil {
		return "", err
	}
	return result.Handle, nil
}

func (c *Client) WaitForConfirmation(ctx context.Context, handle store.Handle) (*models.Receipt, error) {
	var receipt models.Receipt
	if err := c.call(ctx, MethodConfirm, confirmParams{Handle: handle}, &receipt); err != nil {
		return nil, err
	}
	return &receipt, nil
}

func (c *Client) GetProfileStatus(ctx context.Context, address string) (models.ProfileStatus, error) {
	var status models.ProfileStatus
	if err := c.call(ctx, MethodProfile, profileParams{Address: address}, &status); err != nil {
		return models.ProfileStatus{}, err
	}
	return status, nil
}

func (c *Client) call(ctx context.Context, method string, params, result any) error {
	body, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("failed to marshal %s params: %w", method, err)
	}
	payload, err := json.Marshal(request{
		JsonRPC: jsonrpcVersion,
		Id:      c.nextId.Add(1),
		Method:  method,
		Params:  body,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal %s request: %w", method, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.rpcURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build %s request: %w", method, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("%s call failed: %w", method, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("failed to read %s response: %w", method, err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s returned status %d: %s", method, resp.StatusCode, bytes.TrimSpace(raw))
	}

	var envelope response
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", method, err)
	}
	if envelope.Error != nil {
		return decodeError(envelope.Error)
	}
	if err := json.Unmarshal(envelope.Result, result); err != nil {
		return fmt.Errorf("failed to decode %s result: %w", method, err)
	}
	return nil
}

// Subscribe registers fn and opens the event stream on first use. Events published while the
// stream is reconnecting are not replayed; consumers are expected to poll as well.
func (c *Client) Subscribe(eventName string, fn func(models.ChainEvent)) (func(), error) {
	if c.wsURL == "" {
		return nil, fmt.Errorf("event stream url not configured")
	}
	select {
	case <-c.closed:
		return nil, fmt.Errorf("client is closed")
	default:
	}

	c.subMu.Lock()
	c.nextSubId++
	id := c.nextSubId
	c.subs[id] = subscription{eventName: eventName, fn: fn}
	if !c.streaming {
		c.streaming = true
		go c.streamLoop()
	}
	c.subMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.subMu.Lock()
			defer c.subMu.Unlock()
			delete(c.subs, id)
		})
	}, nil
}

// streamLoop keeps one websocket open until Close, reconnecting with backoff
func (c *Client) streamLoop() {
	defer close(c.done)
	delay := reconnectMinDelay

	for {
		conn, _, err := c.dialer.Dial(c.wsURL, nil)
		if err != nil {
			zap.L().Warn("Failed to connect event stream", zap.String("url", c.wsURL), zap.Error(err))
		} else {
			delay = reconnectMinDelay
			zap.L().Info("Event stream connected", zap.String("url", c.wsURL))
			c.readEvents(conn)
		}

		select {
		case <-c.closed:
			return
		case <-time.After(delay):
		}
		if delay *= 2; delay > reconnectMaxDelay {
			delay = reconnectMaxDelay
		}
	}
}

func (c *Client) readEvents(conn *websocket.Conn) {
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-c.closed:
			conn.Close()
		case <-stop:
		}
	}()
	defer conn.Close()

	for {
		var event models.ChainEvent
		if err := conn.ReadJSON(&event); err != nil {
			select {
			case <-c.closed:
			default:
				zap.L().Warn("Event stream interrupted", zap.Error(err))
			}
			return
		}
		c.dispatch(event)
	}
}

func (c *Client) dispatch(event models.ChainEvent) {
	c.subMu.Lock()
	handlers := make([]func(models.ChainEvent), 0, len(c.subs))
	for _, sub := range c.subs {
		if sub.eventName == "*" || sub.eventName == event.Name {
			handlers = append(handlers, sub.fn)
		}
	}
	c.subMu.Unlock()

	for _, fn := range handlers {
		fn(event)
	}
}

// Close stops the event stream and releases idle connections
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.closed)
		c.subMu.Lock()
		streaming := c.streaming
		c.subMu.Unlock()
		if streaming {
			<-c.done
		}
		c.httpClient.CloseIdleConnections()
	})
}
