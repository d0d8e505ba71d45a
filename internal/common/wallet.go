package common

import (
	"context"
	"strings"
	"sync"

	"vote-escrow-go/internal/models"
	"vote-escrow-go/internal/store"

	"go.uber.org/zap"
)

var _ store.WalletStore = (*Wallet)(nil)

// Wallet is the locally configured wallet connection. Disconnecting notifies the registered
// hooks so cached lock state for the address is dropped.
type Wallet struct {
	mu           sync.Mutex
	address      string
	connected    bool
	onDisconnect []func(string)
}

// NewWallet returns a wallet connected to address, or disconnected when address is empty
func NewWallet(address string) *Wallet {
	address = strings.TrimSpace(address)
	return &Wallet{address: address, connected: address != ""}
}

func (w *Wallet) GetConnectionStatus(_ context.Context) (models.ConnectionStatus, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.connected {
		return models.ConnectionStatus{}, nil
	}
	return models.ConnectionStatus{Connected: true, Address: w.address}, nil
}

func (w *Wallet) Connect(address string) {
	address = strings.TrimSpace(address)
	if address == "" {
		w.Disconnect()
		return
	}

	w.mu.Lock()
	previous := w.address
	wasConnected := w.connected
	w.address = address
	w.connected = true
	w.mu.Unlock()

	if wasConnected && previous != address {
		w.notify(previous)
	}
	zap.L().Info("Wallet connected", zap.String("address", address))
}

func (w *Wallet) Disconnect() {
	w.mu.Lock()
	previous := w.address
	wasConnected := w.connected
	w.address = ""
	w.connected = false
	w.mu.Unlock()

	if wasConnected {
		w.notify(previous)
		zap.L().Info("Wallet disconnected", zap.String("address", previous))
	}
}

// OnDisconnect registers fn to run with the previous address whenever it stops being the
// connected one
func (w *Wallet) OnDisconnect(fn func(address string)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onDisconnect = append(w.onDisconnect, fn)
}

func (w *Wallet) notify(address string) {
	w.mu.Lock()
	hooks := append([]func(string){}, w.onDisconnect...)
	w.mu.Unlock()
	for _, fn := range hooks {
		fn(address)
	}
}
