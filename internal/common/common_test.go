package common

import (
	"context"
	"testing"
	"time"

	"vote-escrow-go/internal/config"
	"vote-escrow-go/internal/database"
	"vote-escrow-go/internal/models"

	"go.uber.org/zap"
)

func TestWallet_ConnectAndDisconnect(t *testing.T) {
	ctx := context.Background()
	w := NewWallet("  0xaaaa ")

	var dropped []string
	w.OnDisconnect(func(address string) { dropped = append(dropped, address) })

	status, err := w.GetConnectionStatus(ctx)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if !status.Connected || status.Address != "0xaaaa" {
		t.Errorf("Expected connected 0xaaaa, got %+v", status)
	}

	w.Connect("0xbbbb")
	if len(dropped) != 1 || dropped[0] != "0xaaaa" {
		t.Errorf("Expected switching wallets to drop 0xaaaa, got %v", dropped)
	}

	w.Disconnect()
	w.Disconnect()
	if len(dropped) != 2 || dropped[1] != "0xbbbb" {
		t.Errorf("Expected a single disconnect notification for 0xbbbb, got %v", dropped)
	}

	status, _ = w.GetConnectionStatus(ctx)
	if status.Connected || status.Address != "" {
		t.Errorf("Expected disconnected wallet, got %+v", status)
	}
}

func TestWallet_EmptyAddressIsDisconnected(t *testing.T) {
	w := NewWallet("")
	status, _ := w.GetConnectionStatus(context.Background())
	if status.Connected {
		t.Error("Expected empty address to start disconnected")
	}
}

func TestInitializeProfiles(t *testing.T) {
	ctx := context.Background()
	devnet, err := database.NewInMemory(ctx, database.Options{})
	if err != nil {
		t.Fatalf("Failed to create devnet: %v", err)
	}
	defer devnet.Close()

	for _, p := range []struct{ address, handle string }{{"0xaaaa", "alice"}, {"0xbbbb", "bob"}} {
		if _, err := devnet.CreateProfile(ctx, p.address, p.handle); err != nil {
			t.Fatalf("Failed to create profile: %v", err)
		}
	}

	all, err := InitializeProfiles(ctx, devnet, "", zap.NewNop())
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("Expected 2 profiles, got %d", len(all))
	}

	one, err := InitializeProfiles(ctx, devnet, "0xbbbb", zap.NewNop())
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(one) != 1 || one[0].Handle != "bob" {
		t.Errorf("Expected bob, got %+v", one)
	}

	if _, err := InitializeProfiles(ctx, devnet, "0xcccc", zap.NewNop()); err == nil {
		t.Error("Expected error for unknown address")
	}
}

func TestInitializeServices_Devnet(t *testing.T) {
	ctx := context.Background()
	cfg := &models.Config{
		Database: models.DatabaseConfig{Path: ":memory:", MaxOpenConns: 1, MaxIdleConns: 1, PingTimeout: 5 * time.Second},
		Chain:    models.ChainConfig{Backend: config.BackendSQLite},
		Params:   config.DefaultGovernanceParams(),
		Cache:    models.CacheConfig{Size: 16},
		Wallet:   models.WalletConfig{Address: "0xaaaa"},
	}

	services, err := InitializeServices(ctx, cfg, nil)
	if err != nil {
		t.Fatalf("Failed to initialize services: %v", err)
	}
	defer services.Close()

	if services.Devnet == nil {
		t.Fatal("Expected devnet backend")
	}
	if err := services.LockService.HealthCheck(ctx); err != nil {
		t.Errorf("Health check failed: %v", err)
	}

	services.Refresher.Track("0xaaaa")
	services.Wallet.Disconnect()
	for _, owner := range services.Refresher.Tracked() {
		if owner == "0xaaaa" {
			t.Error("Expected disconnect to untrack the wallet address")
		}
	}
}

func TestShortId(t *testing.T) {
	tests := map[string]string{
		"":           "none",
		"abc":        "abc",
		"0123456789": "01234567...",
	}
	for id, want := range tests {
		if got := ShortId(id); got != want {
			t.Errorf("ShortId(%q) = %q, want %q", id, got, want)
		}
	}
}

func TestFormatRemaining(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{0, "done"},
		{-time.Hour, "done"},
		{20 * time.Second, "<1m"},
		{48 * time.Hour, "2d"},
		{3*time.Hour + 10*time.Minute, "3h10m"},
		{50*time.Hour + 5*time.Minute + 40*time.Second, "2d2h6m"},
	}
	for _, tt := range tests {
		if got := FormatRemaining(tt.d); got != tt.want {
			t.Errorf("FormatRemaining(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
}

func TestRequirementLine(t *testing.T) {
	line := RequirementLine("warmup", models.Requirement{State: models.RequirementUnmet, Detail: "48h0m0s"})
	if line != "✗ warmup        unmet (48h0m0s)" {
		t.Errorf("Unexpected line %q", line)
	}
	if got := RequirementLine("wallet", models.Requirement{State: models.RequirementMet}); got != "✓ wallet        met" {
		t.Errorf("Unexpected line %q", got)
	}
}
