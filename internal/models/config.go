package models

import "time"

// Config represents the application configuration
type Config struct {
	Database  DatabaseConfig
	Chain     ChainConfig
	Refresher RefresherConfig
	Params    GovernanceParams
	Cache     CacheConfig
	Metrics   MetricsConfig
	Wallet    WalletConfig
}

// DatabaseConfig holds settings for the SQLite devnet chain
type DatabaseConfig struct {
	Path            string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	PingTimeout     time.Duration
	SeedProfiles    bool
}

// ChainConfig selects and tunes the chain adapter backend
type ChainConfig struct {
	Backend     string // "sqlite" or "rpc"
	RpcURL      string
	WsURL       string
	CallTimeout time.Duration
}

// RefresherConfig holds background refresh settings
type RefresherConfig struct {
	Interval         time.Duration
	EventRetention   time.Duration
	CleanupInterval  time.Duration
	GovernanceParams string
}

// CacheConfig sizes the per-address snapshot cache
type CacheConfig struct {
	Size int
}

// MetricsConfig holds the metrics listener address; empty disables the endpoint
type MetricsConfig struct {
	Addr string
}

// WalletConfig describes the locally configured wallet connection
type WalletConfig struct {
	Address string
}

// Queue disciplines understood by the exit queue
const (
	QueueDisciplineFIFO  = "fifo"
	QueueDisciplineDwell = "dwell"
)

// GovernanceParams are the lock and exit-queue parameters shared by every component.
type GovernanceParams struct {
	MaxLockDuration    time.Duration `yaml:"max_lock_duration"`
	WarmupPeriod       time.Duration `yaml:"warmup_period"`
	ExitFeeBasisPoints int64         `yaml:"exit_fee_basis_points"`
	Queue              QueueParams   `yaml:"queue"`
}

// QueueParams configures the exit queue discipline
type QueueParams struct {
	Discipline   string        `yaml:"discipline"`
	HeadSlots    int           `yaml:"head_slots"`
	SlotInterval time.Duration `yaml:"slot_interval"`
	MinDwell     time.Duration `yaml:"min_dwell"`
}
