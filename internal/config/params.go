package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"vote-escrow-go/internal/models"
	"vote-escrow-go/internal/power"
	"vote-escrow-go/internal/queue"
	"vote-escrow-go/internal/warmup"

	"gopkg.in/yaml.v2"
)

const DefaultExitFeeBasisPoints = 100

func DefaultGovernanceParams() models.GovernanceParams {
	return models.GovernanceParams{
		MaxLockDuration:    power.DefaultMaxLockDuration,
		WarmupPeriod:       warmup.DefaultPeriod,
		ExitFeeBasisPoints: DefaultExitFeeBasisPoints,
		Queue: models.QueueParams{
			Discipline:   models.QueueDisciplineFIFO,
			HeadSlots:    1,
			SlotInterval: 24 * time.Hour,
		},
	}
}

// LoadGovernanceParams reads a params file. Keys left out keep their defaults; durations use
// Go syntax such as "72h".
func LoadGovernanceParams(paramsFile string) (models.GovernanceParams, error) {
	paramsPath := paramsFile
	if !filepath.IsAbs(paramsFile) {
		wd, err := os.Getwd()
		if err != nil {
			return models.GovernanceParams{}, fmt.Errorf("failed to get working directory: %w", err)
		}
		paramsPath = filepath.Join(wd, paramsFile)
	}

	data, err := os.ReadFile(paramsPath)
	if err != nil {
		return models.GovernanceParams{}, fmt.Errorf("unable to read %s: %w", paramsFile, err)
	}

	params := DefaultGovernanceParams()
	if err := yaml.UnmarshalStrict(data, &params); err != nil {
		return models.GovernanceParams{}, fmt.Errorf("unable to parse %s: %w", paramsFile, err)
	}
	if err := ValidateGovernanceParams(params); err != nil {
		return models.GovernanceParams{}, fmt.Errorf("invalid governance params in %s: %w", paramsFile, err)
	}
	return params, nil
}

func ValidateGovernanceParams(p models.GovernanceParams) error {
	if p.MaxLockDuration <= 0 {
		return fmt.Errorf("max_lock_duration must be positive, got %v", p.MaxLockDuration)
	}
	if p.WarmupPeriod < 0 {
		return fmt.Errorf("warmup_period cannot be negative, got %v", p.WarmupPeriod)
	}
	if p.WarmupPeriod >= p.MaxLockDuration {
		return fmt.Errorf("warmup_period %v must be shorter than max_lock_duration %v", p.WarmupPeriod, p.MaxLockDuration)
	}
	if p.ExitFeeBasisPoints < 0 || p.ExitFeeBasisPoints > queue.BasisPointsDenominator {
		return fmt.Errorf("exit_fee_basis_points must be within [0, %d], got %d", queue.BasisPointsDenominator, p.ExitFeeBasisPoints)
	}
	if p.Queue.HeadSlots < 0 {
		return fmt.Errorf("queue.head_slots cannot be negative, got %d", p.Queue.HeadSlots)
	}
	if p.Queue.SlotInterval < 0 {
		return fmt.Errorf("queue.slot_interval cannot be negative, got %v", p.Queue.SlotInterval)
	}
	if _, err := queue.NewPolicy(p.Queue); err != nil {
		return err
	}
	return nil
}
