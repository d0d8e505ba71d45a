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

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"vote-escrow-go/internal/models"

	"go.uber.org/zap"
)

func (s *Service) GetProfiles(ctx context.Context) ([]models.Profile, error) {
	zap.L().Debug("Querying active profiles")

	rows, err := s.db.QueryContext(ctx, queryGetActiveProfiles)
	if err != nil {
		zap.L().Error("Failed to query profiles", zap.Error(err))
		return nil, fmt.Errorf("unable to query profiles: %w", err)
	}
	defer closeRows(rows)

	var profiles []models.Profile
	for rows.Next() {
		var profile models.Profile
		var createdAt int64
		if err := rows.Scan(&profile.Address, &profile.Handle, &createdAt); err != nil {
			zap.L().Error("Failed to scan profile row", zap.Error(err))
			return nil, fmt.Errorf("unable to scan profile row: %w", err)
		}
		profile.CreatedAt = fromNanos(createdAt)
		profiles = append(profiles, profile)
	}

	// Check for errors during iteration
	if err := rows.Err(); err != nil {
		zap.L().Error("Error during profile row iteration", zap.Error(err))
		return nil, fmt.Errorf("error iterating profile rows: %w", err)
	}

	zap.L().Info("Retrieved profiles", zap.Int("count", len(profiles)))
	return profiles, nil
}

// GetProfile returns the profile for address, or nil when none is registered.
func (s *Service) GetProfile(ctx context.Context, address string) (*models.Profile, error) {
	zap.L().Debug("Querying profile by address", zap.String("address", address))

	var profile models.Profile
	var createdAt int64
	err := s.db.QueryRowContext(ctx, queryGetProfileByAddress, address).Scan(&profile.Address, &profile.Handle, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		zap.L().Error("Failed to query profile", zap.String("address", address), zap.Error(err))
		return nil, fmt.Errorf("unable to query profile: %w", err)
	}
	profile.CreatedAt = fromNanos(createdAt)
	return &profile, nil
}

func (s *Service) GetProfileStatus(ctx context.Context, address string) (models.ProfileStatus, error) {
	profile, err := s.GetProfile(ctx, address)
	if err != nil {
		return models.ProfileStatus{}, err
	}
	return models.ProfileStatus{Exists: profile != nil}, nil
}

func (s *Service) CreateProfile(ctx context.Context, address, handle string) (*models.Profile, error) {
	zap.L().Info("Creating profile", zap.String("address", address), zap.String("handle", handle))

	if address == "" || handle == "" {
		return nil, fmt.Errorf("address and handle are required")
	}

	result, err := s.db.ExecContext(ctx, queryInsertProfile, address, handle, s.clock.Now().UnixNano())
	if err != nil {
		zap.L().Error("Failed to insert profile", zap.String("address", address), zap.Error(err))
		return nil, fmt.Errorf("unable to insert profile: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("unable to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return nil, fmt.Errorf("%w: %s", ErrProfileExists, address)
	}

	zap.L().Info("Profile created successfully", zap.String("address", address), zap.String("handle", handle))
	return s.GetProfile(ctx, address)
}
