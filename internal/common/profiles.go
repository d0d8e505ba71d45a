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

package common

import (
	"context"
	"fmt"

	"vote-escrow-go/internal/models"

	"go.uber.org/zap"
)

// ProfileDirectory lists governance profiles; the devnet chain implements it
type ProfileDirectory interface {
	GetProfiles(ctx context.Context) ([]models.Profile, error)
	GetProfile(ctx context.Context, address string) (*models.Profile, error)
}

// InitializeProfiles retrieves profiles based on an optional address filter.
// If addressFilter is provided, returns the single profile for that address.
// If addressFilter is empty, returns all profiles.
func InitializeProfiles(ctx context.Context, directory ProfileDirectory, addressFilter string, logger *zap.Logger) ([]models.Profile, error) {
	var profiles []models.Profile

	if addressFilter != "" {
		logger.Info("Looking up profile by address", zap.String("address", addressFilter))
		profile, err := directory.GetProfile(ctx, addressFilter)
		if err != nil {
			return nil, fmt.Errorf("failed to get profile: %w", err)
		}
		if profile == nil {
			return nil, fmt.Errorf("profile not found: %s", addressFilter)
		}
		profiles = append(profiles, *profile)
	} else {
		all, err := directory.GetProfiles(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to get profiles: %w", err)
		}
		profiles = append(profiles, all...)
	}

	logger.Info("Retrieved profiles", zap.Int("count", len(profiles)))
	return profiles, nil
}
