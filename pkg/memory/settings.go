// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package memory

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
)

// GetSettings returns a user's governance settings, falling back to the
// configured defaults (auto-save on, the recommended category set, the
// configured core cap) when the user has never customized them.
func (s *Store) GetSettings(ctx context.Context, userID string) (Settings, error) {
	defaults := Settings{
		UserID:             userID,
		AutoSaveEnabled:    true,
		AutoSaveCategories: DefaultAutoSaveCategories,
		CoreCap:            s.cfg.CoreCap,
	}
	if userID == "" {
		return defaults, nil
	}

	row := s.storage.db.QueryRowContext(ctx,
		"SELECT auto_save_enabled, auto_save_categories, core_cap FROM memory_settings WHERE user_id = ?", userID)
	var enabled int
	var categoriesJSON sql.NullString
	var coreCap int
	err := row.Scan(&enabled, &categoriesJSON, &coreCap)
	if err == sql.ErrNoRows {
		return defaults, nil
	}
	if err != nil {
		return defaults, fmt.Errorf("memory: get settings: %w", err)
	}

	categories := DefaultAutoSaveCategories
	if categoriesJSON.Valid && categoriesJSON.String != "" {
		var parsed []string
		if json.Unmarshal([]byte(categoriesJSON.String), &parsed) == nil && len(parsed) > 0 {
			categories = parsed
		}
	}
	return Settings{
		UserID:             userID,
		AutoSaveEnabled:    enabled != 0,
		AutoSaveCategories: categories,
		CoreCap:            coreCap,
	}, nil
}

// UpdateSettings upserts the given user's governance settings.
func (s *Store) UpdateSettings(ctx context.Context, settings Settings) error {
	categoriesJSON, err := json.Marshal(settings.AutoSaveCategories)
	if err != nil {
		return fmt.Errorf("memory: encode categories: %w", err)
	}
	coreCap := settings.CoreCap
	if coreCap <= 0 {
		coreCap = s.cfg.CoreCap
	}

	enabled := 0
	if settings.AutoSaveEnabled {
		enabled = 1
	}

	row := s.storage.db.QueryRowContext(ctx, "SELECT 1 FROM memory_settings WHERE user_id = ?", settings.UserID)
	var exists int
	if err := row.Scan(&exists); err == sql.ErrNoRows {
		_, err := s.storage.db.ExecContext(ctx,
			"INSERT INTO memory_settings (user_id, auto_save_enabled, auto_save_categories, core_cap) VALUES (?, ?, ?, ?)",
			settings.UserID, enabled, string(categoriesJSON), coreCap)
		if err != nil {
			return fmt.Errorf("memory: insert settings: %w", err)
		}
		return nil
	} else if err != nil {
		return fmt.Errorf("memory: check settings: %w", err)
	}

	_, err = s.storage.db.ExecContext(ctx,
		"UPDATE memory_settings SET auto_save_enabled = ?, auto_save_categories = ?, core_cap = ? WHERE user_id = ?",
		enabled, string(categoriesJSON), coreCap, settings.UserID)
	if err != nil {
		return fmt.Errorf("memory: update settings: %w", err)
	}
	return nil
}

// ShouldAutoSave reports whether category is allowed for auto-save under
// userID's current governance settings.
func (s *Store) ShouldAutoSave(ctx context.Context, category, userID string) (bool, error) {
	settings, err := s.GetSettings(ctx, userID)
	if err != nil {
		return false, err
	}
	if !settings.AutoSaveEnabled {
		return false, nil
	}
	for _, c := range settings.AutoSaveCategories {
		if c == category {
			return true, nil
		}
	}
	return false, nil
}

// PromoteToCore sets a memory's tier to core, subject to the core cap.
func (s *Store) PromoteToCore(ctx context.Context, id, userID string) (bool, error) {
	count, err := s.CountTier(ctx, userID, TierCore)
	if err != nil {
		return false, err
	}
	if count >= s.cfg.CoreCap {
		return false, fmt.Errorf("memory: core tier full (%d/%d)", count, s.cfg.CoreCap)
	}
	tier := TierCore
	return s.Update(ctx, id, UpdateFields{Tier: &tier}, userID)
}

// DemoteFromCore sets a memory's tier to long_term, preserving every other
// field except updated_at (§8's promote/demote round-trip law).
func (s *Store) DemoteFromCore(ctx context.Context, id, userID string) (bool, error) {
	tier := TierLongTerm
	return s.Update(ctx, id, UpdateFields{Tier: &tier}, userID)
}
