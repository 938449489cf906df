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
	"fmt"
	"strings"
)

// GetMemoriesForContext implements §4.3's turn-injection algorithm: every
// core memory first, then up to MaxLongTermInContext long_term memories
// meeting the long-term relevance threshold, then up to
// MaxEpisodicInContext episodic memories meeting the (lower) episodic
// threshold, stopping at maxTotal overall. Every returned id's access is
// recorded atomically before return.
func (s *Store) GetMemoriesForContext(ctx context.Context, message, userID string, maxTotal int) ([]Scored, error) {
	if maxTotal <= 0 {
		maxTotal = s.cfg.MaxContextMemories
	}

	var result []Scored
	included := map[string]bool{}

	core, err := s.GetByTier(ctx, userID, TierCore)
	if err != nil {
		return nil, err
	}
	for _, m := range core {
		if len(result) >= maxTotal {
			break
		}
		result = append(result, Scored{Memory: m, Score: 1})
		included[m.ID] = true
	}

	if len(result) >= maxTotal || message == "" {
		if err := s.recordIDs(ctx, included); err != nil {
			return result, err
		}
		return result, nil
	}

	longTerm, err := s.Search(ctx, message, userID, s.cfg.MaxLongTermInContext+5)
	if err != nil {
		return nil, err
	}
	added := 0
	for _, m := range longTerm {
		if included[m.ID] || m.Tier != TierLongTerm || m.Score < s.cfg.LongTermThreshold {
			continue
		}
		result = append(result, m)
		included[m.ID] = true
		added++
		if added >= s.cfg.MaxLongTermInContext || len(result) >= maxTotal {
			break
		}
	}

	if len(result) >= maxTotal {
		if err := s.recordIDs(ctx, included); err != nil {
			return result, err
		}
		return result, nil
	}

	episodic, err := s.Search(ctx, message, userID, s.cfg.MaxEpisodicInContext+3)
	if err != nil {
		return nil, err
	}
	added = 0
	for _, m := range episodic {
		if included[m.ID] || m.Tier != TierEpisodic || m.Score < s.cfg.EpisodicThreshold {
			continue
		}
		result = append(result, m)
		included[m.ID] = true
		added++
		if added >= s.cfg.MaxEpisodicInContext || len(result) >= maxTotal {
			break
		}
	}

	if err := s.recordIDs(ctx, included); err != nil {
		return result, err
	}
	return result, nil
}

func (s *Store) recordIDs(ctx context.Context, included map[string]bool) error {
	ids := make([]string, 0, len(included))
	for id := range included {
		ids = append(ids, id)
	}
	return s.RecordAccess(ctx, ids)
}

// FormatForPrompt renders context memories as the "Always remember" /
// "Relevant context" bullet block the router appends to system prompts.
func FormatForPrompt(memories []Scored) string {
	if len(memories) == 0 {
		return ""
	}

	var core, other []Scored
	for _, m := range memories {
		if m.Tier == TierCore {
			core = append(core, m)
		} else {
			other = append(other, m)
		}
	}

	var b strings.Builder
	b.WriteString("## What You Know About the User\n\n")

	if len(core) > 0 {
		b.WriteString("**Always remember:**\n")
		for _, m := range core {
			fmt.Fprintf(&b, "- %s\n", m.Content)
		}
		b.WriteString("\n")
	}

	if len(other) > 0 {
		b.WriteString("**Relevant context:**\n")
		for _, m := range other {
			fmt.Fprintf(&b, "- [%s] %s\n", m.Category, m.Content)
		}
	}

	return strings.TrimRight(b.String(), "\n")
}
