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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecay_CoreBypassesDecay(t *testing.T) {
	score := decay(0.8, TierCore, time.Now().Add(-time.Hour*24*365), 0.1, 14, 180)
	assert.Equal(t, 0.8, score)
}

func TestDecay_ZeroLastAccessedDefaultsTo30Days(t *testing.T) {
	withZero := decay(1.0, TierLongTerm, time.Time{}, 1.0, 14, 180)
	explicit := decay(1.0, TierLongTerm, Clock().Add(-30*24*time.Hour), 1.0, 14, 180)
	assert.InDelta(t, explicit, withZero, 0.0001)
}

func TestDecay_HalfLifeHalvesScoreAtExactlyOneHalfLife(t *testing.T) {
	now := time.Now()
	restore := Clock
	Clock = func() time.Time { return now }
	defer func() { Clock = restore }()

	lastAccessed := now.Add(-180 * 24 * time.Hour)
	// confidence 0.5 -> confidenceFactor = 1.0, isolating the recency factor
	score := decay(1.0, TierLongTerm, lastAccessed, 0.5, 14, 180)
	require.InDelta(t, 0.5, score, 0.0001)
}

func TestDecay_EpisodicUsesShorterHalfLife(t *testing.T) {
	now := time.Now()
	restore := Clock
	Clock = func() time.Time { return now }
	defer func() { Clock = restore }()

	lastAccessed := now.Add(-14 * 24 * time.Hour)
	score := decay(1.0, TierEpisodic, lastAccessed, 0.5, 14, 180)
	require.InDelta(t, 0.5, score, 0.0001)
}

func TestDecay_ConfidenceFactorRange(t *testing.T) {
	now := time.Now()
	lowConfidence := decay(1.0, TierLongTerm, now, 0.0, 14, 180)
	highConfidence := decay(1.0, TierLongTerm, now, 1.0, 14, 180)
	assert.InDelta(t, 0.4, lowConfidence, 0.0001)
	assert.InDelta(t, 1.6, highConfidence, 0.0001)
	assert.Less(t, lowConfidence, highConfidence)
}
