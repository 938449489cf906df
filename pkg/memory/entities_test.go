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
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAddEntity_IdempotentOnNameAndType(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	id1, err := s.AddEntity(ctx, "Tamor", EntityProject)
	require.NoError(t, err)
	id2, err := s.AddEntity(ctx, "Tamor", EntityProject)
	require.NoError(t, err)
	require.Equal(t, id1, id2)
}

func TestAddEntity_SameNameDifferentTypeIsDistinct(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	projectID, err := s.AddEntity(ctx, "Tamor", EntityProject)
	require.NoError(t, err)
	conceptID, err := s.AddEntity(ctx, "Tamor", EntityConcept)
	require.NoError(t, err)
	require.NotEqual(t, projectID, conceptID)
}

func TestByEntity_ReturnsLinkedMemories(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	memID, err := s.Add(ctx, "works on Tamor every weekend", CategoryProject, "u1", SourceManual, TierLongTerm, 0.8)
	require.NoError(t, err)
	entityID, err := s.AddEntity(ctx, "Tamor", EntityProject)
	require.NoError(t, err)
	require.NoError(t, s.Link(ctx, memID, entityID, "about"))

	results, err := s.ByEntity(ctx, "Tamor", "u1")
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, memID, results[0].ID)
}

func TestByEntity_NoMatchReturnsEmpty(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	results, err := s.ByEntity(ctx, "nonexistent", "u1")
	require.NoError(t, err)
	require.Empty(t, results)
}
