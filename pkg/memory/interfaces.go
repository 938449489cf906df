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

import "context"

// GovernanceCaller is the subset of the memory HTTP surface a host service
// exposes for per-user governance: reading and updating auto-save settings.
// The Archivist depends on this interface, not *Store directly,
// so a caller backed by its own HTTP admin surface can satisfy it too.
type GovernanceCaller interface {
	GetSettings(ctx context.Context, userID string) (Settings, error)
	UpdateSettings(ctx context.Context, settings Settings) error
}

// AdminOps is the administrative memory surface a host service exposes:
// list/search/get/add/update/delete, tier changes, and governance.
// Exported so a host that fronts this store
// with its own HTTP admin routes can implement AdminOps directly instead of
// depending on *Store.
type AdminOps interface {
	List(ctx context.Context, f ListFilters) ([]Memory, error)
	Search(ctx context.Context, query, userID string, k int) ([]Scored, error)
	Get(ctx context.Context, id string) (*Memory, error)
	Add(ctx context.Context, content, category, userID string, source Source, tier Tier, confidence float64) (string, error)
	Update(ctx context.Context, id string, fields UpdateFields, userID string) (bool, error)
	Delete(ctx context.Context, id string, userID string) (bool, error)
	PromoteToCore(ctx context.Context, id, userID string) (bool, error)
	DemoteFromCore(ctx context.Context, id, userID string) (bool, error)
	GovernanceCaller
}

// EntityOps is the subset of the entity graph the Archivist needs to link
// a stored memory to the people, projects, tools, and concepts it mentions.
type EntityOps interface {
	AddEntity(ctx context.Context, name string, typ EntityType) (string, error)
	Link(ctx context.Context, memoryID, entityID, relationship string) error
}

var (
	_ GovernanceCaller = (*Store)(nil)
	_ AdminOps         = (*Store)(nil)
	_ EntityOps        = (*Store)(nil)
)
