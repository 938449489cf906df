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

package retrieval

import (
	"sort"

	"github.com/ashestoaltar/tamor-core/pkg/turn"
)

// diversifyByFile caps the number of chunks kept per file at perFile,
// taking the highest-scoring chunks for each file first, then re-sorts the
// survivors by descending score and truncates to total.
func diversifyByFile(chunks []turn.Chunk, perFile, total int) []turn.Chunk {
	sorted := append([]turn.Chunk{}, chunks...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Score > sorted[j].Score })

	perFileCount := map[string]int{}
	kept := make([]turn.Chunk, 0, len(sorted))
	for _, c := range sorted {
		if perFileCount[c.FileID] >= perFile {
			continue
		}
		perFileCount[c.FileID]++
		kept = append(kept, c)
	}

	sort.SliceStable(kept, func(i, j int) bool { return kept[i].Score > kept[j].Score })
	if len(kept) > total {
		kept = kept[:total]
	}
	return kept
}

// dedupeByPrefix drops chunks whose first prefixLen characters of Content
// match an already-kept chunk, preserving the input order (project chunks
// before library chunks, so a project chunk always wins a content tie).
func dedupeByPrefix(chunks []turn.Chunk, prefixLen int) []turn.Chunk {
	seen := map[string]bool{}
	out := make([]turn.Chunk, 0, len(chunks))
	for _, c := range chunks {
		key := c.Content
		if len(key) > prefixLen {
			key = key[:prefixLen]
		}
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, c)
	}
	return out
}
