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

package llmgateway

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// estimateTokens counts tokens locally when a provider's response doesn't
// include a usage block (e.g. Ollama, or an error response mid-stream).
// cl100k_base approximates every supported provider closely enough for
// accounting purposes; it is not used to enforce any provider's real limit.
func estimateTokens(text string) int {
	enc := tiktokenEncoding()
	if enc == nil {
		// Fallback heuristic: ~4 characters per token.
		return (len(text) + 3) / 4
	}
	return len(enc.Encode(text, nil, nil))
}

var (
	encOnce sync.Once
	enc     *tiktoken.Tiktoken
)

func tiktokenEncoding() *tiktoken.Tiktoken {
	encOnce.Do(func() {
		e, err := tiktoken.GetEncoding("cl100k_base")
		if err == nil {
			enc = e
		}
	})
	return enc
}

func estimateMessagesTokens(messages []Message) int {
	total := 0
	for _, m := range messages {
		total += estimateTokens(m.Content) + 4 // role + delimiter overhead
	}
	return total
}
