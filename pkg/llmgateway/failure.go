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

import "fmt"

// FailureKind classifies why a Chat call could not produce a result.
type FailureKind string

const (
	FailureNoProvider    FailureKind = "no_provider"
	FailureTimeout       FailureKind = "timeout"
	FailureRateLimited   FailureKind = "rate_limited"
	FailureUpstreamError FailureKind = "upstream_error"
	FailureParseError    FailureKind = "parse_error"
)

// Failure is the typed error Gateway.Chat returns once every provider in a
// role's fallback list has been exhausted. Err wraps the last provider's
// underlying error.
type Failure struct {
	Kind     FailureKind
	Provider string
	Err      error
}

func (f *Failure) Error() string {
	if f.Provider != "" {
		return fmt.Sprintf("llmgateway: %s (last provider %q): %v", f.Kind, f.Provider, f.Err)
	}
	return fmt.Sprintf("llmgateway: %s: %v", f.Kind, f.Err)
}

func (f *Failure) Unwrap() error {
	return f.Err
}

// classifyErr maps a provider error to a FailureKind so the gateway can
// decide whether to fall through to the next provider in the role's
// preference list (all kinds are currently treated as fall-through
// candidates; NoProvider only occurs when the list itself is exhausted).
func classifyErr(err error) FailureKind {
	if err == nil {
		return ""
	}
	if isTimeout(err) {
		return FailureTimeout
	}
	if isRateLimit(err) {
		return FailureRateLimited
	}
	return FailureUpstreamError
}
