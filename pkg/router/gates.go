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

package router

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"

	"github.com/ashestoaltar/tamor-core/pkg/turn"
)

// Gate is a deterministic fast path: an anchored, case-insensitive,
// trailing-punctuation-tolerant pattern plus a responder that computes the
// answer without any LLM. A matched gate bypasses classification and
// retrieval entirely.
type Gate struct {
	// Name identifies the gate in traces and as the epistemic query type.
	Name string
	// Pattern is matched against the trimmed user message.
	Pattern *regexp.Regexp
	// Respond computes the deterministic answer. Returning an error makes
	// the router fall through to normal routing rather than failing the
	// turn.
	Respond func(ctx context.Context, reqCtx *turn.RequestContext, match []string) (string, error)
}

// matchGate scans the configured gates in order and runs the first match.
func (r *Router) matchGate(ctx context.Context, reqCtx *turn.RequestContext, message string) (string, string, bool) {
	for _, g := range r.opts.Gates {
		match := g.Pattern.FindStringSubmatch(message)
		if match == nil {
			continue
		}
		text, err := g.Respond(ctx, reqCtx, match)
		if err != nil {
			slog.Warn("deterministic gate failed, falling through", "gate", g.Name, "error", err)
			continue
		}
		return text, g.Name, true
	}
	return "", "", false
}

// TaskCounter reports how many pending tasks a project holds. The task
// table itself is owned by the host; the router only reads the count.
type TaskCounter interface {
	PendingTaskCount(ctx context.Context, projectID, userID string) (int, error)
}

// TaskCountGate answers "how many tasks ..." style questions from the task
// store directly.
func TaskCountGate(counter TaskCounter) Gate {
	return Gate{
		Name:    "count",
		Pattern: regexp.MustCompile(`(?i)^how many (?:tasks|steps|items)(?:\s+(?:are\s+)?(?:left|remaining|pending|open))?\s*[.?!]*$`),
		Respond: func(ctx context.Context, reqCtx *turn.RequestContext, _ []string) (string, error) {
			n, err := counter.PendingTaskCount(ctx, reqCtx.ProjectID, reqCtx.UserID)
			if err != nil {
				return "", err
			}
			switch n {
			case 0:
				return "There are no pending tasks.", nil
			case 1:
				return "There is 1 pending task.", nil
			default:
				return fmt.Sprintf("There are %d pending tasks.", n), nil
			}
		},
	}
}

// Lookup resolves a named key to stored text (e.g. a drawing title to its
// description).
type Lookup interface {
	Lookup(ctx context.Context, userID, key string) (string, bool, error)
}

// LookupGate answers "show me <thing> ..." style questions against an
// injected lookup table. kind names the thing being looked up ("drawing",
// "note"); it appears in the pattern and the trace.
func LookupGate(kind string, source Lookup) Gate {
	pattern := regexp.MustCompile(`(?i)^(?:show|pull up|look up|find)\s+(?:me\s+)?(?:the\s+|my\s+)?` + regexp.QuoteMeta(kind) + `\s+(?:of\s+|for\s+|called\s+|named\s+)?(.{1,80}?)\s*[.?!]*$`)
	return Gate{
		Name:    "lookup_" + kind,
		Pattern: pattern,
		Respond: func(ctx context.Context, reqCtx *turn.RequestContext, match []string) (string, error) {
			text, found, err := source.Lookup(ctx, reqCtx.UserID, match[1])
			if err != nil {
				return "", err
			}
			if !found {
				return fmt.Sprintf("I don't have a %s matching %q.", kind, match[1]), nil
			}
			return text, nil
		},
	}
}
