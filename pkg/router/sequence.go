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
	"regexp"

	"github.com/ashestoaltar/tamor-core/pkg/intent"
	"github.com/ashestoaltar/tamor-core/pkg/turn"
)

// scholarlyRe detects biblical/theological vocabulary. It decides whether
// a research-flavored question gets the researcher stage even without a
// project; it never activates the hermeneutic overlay by itself.
var scholarlyRe = regexp.MustCompile(`(?i)\b(scriptures?|biblical|theolog\w*|exeges\w*|hermeneutic\w*|torah|talmud|midrash|gospels?|epistles?|covenant|messiah|messianic|apostle|prophets?|rabbinic|septuagint|masoretic|(?:hebrew|greek|aramaic)\s+(?:word|text|term|root)|genesis|exodus|leviticus|deuteronomy|psalms?|proverbs|isaiah|jeremiah|ezekiel|daniel|matthew|romans|corinthians|galatians|ephesians|hebrews|revelation)\b`)

// projectCodeRe detects phrases that reference the project's own code,
// which puts a researcher stage in front of the engineer.
var projectCodeRe = regexp.MustCompile(`(?i)\b(the code|this file|that file|our pattern|our codebase|the existing|in the project)\b`)

// selectSequence maps the detected intents onto an agent pipeline. The
// first intent is primary; the rest only modulate (research + write/
// summarize chains the writer after the researcher).
func selectSequence(intents []intent.Intent, reqCtx *turn.RequestContext) []string {
	if len(intents) == 0 {
		return nil
	}

	scholarly := scholarlyRe.MatchString(reqCtx.UserMessage)
	hasProject := reqCtx.HasProjectContext()

	switch intents[0] {
	case intent.Memory:
		return []string{"archivist"}
	case intent.Plan:
		return []string{"planner"}
	case intent.Code:
		if projectCodeRe.MatchString(reqCtx.UserMessage) {
			return []string{"researcher", "engineer"}
		}
		return []string{"engineer"}
	case intent.Write:
		if scholarly || hasProject {
			return []string{"researcher", "writer"}
		}
		return []string{"writer"}
	case intent.Research:
		if !hasProject && !scholarly {
			return nil
		}
		if hasSecondary(intents, intent.Summarize, intent.Write) {
			return []string{"researcher", "writer"}
		}
		return []string{"researcher"}
	case intent.Summarize:
		if hasProject {
			return []string{"researcher", "writer"}
		}
		return nil
	case intent.Explain:
		if hasProject || scholarly {
			return []string{"researcher", "writer"}
		}
		return nil
	default:
		return nil
	}
}

func hasSecondary(intents []intent.Intent, want ...intent.Intent) bool {
	for _, in := range intents[1:] {
		for _, w := range want {
			if in == w {
				return true
			}
		}
	}
	return false
}

// isBroadIntent reports whether the primary intent warrants wide project
// retrieval and a library search.
func isBroadIntent(intents []intent.Intent) bool {
	if len(intents) == 0 {
		return false
	}
	switch intents[0] {
	case intent.Research, intent.Write, intent.Summarize, intent.Explain:
		return true
	default:
		return false
	}
}

// needsRetrieval implements turn-algorithm step 4's condition: the
// sequence is non-empty (checked by the caller) and either project context
// exists or the intent is one of the four broad ones.
func needsRetrieval(intents []intent.Intent, reqCtx *turn.RequestContext) bool {
	return reqCtx.HasProjectContext() || isBroadIntent(intents)
}
