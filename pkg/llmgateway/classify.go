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
	"context"
	"errors"
	"net/http"

	"github.com/ashestoaltar/tamor-core/pkg/httpclient"
)

func isTimeout(err error) bool {
	return errors.Is(err, context.DeadlineExceeded)
}

func isRateLimit(err error) bool {
	var re *httpclient.RetryableError
	if errors.As(err, &re) {
		return re.StatusCode == http.StatusTooManyRequests
	}
	return false
}
