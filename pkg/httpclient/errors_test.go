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

package httpclient

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetryableError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *RetryableError
		want string
	}{
		{
			name: "rate limit with retry-after",
			err: &RetryableError{
				StatusCode: 429,
				Message:    "rate limit exceeded",
				RetryAfter: 30 * time.Second,
			},
			want: "HTTP 429: rate limit exceeded (retry after 30s)",
		},
		{
			name: "upstream error without retry-after",
			err: &RetryableError{
				StatusCode: 500,
				Message:    "provider internal error",
			},
			want: "HTTP 500: provider internal error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestRetryableError_Unwrap(t *testing.T) {
	inner := errors.New("HTTP 429")
	err := &RetryableError{StatusCode: 429, Message: "max retries (5) exceeded", Err: inner}

	require.ErrorIs(t, err, inner)

	var re *RetryableError
	require.ErrorAs(t, error(err), &re)
	assert.Equal(t, 429, re.StatusCode)

	assert.Nil(t, (&RetryableError{StatusCode: 500}).Unwrap())
}

func TestRetryableError_IsRetryable(t *testing.T) {
	assert.True(t, (&RetryableError{StatusCode: 429}).IsRetryable())
	assert.True(t, (&RetryableError{StatusCode: 503}).IsRetryable())
}
