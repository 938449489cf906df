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
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultStrategy(t *testing.T) {
	tests := []struct {
		status int
		want   RetryStrategy
	}{
		{http.StatusTooManyRequests, SmartRetry},
		{http.StatusServiceUnavailable, SmartRetry},
		{http.StatusInternalServerError, SmartRetry},
		{http.StatusBadGateway, SmartRetry},
		{http.StatusGatewayTimeout, SmartRetry},
		{http.StatusRequestTimeout, ConservativeRetry},
		{http.StatusBadRequest, NoRetry},
		{http.StatusUnauthorized, NoRetry},
		{http.StatusNotFound, NoRetry},
		{http.StatusOK, NoRetry},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, DefaultStrategy(tt.status), "status %d", tt.status)
	}
}

func TestClient_Do_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	c := New()
	req, err := http.NewRequest(http.MethodGet, server.URL, nil)
	require.NoError(t, err)

	resp, err := c.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestClient_Do_ClientErrorFailsFast(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	c := New(WithMaxRetries(3))
	req, err := http.NewRequest(http.MethodPost, server.URL, strings.NewReader(`{}`))
	require.NoError(t, err)

	resp, err := c.Do(req)
	require.Error(t, err)
	defer resp.Body.Close()
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls), "a 400 must never retry")
}

func TestClient_Do_RetriesRateLimitThenSucceeds(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) <= 2 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	c := New(
		WithMaxRetries(4),
		WithBaseDelay(time.Millisecond),
		WithMaxDelay(5*time.Millisecond),
	)
	req, err := http.NewRequest(http.MethodGet, server.URL, nil)
	require.NoError(t, err)

	resp, err := c.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestClient_Do_MaxRetriesExceeded(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	c := New(
		WithMaxRetries(2),
		WithBaseDelay(time.Millisecond),
		WithMaxDelay(5*time.Millisecond),
	)
	req, err := http.NewRequest(http.MethodGet, server.URL, nil)
	require.NoError(t, err)

	resp, err := c.Do(req)
	require.Error(t, err)
	if resp != nil {
		defer resp.Body.Close()
	}

	var re *RetryableError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, http.StatusTooManyRequests, re.StatusCode)
	assert.True(t, re.IsRetryable())
}

func TestClient_Do_ReplaysBodyOnRetry(t *testing.T) {
	const payload = `{"model":"test","messages":[]}`
	var calls int32
	var bodies []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		bodies = append(bodies, string(body))
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	c := New(
		WithMaxRetries(2),
		WithBaseDelay(time.Millisecond),
		WithMaxDelay(5*time.Millisecond),
	)
	req, err := http.NewRequest(http.MethodPost, server.URL, strings.NewReader(payload))
	require.NoError(t, err)

	resp, err := c.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Len(t, bodies, 2)
	assert.Equal(t, payload, bodies[0])
	assert.Equal(t, payload, bodies[1], "the retried request must replay the identical payload")
}

func TestClient_Do_NetworkErrorNotWrapped(t *testing.T) {
	c := New(WithMaxRetries(1))
	req, err := http.NewRequest(http.MethodGet, "http://127.0.0.1:1", nil)
	require.NoError(t, err)

	resp, err := c.Do(req)
	require.Error(t, err)
	assert.Nil(t, resp)

	var re *RetryableError
	assert.False(t, errors.As(err, &re), "transport errors surface directly, not as RetryableError")
}

func TestCalculateDelay(t *testing.T) {
	c := New(WithBaseDelay(time.Second), WithMaxDelay(10*time.Second))

	t.Run("retry-after directive wins", func(t *testing.T) {
		delay := c.calculateDelay(SmartRetry, 0, RateLimitInfo{RetryAfter: 30 * time.Second})
		assert.Equal(t, 30*time.Second, delay)
	})

	t.Run("exponential backoff capped at max delay", func(t *testing.T) {
		delay := c.calculateDelay(SmartRetry, 10, RateLimitInfo{})
		assert.Equal(t, 10*time.Second, delay)
	})

	t.Run("exponential backoff grows with attempt", func(t *testing.T) {
		first := c.calculateDelay(SmartRetry, 0, RateLimitInfo{})
		third := c.calculateDelay(SmartRetry, 2, RateLimitInfo{})
		assert.GreaterOrEqual(t, int64(third), int64(first))
		assert.GreaterOrEqual(t, int64(first), int64(time.Second))
	})

	t.Run("conservative retry stops after two attempts", func(t *testing.T) {
		assert.Equal(t, 2*time.Second, c.calculateDelay(ConservativeRetry, 0, RateLimitInfo{}))
		assert.Equal(t, 3*time.Second, c.calculateDelay(ConservativeRetry, 1, RateLimitInfo{}))
		assert.Equal(t, time.Duration(0), c.calculateDelay(ConservativeRetry, 2, RateLimitInfo{}))
	})

	t.Run("no-retry yields zero delay", func(t *testing.T) {
		assert.Equal(t, time.Duration(0), c.calculateDelay(NoRetry, 0, RateLimitInfo{}))
	})
}
