// Copyright 2026 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package internal

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

// noDelayRetryConfig retries on 500 and 503 without any backoff delay, so
// tests do not sleep.
func noDelayRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxRetries: 4,
		CheckForRetry: retryNetworkAndHTTPErrors(
			http.StatusInternalServerError,
			http.StatusServiceUnavailable,
		),
	}
}

func TestDo(t *testing.T) {
	var reqBody []byte
	var headers http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqBody, _ = io.ReadAll(r.Body)
		headers = r.Header
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"key": "value"}`))
	}))
	defer srv.Close()

	client := &HTTPClient{Client: http.DefaultClient}
	req := &Request{
		Method: http.MethodPost,
		URL:    srv.URL,
		Body:   NewJSONEntity(map[string]string{"input": "test"}),
		Opts: []HTTPOption{
			WithHeader("X-Custom-Header", "custom-value"),
		},
	}
	resp, err := client.Do(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}

	if resp.Status != http.StatusOK {
		t.Errorf("Do() Status = %d; want = %d", resp.Status, http.StatusOK)
	}
	if string(resp.Body) != `{"key": "value"}` {
		t.Errorf("Do() Body = %q; want = %q", string(resp.Body), `{"key": "value"}`)
	}
	if string(reqBody) != `{"input":"test"}` {
		t.Errorf("Do() request body = %q; want = %q", string(reqBody), `{"input":"test"}`)
	}
	if got := headers.Get("Content-Type"); got != "application/json" {
		t.Errorf("Do() Content-Type = %q; want = %q", got, "application/json")
	}
	if got := headers.Get("X-Custom-Header"); got != "custom-value" {
		t.Errorf("Do() X-Custom-Header = %q; want = %q", got, "custom-value")
	}
}

func TestDoAndUnmarshal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"name": "test-resource", "count": 42}`))
	}))
	defer srv.Close()

	client := &HTTPClient{Client: http.DefaultClient}
	var parsed struct {
		Name  string `json:"name"`
		Count int    `json:"count"`
	}
	req := &Request{Method: http.MethodGet, URL: srv.URL}
	if _, err := client.DoAndUnmarshal(context.Background(), req, &parsed); err != nil {
		t.Fatal(err)
	}
	if parsed.Name != "test-resource" || parsed.Count != 42 {
		t.Errorf("DoAndUnmarshal() = %+v; want = {test-resource 42}", parsed)
	}
}

func TestDoAndUnmarshalError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not json"))
	}))
	defer srv.Close()

	client := &HTTPClient{Client: http.DefaultClient}
	var parsed map[string]interface{}
	req := &Request{Method: http.MethodGet, URL: srv.URL}
	if _, err := client.DoAndUnmarshal(context.Background(), req, &parsed); err == nil {
		t.Errorf("DoAndUnmarshal() = nil; want error")
	}
}

func TestDoWithQueryParams(t *testing.T) {
	var query map[string][]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query = r.URL.Query()
		w.Write([]byte("{}"))
	}))
	defer srv.Close()

	client := &HTTPClient{Client: http.DefaultClient}
	req := &Request{
		Method: http.MethodGet,
		URL:    srv.URL,
		Opts: []HTTPOption{
			WithQueryParam("single", "value"),
			WithQueryParams(map[string]string{"pageSize": "100", "pageToken": "next"}),
		},
	}
	if _, err := client.Do(context.Background(), req); err != nil {
		t.Fatal(err)
	}

	want := map[string][]string{
		"single":    {"value"},
		"pageSize":  {"100"},
		"pageToken": {"next"},
	}
	if diff := cmp.Diff(want, query); diff != "" {
		t.Errorf("Do() query mismatch (-want +got):\n%s", diff)
	}
}

func TestDoRetriesOnServerError(t *testing.T) {
	var requests int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		if requests < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte("{}"))
	}))
	defer srv.Close()

	client := &HTTPClient{Client: http.DefaultClient, RetryConfig: noDelayRetryConfig()}
	req := &Request{Method: http.MethodGet, URL: srv.URL}
	resp, err := client.Do(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	if resp.Status != http.StatusOK {
		t.Errorf("Do() Status = %d; want = %d", resp.Status, http.StatusOK)
	}
	if requests != 3 {
		t.Errorf("Do() made %d requests; want = 3", requests)
	}
}

func TestDoExhaustsRetries(t *testing.T) {
	var requests int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`{"error": {"status": "UNAVAILABLE", "message": "Try later"}}`))
	}))
	defer srv.Close()

	client := &HTTPClient{Client: http.DefaultClient, RetryConfig: noDelayRetryConfig()}
	req := &Request{Method: http.MethodGet, URL: srv.URL}
	resp, err := client.Do(context.Background(), req)
	if resp != nil || err == nil {
		t.Fatalf("Do() = (%v, %v); want = (nil, error)", resp, err)
	}
	if !HasPlatformErrorCode(err, Unavailable) {
		t.Errorf("Do() error code = %v; want = %q", err, Unavailable)
	}
	if requests != 5 {
		t.Errorf("Do() made %d requests; want = 5", requests)
	}
}

func TestDoDoesNotRetryClientErrors(t *testing.T) {
	var requests int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error": {"status": "INVALID_ARGUMENT", "message": "Bad request"}}`))
	}))
	defer srv.Close()

	client := &HTTPClient{Client: http.DefaultClient, RetryConfig: noDelayRetryConfig()}
	req := &Request{Method: http.MethodGet, URL: srv.URL}
	if _, err := client.Do(context.Background(), req); !HasPlatformErrorCode(err, InvalidArgument) {
		t.Errorf("Do() error = %v; want code = %q", err, InvalidArgument)
	}
	if requests != 1 {
		t.Errorf("Do() made %d requests; want = 1", requests)
	}
}

func TestDoNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	client := &HTTPClient{Client: http.DefaultClient}
	req := &Request{Method: http.MethodGet, URL: srv.URL}
	if _, err := client.Do(context.Background(), req); !HasPlatformErrorCode(err, Unavailable) {
		t.Errorf("Do() error = %v; want code = %q", err, Unavailable)
	}
}

func TestSuccessFn(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"error": "some error"}`))
	}))
	defer srv.Close()

	client := &HTTPClient{
		Client: http.DefaultClient,
		SuccessFn: func(r *Response) bool {
			var parsed map[string]interface{}
			if err := json.Unmarshal(r.Body, &parsed); err != nil {
				return false
			}
			_, hasError := parsed["error"]
			return !hasError
		},
	}
	req := &Request{Method: http.MethodGet, URL: srv.URL}
	if _, err := client.Do(context.Background(), req); err == nil {
		t.Errorf("Do() = nil; want error from SuccessFn")
	}
}

func TestRequestCreateErrFn(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	sentinel := errors.New("custom error")
	client := &HTTPClient{Client: http.DefaultClient}
	req := &Request{
		Method: http.MethodGet,
		URL:    srv.URL,
		CreateErrFn: func(r *Response) error {
			return sentinel
		},
	}
	if _, err := client.Do(context.Background(), req); !errors.Is(err, sentinel) {
		t.Errorf("Do() error = %v; want = %v", err, sentinel)
	}
}

func TestRetryDelay(t *testing.T) {
	rc := &RetryConfig{
		MaxRetries:       4,
		ExpBackoffFactor: 0.5,
	}
	resp := &http.Response{StatusCode: http.StatusServiceUnavailable, Header: http.Header{}}

	cases := []struct {
		retries   int
		wantDelay time.Duration
	}{
		{0, 0},
		{1, time.Second},
		{2, 2 * time.Second},
		{3, 4 * time.Second},
	}
	for _, tc := range cases {
		delay, retry := rc.retryDelay(tc.retries, resp, nil)
		if !retry || delay != tc.wantDelay {
			t.Errorf("retryDelay(%d) = (%v, %v); want = (%v, true)", tc.retries, delay, retry, tc.wantDelay)
		}
	}

	if _, retry := rc.retryDelay(4, resp, nil); retry {
		t.Errorf("retryDelay(4) retry = true; want = false after MaxRetries")
	}
}

func TestRetryDelayMaxDelay(t *testing.T) {
	maxDelay := 2 * time.Second
	rc := &RetryConfig{
		MaxRetries:       10,
		ExpBackoffFactor: 1.0,
		MaxDelay:         &maxDelay,
	}
	resp := &http.Response{StatusCode: http.StatusServiceUnavailable, Header: http.Header{}}

	delay, retry := rc.retryDelay(1, resp, nil)
	if !retry || delay != 2*time.Second {
		t.Errorf("retryDelay(1) = (%v, %v); want = (2s, true)", delay, retry)
	}

	// The server demanded a delay longer than MaxDelay; give up instead.
	resp.Header.Set("Retry-After", "10")
	if _, retry := rc.retryDelay(1, resp, nil); retry {
		t.Errorf("retryDelay() retry = true; want = false when Retry-After exceeds MaxDelay")
	}
}

func TestParseRetryAfterHeader(t *testing.T) {
	mock := &MockClock{Timestamp: time.Date(2026, time.August, 26, 10, 0, 0, 0, time.UTC)}
	orig := clock
	clock = mock
	defer func() { clock = orig }()

	cases := []struct {
		name   string
		header string
		want   time.Duration
	}{
		{"Empty", "", 0},
		{"Seconds", "30", 30 * time.Second},
		{"HTTPDate", mock.Timestamp.Add(90 * time.Second).Format(http.TimeFormat), 90 * time.Second},
		{"Malformed", "not a delay", 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp := &http.Response{Header: http.Header{}}
			if tc.header != "" {
				resp.Header.Set("Retry-After", tc.header)
			}
			if got := parseRetryAfterHeader(resp); got != tc.want {
				t.Errorf("parseRetryAfterHeader(%q) = %v; want = %v", tc.header, got, tc.want)
			}
		})
	}

	if got := parseRetryAfterHeader(nil); got != 0 {
		t.Errorf("parseRetryAfterHeader(nil) = %v; want = 0", got)
	}
}

func TestRetryNetworkAndHTTPErrors(t *testing.T) {
	check := retryNetworkAndHTTPErrors(http.StatusInternalServerError, http.StatusServiceUnavailable)

	if !check(nil, errors.New("network error")) {
		t.Errorf("CheckForRetry(network error) = false; want = true")
	}
	for _, status := range []int{http.StatusInternalServerError, http.StatusServiceUnavailable} {
		if !check(&http.Response{StatusCode: status}, nil) {
			t.Errorf("CheckForRetry(%d) = false; want = true", status)
		}
	}
	for _, status := range []int{http.StatusOK, http.StatusBadRequest, http.StatusNotFound} {
		if check(&http.Response{StatusCode: status}, nil) {
			t.Errorf("CheckForRetry(%d) = true; want = false", status)
		}
	}
}
