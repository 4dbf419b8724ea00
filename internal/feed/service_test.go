package feed

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"zombie-sweep/internal/config"
)

// testConfig returns fast retry settings pointed at ts.
func testConfig(ts *httptest.Server) config.FeedConfig {
	return config.FeedConfig{
		BaseURL:     ts.URL,
		Token:       "test-token",
		Timeout:     2 * time.Second,
		MaxAttempts: 3,
		RetryBase:   time.Millisecond,
		CallsPerSec: 1000,
	}
}

// waitCompletions polls the queue until n completions arrive or the
// deadline passes. Dispatch runs on gateway goroutines, so tests cannot
// read results inline.
func waitCompletions(t *testing.T, q *CompletionQueue, n int) []Completion {
	t.Helper()
	buf := make([]Completion, n)
	got := make([]Completion, 0, n)
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		read := q.DrainTo(buf)
		got = append(got, buf[:read]...)
		if len(got) >= n {
			return got
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d completions, got %d", n, len(got))
	return nil
}

// TestFetchRecordsSkipsMalformed verifies that empty refs, duplicates and
// unknown kinds are dropped while valid records survive
func TestFetchRecordsSkipsMalformed(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/scopes/sector-1/records" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-token" {
			t.Errorf("missing bearer token, got %q", got)
		}
		json.NewEncoder(w).Encode(feedRecordsResponse{Records: []Record{
			{ExternalRef: "rec-1", DisplayName: "One", Kind: "hostile"},
			{ExternalRef: "", DisplayName: "NoRef", Kind: "hostile"},
			{ExternalRef: "rec-1", DisplayName: "Dup", Kind: "hostile"},
			{ExternalRef: "rec-2", DisplayName: "Two", Kind: "widget"},
			{ExternalRef: "rec-3", DisplayName: "Three", Kind: "boss"},
			{ExternalRef: "rec-4", DisplayName: "Four", Kind: "exempt", Exempt: true},
		}})
	}))
	defer ts.Close()

	svc := NewService(testConfig(ts), NewCompletionQueue(0))
	records, err := svc.FetchRecords(context.Background(), "sector-1")
	if err != nil {
		t.Fatalf("FetchRecords failed: %v", err)
	}

	if len(records) != 3 {
		t.Fatalf("expected 3 valid records, got %d: %+v", len(records), records)
	}
	want := []string{"rec-1", "rec-3", "rec-4"}
	for i, ref := range want {
		if records[i].ExternalRef != ref {
			t.Errorf("record %d: expected %s, got %s", i, ref, records[i].ExternalRef)
		}
	}
}

// TestFetchRecordsServerError verifies a failing feed surfaces an error
// instead of an empty scope
func TestFetchRecordsServerError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer ts.Close()

	svc := NewService(testConfig(ts), NewCompletionQueue(0))
	if _, err := svc.FetchRecords(context.Background(), "sector-1"); err == nil {
		t.Fatal("expected error from 500 response")
	}
}

// TestQuarantineRetriesTransient verifies a 500 is retried and the
// eventual success is reported as a clean completion
func TestQuarantineRetriesTransient(t *testing.T) {
	var calls atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/scopes/sector-1/records/rec-1/quarantine" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	q := NewCompletionQueue(0)
	svc := NewService(testConfig(ts), q)
	svc.Quarantine("rec-1", "sector-1")

	done := waitCompletions(t, q, 1)[0]
	if done.Action != ActionQuarantine || done.Ref != "rec-1" || done.Scope != "sector-1" {
		t.Errorf("wrong completion identity: %+v", done)
	}
	if done.Err != nil {
		t.Errorf("expected success after retries, got %v", done.Err)
	}
	if got := calls.Load(); got != 3 {
		t.Errorf("expected 3 attempts, got %d", got)
	}
}

// TestQuarantineExhaustsRetries verifies a persistent 500 becomes a
// failed completion after the configured attempts
func TestQuarantineExhaustsRetries(t *testing.T) {
	var calls atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer ts.Close()

	q := NewCompletionQueue(0)
	svc := NewService(testConfig(ts), q)
	svc.Quarantine("rec-1", "sector-1")

	done := waitCompletions(t, q, 1)[0]
	if done.Err == nil {
		t.Fatal("expected failed completion")
	}
	if !IsTransient(done.Err) {
		t.Errorf("exhausted transient failure should stay transient: %v", done.Err)
	}
	if got := calls.Load(); got != 3 {
		t.Errorf("expected 3 attempts, got %d", got)
	}
}

// TestPermanentFailureSuppresses verifies a 401 fails immediately and
// disables subsequent quarantine and block calls
func TestPermanentFailureSuppresses(t *testing.T) {
	var calls atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer ts.Close()

	q := NewCompletionQueue(0)
	svc := NewService(testConfig(ts), q)
	svc.Quarantine("rec-1", "sector-1")

	first := waitCompletions(t, q, 1)[0]
	if !IsPermanent(first.Err) {
		t.Fatalf("expected permanent failure, got %v", first.Err)
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("permanent failure must not retry, got %d attempts", got)
	}

	// Block shares the quarantine suppression flag.
	svc.Block("rec-2", "sector-1")
	second := waitCompletions(t, q, 1)[0]
	if !errors.Is(second.Err, ErrSuppressed) {
		t.Errorf("expected suppressed completion, got %v", second.Err)
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("suppressed call must not hit the server, got %d attempts", got)
	}

	// Protect tracks its own flag and still reaches the server.
	svc.Protect("rec-3", "sector-1")
	third := waitCompletions(t, q, 1)[0]
	if errors.Is(third.Err, ErrSuppressed) {
		t.Error("protect should not be suppressed by a quarantine failure")
	}
	if got := calls.Load(); got != 2 {
		t.Errorf("expected protect to reach the server, got %d total calls", got)
	}
}

// TestBatchQuarantinePerItemResults verifies each ref in a batch gets an
// independent completion, including a missing result synthesized as failure
func TestBatchQuarantinePerItemResults(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/scopes/sector-1/quarantine/batch" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var req batchRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("bad batch payload: %v", err)
		}
		if len(req.Refs) != 3 {
			t.Errorf("expected 3 refs, got %v", req.Refs)
		}
		// rec-3 is deliberately absent from the results.
		w.Write([]byte(`{"results":[
			{"ref":"rec-1","ok":true},
			{"ref":"rec-2","ok":false,"error":"already quarantined"}
		]}`))
	}))
	defer ts.Close()

	q := NewCompletionQueue(0)
	svc := NewService(testConfig(ts), q)
	svc.BatchQuarantine([]string{"rec-1", "rec-2", "rec-3"}, "sector-1")

	byRef := make(map[string]Completion, 3)
	for _, c := range waitCompletions(t, q, 3) {
		if c.Action != ActionBatchItem {
			t.Errorf("expected batch item action, got %s", c.Action)
		}
		byRef[c.Ref] = c
	}

	if byRef["rec-1"].Err != nil {
		t.Errorf("rec-1 should succeed, got %v", byRef["rec-1"].Err)
	}
	if byRef["rec-2"].Err == nil {
		t.Error("rec-2 should fail")
	}
	if byRef["rec-3"].Err == nil {
		t.Error("rec-3 has no reported result and must be synthesized as failure")
	}
}

// TestBatchQuarantineRequestFailure verifies a request-level failure
// fails every ref in the batch
func TestBatchQuarantineRequestFailure(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer ts.Close()

	q := NewCompletionQueue(0)
	svc := NewService(testConfig(ts), q)
	svc.BatchQuarantine([]string{"rec-1", "rec-2"}, "sector-1")

	for _, c := range waitCompletions(t, q, 2) {
		if c.Err == nil {
			t.Errorf("ref %s should carry the request failure", c.Ref)
		}
	}
}
