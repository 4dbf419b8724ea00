package feed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"zombie-sweep/internal/config"
)

// Service is the HTTP implementation of Gateway.
//
// Retry policy: transient failures (transport errors, 429, 5xx) are retried
// with exponential backoff up to MaxAttempts; the final failure becomes a
// normal failed completion. Permanent failures (401/403 and other 4xx)
// complete immediately and suppress further calls of that action kind until
// the process restarts.
type Service struct {
	cfg         config.FeedConfig
	client      *http.Client
	limiter     *rate.Limiter
	completions *CompletionQueue

	// Per-action-kind suppression after a permanent failure.
	quarantineDown atomic.Bool
	protectDown    atomic.Bool
}

// NewService creates a gateway service pushing results to completions.
func NewService(cfg config.FeedConfig, completions *CompletionQueue) *Service {
	return &Service{
		cfg:         cfg,
		client:      &http.Client{Timeout: cfg.Timeout},
		limiter:     rate.NewLimiter(rate.Limit(cfg.CallsPerSec), int(cfg.CallsPerSec)),
		completions: completions,
	}
}

// feedRecordsResponse matches the feed's scope listing payload.
type feedRecordsResponse struct {
	Records []Record `json:"records"`
}

// FetchRecords lists the unused records of a scope. Called once per scope
// load, off the tick loop. Malformed records are skipped with a warning and
// do not block the rest of the scope.
func (s *Service) FetchRecords(ctx context.Context, scope string) ([]Record, error) {
	body, err := s.request(ctx, http.MethodGet, "/scopes/"+scope+"/records", nil)
	if err != nil {
		return nil, fmt.Errorf("fetch records for scope %q: %w", scope, err)
	}

	var resp feedRecordsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode records for scope %q: %w", scope, err)
	}

	records := make([]Record, 0, len(resp.Records))
	seen := make(map[string]bool, len(resp.Records))
	for _, r := range resp.Records {
		if err := validateRecord(r, seen); err != nil {
			log.Printf("⚠️ skipping record in scope %s: %v", scope, err)
			continue
		}
		seen[r.ExternalRef] = true
		records = append(records, r)
	}

	return records, nil
}

// validateRecord rejects malformed or duplicate feed entries.
func validateRecord(r Record, seen map[string]bool) error {
	if r.ExternalRef == "" {
		return &DataError{Ref: r.ExternalRef, Reason: "empty ref"}
	}
	if seen[r.ExternalRef] {
		return &DataError{Ref: r.ExternalRef, Reason: "duplicate ref"}
	}
	switch r.Kind {
	case "hostile", "boss", "exempt":
	default:
		return &DataError{Ref: r.ExternalRef, Reason: "unknown kind " + r.Kind}
	}
	return nil
}

// Quarantine disables a record asynchronously.
func (s *Service) Quarantine(ref, scope string) {
	go s.dispatch(ActionQuarantine, ref, scope,
		"/scopes/"+scope+"/records/"+ref+"/quarantine", &s.quarantineDown)
}

// Block hard-disables a record asynchronously (boss records).
func (s *Service) Block(ref, scope string) {
	go s.dispatch(ActionBlock, ref, scope,
		"/scopes/"+scope+"/records/"+ref+"/block", &s.quarantineDown)
}

// Protect secures an objective record asynchronously (quest win).
func (s *Service) Protect(ref, scope string) {
	go s.dispatch(ActionProtect, ref, scope,
		"/scopes/"+scope+"/records/"+ref+"/protect", &s.protectDown)
}

// dispatch runs one mutating call with retry, then pushes the completion.
func (s *Service) dispatch(action Action, ref, scope, path string, down *atomic.Bool) {
	if down.Load() {
		s.completions.Push(Completion{Action: action, Ref: ref, Scope: scope, Err: ErrSuppressed})
		return
	}

	err := s.mutateWithRetry(action.String(), path, nil)
	if IsPermanent(err) {
		down.Store(true)
		log.Printf("🚫 %s disabled after permanent failure: %v", action, err)
	}

	s.completions.Push(Completion{Action: action, Ref: ref, Scope: scope, Err: err})
}

// batchRequest is the payload for a batch quarantine call.
type batchRequest struct {
	Refs []string `json:"refs"`
}

// batchResponse carries independent per-item outcomes.
type batchResponse struct {
	Results []struct {
		Ref   string `json:"ref"`
		OK    bool   `json:"ok"`
		Error string `json:"error"`
	} `json:"results"`
}

// BatchQuarantine quarantines one fixed-size batch of records in a single
// remote call, pushing an independent completion per item. A request-level
// failure fails every item; partial failure is expected and never fatal.
func (s *Service) BatchQuarantine(refs []string, scope string) {
	go func() {
		if s.quarantineDown.Load() {
			for _, ref := range refs {
				s.completions.Push(Completion{Action: ActionBatchItem, Ref: ref, Scope: scope, Err: ErrSuppressed})
			}
			return
		}

		payload, _ := json.Marshal(batchRequest{Refs: refs})
		body, err := s.mutateWithRetryBody("batch_quarantine",
			"/scopes/"+scope+"/quarantine/batch", payload)
		if err != nil {
			if IsPermanent(err) {
				s.quarantineDown.Store(true)
			}
			for _, ref := range refs {
				s.completions.Push(Completion{Action: ActionBatchItem, Ref: ref, Scope: scope, Err: err})
			}
			return
		}

		var resp batchResponse
		if jsonErr := json.Unmarshal(body, &resp); jsonErr != nil {
			for _, ref := range refs {
				s.completions.Push(Completion{Action: ActionBatchItem, Ref: ref, Scope: scope,
					Err: fmt.Errorf("decode batch response: %w", jsonErr)})
			}
			return
		}

		outcomes := make(map[string]error, len(resp.Results))
		for _, r := range resp.Results {
			if r.OK {
				outcomes[r.Ref] = nil
			} else {
				outcomes[r.Ref] = &RemoteError{Op: "batch_quarantine", Transient: false,
					Err: fmt.Errorf("%s", r.Error)}
			}
		}

		for _, ref := range refs {
			itemErr, reported := outcomes[ref]
			if !reported {
				itemErr = &RemoteError{Op: "batch_quarantine", Transient: false,
					Err: fmt.Errorf("no result for ref %s", ref)}
			}
			s.completions.Push(Completion{Action: ActionBatchItem, Ref: ref, Scope: scope, Err: itemErr})
		}
	}()
}

// mutateWithRetry posts to path with retry, discarding the response body.
func (s *Service) mutateWithRetry(op, path string, payload []byte) error {
	_, err := s.mutateWithRetryBody(op, path, payload)
	return err
}

// mutateWithRetryBody posts to path, retrying transient failures with
// exponential backoff, and returns the final response body.
func (s *Service) mutateWithRetryBody(op, path string, payload []byte) ([]byte, error) {
	var lastErr error

	for attempt := 0; attempt < s.cfg.MaxAttempts; attempt++ {
		if attempt > 0 {
			time.Sleep(s.cfg.RetryBase << (attempt - 1))
		}

		ctx, cancel := context.WithTimeout(context.Background(), s.cfg.Timeout)
		if err := s.limiter.Wait(ctx); err != nil {
			cancel()
			lastErr = &RemoteError{Op: op, Transient: true, Err: err}
			continue
		}

		body, err := s.request(ctx, http.MethodPost, path, payload)
		cancel()
		if err == nil {
			return body, nil
		}

		lastErr = err
		if !IsTransient(err) {
			return nil, err
		}
	}

	return nil, lastErr
}

// request performs one authenticated HTTP call and classifies failures.
func (s *Service) request(ctx context.Context, method, path string, payload []byte) ([]byte, error) {
	var bodyReader io.Reader
	if payload != nil {
		bodyReader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.cfg.BaseURL+path, bodyReader)
	if err != nil {
		return nil, &RemoteError{Op: method + " " + path, Transient: false, Err: err}
	}

	if s.cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+s.cfg.Token)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.client.Do(req)
	if err != nil {
		// Transport-level failures (timeouts, refused) are transient.
		return nil, &RemoteError{Op: method + " " + path, Transient: true, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &RemoteError{Op: method + " " + path, Transient: true, Err: err}
	}

	switch {
	case resp.StatusCode < 300:
		return body, nil
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return nil, &RemoteError{Op: method + " " + path, Status: resp.StatusCode, Transient: true}
	default:
		return nil, &RemoteError{Op: method + " " + path, Status: resp.StatusCode, Transient: false}
	}
}
