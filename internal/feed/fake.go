package feed

import (
	"context"
	"fmt"
	"sync"
)

// FakeGateway is an in-memory Gateway for tests. Completions are pushed
// synchronously from the calling goroutine so tests can drain them
// deterministically after each call.
type FakeGateway struct {
	mu sync.Mutex

	// Records returned by FetchRecords, keyed by scope.
	Records map[string][]Record

	// FailRefs makes mutations on these refs fail with a transient error.
	FailRefs map[string]bool

	// ProtectErr, when set, fails every Protect call.
	ProtectErr error

	// FetchErr, when set, fails every FetchRecords call.
	FetchErr error

	completions *CompletionQueue

	QuarantineCalls []string
	BlockCalls      []string
	ProtectCalls    []string
	BatchSizes      []int
}

// NewFakeGateway creates a fake pushing results to completions.
func NewFakeGateway(completions *CompletionQueue) *FakeGateway {
	return &FakeGateway{
		Records:     make(map[string][]Record),
		FailRefs:    make(map[string]bool),
		completions: completions,
	}
}

func (f *FakeGateway) FetchRecords(_ context.Context, scope string) ([]Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FetchErr != nil {
		return nil, f.FetchErr
	}
	return append([]Record(nil), f.Records[scope]...), nil
}

func (f *FakeGateway) refErr(ref string) error {
	if f.FailRefs[ref] {
		return &RemoteError{Op: "fake", Transient: true, Err: fmt.Errorf("forced failure for %s", ref)}
	}
	return nil
}

func (f *FakeGateway) Quarantine(ref, scope string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.QuarantineCalls = append(f.QuarantineCalls, ref)
	f.completions.Push(Completion{Action: ActionQuarantine, Ref: ref, Scope: scope, Err: f.refErr(ref)})
}

func (f *FakeGateway) Block(ref, scope string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.BlockCalls = append(f.BlockCalls, ref)
	f.completions.Push(Completion{Action: ActionBlock, Ref: ref, Scope: scope, Err: f.refErr(ref)})
}

func (f *FakeGateway) Protect(ref, scope string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ProtectCalls = append(f.ProtectCalls, ref)
	err := f.ProtectErr
	if err == nil {
		err = f.refErr(ref)
	}
	f.completions.Push(Completion{Action: ActionProtect, Ref: ref, Scope: scope, Err: err})
}

// BatchSizesSnapshot returns a copy of the recorded batch sizes.
func (f *FakeGateway) BatchSizesSnapshot() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int(nil), f.BatchSizes...)
}

func (f *FakeGateway) BatchQuarantine(refs []string, scope string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.BatchSizes = append(f.BatchSizes, len(refs))
	for _, ref := range refs {
		f.completions.Push(Completion{Action: ActionBatchItem, Ref: ref, Scope: scope, Err: f.refErr(ref)})
	}
}
