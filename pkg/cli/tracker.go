package cli

import (
	"sync"

	"acquire/pkg/common"
	"acquire/pkg/journal"

	"github.com/google/uuid"
)

// settleTracker waits for every submitted lineage to reach a terminal state.
type settleTracker struct {
	mu      sync.Mutex
	pending map[uuid.UUID]struct{}
	failed  int
	done    chan struct{}
}

func newSettleTracker(reqs []common.DownloadRequest) *settleTracker {
	t := &settleTracker{
		pending: make(map[uuid.UUID]struct{}, len(reqs)),
		done:    make(chan struct{}),
	}
	for _, r := range reqs {
		t.pending[r.Lineage] = struct{}{}
	}
	if len(t.pending) == 0 {
		close(t.done)
	}
	return t
}

func (t *settleTracker) settle(req common.DownloadRequest, state journal.State) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.pending[req.Lineage]; !ok {
		return
	}
	delete(t.pending, req.Lineage)
	if state == journal.StateFailed {
		t.failed++
	}
	if len(t.pending) == 0 {
		close(t.done)
	}
}

// Done is closed once every lineage has settled.
func (t *settleTracker) Done() <-chan struct{} {
	return t.done
}

func (t *settleTracker) Failed() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.failed
}
