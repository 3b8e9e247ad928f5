package checkout

import (
	"cmp"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/joao-fontenele/tableorder/internal/domain"
)

// inflight holds the fingerprints of checkouts currently running, and the idempotency
// keys of order creations whose outcome never reached us.
type inflight struct {
	mu     sync.Mutex
	keys   map[string]struct{}
	unsure map[string]string
}

func newInflight() *inflight {
	return &inflight{
		keys:   make(map[string]struct{}),
		unsure: make(map[string]string),
	}
}

func (f *inflight) acquire(key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.keys[key]; ok {
		return false
	}
	f.keys[key] = struct{}{}
	return true
}

func (f *inflight) release(key string) {
	f.mu.Lock()
	delete(f.keys, key)
	f.mu.Unlock()
}

// idempotencyKey returns the key left by an unanswered attempt with the same
// fingerprint, or a fresh one from newKey.
func (f *inflight) idempotencyKey(fp string, newKey func() string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if k, ok := f.unsure[fp]; ok {
		return k
	}
	return newKey()
}

// settle records whether the attempt made with idemKey got an answer from the backend.
// Unanswered keys are reused by the next attempt so the backend can deduplicate it.
func (f *inflight) settle(fp, idemKey string, answered bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if answered {
		delete(f.unsure, fp)
		return
	}
	f.unsure[fp] = idemKey
}

// fingerprint identifies a checkout attempt by table, guest name and cart contents.
// Line order does not matter.
func fingerprint(req validRequest) string {
	lines := slices.Clone(req.cart)
	slices.SortFunc(lines, func(a, b domain.CartLine) int {
		if c := cmp.Compare(a.MenuItemID, b.MenuItemID); c != 0 {
			return c
		}
		return cmp.Compare(a.Quantity, b.Quantity)
	})

	var b strings.Builder
	fmt.Fprintf(&b, "%d|%s|%s", req.tableNumber, strings.ToLower(req.customerName), req.method)
	for _, l := range lines {
		fmt.Fprintf(&b, "|%d:%d", l.MenuItemID, l.Quantity)
	}
	return b.String()
}
