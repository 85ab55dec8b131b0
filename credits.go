package smbauth

import (
	"fmt"
	"math"
	"sync"
)

// CreditWindow is the half-open range [first, afterLast) of message ids a
// connection may still use. Sends consume ids from the front and credit
// grants extend the back, so both ends are guarded by one mutex.
type CreditWindow struct {
	mu        sync.Mutex
	first     uint64
	afterLast uint64
}

// NewCreditWindow returns the window [first, afterLast). A window with
// afterLast below first is treated as empty.
func NewCreditWindow(first, afterLast uint64) *CreditWindow {
	if afterLast < first {
		afterLast = first
	}
	return &CreditWindow{first: first, afterLast: afterLast}
}

// AddCredits applies a grant of n credits. A negative grant shrinks the
// window; one that would pass first fails with ErrInvalidCreditGrant and
// leaves the window unchanged.
func (w *CreditWindow) AddCredits(n int64) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	switch {
	case n >= 0:
		if uint64(n) > math.MaxUint64-w.afterLast {
			return fmt.Errorf("grant of %d overflows window end %d: %w", n, w.afterLast, ErrInvalidCreditGrant)
		}
		w.afterLast += uint64(n)
	default:
		shrink := uint64(-(n + 1)) + 1
		if shrink > w.afterLast-w.first {
			return fmt.Errorf("grant of %d with %d available: %w", n, w.afterLast-w.first, ErrInvalidCreditGrant)
		}
		w.afterLast -= shrink
	}
	return nil
}

// NextMessageID consumes one credit and returns its message id.
func (w *CreditWindow) NextMessageID() (uint64, error) {
	return w.NextMessageIDs(1)
}

// NextMessageIDs consumes charge consecutive credits for a multi-credit
// request and returns the first id. Either all are consumed or none.
func (w *CreditWindow) NextMessageIDs(charge uint16) (uint64, error) {
	if charge == 0 {
		charge = 1
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.afterLast-w.first < uint64(charge) {
		return 0, fmt.Errorf("need %d, have %d: %w", charge, w.afterLast-w.first, ErrOutOfCredits)
	}
	id := w.first
	w.first += uint64(charge)
	return id, nil
}

// Available returns the number of unused credits.
func (w *CreditWindow) Available() uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.afterLast - w.first
}

// Bounds returns the current window.
func (w *CreditWindow) Bounds() (first, afterLast uint64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.first, w.afterLast
}
