package admission

import (
	"sync"

	"go.uber.org/atomic"
)

const (
	// DefaultLimit is the number of reports allowed in flight when no
	// overload threshold is configured.
	DefaultLimit = 500
)

// Gate bounds the number of simultaneously in-flight reports. It never
// blocks: callers that cannot be admitted are turned away immediately.
type Gate struct {
	limit    int64
	inFlight atomic.Int64
}

// TryAdmit reserves a slot if one is available. The returned ticket must be
// released when the work it guards has finished, whatever the outcome.
func (g *Gate) TryAdmit() (*Ticket, bool) {
	for {
		cur := g.inFlight.Load()
		if cur >= g.limit {
			return nil, false
		}

		if g.inFlight.CAS(cur, cur+1) {
			return &Ticket{gate: g}, true
		}
	}
}

// InFlight returns the number of currently admitted reports. The value may be
// stale by the time it is read.
func (g *Gate) InFlight() int {
	return int(g.inFlight.Load())
}

// Limit returns the configured ceiling.
func (g *Gate) Limit() int {
	return int(g.limit)
}

func (g *Gate) release() {
	if g.inFlight.Dec() < 0 {
		g.inFlight.Inc()
		panic("admission: gate released more times than admitted")
	}
}

// NewGate creates a gate admitting at most limit concurrent reports. Panics if
// limit <= 0.
func NewGate(limit int) *Gate {
	if limit <= 0 {
		panic("admission: NewGate requires limit > 0")
	}

	return &Gate{limit: int64(limit)}
}

// Ticket is a single admitted slot.
type Ticket struct {
	gate *Gate
	once sync.Once
}

// Release returns the slot to the gate. Only the first call has any effect,
// so it is safe to defer a release on paths that may already have released.
func (t *Ticket) Release() {
	if t == nil {
		return
	}

	t.once.Do(t.gate.release)
}
