package adjudication

import (
	"sync"

	"github.com/google/uuid"
)

// CaseLocks is an in-memory set of cases with an adjudication in flight.
// It only guards a single process.
type CaseLocks struct {
	mu       sync.Mutex
	inFlight map[uuid.UUID]struct{}
}

// NewCaseLocks creates an empty CaseLocks.
func NewCaseLocks() *CaseLocks {
	return &CaseLocks{inFlight: make(map[uuid.UUID]struct{})}
}

// TryAcquire marks id as in flight. It returns false if it already is;
// otherwise the returned release func must be called exactly once.
func (l *CaseLocks) TryAcquire(id uuid.UUID) (release func(), ok bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, busy := l.inFlight[id]; busy {
		return nil, false
	}
	l.inFlight[id] = struct{}{}
	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.inFlight, id)
			l.mu.Unlock()
		})
	}, true
}

// InFlight reports the number of cases currently held.
func (l *CaseLocks) InFlight() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.inFlight)
}
