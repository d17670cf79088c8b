package mockbackend

import (
	"fmt"
	"sync"

	"github.com/programme-lv/contest-client/subm"
)

// resultOrganizer orders test results that finish out of order. A result
// is emitted only after the results of all lower numbered tests, so the
// live updates built from them never lose a test case. Duplicates of
// a test number are dropped.
type resultOrganizer struct {
	numTests int
	next     int // number of the next test to emit
	pending  map[int]subm.TestcaseResult

	mu sync.Mutex
}

func newResultOrganizer(numTests int) (*resultOrganizer, error) {
	if numTests < 0 {
		return nil, fmt.Errorf("numTests must be non-negative")
	}
	const maxTests = 1000
	if numTests > maxTests {
		return nil, fmt.Errorf("numTests must be less than %d", maxTests)
	}
	return &resultOrganizer{
		numTests: numTests,
		next:     1,
		pending:  make(map[int]subm.TestcaseResult),
	}, nil
}

// Add buffers res and returns the results that are now ready, in order
func (o *resultOrganizer) Add(res subm.TestcaseResult) ([]subm.TestcaseResult, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if res.Number < 1 || res.Number > o.numTests {
		return nil, fmt.Errorf("invalid test number: %d", res.Number)
	}
	if res.Number < o.next {
		return nil, nil
	}
	if _, dup := o.pending[res.Number]; dup {
		return nil, nil
	}
	o.pending[res.Number] = res

	var ready []subm.TestcaseResult
	for {
		r, ok := o.pending[o.next]
		if !ok {
			break
		}
		delete(o.pending, o.next)
		ready = append(ready, r)
		o.next++
	}
	return ready, nil
}

// HasFinished reports whether every test result has been emitted
func (o *resultOrganizer) HasFinished() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.next > o.numTests
}
