// Package health probes page responsiveness. A page that cannot answer a
// trivial evaluation within the timeout is frozen; that is a signal for the
// caller, not an error.
package health

import (
	"context"
	"time"

	"github.com/hazyhaar/tvremote/screenctl/internal/browser"
	"github.com/hazyhaar/tvremote/screenctl/internal/pagejs"
)

// DefaultTimeout is the probe budget when none is given.
const DefaultTimeout = 2500 * time.Millisecond

// Sample is one probe observation.
type Sample struct {
	Timestamp   time.Time     `json:"timestamp"`
	Responded   bool          `json:"responded"`
	Frozen      bool          `json:"frozen"`
	RoundTrip   time.Duration `json:"-"`
	RoundTripMS int64         `json:"response_time_ms"`
	ReadyState  string        `json:"ready_state,omitempty"`
	Err         string        `json:"error,omitempty"`
}

// Healthy reports a timely answer.
func (s Sample) Healthy() bool { return s.Responded && !s.Frozen }

type answer struct {
	state string
	err   error
}

// Probe evaluates document.readyState and races it against timeout. When
// the timer wins the sample is frozen even if the evaluation completes
// later. An evaluation error yields a non-frozen, non-responding sample.
func Probe(ctx context.Context, p browser.Page, timeout time.Duration) Sample {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	start := time.Now()
	s := Sample{Timestamp: start}

	ectx, cancel := context.WithCancel(ctx)
	defer cancel()
	ch := make(chan answer, 1)
	go func() {
		var state string
		err := p.Eval(ectx, pagejs.ReadyState, &state)
		ch <- answer{state, err}
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case a := <-ch:
		s.RoundTrip = time.Since(start)
		if a.err != nil {
			s.Err = a.err.Error()
			break
		}
		s.Responded = true
		s.ReadyState = a.state
	case <-timer.C:
		s.RoundTrip = time.Since(start)
		s.Frozen = true
		s.Err = "no answer within " + timeout.String()
	case <-ctx.Done():
		s.RoundTrip = time.Since(start)
		s.Err = ctx.Err().Error()
	}
	s.RoundTripMS = s.RoundTrip.Milliseconds()
	return s
}
