package scheduler

import (
	"sync"
	"time"

	"golang.org/x/time/rate"

	logx "tickrun/pkg/logx"
)

const failureWarnEvery = 30 * time.Second

// failureReporter throttles repeated warnings per key: the first one is logged
// at warn level, repeats within failureWarnEvery drop to debug.
type failureReporter struct {
	mu   sync.Mutex
	keys map[string]*rate.Sometimes
}

func newFailureReporter() *failureReporter {
	return &failureReporter{keys: map[string]*rate.Sometimes{}}
}

func (r *failureReporter) report(log logx.Logger, key, msg string, fields ...logx.Field) {
	r.mu.Lock()
	st := r.keys[key]
	if st == nil {
		st = &rate.Sometimes{First: 1, Interval: failureWarnEvery}
		r.keys[key] = st
	}
	r.mu.Unlock()

	warned := false
	st.Do(func() {
		warned = true
		log.Warn(msg, fields...)
	})
	if !warned {
		log.Debug(msg, fields...)
	}
}
