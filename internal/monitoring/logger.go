// Package monitoring holds the process-wide diagnostic logger and a small
// progress reporter for batch processing.
package monitoring

import (
	"log"
	"sync/atomic"
)

// Logf is the package-level diagnostic logger. It defaults to log.Printf but may
// be replaced by SetLogger. Tests or production code can redirect or mute it.
var Logf func(format string, v ...interface{}) = log.Printf

// SetLogger replaces the package logger. Passing nil will set a no-op logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}

// Progress counts finished work units and logs through Logf every `every`
// units and once more when the total is reached. Safe for concurrent use.
type Progress struct {
	label string
	total int64
	every int64
	done  atomic.Int64
}

// NewProgress returns a reporter for total units. A non-positive every
// logs only on completion.
func NewProgress(label string, total, every int) *Progress {
	return &Progress{label: label, total: int64(total), every: int64(every)}
}

// Step marks one unit as finished and returns the number finished so far.
func (p *Progress) Step() int {
	n := p.done.Add(1)
	if n == p.total || (p.every > 0 && n%p.every == 0) {
		Logf("%s: %d/%d", p.label, n, p.total)
	}
	return int(n)
}

// Done returns the number of finished units.
func (p *Progress) Done() int { return int(p.done.Load()) }
