package monitoring

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func captureLogs(t *testing.T) *[]string {
	t.Helper()
	original := Logf
	t.Cleanup(func() { Logf = original })

	var mu sync.Mutex
	lines := []string{}
	SetLogger(func(format string, v ...interface{}) {
		mu.Lock()
		defer mu.Unlock()
		lines = append(lines, fmt.Sprintf(format, v...))
	})
	return &lines
}

func TestSetLogger(t *testing.T) {
	lines := captureLogs(t)
	Logf("hello %d", 7)
	assert.Equal(t, []string{"hello 7"}, *lines)

	// nil installs a no-op logger
	SetLogger(nil)
	assert.NotPanics(t, func() { Logf("muted") })
	assert.Len(t, *lines, 1)
}

func TestLogf_Default(t *testing.T) {
	assert.NotNil(t, Logf)
}

func TestProgress(t *testing.T) {
	lines := captureLogs(t)

	p := NewProgress("positions", 5, 2)
	for i := 0; i < 5; i++ {
		p.Step()
	}
	assert.Equal(t, 5, p.Done())
	assert.Equal(t, []string{"positions: 2/5", "positions: 4/5", "positions: 5/5"}, *lines)
}

func TestProgress_CompletionOnly(t *testing.T) {
	lines := captureLogs(t)

	p := NewProgress("tiles", 3, 0)
	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.Step()
		}()
	}
	wg.Wait()
	assert.Equal(t, 3, p.Done())
	assert.Equal(t, []string{"tiles: 3/3"}, *lines)
}
