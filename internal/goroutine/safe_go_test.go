package goroutine

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type recordingLogger struct {
	mu   sync.Mutex
	msgs []string
}

func (l *recordingLogger) Errorf(format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.msgs = append(l.msgs, fmt.Sprintf(format, args...))
}

func TestSafeGo_RecoversPanic(t *testing.T) {
	log := &recordingLogger{}
	rh := NewRecoveryHandler(log)

	done := make(chan struct{})
	rh.SafeGo(func() {
		defer close(done)
		panic("boom")
	})
	<-done

	assert.Eventually(t, func() bool {
		log.mu.Lock()
		defer log.mu.Unlock()
		return len(log.msgs) == 1
	}, time.Second, 5*time.Millisecond)
}

func TestRun(t *testing.T) {
	log := &recordingLogger{}
	rh := NewRecoveryHandler(log)

	assert.True(t, rh.Run("dispatcher", func() { panic("boom") }))
	assert.False(t, rh.Run("dispatcher", func() {}))
	assert.Len(t, log.msgs, 1)
	assert.Contains(t, log.msgs[0], "dispatcher")
}
