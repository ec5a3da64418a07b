package concurrency

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecuteRunsTask(t *testing.T) {
	guard := NewConcurrencyGuard()

	ran := false
	err := guard.Execute(func() error {
		ran = true
		return nil
	})
	require.NoError(t, err)
	assert.True(t, ran)
}

func TestExecuteRejectsOverlap(t *testing.T) {
	guard := NewConcurrencyGuard()

	started := make(chan struct{})
	release := make(chan struct{})
	go func() {
		_ = guard.Execute(func() error {
			close(started)
			<-release
			return nil
		})
	}()

	<-started
	err := guard.Execute(func() error { return nil })
	assert.ErrorIs(t, err, ErrBusy)

	close(release)
	require.Eventually(t, func() bool {
		return guard.Execute(func() error { return nil }) == nil
	}, time.Second, 5*time.Millisecond, "guard should be free after the first task returns")
}
