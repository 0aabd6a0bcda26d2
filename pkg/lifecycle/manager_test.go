package lifecycle

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDuplicateServiceName(t *testing.T) {
	m := NewManager()

	h, err := m.NewServiceHandle("svc")
	require.NoError(t, err)
	defer h.Close()

	_, err = m.NewServiceHandle("svc")
	assert.Error(t, err)
}

func TestWaitWithTimeoutReportsRemaining(t *testing.T) {
	m := NewManager()

	_, err := m.NewServiceHandle("stuck")
	require.NoError(t, err)

	m.Shutdown()
	remaining := m.WaitWithTimeout(20 * time.Millisecond)
	assert.Equal(t, []string{"stuck"}, remaining)
}

func TestWaitAfterClose(t *testing.T) {
	m := NewManager()

	h, err := m.NewServiceHandle("svc")
	require.NoError(t, err)

	go func() {
		<-h.Done()
		h.Close()
	}()

	m.Shutdown()
	remaining := m.WaitWithTimeout(time.Second)
	assert.Nil(t, remaining)
}

func TestSleepInterruptedByShutdown(t *testing.T) {
	m := NewManager()

	h, err := m.NewServiceHandle("sleeper")
	require.NoError(t, err)
	defer h.Close()

	go func() {
		time.Sleep(10 * time.Millisecond)
		m.Shutdown()
	}()

	start := time.Now()
	err = h.Sleep(5 * time.Second)
	assert.Error(t, err)
	assert.Less(t, time.Since(start), time.Second)
}

func TestSleepCompletesNormally(t *testing.T) {
	m := NewManager()

	h, err := m.NewServiceHandle("sleeper")
	require.NoError(t, err)
	defer h.Close()

	assert.NoError(t, h.Sleep(5*time.Millisecond))
}
