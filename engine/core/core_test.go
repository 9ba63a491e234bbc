package core

import (
	"bytes"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventRegisterAndFire(t *testing.T) {
	require.True(t, EventInitialize())
	defer func() { _ = EventShutdown() }()

	var got []KeyCode
	listener := &struct{}{}
	onKey := func(code SystemEventCode, sender, inst interface{}, data EventContext) bool {
		got = append(got, KeyFromContext(data))
		return true
	}

	assert.True(t, EventRegister(EVENT_CODE_KEY_PRESSED, listener, onKey))
	assert.False(t, EventRegister(EVENT_CODE_KEY_PRESSED, listener, onKey), "duplicate listener")

	assert.True(t, EventFire(EVENT_CODE_KEY_PRESSED, nil, KeyContext(KEY_F)))
	assert.False(t, EventFire(EVENT_CODE_RESIZED, nil, EventContext{}))
	assert.Equal(t, []KeyCode{KEY_F}, got)

	assert.True(t, EventUnregister(EVENT_CODE_KEY_PRESSED, listener))
	assert.False(t, EventFire(EVENT_CODE_KEY_PRESSED, nil, KeyContext(KEY_F)))
	assert.False(t, EventUnregister(EVENT_CODE_KEY_PRESSED, listener))
}

func TestEventsBeforeInitialize(t *testing.T) {
	assert.False(t, EventRegister(EVENT_CODE_APPLICATION_QUIT, nil, nil))
	assert.False(t, EventFire(EVENT_CODE_APPLICATION_QUIT, nil, EventContext{}))
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    LogLevel
		wantErr bool
	}{
		{in: "debug", want: LogLevelDebug},
		{in: " WARN ", want: LogLevelWarn},
		{in: "error", want: LogLevelError},
		{in: "loud", want: LogLevelInfo, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLogLevel(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLogLevelFilters(t *testing.T) {
	var buf bytes.Buffer
	SetLogOutput(&buf)
	defer SetLogOutput(nopWriter{})

	SetLogLevel(LogLevelWarn)
	LogInfo("hidden %d", 1)
	LogWarn("visible %d", 2)

	assert.NotContains(t, buf.String(), "hidden 1")
	assert.Contains(t, buf.String(), "visible 2")
}

type nopWriter struct{}

func (nopWriter) Write(p []byte) (int, error) { return len(p), nil }

func TestClockElapsed(t *testing.T) {
	now := time.Unix(100, 0)
	c := NewClock()
	c.now = func() time.Time { return now }

	c.Update()
	assert.Zero(t, c.Elapsed(), "not started")

	c.Start()
	now = now.Add(1500 * time.Millisecond)
	c.Update()
	assert.InDelta(t, 1.5, c.Elapsed(), 1e-9)

	c.Stop()
	now = now.Add(time.Second)
	c.Update()
	assert.InDelta(t, 1.5, c.Elapsed(), 1e-9)
}

func TestMetricsAverage(t *testing.T) {
	require.NoError(t, MetricsInitialize())
	MetricsUpdate(0.010)
	MetricsUpdate(0.020)
	_, avg := MetricsFrame()
	assert.InDelta(t, 15.0, avg, 1e-9)
}

func TestJobSystemRunAll(t *testing.T) {
	js, err := NewJobSystem(3, 2)
	require.NoError(t, err)
	defer js.Shutdown()

	var ran atomic.Int32
	tasks := make([]func() error, 10)
	for i := range tasks {
		tasks[i] = func() error {
			ran.Add(1)
			return nil
		}
	}
	require.NoError(t, js.RunAll(tasks...))
	assert.Equal(t, int32(10), ran.Load())

	broken := errors.New("broken")
	err = js.RunAll(func() error { return nil }, func() error { return broken })
	assert.ErrorIs(t, err, broken)
}

func TestJobSystemCallbacks(t *testing.T) {
	js, err := NewJobSystem(1, 0)
	require.NoError(t, err)

	done := make(chan error, 2)
	require.NoError(t, js.Submit(JobTask{
		OnStart:    func() error { return nil },
		OnComplete: func() { done <- nil },
	}))
	broken := errors.New("broken")
	require.NoError(t, js.Submit(JobTask{
		OnStart:   func() error { return broken },
		OnFailure: func(err error) { done <- err },
	}))
	assert.NoError(t, <-done)
	assert.ErrorIs(t, <-done, broken)

	require.NoError(t, js.Shutdown())
	require.NoError(t, js.Shutdown())
	assert.ErrorIs(t, js.Submit(JobTask{OnStart: func() error { return nil }}), ErrJobSystemClosed)
	assert.ErrorIs(t, js.RunAll(func() error { return nil }), ErrJobSystemClosed)
}

func TestNewJobSystemValidates(t *testing.T) {
	_, err := NewJobSystem(0, 1)
	assert.ErrorIs(t, err, ErrNoWorkers)
	_, err = NewJobSystem(1, -1)
	assert.ErrorIs(t, err, ErrNegativeChannelSize)
}
