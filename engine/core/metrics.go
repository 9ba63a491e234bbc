package core

import (
	"sync"

	"github.com/spaghettifunk/texture-renderer/engine/containers"
)

const AVG_COUNT = 30

type MetricsState struct {
	mu                 sync.Mutex
	frameTimes         *containers.RingQueue[float64]
	MSavg              float64
	Frames             int32
	AccumulatedFrameMS float64
	FPS                float64
}

var metricsState *MetricsState = nil

func MetricsInitialize() error {
	metricsState = &MetricsState{
		frameTimes: containers.NewRingQueue[float64](AVG_COUNT),
	}
	return nil
}

// MetricsUpdate records one frame that took frameElapsedTime seconds.
func MetricsUpdate(frameElapsedTime float64) {
	if metricsState == nil {
		return
	}
	metricsState.mu.Lock()
	defer metricsState.mu.Unlock()

	frameMS := frameElapsedTime * 1000.0
	metricsState.frameTimes.Push(frameMS)

	total := 0.0
	metricsState.frameTimes.Each(func(ms float64) { total += ms })
	metricsState.MSavg = total / float64(metricsState.frameTimes.Len())

	// Calculate Frames per second.
	metricsState.Frames++
	metricsState.AccumulatedFrameMS += frameMS
	if metricsState.AccumulatedFrameMS > 1000 {
		metricsState.FPS = float64(metricsState.Frames)
		metricsState.AccumulatedFrameMS -= 1000
		metricsState.Frames = 0
	}
}

// MetricsFrame returns the frames per second and the average frame time in ms.
func MetricsFrame() (float64, float64) {
	if metricsState == nil {
		return 0, 0
	}
	metricsState.mu.Lock()
	defer metricsState.mu.Unlock()
	return metricsState.FPS, metricsState.MSavg
}
