// Package load measures how many CPU cores the current process keeps busy.
package load

import (
	"errors"
	"sync"
	"time"
)

// ErrUnsupported is returned where the platform exposes no process CPU time.
var ErrUnsupported = errors.New("process CPU time not supported")

// Sampler reports the CPU load of the process since the previous sample.
type Sampler interface {
	Load() float64
}

// SamplerFunc adapts a function to the Sampler interface.
type SamplerFunc func() float64

// Load calls f.
func (f SamplerFunc) Load() float64 {
	return f()
}

// cpuSampler divides consumed process CPU time by elapsed wall time.
// A value of 1.0 means one core was fully busy.
type cpuSampler struct {
	mu       sync.Mutex
	cpuTime  func() (time.Duration, error)
	now      func() time.Time
	lastCPU  time.Duration
	lastWall time.Time
}

// NewSampler returns a sampler backed by the operating system's process
// accounting. The first Load covers the time since NewSampler was called.
func NewSampler() Sampler {
	return newSampler(processCPUTime, time.Now)
}

func newSampler(cpuTime func() (time.Duration, error), now func() time.Time) *cpuSampler {
	s := &cpuSampler{cpuTime: cpuTime, now: now}
	s.lastCPU, _ = cpuTime()
	s.lastWall = now()
	return s
}

func (s *cpuSampler) Load() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	cpu, err := s.cpuTime()
	if err != nil {
		return 0
	}
	wall := s.now()

	dCPU := cpu - s.lastCPU
	dWall := wall.Sub(s.lastWall)
	s.lastCPU, s.lastWall = cpu, wall

	if dWall <= 0 || dCPU <= 0 {
		return 0
	}
	return float64(dCPU) / float64(dWall)
}
