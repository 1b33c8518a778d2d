package core

import (
	"math"
	"testing"
)

func TestMetrics(t *testing.T) {
	m := NewMetrics()
	for i := 0; i < AVG_COUNT; i++ {
		m.Update(0.1)
	}
	if math.Abs(m.FrameTime()-100) > 1e-9 {
		t.Errorf("frame time average = %f, want 100", m.FrameTime())
	}
	if m.FPS() != 10 {
		t.Errorf("fps = %f, want 10", m.FPS())
	}
}

func TestClock(t *testing.T) {
	c := NewClock()
	c.Update()
	if c.Elapsed() != 0 || c.Running() {
		t.Fatal("a clock that was never started must not advance")
	}
	c.Start()
	c.Update()
	if c.Elapsed() < 0 {
		t.Fatalf("negative elapsed %f", c.Elapsed())
	}
	c.Stop()
	before := c.Elapsed()
	c.Update()
	if c.Elapsed() != before {
		t.Error("a stopped clock must keep its elapsed time")
	}
}
