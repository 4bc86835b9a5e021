package gesture

import (
	"time"

	"github.com/charmbracelet/harmonica"
)

const (
	animationFPS = 60
	// Spring for the scale-in; underdamped so the heart overshoots slightly.
	springFrequency = 9.0
	springDamping   = 0.45

	DefaultHold = 500 * time.Millisecond
	DefaultFade = 300 * time.Millisecond
)

// Frame is the render state of a like animation at one instant.
type Frame struct {
	Scale   float64
	Opacity float64
	Done    bool
}

// Sequence is a spring scale 0→1 running in parallel with a hold-then-fade
// opacity curve.
type Sequence struct {
	hold  time.Duration
	fade  time.Duration
	step  time.Duration
	scale []float64
}

func NewSequence(hold, fade time.Duration) Sequence {
	if hold < 0 {
		hold = 0
	}
	if fade <= 0 {
		fade = DefaultFade
	}
	step := time.Second / animationFPS
	frames := int((hold+fade)/step) + 1

	spring := harmonica.NewSpring(harmonica.FPS(animationFPS), springFrequency, springDamping)
	scale := make([]float64, frames)
	pos, vel := 0.0, 0.0
	for i := range scale {
		scale[i] = pos
		pos, vel = spring.Update(pos, vel, 1.0)
	}
	return Sequence{hold: hold, fade: fade, step: step, scale: scale}
}

// Duration is the time until the fade completes.
func (s Sequence) Duration() time.Duration {
	return s.hold + s.fade
}

func (s Sequence) At(elapsed time.Duration) Frame {
	if elapsed < 0 {
		elapsed = 0
	}
	idx := int(elapsed / s.step)
	if idx >= len(s.scale) {
		idx = len(s.scale) - 1
	}

	opacity := 1.0
	switch {
	case elapsed >= s.hold+s.fade:
		opacity = 0
	case elapsed > s.hold:
		opacity = 1 - float64(elapsed-s.hold)/float64(s.fade)
	}

	return Frame{
		Scale:   s.scale[idx],
		Opacity: opacity,
		Done:    elapsed >= s.Duration(),
	}
}
