package gesture

import (
	"math"
	"testing"
	"time"
)

func TestSequence_ScaleSpringsToOne(t *testing.T) {
	seq := NewSequence(DefaultHold, DefaultFade)

	start := seq.At(0)
	if start.Scale != 0 || start.Opacity != 1 || start.Done {
		t.Fatalf("unexpected first frame: %+v", start)
	}

	peak := 0.0
	for e := time.Duration(0); e <= seq.Duration(); e += 10 * time.Millisecond {
		if s := seq.At(e).Scale; s > peak {
			peak = s
		}
	}
	if peak <= 1 {
		t.Fatalf("expected an underdamped overshoot above 1, peak %v", peak)
	}

	end := seq.At(seq.Duration())
	if math.Abs(end.Scale-1) > 0.1 {
		t.Fatalf("expected scale to settle near 1, got %v", end.Scale)
	}
}

func TestSequence_OpacityHoldsThenFades(t *testing.T) {
	seq := NewSequence(200*time.Millisecond, 100*time.Millisecond)

	if f := seq.At(200 * time.Millisecond); f.Opacity != 1 {
		t.Fatalf("expected full opacity through the hold, got %v", f.Opacity)
	}
	if f := seq.At(250 * time.Millisecond); math.Abs(f.Opacity-0.5) > 1e-9 {
		t.Fatalf("expected half opacity mid fade, got %v", f.Opacity)
	}
	f := seq.At(300 * time.Millisecond)
	if f.Opacity != 0 || !f.Done {
		t.Fatalf("expected finished frame, got %+v", f)
	}
	if late := seq.At(time.Hour); !late.Done || late.Opacity != 0 {
		t.Fatalf("unexpected frame long after the end: %+v", late)
	}
}
