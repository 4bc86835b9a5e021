package gesture

import (
	"sync"
	"time"

	"github.com/glabrego/easel-cli/internal/api"
	"github.com/glabrego/easel-cli/internal/clock"
	"github.com/glabrego/easel-cli/internal/metrics"
)

const (
	DefaultWindow           = 300 * time.Millisecond
	DefaultAnimationTimeout = 1000 * time.Millisecond
)

type Kind int

const (
	// SingleTap means the tap armed the window; no action is taken here.
	SingleTap Kind = iota
	// DoubleTap means the tap completed a double tap.
	DoubleTap
)

func (k Kind) String() string {
	if k == DoubleTap {
		return "double"
	}
	return "single"
}

type Result struct {
	Kind Kind
	// Liked is set when the double tap invoked the like action.
	Liked bool
}

type LikeState interface {
	IsLiked(id api.ItemID) bool
}

type Config struct {
	Window           time.Duration
	AnimationTimeout time.Duration
	Sequence         *Sequence
	Clock            clock.Clock
	// Authenticated gates the like action. Nil means never authenticated.
	Authenticated func() bool
	// OnLike is invoked, outside the lock, for every double-tap like.
	OnLike  func(id api.ItemID)
	Metrics *metrics.Metrics
}

// Disambiguator classifies taps per item and owns the per-item like
// animation state.
type Disambiguator struct {
	likes   LikeState
	window  time.Duration
	timeout time.Duration
	seq     Sequence
	clock   clock.Clock
	authed  func() bool
	onLike  func(id api.ItemID)
	metrics *metrics.Metrics

	mu         sync.Mutex
	lastTap    map[api.ItemID]time.Time
	animations map[api.ItemID]*animation
	closed     bool
}

type animation struct {
	started time.Time
	timer   clock.Timer
}

func NewDisambiguator(likes LikeState, cfg Config) *Disambiguator {
	if cfg.Window <= 0 {
		cfg.Window = DefaultWindow
	}
	if cfg.AnimationTimeout <= 0 {
		cfg.AnimationTimeout = DefaultAnimationTimeout
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.Real()
	}
	seq := NewSequence(DefaultHold, DefaultFade)
	if cfg.Sequence != nil {
		seq = *cfg.Sequence
	}
	authed := cfg.Authenticated
	if authed == nil {
		authed = func() bool { return false }
	}
	return &Disambiguator{
		likes:      likes,
		window:     cfg.Window,
		timeout:    cfg.AnimationTimeout,
		seq:        seq,
		clock:      cfg.Clock,
		authed:     authed,
		onLike:     cfg.OnLike,
		metrics:    cfg.Metrics,
		lastTap:    make(map[api.ItemID]time.Time),
		animations: make(map[api.ItemID]*animation),
	}
}

// Tap registers a tap on id. A second tap strictly inside the window
// resolves as a double tap; an authenticated double tap on an item that is
// not liked and not already animating invokes the like action once and
// starts the animation.
func (d *Disambiguator) Tap(id api.ItemID) Result {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return Result{}
	}
	now := d.clock.Now()
	d.pruneLocked(now)

	last, armed := d.lastTap[id]
	if !armed || now.Sub(last) >= d.window {
		d.lastTap[id] = now
		d.mu.Unlock()
		return Result{Kind: SingleTap}
	}

	delete(d.lastTap, id)
	_, animating := d.animations[id]
	if animating || !d.authed() || d.likes.IsLiked(id) {
		d.mu.Unlock()
		return Result{Kind: DoubleTap}
	}

	d.startAnimationLocked(id, now)
	onLike := d.onLike
	d.mu.Unlock()

	d.metrics.LikeAnimation()
	if onLike != nil {
		onLike(id)
	}
	return Result{Kind: DoubleTap, Liked: true}
}

func (d *Disambiguator) pruneLocked(now time.Time) {
	for id, at := range d.lastTap {
		if now.Sub(at) >= d.window {
			delete(d.lastTap, id)
		}
	}
}

func (d *Disambiguator) startAnimationLocked(id api.ItemID, now time.Time) {
	anim := &animation{started: now}
	anim.timer = d.clock.AfterFunc(d.timeout, func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		if d.animations[id] == anim {
			delete(d.animations, id)
		}
	})
	d.animations[id] = anim
}

// Armed reports whether id has a tap waiting for a second one.
func (d *Disambiguator) Armed(id api.ItemID) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	last, ok := d.lastTap[id]
	return ok && d.clock.Now().Sub(last) < d.window
}

// Animating reports whether the like animation flag is set for id.
func (d *Disambiguator) Animating(id api.ItemID) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.animations[id]
	return ok
}

// Animation returns the current frame of id's like animation.
func (d *Disambiguator) Animation(id api.ItemID) (Frame, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	anim, ok := d.animations[id]
	if !ok {
		return Frame{}, false
	}
	return d.seq.At(d.clock.Now().Sub(anim.started)), true
}

// Complete clears the animation flag for id once its sequence has finished
// playing. The safety timer clears it regardless.
func (d *Disambiguator) Complete(id api.ItemID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if anim, ok := d.animations[id]; ok {
		anim.timer.Stop()
		delete(d.animations, id)
	}
}

// Close stops every pending timer and drops all tap and animation state.
func (d *Disambiguator) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	for _, anim := range d.animations {
		anim.timer.Stop()
	}
	d.animations = make(map[api.ItemID]*animation)
	d.lastTap = make(map[api.ItemID]time.Time)
}
