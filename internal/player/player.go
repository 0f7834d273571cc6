// Package player drives a node graph in time: it ticks the frame clock,
// renders frames, keeps audio scheduled ahead of playback and exports
// stills, audio and whole burns.
package player

import (
	"context"
	"errors"
	"fmt"
	"image/color"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/ivlev/frameplayer/internal/audio"
	"github.com/ivlev/frameplayer/internal/clock"
	"github.com/ivlev/frameplayer/internal/config"
	"github.com/ivlev/frameplayer/internal/node"
	"github.com/ivlev/frameplayer/internal/queue"
	"github.com/ivlev/frameplayer/internal/surface"
)

var (
	ErrNotInitialized = errors.New("player: not initialized")
	ErrDestroyed      = errors.New("player: destroyed")
	ErrBurning        = errors.New("player: burn in progress")
)

// slowFrame is the tick cost above which a frame is logged.
const slowFrame = 20 * time.Millisecond

// RenderStats accumulates tick costs since the last Play.
type RenderStats struct {
	Frames int
	Slow   int
	Video  time.Duration
	Audio  time.Duration
}

// Player owns the playback state of one scene.
//
// drawMu serializes every draw+render of the screen or burner and is
// always taken before mu. Fields assigned in Init and cleared in Destroy
// are written with both held, so holding either is enough to read them.
type Player struct {
	ID string

	cfg       config.Player
	log       *slog.Logger
	newAudio  audio.ContextFactory
	newTicker clock.TickerFactory

	drawMu sync.Mutex
	mu     sync.Mutex

	root     node.Node
	audioCtx audio.Context
	renderer *surface.Renderer
	burner   *surface.Renderer
	ticker   clock.Ticker
	clock    *clock.FrameClock
	queue    *queue.Queue
	mixer    *audio.Mixer
	sched    *audio.Scheduler

	width, height int
	played        bool
	burning       bool
	destroyed     bool
	stats         RenderStats

	analyses     singleflight.Group
	lastAnalysis *audio.Analysis

	events  *emitter
	pending sync.WaitGroup
	ctx     context.Context
	cancel  context.CancelFunc
}

// Option configures a Player.
type Option func(*Player)

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(p *Player) { p.log = l }
}

// WithAudioContext sets how the audio context is created. The default is
// an offline context with no output device.
func WithAudioContext(f audio.ContextFactory) Option {
	return func(p *Player) { p.newAudio = f }
}

// WithTicker sets how the frame ticker is created.
func WithTicker(f clock.TickerFactory) Option {
	return func(p *Player) { p.newTicker = f }
}

// New creates an uninitialised player. Non-positive FPS, PlaybackRate,
// SampleRate, Channels and AudioFrames take their DefaultPlayer values.
// Volume is used as given: a zero Volume mutes audio, so start from
// config.DefaultPlayer when only some fields are set.
func New(cfg config.Player, opts ...Option) *Player {
	def := config.DefaultPlayer()
	if cfg.FPS <= 0 {
		cfg.FPS = def.FPS
	}
	if cfg.PlaybackRate <= 0 {
		cfg.PlaybackRate = def.PlaybackRate
	}
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = def.SampleRate
	}
	if cfg.Channels <= 0 {
		cfg.Channels = def.Channels
	}
	if cfg.AudioFrames <= 0 {
		cfg.AudioFrames = def.AudioFrames
	}

	ctx, cancel := context.WithCancel(context.Background())
	p := &Player{
		ID:        uuid.NewString(),
		cfg:       cfg,
		log:       slog.Default(),
		newAudio:  audio.OfflineFactory,
		newTicker: clock.NewIntervalTicker,
		events:    newEmitter(),
		ctx:       ctx,
		cancel:    cancel,
	}
	for _, o := range opts {
		o(p)
	}
	p.log = p.log.With("player", p.ID)
	if cfg.Volume == 0 {
		p.log.Info("audio muted", "volume", cfg.Volume)
	}
	return p
}

// InitOptions describe the scene to load. Width and Height default to the
// root node's design size.
type InitOptions struct {
	Root       node.Node
	Width      int
	Height     int
	Background color.RGBA
	OnProgress func(float64)
}

// Init creates the audio context and renderer, preloads every node with
// progress reporting, annotates the tree and renders the first frame.
func (p *Player) Init(ctx context.Context, opts InitOptions) error {
	if opts.Root == nil {
		return errors.New("player: nil root node")
	}
	p.mu.Lock()
	switch {
	case p.destroyed:
		p.mu.Unlock()
		return ErrDestroyed
	case p.root != nil:
		p.mu.Unlock()
		return errors.New("player: already initialized")
	}
	p.mu.Unlock()

	root := opts.Root
	w, h := opts.Width, opts.Height
	if w <= 0 || h <= 0 {
		o := root.Base().Options()
		w, h = o.Width, o.Height
	}

	ac, err := p.newAudio(p.cfg.SampleRate)
	if err != nil {
		return fmt.Errorf("audio context: %w", err)
	}
	r, err := surface.NewRenderer(w, h, opts.Background)
	if err != nil {
		ac.Close()
		return fmt.Errorf("renderer: %w", err)
	}

	if err := p.preload(ctx, root, opts.OnProgress); err != nil {
		ac.Close()
		r.Destroy(true)
		return err
	}
	p.annotate(root)

	if o := root.Base().Options(); o.Width != w || o.Height != h {
		root.Resize(w, h)
	}
	r.Stage().AddChild(root.View(0, node.ViewSeek))

	mixer := &audio.Mixer{
		SampleRate: p.cfg.SampleRate,
		Channels:   p.cfg.Channels,
		FPS:        p.cfg.FPS,
		Volume:     p.cfg.Volume,
	}
	sched := audio.NewScheduler(ac, mixer, func() []audio.Source { return sources(root) }, p.log)
	sched.Frames = p.cfg.AudioFrames

	p.drawMu.Lock()
	p.mu.Lock()
	p.root = root
	p.audioCtx = ac
	p.renderer = r
	p.clock = clock.NewFrameClock(ac.CurrentTime, p.cfg.PlaybackRate)
	p.queue = queue.New()
	p.mixer = mixer
	p.sched = sched
	p.width, p.height = w, h
	p.ticker = p.newTicker(p.cfg.FPS, p.onTick)
	p.mu.Unlock()
	err = p.renderLocked(ctx)
	p.drawMu.Unlock()
	if err != nil {
		return fmt.Errorf("initial render: %w", err)
	}

	p.events.emit(Event{Kind: EventLoadedMetadata, Duration: root.Duration(), Width: w, Height: h})
	return nil
}

// preload loads the root, then every node in order, splitting progress
// evenly between them.
func (p *Player) preload(ctx context.Context, root node.Node, onProgress func(float64)) error {
	report := func(v float64) {
		if onProgress != nil {
			onProgress(v)
		}
	}
	if err := root.Preload(ctx, nil); err != nil {
		return fmt.Errorf("preload %s: %w", root.ID(), err)
	}
	all := root.AllNodes()
	if len(all) == 0 {
		report(1)
		return nil
	}
	share := 1 / float64(len(all))
	for i, n := range all {
		base := share * float64(i)
		if err := n.Preload(ctx, func(v float64) { report(base + share*v) }); err != nil {
			return fmt.Errorf("preload %s: %w", n.ID(), err)
		}
		report(share * float64(i+1))
	}
	return nil
}

// annotate runs twice over the root since preloading may have changed
// durations further down.
func (p *Player) annotate(root node.Node) {
	root.Annotate()
	for _, n := range root.AllNodes() {
		n.Annotate()
		b := n.Base()
		p.log.Debug("annotate",
			"node", n.ID(),
			"type", n.Type(),
			"show_from", b.AbsStart(),
			"show_to", b.AbsEnd(),
			"duration", n.Duration(),
			"z_index", n.ZIndex(),
		)
	}
	root.Annotate()
}

func sources(root node.Node) []audio.Source {
	all := root.AllNodes()
	out := make([]audio.Source, len(all))
	for i, n := range all {
		out[i] = n
	}
	return out
}

// stateLocked returns an error unless the player is initialised and alive.
// Callers hold mu.
func (p *Player) stateLocked() error {
	if p.destroyed {
		return ErrDestroyed
	}
	if p.root == nil {
		return ErrNotInitialized
	}
	return nil
}

// Config returns the playback settings after defaults were applied.
func (p *Player) Config() config.Player { return p.cfg }

// Duration is the root node's duration in seconds.
func (p *Player) Duration() float64 {
	p.mu.Lock()
	root := p.root
	p.mu.Unlock()
	if root == nil {
		return 0
	}
	return root.Duration()
}

// CurrentTime is the logical playback position in seconds.
func (p *Player) CurrentTime() float64 {
	p.mu.Lock()
	c := p.clock
	p.mu.Unlock()
	if c == nil {
		return 0
	}
	return c.Time()
}

// Playing reports whether the ticker is running.
func (p *Player) Playing() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ticker != nil && p.ticker.Started()
}

// Burning reports whether a Burn is in progress.
func (p *Player) Burning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.burning
}

// Size returns the screen size.
func (p *Player) Size() (int, int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.width, p.height
}

// Stats returns the render costs since the last Play.
func (p *Player) Stats() RenderStats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stats
}

// Renderer exposes the screen renderer, nil before Init or after Destroy.
func (p *Player) Renderer() *surface.Renderer {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.renderer
}

// Resize changes the screen size. Zero, NaN-derived or unchanged sizes are
// ignored. Playback is paused first.
func (p *Player) Resize(ctx context.Context, w, h int) error {
	p.mu.Lock()
	if err := p.stateLocked(); err != nil {
		p.mu.Unlock()
		return err
	}
	if w <= 0 || h <= 0 || (w == p.width && h == p.height) {
		p.mu.Unlock()
		return nil
	}
	p.mu.Unlock()

	if p.Playing() {
		if err := p.Pause(ctx); err != nil {
			return err
		}
	}

	p.drawMu.Lock()
	p.mu.Lock()
	if p.destroyed {
		p.mu.Unlock()
		p.drawMu.Unlock()
		return ErrDestroyed
	}
	p.renderer.Resize(w, h)
	p.root.Resize(w, h)
	p.width, p.height = w, h
	stage := p.renderer.Stage()
	stage.RemoveChildren()
	stage.AddChild(p.root.View(p.clock.Time(), node.ViewSeek))
	p.mu.Unlock()
	err := p.renderLocked(ctx)
	p.drawMu.Unlock()
	if err != nil {
		return err
	}

	p.events.emit(Event{Kind: EventResize, Width: w, Height: h})
	return nil
}

// renderLocked draws the current time and composites it. Callers hold
// drawMu. The time is kept just under the duration so the last frame is
// never blank.
func (p *Player) renderLocked(ctx context.Context) error {
	vt := node.ViewSeek
	if p.ticker.Started() {
		vt = node.ViewPlay
	}
	t := math.Min(p.clock.Time(), p.root.Duration()-0.001)
	if _, err := p.root.Draw(ctx, math.Max(t, 0), vt); err != nil {
		return fmt.Errorf("draw at %.3fs: %w", t, err)
	}
	return p.renderer.Render()
}

// Destroy stops playback and releases every resource. It is safe to call
// more than once and from any state.
func (p *Player) Destroy() {
	p.mu.Lock()
	if p.destroyed {
		p.mu.Unlock()
		return
	}
	p.destroyed = true
	ticker, q := p.ticker, p.queue
	p.mu.Unlock()

	if ticker != nil {
		ticker.Stop()
	}
	p.cancel()
	if q != nil {
		q.Destroy()
	}

	// In-flight draws see the cancelled context and return.
	p.drawMu.Lock()
	p.mu.Lock()
	if p.sched != nil {
		p.sched.Close()
	}
	if p.audioCtx != nil {
		if err := p.audioCtx.Close(); err != nil {
			p.log.Warn("close audio context", "error", err)
		}
	}
	if p.root != nil {
		p.root.Destroy()
	}
	if p.burner != nil {
		p.burner.Destroy(true)
	}
	if p.renderer != nil {
		p.renderer.Destroy(true)
	}
	p.root, p.audioCtx, p.renderer, p.burner = nil, nil, nil, nil
	p.sched, p.mixer, p.queue, p.ticker = nil, nil, nil, nil
	p.lastAnalysis = nil
	p.mu.Unlock()
	p.drawMu.Unlock()

	p.pending.Wait()
	p.events.clear()
}
