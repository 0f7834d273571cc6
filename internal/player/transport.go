package player

import (
	"context"
	"math"
	"time"

	"github.com/ivlev/frameplayer/internal/node"
)

// Play starts ticking from the current time. Once the current time is at
// or past the duration it restarts from zero, so pressing play at the end
// replays the scene instead of redrawing the last frame. It is a no-op
// while playing or burning.
func (p *Player) Play() error {
	p.mu.Lock()
	if err := p.stateLocked(); err != nil {
		p.mu.Unlock()
		return err
	}
	if p.burning || p.ticker.Started() {
		p.mu.Unlock()
		return nil
	}
	p.stats = RenderStats{}
	if p.clock.Time() >= p.root.Duration() {
		p.clock.Set(0)
	}
	p.clock.Reset()
	p.ticker.Start()
	first := !p.played
	p.played = true
	ac := p.audioCtx
	p.mu.Unlock()

	if err := ac.Resume(); err != nil {
		p.log.Warn("resume audio", "error", err)
	}
	p.events.emit(Event{Kind: EventPlaying})
	if first {
		p.events.emit(Event{Kind: EventPlay})
	}
	return nil
}

// Pause stops ticking and audio and renders the current time once so
// nodes settle on a still frame. It is a no-op while burning or when
// already paused.
func (p *Player) Pause(ctx context.Context) error {
	p.mu.Lock()
	if err := p.stateLocked(); err != nil {
		p.mu.Unlock()
		return err
	}
	if p.burning || !p.ticker.Started() {
		p.mu.Unlock()
		return nil
	}
	p.ticker.Stop()
	p.mu.Unlock()

	if err := p.stopAndRender(ctx); err != nil {
		return err
	}
	p.events.emit(Event{Kind: EventPause})
	return nil
}

// stopAndRender waits out any in-flight tick, silences the scheduler and
// renders a still at the current time.
func (p *Player) stopAndRender(ctx context.Context) error {
	p.drawMu.Lock()
	defer p.drawMu.Unlock()
	p.mu.Lock()
	destroyed := p.destroyed
	p.mu.Unlock()
	if destroyed {
		return ErrDestroyed
	}
	p.sched.Stop()
	return p.renderLocked(ctx)
}

// Seek moves playback to t and returns once the new frame is rendered.
// Listeners see seeking, seeked and timeupdate in that order. Playback
// resumes afterwards only if it was running.
func (p *Player) Seek(ctx context.Context, t float64) error {
	wasPlaying, err := p.beginSeek(t)
	if err != nil {
		return err
	}
	cur, dur, err := p.renderSeek(ctx)
	if err == ErrDestroyed {
		return err
	}
	p.completeSeek(cur, dur, wasPlaying)
	return err
}

// SetCurrentTime is Seek without waiting: ticking and audio stop and the
// time is assigned before it returns, the render happens in the
// background.
func (p *Player) SetCurrentTime(t float64) error {
	wasPlaying, err := p.beginSeek(t)
	if err != nil {
		return err
	}
	p.pending.Add(1)
	go func() {
		cur, dur, err := p.renderSeek(p.ctx)
		// Listeners may call Destroy, which waits on pending.
		p.pending.Done()
		if err == ErrDestroyed {
			return
		}
		if err != nil {
			p.log.Warn("seek render failed", "time", t, "error", err)
		}
		p.completeSeek(cur, dur, wasPlaying)
	}()
	return nil
}

func (p *Player) beginSeek(t float64) (bool, error) {
	if math.IsNaN(t) {
		t = 0
	}
	p.mu.Lock()
	if err := p.stateLocked(); err != nil {
		p.mu.Unlock()
		return false, err
	}
	wasPlaying := p.ticker.Started()
	if wasPlaying {
		p.ticker.Stop()
	}
	p.mu.Unlock()

	if wasPlaying {
		// No tick may draw or schedule audio past this point.
		p.drawMu.Lock()
		p.mu.Lock()
		sched := p.sched
		p.mu.Unlock()
		if sched != nil {
			sched.Stop()
		}
		p.drawMu.Unlock()
	}
	p.clock.Set(t)
	p.events.emit(Event{Kind: EventSeeking})
	return wasPlaying, nil
}

func (p *Player) renderSeek(ctx context.Context) (cur, dur float64, err error) {
	p.drawMu.Lock()
	defer p.drawMu.Unlock()
	p.mu.Lock()
	if p.destroyed {
		p.mu.Unlock()
		return 0, 0, ErrDestroyed
	}
	p.mu.Unlock()
	err = p.renderLocked(ctx)
	return p.clock.Time(), p.root.Duration(), err
}

// completeSeek runs without locks held.
func (p *Player) completeSeek(cur, dur float64, wasPlaying bool) {
	p.events.emit(Event{Kind: EventSeeked})
	p.events.emit(Event{Kind: EventTimeUpdate, CurrentTime: cur, Duration: dur})

	if wasPlaying {
		p.mu.Lock()
		if !p.destroyed && !p.burning && !p.ticker.Started() {
			p.clock.Reset()
			p.ticker.Start()
		}
		p.mu.Unlock()
	}
}

// onTick runs on the ticker. A tick that arrives while the previous one is
// still drawing is dropped.
func (p *Player) onTick() {
	p.mu.Lock()
	q := p.queue
	p.mu.Unlock()
	if q == nil {
		return
	}
	if !q.Enqueue(p.tick) {
		p.log.Debug("tick dropped")
	}
}

// tick draws the frame at the time before advancing and feeds the audio
// scheduler with the advanced time. Past the end it draws the last whole
// frame and stops.
func (p *Player) tick(ctx context.Context) {
	var events []Event

	p.drawMu.Lock()
	p.mu.Lock()
	if p.destroyed || p.ticker == nil || !p.ticker.Started() {
		p.mu.Unlock()
		p.drawMu.Unlock()
		return
	}
	p.mu.Unlock()

	cur := p.clock.Time()
	timer := p.clock.Advance()
	dur := p.root.Duration()
	fps := float64(p.cfg.FPS)

	if cur < dur {
		started := time.Now()
		if _, err := p.root.Draw(ctx, cur, node.ViewPlay); err != nil {
			p.log.Warn("draw failed", "time", cur, "error", err)
		}
		video := time.Since(started)
		if err := p.sched.Play(ctx, timer); err != nil {
			p.log.Warn("audio schedule failed", "time", timer, "error", err)
		}
		total := time.Since(started)

		p.mu.Lock()
		p.stats.Frames++
		p.stats.Video += video
		p.stats.Audio += total - video
		if total > slowFrame {
			p.stats.Slow++
		}
		p.mu.Unlock()
		if total > slowFrame {
			p.log.Info("slow frame", "time", cur, "render_time", total)
		}
		events = append(events, Event{Kind: EventTimeUpdate, CurrentTime: cur, Duration: dur})
	} else {
		p.mu.Lock()
		p.ticker.Stop()
		stats := p.stats
		p.mu.Unlock()

		last := (math.Ceil(dur*fps) - 1) / fps
		if _, err := p.root.Draw(ctx, math.Max(last, 0), node.ViewSeek); err != nil {
			p.log.Warn("draw failed", "time", last, "error", err)
		}
		p.sched.Stop()
		p.log.Info("render time",
			"frames", stats.Frames,
			"slow", stats.Slow,
			"video", stats.Video,
			"audio", stats.Audio,
		)
		events = append(events,
			Event{Kind: EventTimeUpdate, CurrentTime: dur, Duration: dur},
			Event{Kind: EventEnded},
		)
	}

	// Always render, even on the final tick, so no blank frame shows.
	if err := p.renderer.Render(); err != nil {
		p.log.Warn("render failed", "error", err)
	}
	p.drawMu.Unlock()

	for _, ev := range events {
		p.events.emit(ev)
	}
}
