package node

import (
	"context"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/ivlev/frameplayer/internal/surface"
)

// TypeCover marks a child that covers the whole container.
const TypeCover = "cover"

// Container groups children on a shared timeline. Child start times are
// relative to the container's start.
type Container struct {
	*Display

	mu       sync.Mutex
	children []Node
	covers   []Node
}

// NewContainer creates an empty container.
func NewContainer(opts Options) *Container {
	if opts.Type == "" {
		opts.Type = "container"
	}
	c := &Container{}
	c.Display = NewDisplay(c, opts)
	return c
}

// Add appends children. Children added after the container's layers exist
// are attached to them straight away.
func (c *Container) Add(children ...Node) {
	c.mu.Lock()
	c.children = append(c.children, children...)
	c.mu.Unlock()

	for _, ch := range children {
		ch.Base().setParent(c)
		for _, vt := range []ViewType{ViewSeek, ViewBurn} {
			if l := c.existingView(vt); l != nil {
				l.AddChild(ch.View(0, vt))
			}
		}
	}
}

// Children returns the direct children in insertion order.
func (c *Container) Children() []Node {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Node, len(c.children))
	copy(out, c.children)
	return out
}

// Covers returns the cover children found by the last draw.
func (c *Container) Covers() []Node {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Node, len(c.covers))
	copy(out, c.covers)
	return out
}

// Duration is the configured duration, or else the end of the last child.
func (c *Container) Duration() float64 {
	if d := c.Display.Duration(); d > 0 {
		return d
	}
	var end float64
	for _, ch := range c.Children() {
		if d := ch.Duration(); d > 0 {
			end = max(end, ch.Base().Start()+d)
		}
	}
	return end
}

func (c *Container) AllNodes() []Node {
	var out []Node
	for _, ch := range c.Children() {
		out = append(out, ch)
		out = append(out, ch.AllNodes()...)
	}
	return out
}

// View creates the container's layer with the children's layers attached
// in ascending z order.
func (c *Container) View(_ float64, vt ViewType) *surface.Layer {
	l, created := c.view(vt)
	if created {
		children := c.Children()
		sort.SliceStable(children, func(i, j int) bool {
			return children[i].ZIndex() < children[j].ZIndex()
		})
		for _, ch := range children {
			l.AddChild(ch.View(0, vt))
		}
	}
	return l
}

// Draw draws the container itself, then every child concurrently. A
// container that is not ready draws nothing.
func (c *Container) Draw(ctx context.Context, t float64, vt ViewType) (*surface.Layer, error) {
	l, err := c.Display.Draw(ctx, t, vt)
	if err != nil || l == nil {
		return l, err
	}

	children := c.Children()
	var covers []Node
	for _, ch := range children {
		if ch.Type() == TypeCover {
			covers = append(covers, ch)
		}
	}
	c.mu.Lock()
	c.covers = covers
	c.mu.Unlock()

	g, gctx := errgroup.WithContext(ctx)
	for _, ch := range children {
		g.Go(func() error {
			_, err := ch.Draw(gctx, t, vt)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return l, nil
}

// UpdateZIndex marks the container's layers for resorting after children
// changed their z-index without going through SetZIndex.
func (c *Container) UpdateZIndex() {
	for _, vt := range []ViewType{ViewSeek, ViewBurn} {
		l := c.existingView(vt)
		if l == nil {
			continue
		}
		for _, ch := range c.Children() {
			if cl := ch.Base().existingView(vt); cl != nil {
				cl.SetZIndex(ch.ZIndex())
			}
		}
	}
}

// Destroy tears down the children before the container.
func (c *Container) Destroy() {
	for _, ch := range c.Children() {
		ch.Destroy()
	}
	c.Display.Destroy()
}
