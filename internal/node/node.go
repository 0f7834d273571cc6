// Package node is the scene graph: timed visual and audio nodes composed
// under containers and drawn into surface layers.
package node

import (
	"context"

	"github.com/ivlev/frameplayer/internal/audio"
	"github.com/ivlev/frameplayer/internal/surface"
)

// ViewType says why a frame is being drawn. Seek and Play share the
// on-screen layer tree; Burn draws into a separate offline tree.
type ViewType int

const (
	ViewSeek ViewType = iota
	ViewPlay
	ViewBurn
)

func (v ViewType) String() string {
	switch v {
	case ViewSeek:
		return "seek"
	case ViewPlay:
		return "play"
	case ViewBurn:
		return "burn"
	}
	return "unknown"
}

// target maps a view type onto its layer tree.
func (v ViewType) target() int {
	if v == ViewBurn {
		return 1
	}
	return 0
}

// Node is anything that can sit in the scene graph.
type Node interface {
	ID() string
	Type() string
	Base() *Display

	// Preload fetches the node's assets. onProgress receives values in [0,1].
	Preload(ctx context.Context, onProgress func(float64)) error
	// Annotate computes absolute timing. Parents annotate before children.
	Annotate()

	// Draw updates the node's layer for time t. A nil layer with a nil
	// error means the node is not ready yet.
	Draw(ctx context.Context, t float64, vt ViewType) (*surface.Layer, error)
	// View returns the node's layer for vt, creating it on first use.
	View(t float64, vt ViewType) *surface.Layer

	AudioFrame(ctx context.Context, t float64, size int) (audio.Frame, error)

	Duration() float64
	// AllNodes is the subtree in depth-first pre-order, excluding the node.
	AllNodes() []Node
	// ZIndex orders siblings when drawing, lowest first. Equal values keep
	// insertion order.
	ZIndex() int
	SetZIndex(z int)
	Resize(w, h int)
	Destroy()
}

// Painter renders a node's own content into its layer. local is the time
// since the node's absolute start.
type Painter interface {
	Paint(ctx context.Context, layer *surface.Layer, local float64) error
}

// Options are the attributes shared by every node.
type Options struct {
	ID       string
	Type     string
	Start    float64
	Duration float64
	ZIndex   int
	X, Y     float64
	Width    int
	Height   int
}
