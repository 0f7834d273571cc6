package main

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"log/slog"
	"os"
	"sort"
	"sync"

	"github.com/ivlev/frameplayer/internal/config"
	"github.com/ivlev/frameplayer/internal/focus"
	"github.com/ivlev/frameplayer/internal/node"
	"github.com/ivlev/frameplayer/internal/source"
)

// scene is the node tree built from a config plus the sources its image
// layers read from. Sources stay open until Close.
type scene struct {
	root *node.Container

	mu      sync.Mutex
	sources map[string]source.Source
}

func buildScene(cfg *config.Config) (*scene, error) {
	s := &scene{sources: make(map[string]source.Source)}
	s.root = node.NewContainer(node.Options{
		ID:     "root",
		Width:  cfg.Width,
		Height: cfg.Height,
	})
	for _, l := range cfg.Layers {
		n, err := s.build(cfg, l)
		if err != nil {
			s.Close()
			return nil, err
		}
		s.root.Add(n)
	}
	return s, nil
}

func (s *scene) build(cfg *config.Config, l config.Layer) (node.Node, error) {
	opts := node.Options{
		ID:       l.ID,
		Type:     l.Type,
		Start:    l.Start,
		Duration: l.Duration,
		ZIndex:   l.ZIndex,
		X:        l.X,
		Y:        l.Y,
		Width:    l.Width,
		Height:   l.Height,
	}

	switch l.Type {
	case config.TypeContainer:
		c := node.NewContainer(opts)
		for _, child := range l.Children {
			n, err := s.build(cfg, child)
			if err != nil {
				return nil, err
			}
			c.Add(n)
		}
		return c, nil

	case config.TypeImage, config.TypePDF:
		var n *node.Image
		load := s.loader(l)
		if l.Focus {
			raw, duration := load, l.Duration
			load = func(ctx context.Context) (image.Image, error) {
				img, err := raw(ctx)
				if err != nil {
					return nil, err
				}
				n.Keyframes = tour(ctx, img, opts, duration)
				return img, nil
			}
		}
		n = node.NewImage(opts, load, keyframes(l.Keyframes))
		return n, nil

	case config.TypeQRCode:
		return node.NewQRCode(opts, l.Text), nil

	case config.TypeSolid, config.TypeCover:
		c, err := config.ParseColor(colorOr(l.Color, "#000000"))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", l.ID, err)
		}
		if l.Type == config.TypeCover {
			return node.NewCover(opts, c), nil
		}
		return node.NewSolid(opts, c), nil

	case config.TypeTone:
		return node.NewTone(opts, l.Frequency, volumeOr(l.Volume), cfg.Player.SampleRate), nil

	case config.TypeClip:
		path := l.Path
		open := func(context.Context) (io.ReadCloser, error) { return os.Open(path) }
		return node.NewClip(opts, open, volumeOr(l.Volume), cfg.Player.SampleRate), nil
	}
	return nil, fmt.Errorf("%s: unknown layer type %q", l.ID, l.Type)
}

// loader reads one page of the layer's source at preload time.
func (s *scene) loader(l config.Layer) node.Loader {
	path, page, dpi := l.Path, l.Page, l.DPI
	return func(ctx context.Context) (image.Image, error) {
		src, err := s.source(path)
		if err != nil {
			return nil, err
		}
		return src.Page(ctx, page, dpi)
	}
}

func (s *scene) source(path string) (source.Source, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if src, ok := s.sources[path]; ok {
		return src, nil
	}
	src, err := source.Open(path)
	if err != nil {
		return nil, err
	}
	s.sources[path] = src
	return src, nil
}

// Close releases every opened source.
func (s *scene) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var errs []error
	for path, src := range s.sources {
		if err := src.Close(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", path, err))
		}
		delete(s.sources, path)
	}
	return errors.Join(errs...)
}

// tour plans keyframes over the content blocks of img. Detection failures
// leave the layer static.
func tour(ctx context.Context, img image.Image, opts node.Options, duration float64) []node.Keyframe {
	w, h := opts.Width, opts.Height
	if w <= 0 || h <= 0 {
		w, h = img.Bounds().Dx(), img.Bounds().Dy()
	}
	blocks, err := focus.NewDetector().Detect(ctx, img)
	if err != nil {
		slog.Warn("focus detection failed", "layer", opts.ID, "error", err)
		return nil
	}
	slog.Debug("focus blocks", "layer", opts.ID, "count", len(blocks))
	return focus.NewCamera(w, h).Keyframes(blocks, img.Bounds(), duration)
}

func keyframes(in []config.Keyframe) []node.Keyframe {
	out := make([]node.Keyframe, len(in))
	for i, k := range in {
		out[i] = node.Keyframe{Time: k.Time, X: k.X, Y: k.Y, Zoom: k.Zoom, Alpha: k.Alpha}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Time < out[j].Time })
	return out
}

func colorOr(c, def string) string {
	if c == "" {
		return def
	}
	return c
}

func volumeOr(v float64) float64 {
	if v == 0 {
		return 1
	}
	return v
}
