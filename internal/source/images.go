package source

import (
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"sort"
	"strings"

	_ "golang.org/x/image/bmp"
)

// Images treats each file as one page. A directory contributes its
// images in name order.
type Images struct {
	paths []string
}

var imageExts = map[string]bool{".jpg": true, ".jpeg": true, ".png": true, ".bmp": true}

func OpenImages(path string) (*Images, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if !fi.IsDir() {
		return &Images{paths: []string{path}}, nil
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, err
	}
	var paths []string
	for _, e := range entries {
		if !e.IsDir() && imageExts[strings.ToLower(filepath.Ext(e.Name()))] {
			paths = append(paths, filepath.Join(path, e.Name()))
		}
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("в папке %s не найдено изображений", path)
	}
	sort.Strings(paths)
	return &Images{paths: paths}, nil
}

func (s *Images) Len() int { return len(s.paths) }

func (s *Images) Bounds(page int) (float64, float64, error) {
	if err := s.check(page); err != nil {
		return 0, 0, err
	}
	f, err := os.Open(s.paths[page])
	if err != nil {
		return 0, 0, err
	}
	defer f.Close()

	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return 0, 0, fmt.Errorf("%s: %w", s.paths[page], err)
	}
	return float64(cfg.Width), float64(cfg.Height), nil
}

// Page decodes the file; dpi does not apply to rasters.
func (s *Images) Page(ctx context.Context, page int, _ int) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := s.check(page); err != nil {
		return nil, err
	}
	f, err := os.Open(s.paths[page])
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", s.paths[page], err)
	}
	return img, nil
}

func (s *Images) check(page int) error {
	if page < 0 || page >= len(s.paths) {
		return fmt.Errorf("page %d out of range [0,%d)", page, len(s.paths))
	}
	return nil
}

func (s *Images) Close() error { return nil }
