package main

import (
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ivlev/frameplayer/internal/config"
	"github.com/ivlev/frameplayer/internal/node"
	"github.com/ivlev/frameplayer/internal/player"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	imgPath := filepath.Join(dir, "page.png")
	img := image.NewRGBA(image.Rect(0, 0, 20, 10))
	for i := range img.Pix {
		img.Pix[i] = 255
	}
	f, err := os.Create(imgPath)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, img))
	require.NoError(t, f.Close())

	cfg := config.Default()
	cfg.Width, cfg.Height = 32, 18
	cfg.Output = dir
	cfg.Workers = 2
	cfg.Layers = []config.Layer{
		{ID: "bg", Type: config.TypeSolid, Duration: 1, Width: 32, Height: 18, Color: "#102030"},
		{ID: "slides", Type: config.TypeContainer, Start: 0.5, Children: []config.Layer{
			{ID: "page", Type: config.TypeImage, Path: imgPath, Duration: 1, Width: 10, Height: 5,
				Keyframes: []config.Keyframe{{Time: 1, X: 4}, {Time: 0}}},
			{ID: "qr", Type: config.TypeQRCode, Text: "hello", Duration: 1, Width: 64, ZIndex: 2},
		}},
		{ID: "beep", Type: config.TypeTone, Frequency: 440, Duration: 1.5},
	}
	require.NoError(t, cfg.Validate())
	return cfg
}

func TestBuildScene(t *testing.T) {
	cfg := testConfig(t)
	sc, err := buildScene(cfg)
	require.NoError(t, err)
	defer sc.Close()

	var ids []string
	for _, n := range sc.root.AllNodes() {
		ids = append(ids, n.ID())
	}
	assert.Equal(t, []string{"bg", "slides", "page", "qr", "beep"}, ids)

	all := sc.root.AllNodes()
	page := all[2].(*node.Image)
	assert.Equal(t, 0.0, page.Keyframes[0].Time, "keyframes are sorted by time")
	assert.Equal(t, 1.5, sc.root.Duration())
}

func TestBuildSceneUnknownType(t *testing.T) {
	cfg := config.Default()
	cfg.Layers = []config.Layer{{ID: "x", Type: "video"}}
	_, err := buildScene(cfg)
	assert.Error(t, err)
}

func TestSceneInitAndExport(t *testing.T) {
	cfg := testConfig(t)
	sc, err := buildScene(cfg)
	require.NoError(t, err)
	defer sc.Close()

	p := player.New(cfg.Player)
	defer p.Destroy()
	require.NoError(t, p.Init(context.Background(), player.InitOptions{
		Root:       sc.root,
		Background: color.RGBA{A: 255},
	}))
	require.NoError(t, sc.Close())

	n, err := exportFrames(context.Background(), p, cfg, 0.5, player.FormatPNG)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	for _, name := range []string{"frame_00000.png", "frame_00001.png", "frame_00002.png"} {
		f, err := os.Open(filepath.Join(cfg.Output, name))
		require.NoError(t, err, name)
		img, err := png.Decode(f)
		f.Close()
		require.NoError(t, err)
		assert.Equal(t, 32, img.Bounds().Dx())
	}

	_, err = exportFrames(context.Background(), p, cfg, 0.5, player.FormatBitmap)
	assert.Error(t, err)
}

func TestFrameTimes(t *testing.T) {
	assert.Equal(t, []float64{0, 0.5, 1}, frameTimes(1.5, 0.5))
	assert.Equal(t, []float64{0, 1}, frameTimes(1.2, 1))
	assert.Nil(t, frameTimes(1, 0))
}

func TestVideoQuality(t *testing.T) {
	assert.Equal(t, 75, videoQuality("h264_videotoolbox", 0))
	assert.Equal(t, 28, videoQuality("h264_nvenc", 0))
	assert.Equal(t, 23, videoQuality("libx264", 0))
	assert.Equal(t, 30, videoQuality("libx264", 30))
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, "DEBUG", parseLevel("debug").String())
	assert.Equal(t, "INFO", parseLevel("").String())
	assert.Equal(t, "ERROR", parseLevel("ERROR").String())
}

func TestSceneFocusTour(t *testing.T) {
	dir := t.TempDir()
	imgPath := filepath.Join(dir, "slide.png")
	img := image.NewRGBA(image.Rect(0, 0, 100, 100))
	for y := 0; y < 100; y++ {
		for x := 0; x < 100; x++ {
			c := color.RGBA{A: 255}
			if x >= 30 && x < 70 && y >= 30 && y < 70 {
				c = color.RGBA{255, 255, 255, 255}
			}
			img.SetRGBA(x, y, c)
		}
	}
	f, err := os.Create(imgPath)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, img))
	require.NoError(t, f.Close())

	cfg := config.Default()
	cfg.Width, cfg.Height = 100, 100
	cfg.Layers = []config.Layer{
		{ID: "slide", Type: config.TypeImage, Path: imgPath, Duration: 6, Focus: true},
	}
	require.NoError(t, cfg.Validate())

	sc, err := buildScene(cfg)
	require.NoError(t, err)
	defer sc.Close()

	p := player.New(cfg.Player)
	defer p.Destroy()
	require.NoError(t, p.Init(context.Background(), player.InitOptions{Root: sc.root}))

	slide := sc.root.AllNodes()[0].(*node.Image)
	require.Len(t, slide.Keyframes, 3, "full view, the square, full view")
	assert.Greater(t, slide.Keyframes[1].Zoom, 1.0)
}
