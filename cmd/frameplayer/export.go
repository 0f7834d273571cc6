package main

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ivlev/frameplayer/internal/audio"
	"github.com/ivlev/frameplayer/internal/config"
	"github.com/ivlev/frameplayer/internal/player"
	"github.com/ivlev/frameplayer/internal/video"
)

var frameExt = map[player.ImageFormat]string{
	player.FormatJPEG: ".jpg",
	player.FormatPNG:  ".png",
	player.FormatBMP:  ".bmp",
	player.FormatRaw:  ".rgba",
}

// frameTimes lists still timestamps every step seconds before duration.
func frameTimes(duration, step float64) []float64 {
	if step <= 0 || duration <= 0 {
		return nil
	}
	n := int(math.Ceil(duration / step))
	out := make([]float64, 0, n)
	for i := 0; i < n; i++ {
		if t := float64(i) * step; t < duration {
			out = append(out, t)
		}
	}
	return out
}

// exportFrames writes stills in parallel. Drawing is serialised by the
// player, encoding and disk writes are not.
func exportFrames(ctx context.Context, p *player.Player, cfg *config.Config, step float64, format player.ImageFormat) (int, error) {
	ext, ok := frameExt[format]
	if !ok {
		return 0, fmt.Errorf("формат %d нельзя сохранить в файл", format)
	}
	times := frameTimes(p.Duration(), step)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Workers)

	var done atomic.Int32
	for i, t := range times {
		g.Go(func() error {
			img, err := p.FrameImage(ctx, t, player.ImageOptions{Format: format, Quality: cfg.Quality})
			if err != nil {
				return err
			}
			path := filepath.Join(cfg.Output, fmt.Sprintf("frame_%05d%s", i, ext))
			if err := os.WriteFile(path, img.Data, 0644); err != nil {
				return err
			}
			fmt.Printf("\r[>] Кадры: %d/%d", done.Add(1), len(times))
			return nil
		})
	}
	err := g.Wait()
	fmt.Println()
	return len(times), err
}

// burnVideo renders the whole scene offline: frames go to ffmpeg, the mix
// is collected into a WAV and muxed at the end.
func burnVideo(ctx context.Context, p *player.Player, cfg *config.Config, out string) error {
	encoder := cfg.VideoEncoder
	if encoder == "" || encoder == "auto" {
		encoder = video.BestH264Encoder(ctx)
		if encoder != "libx264" {
			fmt.Printf("[*] Обнаружено аппаратное ускорение: %s\n", encoder)
		}
	}

	pc := p.Config()
	dur := p.Duration()
	if math.IsInf(dur, 0) || dur <= 0 {
		return fmt.Errorf("длительность сцены не ограничена")
	}
	frames := int(math.Ceil(dur * float64(pc.FPS)))
	samples := int(math.Round(float64(frames) / float64(pc.FPS) * float64(pc.SampleRate)))
	mix := audio.NewBuffer(pc.Channels, samples, pc.SampleRate)

	tmpDir, err := os.MkdirTemp("", "frameplayer-*")
	if err != nil {
		return err
	}
	defer os.RemoveAll(tmpDir)
	silent := filepath.Join(tmpDir, "video.mp4")

	enc, err := video.Start(ctx, silent, video.Options{
		Width:   cfg.Width,
		Height:  cfg.Height,
		FPS:     pc.FPS,
		Encoder: encoder,
		Quality: videoQuality(encoder, cfg.VideoQuality),
	})
	if err != nil {
		return err
	}

	start := time.Now()
	err = p.Burn(ctx, player.BurnOptions{Width: cfg.Width, Height: cfg.Height}, func(f player.BurnFrame) error {
		if err := enc.WriteFrame(f.Image); err != nil {
			return err
		}
		offset := int(math.Round(float64(f.Index) / float64(pc.FPS) * float64(pc.SampleRate)))
		for c := 0; c < f.Audio.Channels() && c < mix.Channels(); c++ {
			if err := mix.CopyToChannel(f.Audio.Channel(c), c, offset); err != nil {
				return err
			}
		}
		if f.Index%pc.FPS == 0 {
			fmt.Printf("\r[>] Рендер: %d/%d кадров", f.Index+1, frames)
		}
		return nil
	})
	closeErr := enc.Close()
	fmt.Println()
	if err != nil {
		return err
	}
	if closeErr != nil {
		return closeErr
	}
	fmt.Printf("[*] Кадров: %d за %v\n", enc.Frames(), time.Since(start).Round(time.Millisecond))

	wavPath := filepath.Join(tmpDir, "audio.wav")
	f, err := os.Create(wavPath)
	if err != nil {
		return err
	}
	if err := audio.WriteWAV(f, mix); err != nil {
		f.Close()
		return fmt.Errorf("write wav: %w", err)
	}
	if err := f.Close(); err != nil {
		return err
	}

	return video.Mux(ctx, silent, wavPath, out)
}

// videoQuality returns q, or the usual default for the encoder when q is 0.
func videoQuality(encoder string, q int) int {
	if q > 0 {
		return q
	}
	switch encoder {
	case "h264_videotoolbox":
		return 75 // Хорошее качество для VideoToolbox
	case "h264_nvenc":
		return 28 // Эквивалент CRF для NVENC
	default:
		return 23 // Стандартный CRF для x264
	}
}
