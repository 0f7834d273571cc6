package video

import (
	"context"
	"fmt"
	"image"
	"image/draw"
	"io"
	"os/exec"
	"strings"
)

// Options describe the stream written by an Encoder.
type Options struct {
	Width   int
	Height  int
	FPS     int
	Encoder string
	Quality int
}

// FFmpegEncoder pipes raw RGBA frames into an ffmpeg process.
type FFmpegEncoder struct {
	opts  Options
	cmd   *exec.Cmd
	stdin io.WriteCloser
	out   strings.Builder
	count int
}

// Start launches ffmpeg writing an H.264 stream to path.
func Start(ctx context.Context, path string, opts Options) (*FFmpegEncoder, error) {
	if opts.Width <= 0 || opts.Height <= 0 || opts.FPS <= 0 {
		return nil, fmt.Errorf("invalid video options %dx%d@%d", opts.Width, opts.Height, opts.FPS)
	}
	if opts.Encoder == "" {
		opts.Encoder = "libx264"
	}

	e := &FFmpegEncoder{opts: opts}
	e.cmd = exec.CommandContext(ctx, "ffmpeg", buildEncodeArgs(path, opts)...)
	e.cmd.Stderr = &e.out

	stdin, err := e.cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("stdin pipe error: %w", err)
	}
	e.stdin = stdin

	if err := e.cmd.Start(); err != nil {
		return nil, fmt.Errorf("ffmpeg start error: %w", err)
	}
	return e, nil
}

// WriteFrame appends one frame. It must match the configured size.
func (e *FFmpegEncoder) WriteFrame(img image.Image) error {
	b := img.Bounds()
	if b.Dx() != e.opts.Width || b.Dy() != e.opts.Height {
		return fmt.Errorf("frame %d is %dx%d, want %dx%d", e.count, b.Dx(), b.Dy(), e.opts.Width, e.opts.Height)
	}
	if err := writeRawRGBA(e.stdin, img); err != nil {
		return fmt.Errorf("write raw error: %w", err)
	}
	e.count++
	return nil
}

// Frames returns how many frames were written.
func (e *FFmpegEncoder) Frames() int { return e.count }

// Close finishes the stream and waits for ffmpeg to exit.
func (e *FFmpegEncoder) Close() error {
	e.stdin.Close()
	if err := e.cmd.Wait(); err != nil {
		return fmt.Errorf("ffmpeg wait error: %w, output: %s", err, tail(e.out.String(), 512))
	}
	return nil
}

func buildEncodeArgs(path string, opts Options) []string {
	args := []string{
		"-y",
		"-f", "rawvideo",
		"-pixel_format", "rgba",
		"-video_size", fmt.Sprintf("%dx%d", opts.Width, opts.Height),
		"-framerate", fmt.Sprintf("%d", opts.FPS),
		"-i", "-",
		"-an",
		"-pix_fmt", "yuv420p",
		"-c:v", opts.Encoder,
	}
	args = append(args, qualityArgs(opts.Encoder, opts.Quality)...)
	return append(args, path)
}

// qualityArgs maps a 0-100 style quality to the encoder's own knob.
func qualityArgs(encoder string, quality int) []string {
	switch encoder {
	case "h264_videotoolbox":
		// VideoToolbox не везде поддерживает -q:v, задаём битрейт.
		return []string{"-b:v", fmt.Sprintf("%dk", quality*100)}
	case "h264_nvenc":
		return []string{"-cq", fmt.Sprintf("%d", quality)}
	default: // libx264
		return []string{"-crf", fmt.Sprintf("%d", quality), "-preset", "medium"}
	}
}

func writeRawRGBA(w io.Writer, img image.Image) error {
	bounds := img.Bounds()
	rgba, ok := img.(*image.RGBA)
	if !ok || rgba.Stride != bounds.Dx()*4 || rgba.Rect.Min.X != 0 || rgba.Rect.Min.Y != 0 {
		rgba = image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
		draw.Draw(rgba, rgba.Rect, img, bounds.Min, draw.Src)
	}
	_, err := w.Write(rgba.Pix)
	return err
}

func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
