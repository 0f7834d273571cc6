package video

import (
	"bytes"
	"image"
	"image/color"
	"strings"
	"testing"
)

func TestBuildEncodeArgs(t *testing.T) {
	args := buildEncodeArgs("out.mp4", Options{Width: 640, Height: 360, FPS: 24, Encoder: "libx264", Quality: 23})
	joined := strings.Join(args, " ")

	for _, want := range []string{
		"-f rawvideo",
		"-pixel_format rgba",
		"-video_size 640x360",
		"-framerate 24",
		"-i -",
		"-c:v libx264",
		"-crf 23 -preset medium",
	} {
		if !strings.Contains(joined, want) {
			t.Errorf("args %q missing %q", joined, want)
		}
	}
	if args[len(args)-1] != "out.mp4" {
		t.Errorf("last arg = %q, want output path", args[len(args)-1])
	}
}

func TestQualityArgs(t *testing.T) {
	tests := []struct {
		encoder string
		want    string
	}{
		{"h264_videotoolbox", "-b:v 7500k"},
		{"h264_nvenc", "-cq 75"},
		{"libx264", "-crf 75 -preset medium"},
	}
	for _, tt := range tests {
		got := strings.Join(qualityArgs(tt.encoder, 75), " ")
		if got != tt.want {
			t.Errorf("qualityArgs(%s) = %q, want %q", tt.encoder, got, tt.want)
		}
	}
}

func TestBuildMuxArgs(t *testing.T) {
	got := strings.Join(buildMuxArgs("v.mp4", "a.wav", "out.mp4"), " ")
	want := "-y -i v.mp4 -i a.wav -map 0:v -map 1:a -c:v copy -c:a aac -b:a 192k -shortest out.mp4"
	if got != want {
		t.Errorf("mux args = %q, want %q", got, want)
	}
}

func TestPickEncoder(t *testing.T) {
	if got := pickEncoder(" V....D h264_nvenc  NVIDIA NVENC"); got != "h264_nvenc" {
		t.Errorf("pickEncoder = %q", got)
	}
	if got := pickEncoder(" V....D libx264"); got != "libx264" {
		t.Errorf("pickEncoder = %q", got)
	}
}

func TestWriteRawRGBASubImage(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	img.Set(2, 2, color.RGBA{1, 2, 3, 4})
	sub := img.SubImage(image.Rect(2, 2, 4, 4))

	var buf bytes.Buffer
	if err := writeRawRGBA(&buf, sub); err != nil {
		t.Fatal(err)
	}
	if buf.Len() != 2*2*4 {
		t.Fatalf("wrote %d bytes, want 16", buf.Len())
	}
	if !bytes.Equal(buf.Bytes()[:4], []byte{1, 2, 3, 4}) {
		t.Errorf("first pixel = %v", buf.Bytes()[:4])
	}
}

func TestStartRejectsBadOptions(t *testing.T) {
	if _, err := Start(t.Context(), "x.mp4", Options{Width: 0, Height: 10, FPS: 24}); err == nil {
		t.Error("expected error for zero width")
	}
}
