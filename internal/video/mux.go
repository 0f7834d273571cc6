package video

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// Mux copies the video stream of videoPath and encodes audioPath as AAC
// into out. The shorter stream decides the length.
func Mux(ctx context.Context, videoPath, audioPath, out string) error {
	cmd := exec.CommandContext(ctx, "ffmpeg", buildMuxArgs(videoPath, audioPath, out)...)
	if res, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("ffmpeg mux error: %w, output: %s", err, tail(string(res), 512))
	}
	return nil
}

func buildMuxArgs(videoPath, audioPath, out string) []string {
	return []string{
		"-y",
		"-i", videoPath,
		"-i", audioPath,
		"-map", "0:v",
		"-map", "1:a",
		"-c:v", "copy",
		"-c:a", "aac",
		"-b:a", "192k",
		"-shortest",
		out,
	}
}

// BestH264Encoder picks a hardware encoder when ffmpeg offers one.
// Приоритеты: VideoToolbox (macOS), NVENC, затем libx264.
func BestH264Encoder(ctx context.Context) string {
	out, err := exec.CommandContext(ctx, "ffmpeg", "-hide_banner", "-encoders").CombinedOutput()
	if err != nil {
		return "libx264"
	}
	return pickEncoder(string(out))
}

func pickEncoder(listing string) string {
	for _, name := range []string{"h264_videotoolbox", "h264_nvenc"} {
		if strings.Contains(listing, name) {
			return name
		}
	}
	return "libx264"
}
