package transcode

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"time"

	"go.uber.org/zap"
)

// Stream is the subset of ffprobe stream info the media store needs.
type Stream struct {
	Index     int    `json:"index"`
	CodecType string `json:"codec_type"`
	CodecName string `json:"codec_name"`
	Width     int    `json:"width,omitempty"`
	Height    int    `json:"height,omitempty"`
}

// Transcoder produces gateway-compatible renditions. On failure the
// output path does not exist when the call returns.
type Transcoder interface {
	TranscodeVideo(ctx context.Context, inputPath, outputPath string) error
	TranscodeAudio(ctx context.Context, inputPath, outputPath string) error
	ProbeStreams(ctx context.Context, path string) ([]Stream, error)
}

// AudioOnly reports whether streams carry audio and nothing else.
func AudioOnly(streams []Stream) bool {
	if len(streams) == 0 {
		return false
	}
	for _, s := range streams {
		if s.CodecType != "audio" {
			return false
		}
	}
	return true
}

type Config struct {
	FFmpegPath  string
	FFprobePath string
	Timeout     time.Duration
}

// FFmpeg shells out to the ffmpeg and ffprobe binaries.
type FFmpeg struct {
	cfg    Config
	logger *zap.Logger
}

func NewFFmpeg(cfg Config, logger *zap.Logger) *FFmpeg {
	if cfg.FFmpegPath == "" {
		cfg.FFmpegPath = "ffmpeg"
	}
	if cfg.FFprobePath == "" {
		cfg.FFprobePath = "ffprobe"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Minute
	}
	return &FFmpeg{cfg: cfg, logger: logger}
}

// VideoArgs targets H.264 baseline capped at 1280x720 with mono AAC in MP4.
func VideoArgs(inputPath, outputPath string) []string {
	return []string{
		"-y", "-i", inputPath,
		"-vf", "scale=w=1280:h=720:force_original_aspect_ratio=decrease,scale=trunc(iw/2)*2:trunc(ih/2)*2",
		"-c:v", "libx264", "-profile:v", "baseline", "-level", "3.0", "-preset", "fast",
		"-b:v", "1M", "-maxrate", "1M", "-bufsize", "2M", "-pix_fmt", "yuv420p",
		"-c:a", "aac", "-b:a", "128k", "-ar", "44100", "-ac", "1",
		"-movflags", "+faststart",
		"-f", "mp4", outputPath,
	}
}

// AudioArgs targets mono Opus in Ogg.
func AudioArgs(inputPath, outputPath string) []string {
	return []string{
		"-y", "-i", inputPath,
		"-vn", "-c:a", "libopus", "-b:a", "32k", "-ac", "1", "-ar", "48000",
		"-f", "ogg", outputPath,
	}
}

func (f *FFmpeg) TranscodeVideo(ctx context.Context, inputPath, outputPath string) error {
	return f.convert(ctx, "video", outputPath, VideoArgs(inputPath, outputPath))
}

func (f *FFmpeg) TranscodeAudio(ctx context.Context, inputPath, outputPath string) error {
	return f.convert(ctx, "audio", outputPath, AudioArgs(inputPath, outputPath))
}

func (f *FFmpeg) convert(ctx context.Context, kind, outputPath string, args []string) error {
	ctx, cancel := context.WithTimeout(ctx, f.cfg.Timeout)
	defer cancel()

	start := time.Now()
	out, err := exec.CommandContext(ctx, f.cfg.FFmpegPath, args...).CombinedOutput()
	if err != nil {
		if rmErr := os.Remove(outputPath); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
			f.logger.Warn("failed to remove partial output", zap.String("path", outputPath), zap.Error(rmErr))
		}
		return fmt.Errorf("ffmpeg %s conversion: %w: %s", kind, err, tail(out, 512))
	}
	f.logger.Debug("conversion finished",
		zap.String("kind", kind),
		zap.String("output", outputPath),
		zap.Duration("took", time.Since(start)),
	)
	return nil
}

func (f *FFmpeg) ProbeStreams(ctx context.Context, path string) ([]Stream, error) {
	ctx, cancel := context.WithTimeout(ctx, f.cfg.Timeout)
	defer cancel()

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, f.cfg.FFprobePath, "-v", "error", "-show_streams", "-print_format", "json", path)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("ffprobe: %w: %s", err, tail(stderr.Bytes(), 512))
	}

	var probe struct {
		Streams []Stream `json:"streams"`
	}
	if err := json.Unmarshal(stdout.Bytes(), &probe); err != nil {
		return nil, fmt.Errorf("ffprobe output: %w", err)
	}
	return probe.Streams, nil
}

func tail(b []byte, n int) string {
	if len(b) > n {
		b = b[len(b)-n:]
	}
	return string(bytes.TrimSpace(b))
}
