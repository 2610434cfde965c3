package media

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/voxlate/voxlate/pkg/log"
)

// Ffmpeg post-processes an assembled track in place: mono downmix plus
// resampling to the configured rate. Used when the consumer of the dubbed
// audio needs a fixed sample rate.
type Ffmpeg struct {
	ffmpegCmd  string
	sampleRate int
}

func NewFfmpeg(sampleRate int) *Ffmpeg {
	return &Ffmpeg{
		ffmpegCmd:  "ffmpeg",
		sampleRate: sampleRate,
	}
}

// Process converts the file at path, replacing it atomically on success.
func (ff *Ffmpeg) Process(ctx context.Context, path string) error {
	cmdPath, err := exec.LookPath(ff.ffmpegCmd)
	if err != nil {
		return fmt.Errorf("ffmpeg not found: %w", err)
	}

	converted := convertedName(path)
	cmd := exec.CommandContext(ctx, cmdPath, ff.convertArgs(path, converted)...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		log.Error("ffmpeg conversion failed: %v: %s", err, strings.TrimSpace(stderr.String()))
		_ = os.Remove(converted)
		return fmt.Errorf("convert %s: %w", filepath.Base(path), err)
	}
	if err := os.Rename(converted, path); err != nil {
		_ = os.Remove(converted)
		return fmt.Errorf("replace %s with converted track: %w", filepath.Base(path), err)
	}
	return nil
}

func (ff *Ffmpeg) convertArgs(input, output string) []string {
	return []string{
		"-i", input,
		"-ar", strconv.Itoa(ff.sampleRate),
		"-ac", "1",
		"-y",
		output,
	}
}

func convertedName(path string) string {
	dir := filepath.Dir(path)
	base := filepath.Base(path)
	return filepath.Join(dir, "converted_"+base)
}
