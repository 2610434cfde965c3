package resolver

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"os/exec"
	"strings"

	"golang.org/x/sync/singleflight"

	"github.com/voxlate/voxlate/internal/errs"
	"github.com/voxlate/voxlate/pkg/log"
)

// YtDlp resolves a media page URL to a direct, streamable audio URL by
// shelling out to yt-dlp. Concurrent resolutions of the same URL are
// deduplicated, since jobs for the same source tend to arrive in bursts.
type YtDlp struct {
	cmd   string
	group singleflight.Group
}

func NewYtDlp() *YtDlp {
	return &YtDlp{cmd: "yt-dlp"}
}

// Resolve returns the best-audio stream URL for sourceURL. Failures are
// extraction errors and job-fatal for the caller.
func (y *YtDlp) Resolve(ctx context.Context, sourceURL string) (string, error) {
	if err := validateSourceURL(sourceURL); err != nil {
		return "", err
	}

	v, err, _ := y.group.Do(sourceURL, func() (any, error) {
		return y.resolve(ctx, sourceURL)
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (y *YtDlp) resolve(ctx context.Context, sourceURL string) (string, error) {
	cmdPath, err := exec.LookPath(y.cmd)
	if err != nil {
		return "", errs.Wrap(err, errs.TypeExtraction, "yt-dlp not found")
	}

	cmd := exec.CommandContext(ctx, cmdPath, y.resolveArgs(sourceURL)...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		log.Error("yt-dlp failed for %s: %v: %s", sourceURL, err, strings.TrimSpace(stderr.String()))
		return "", errs.Wrap(err, errs.TypeExtraction,
			fmt.Sprintf("extract audio URL from %s", sourceURL))
	}

	audioURL := strings.TrimSpace(stdout.String())
	if audioURL == "" {
		return "", errs.Newf(errs.TypeExtraction, "no audio stream found for %s", sourceURL)
	}
	// yt-dlp may print one URL per requested format; the first is the audio pick.
	if idx := strings.IndexByte(audioURL, '\n'); idx >= 0 {
		audioURL = audioURL[:idx]
	}
	return audioURL, nil
}

func (*YtDlp) resolveArgs(sourceURL string) []string {
	return []string{
		"--quiet",
		"--no-warnings",
		"-f", "bestaudio/best",
		"-g", sourceURL,
	}
}

func validateSourceURL(sourceURL string) error {
	parsed, err := url.Parse(sourceURL)
	if err != nil {
		return errs.Wrap(err, errs.TypeExtraction, "invalid source URL")
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return errs.Newf(errs.TypeExtraction, "unsupported source URL scheme %q", parsed.Scheme)
	}
	if parsed.Host == "" {
		return errs.New(errs.TypeExtraction, "source URL has no host")
	}
	return nil
}
