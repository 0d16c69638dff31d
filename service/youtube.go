package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog"
)

// ErrBinaryNotFound means the yt-dlp executable could not be located or
// spawned at all, as opposed to a download that started and failed.
var ErrBinaryNotFound = errors.New("yt-dlp binary not found, install yt-dlp and ensure it is on PATH")

// DownloadError classifies a failed or empty yt-dlp run. StatusCode carries
// the upstream HTTP status when the diagnostics contain an "HTTP Error NNN"
// token, 0 otherwise.
type DownloadError struct {
	ExitCode   int
	Stderr     string
	StatusCode int
	Empty      bool
}

func (e *DownloadError) Error() string {
	if e.Empty {
		return "yt-dlp returned no audio data"
	}
	msg := fmt.Sprintf("yt-dlp failed (exit %d)", e.ExitCode)
	if snippet := stderrTail(e.Stderr, 5); snippet != "" {
		msg += ": " + snippet
	}
	return msg
}

var httpStatusPattern = regexp.MustCompile(`(?i)HTTP\s+Error\s+(\d{3})`)

func extractHTTPStatus(stderr string) int {
	match := httpStatusPattern.FindStringSubmatch(stderr)
	if match == nil {
		return 0
	}
	code, _ := strconv.Atoi(match[1])
	return code
}

func stderrTail(stderr string, n int) string {
	lines := strings.Split(strings.TrimSpace(stderr), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.TrimSpace(strings.Join(lines, " | "))
}

func WatchURL(youtubeID string) string {
	return "https://www.youtube.com/watch?v=" + youtubeID
}

var youtubeIDPattern = regexp.MustCompile(`(?:youtube\.com/watch\?v=|youtu\.be/|youtube\.com/embed/)([^&\n?#]+)`)

// ExtractYouTubeID pulls the video id out of watch, short and embed URL
// forms. Returns "" when the URL matches none of them.
func ExtractYouTubeID(rawURL string) string {
	match := youtubeIDPattern.FindStringSubmatch(rawURL)
	if match == nil {
		return ""
	}
	return match[1]
}

// Downloader obtains the best-available audio-only stream for a video by
// shelling out to yt-dlp, writing to a pipe instead of a temp file.
type Downloader struct {
	binary string
}

func NewDownloader(binary string) *Downloader {
	if binary == "" {
		binary = "yt-dlp"
	}
	return &Downloader{binary: binary}
}

// DownloadAudio returns the raw audio bytes plus the full stderr text, which
// is kept for logging even on success.
func (d *Downloader) DownloadAudio(ctx context.Context, youtubeID string) ([]byte, string, error) {
	cmd := exec.CommandContext(ctx, d.binary, "-f", "bestaudio", "-o", "-", "--no-playlist", WatchURL(youtubeID))

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	zerolog.Ctx(ctx).Debug().Str("youtube_id", youtubeID).Str("binary", d.binary).Msg("downloading audio")

	if err := cmd.Run(); err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return nil, stderr.String(), fmt.Errorf("%w: %s", ErrBinaryNotFound, d.binary)
		}

		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return nil, stderr.String(), &DownloadError{
				ExitCode:   exitErr.ExitCode(),
				Stderr:     stderr.String(),
				StatusCode: extractHTTPStatus(stderr.String()),
			}
		}
		return nil, stderr.String(), err
	}

	if stdout.Len() == 0 {
		return nil, stderr.String(), &DownloadError{Stderr: stderr.String(), Empty: true}
	}

	return stdout.Bytes(), stderr.String(), nil
}

type oembedResponse struct {
	Title string `json:"title"`
}

// FetchTitle resolves the display title through the oEmbed endpoint. Upstream
// hiccups are retried briefly; a definitive not-found is not.
func FetchTitle(ctx context.Context, youtubeID string) (string, error) {
	oembedURL := "https://www.youtube.com/oembed?url=" + url.QueryEscape(WatchURL(youtubeID)) + "&format=json"
	client := &http.Client{Timeout: 10 * time.Second}

	operation := func() (string, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, oembedURL, nil)
		if err != nil {
			return "", backoff.Permanent(err)
		}
		resp, err := client.Do(req)
		if err != nil {
			return "", err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			err = fmt.Errorf("failed to fetch video metadata (status %d)", resp.StatusCode)
			if resp.StatusCode >= 500 {
				return "", err
			}
			return "", backoff.Permanent(err)
		}

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return "", err
		}

		var parsed oembedResponse
		if err := json.Unmarshal(body, &parsed); err != nil {
			return "", backoff.Permanent(err)
		}
		if parsed.Title == "" {
			return "", backoff.Permanent(errors.New("video metadata missing title"))
		}
		return parsed.Title, nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.MaxInterval = 5 * time.Second
	return backoff.Retry(ctx, operation, backoff.WithBackOff(bo), backoff.WithMaxTries(3))
}
