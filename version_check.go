package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/mod/semver"

	"github.com/oszuidwest/zwfm-voicenote/internal/types"
	"github.com/oszuidwest/zwfm-voicenote/internal/util"
)

const (
	githubRepo           = "oszuidwest/zwfm-voicenote"
	githubAPI            = "https://api.github.com"
	versionCheckInterval = 24 * time.Hour
	versionCheckDelay    = 30 * time.Second // Delay before first check to avoid blocking startup
	versionCheckTimeout  = 30 * time.Second // HTTP request timeout
	versionMaxAttempts   = 3                // Attempts per check cycle
	versionRetryDelay    = 1 * time.Minute
)

// errVersionRetry marks a failed check that is worth repeating.
var errVersionRetry = errors.New("version check failed")

// VersionChecker polls GitHub for new releases. It is safe for concurrent use.
type VersionChecker struct {
	client  *http.Client
	baseURL string

	mu     sync.RWMutex
	latest string
	etag   string // For conditional requests (304 Not Modified)

	cancel context.CancelFunc
	done   chan struct{}
}

// NewVersionChecker returns a checker for the GitHub releases of this project.
// Call Start to begin polling.
func NewVersionChecker() *VersionChecker {
	return &VersionChecker{
		client:  &http.Client{Timeout: versionCheckTimeout},
		baseURL: githubAPI,
	}
}

// Start polls in the background until ctx ends or Stop is called.
func (vc *VersionChecker) Start(ctx context.Context) {
	ctx, vc.cancel = context.WithCancel(ctx)
	vc.done = make(chan struct{})
	go vc.run(ctx)
}

// Stop ends polling and waits for the poller to exit.
func (vc *VersionChecker) Stop() {
	if vc.cancel == nil {
		return
	}
	vc.cancel()
	<-vc.done
}

func (vc *VersionChecker) run(ctx context.Context) {
	defer close(vc.done)
	defer func() {
		if r := recover(); r != nil {
			slog.Error("panic in version checker", "panic", r)
		}
	}()

	delay := time.NewTimer(versionCheckDelay)
	defer delay.Stop()
	select {
	case <-delay.C:
		vc.checkWithRetry(ctx)
	case <-ctx.Done():
		return
	}

	ticker := time.NewTicker(versionCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			vc.checkWithRetry(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (vc *VersionChecker) checkWithRetry(ctx context.Context) {
	for attempt := range versionMaxAttempts {
		err := vc.check(ctx)
		if !errors.Is(err, errVersionRetry) {
			return
		}
		slog.Debug("version check failed", "attempt", attempt+1, "error", err)
		if attempt == versionMaxAttempts-1 {
			return
		}
		select {
		case <-time.After(versionRetryDelay):
		case <-ctx.Done():
			return
		}
	}
}

// githubRelease is the subset of the release API response we read.
type githubRelease struct {
	TagName    string `json:"tag_name"`
	Draft      bool   `json:"draft"`
	Prerelease bool   `json:"prerelease"`
}

// check fetches the latest release once. Errors wrapping errVersionRetry
// are transient.
func (vc *VersionChecker) check(ctx context.Context) error {
	url := vc.baseURL + "/repos/" + githubRepo + "/releases/latest"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/vnd.github.v3+json")
	req.Header.Set("User-Agent", "zwfm-voicenote/"+Version)

	vc.mu.RLock()
	if vc.etag != "" {
		req.Header.Set("If-None-Match", vc.etag)
	}
	vc.mu.RUnlock()

	resp, err := vc.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", errVersionRetry, err)
	}
	defer func() {
		_ = resp.Body.Close() //nolint:errcheck // Best-effort cleanup; error doesn't affect caller
	}()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusNotModified, resp.StatusCode == http.StatusNotFound:
		// Unchanged, or no releases exist yet.
		return nil
	case resp.StatusCode == http.StatusForbidden, resp.StatusCode == http.StatusTooManyRequests, resp.StatusCode >= 500:
		return fmt.Errorf("%w: status %d", errVersionRetry, resp.StatusCode)
	default:
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var release githubRelease
	if err := json.NewDecoder(resp.Body).Decode(&release); err != nil {
		return fmt.Errorf("%w: %w", errVersionRetry, err)
	}
	if release.Draft || release.Prerelease {
		return nil
	}
	if release.TagName == "" {
		return fmt.Errorf("%w: empty tag", errVersionRetry)
	}

	vc.mu.Lock()
	vc.latest = normalizeVersion(release.TagName)
	if etag := resp.Header.Get("ETag"); etag != "" {
		vc.etag = etag
	}
	vc.mu.Unlock()

	slog.Debug("latest release", "version", release.TagName)
	return nil
}

// Info returns the current version info for the frontend.
func (vc *VersionChecker) Info() types.VersionInfo {
	vc.mu.RLock()
	defer vc.mu.RUnlock()

	current := normalizeVersion(Version)
	info := types.VersionInfo{
		Current:   current,
		Latest:    vc.latest,
		Commit:    Commit,
		BuildTime: util.FormatHumanTime(BuildTime),
	}
	if vc.latest != "" && current != "dev" && current != "unknown" {
		info.UpdateAvail = isNewerVersion(vc.latest, current)
	}
	return info
}

// normalizeVersion strips whitespace and a leading "v".
func normalizeVersion(v string) string {
	return strings.TrimPrefix(strings.TrimSpace(v), "v")
}

// isNewerVersion reports whether latest is newer than current.
func isNewerVersion(latest, current string) bool {
	return semver.Compare("v"+normalizeVersion(latest), "v"+normalizeVersion(current)) > 0
}
