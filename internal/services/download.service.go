package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"dgisync/config"
	"dgisync/internal/types"

	logger "github.com/Bparsons0904/goLogger"
	"golang.org/x/time/rate"
)

// HTTPDoer is the transport used for every upstream request.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

type DownloadService struct {
	client    HTTPDoer
	resolver  *ResolverService
	retry     RetryPolicy
	limiter   *rate.Limiter
	naming    types.ArtifactNaming
	dataDir   string
	userAgent string
	log       logger.Logger
}

func NewDownloadService(config config.Config, resolver *ResolverService) *DownloadService {
	httpClient := &http.Client{
		Timeout: config.RequestTimeout(),
		Transport: &http.Transport{
			MaxIdleConns:        10,
			MaxIdleConnsPerHost: DefaultDownloadConcurrency,
			IdleConnTimeout:     90 * time.Second,
		},
	}

	return NewDownloadServiceWithClient(config, resolver, httpClient, NewRetryPolicy(config))
}

func NewDownloadServiceWithClient(
	config config.Config,
	resolver *ResolverService,
	client HTTPDoer,
	retry RetryPolicy,
) *DownloadService {
	limit := rate.Inf
	if config.RateLimitRPS > 0 {
		limit = rate.Limit(config.RateLimitRPS)
	}

	return &DownloadService{
		client:    client,
		resolver:  resolver,
		retry:     retry,
		limiter:   rate.NewLimiter(limit, 1),
		naming:    types.ArtifactNaming{Prefix: config.ArtifactPrefix, Extension: config.ArtifactExt},
		dataDir:   config.DataDir,
		userAgent: config.UserAgent,
		log:       logger.New("downloadService"),
	}
}

// ArtifactPath is the canonical local path for key, whichever candidate served it.
func (ds *DownloadService) ArtifactPath(key types.PeriodKey) string {
	return filepath.Join(ds.dataDir, ds.naming.Name(key))
}

// Probe reports whether any candidate address for key currently exists.
// It never returns an error: unreachable candidates count as absent.
func (ds *DownloadService) Probe(ctx context.Context, key types.PeriodKey) bool {
	log := ds.log.Function("Probe")

	for _, url := range ds.resolver.CandidatesFor(key) {
		status, err := ds.request(ctx, http.MethodHead, url)
		if err != nil {
			log.Debug("Probe request failed", "url", url, "error", err)
			continue
		}

		if status == http.StatusMethodNotAllowed || status == http.StatusNotImplemented {
			status, err = ds.request(ctx, http.MethodGet, url)
			if err != nil {
				log.Debug("Probe fallback request failed", "url", url, "error", err)
				continue
			}
		}

		if isSuccess(status) {
			log.Info("Expected period is published", "key", key.String(), "url", url)
			return true
		}
	}

	log.Info("Expected period not published", "key", key.String())
	return false
}

// request issues a bodiless check and discards whatever body arrives unread.
func (ds *DownloadService) request(ctx context.Context, method, url string) (int, error) {
	if err := ds.limiter.Wait(ctx); err != nil {
		return 0, err
	}

	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return 0, err
	}
	ds.setHeaders(req)

	resp, err := ds.client.Do(req)
	if err != nil {
		return 0, err
	}
	if err := resp.Body.Close(); err != nil {
		ds.log.Debug("failed to close response body", "error", err)
	}

	return resp.StatusCode, nil
}

// Fetch downloads the document for key. Candidates are tried in order; a
// missing address moves on at once while transient failures are retried on
// the same address before moving on.
func (ds *DownloadService) Fetch(ctx context.Context, key types.PeriodKey) types.DownloadOutcome {
	log := ds.log.Function("Fetch")
	target := ds.ArtifactPath(key)

	if _, err := os.Stat(target); err == nil {
		log.Debug("Artifact already present", "key", key.String(), "path", target)
		return types.OutcomeSkipped
	}

	if err := os.MkdirAll(ds.dataDir, 0o755); err != nil {
		log.Er("failed to create data directory", err, "directory", ds.dataDir)
		return types.OutcomeFailed
	}

	sawTransient := false
	for _, url := range ds.resolver.CandidatesFor(key) {
		err := ds.retry.Do(ctx, func(attempt int) error {
			err := ds.fetchOnce(ctx, url, target)
			if err != nil && IsTransient(err) {
				log.Warn("Download attempt failed",
					"key", key.String(),
					"attempt", attempt,
					"maxAttempts", ds.retry.MaxAttempts,
					"url", url,
					"error", err)
			}
			return err
		})

		switch {
		case err == nil:
			log.Info("Downloaded artifact", "key", key.String(), "url", url, "path", target)
			return types.OutcomeDownloaded
		case errors.Is(err, ErrAddressNotFound):
			log.Debug("Candidate not found", "key", key.String(), "url", url)
		default:
			sawTransient = true
			log.Warn("Candidate exhausted retry budget", "key", key.String(), "url", url, "error", err)
		}
	}

	if sawTransient {
		log.Warn("Download failed for every candidate", "key", key.String())
		return types.OutcomeFailed
	}

	log.Info("Document not found at any candidate", "key", key.String())
	return types.OutcomeNotFound
}

// fetchOnce classifies a single attempt as success, ErrAddressNotFound or
// ErrTransientFetch. The body goes to a temp file renamed into place.
func (ds *DownloadService) fetchOnce(ctx context.Context, url, target string) error {
	if err := ds.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrTransientFetch, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTransientFetch, err)
	}
	ds.setHeaders(req)

	resp, err := ds.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTransientFetch, err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			ds.log.Debug("failed to close response body", "error", closeErr)
		}
	}()

	switch {
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		return fmt.Errorf("%w: status %d", ErrAddressNotFound, resp.StatusCode)
	case !isSuccess(resp.StatusCode):
		return fmt.Errorf("%w: status %d", ErrTransientFetch, resp.StatusCode)
	}

	if err := writeAtomically(filepath.Dir(target), target, func(w io.Writer) error {
		_, err := io.Copy(w, resp.Body)
		return err
	}); err != nil {
		return fmt.Errorf("%w: %v", ErrTransientFetch, err)
	}

	return nil
}

func (ds *DownloadService) setHeaders(req *http.Request) {
	if ds.userAgent != "" {
		req.Header.Set("User-Agent", ds.userAgent)
	}
	req.Header.Set("Accept", WorkbookAccept)
	req.Header.Set("Accept-Language", AcceptLanguage)
	req.Header.Set("Cache-Control", "no-cache")
}

func isSuccess(status int) bool {
	return status >= 200 && status < 300
}

// writeAtomically writes through a temp file in dir and renames it over
// target, so readers only ever see complete files.
func writeAtomically(dir, target string, write func(w io.Writer) error) error {
	tmp, err := os.CreateTemp(dir, tempFilePattern)
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()

	if err := write(tmp); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, target); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	return nil
}
