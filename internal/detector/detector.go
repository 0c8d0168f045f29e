// Package detector decides whether one remote source changed since its last
// recorded fingerprint.
//
// A check runs up to three phases: a HEAD probe for metadata, a GET that hashes
// the body, and a comparison of whichever signals both sides carry. Each
// network phase retries with exponential backoff before giving up.
package detector

import (
	"context"
	"fmt"
	"time"

	"github.com/MrSnakeDoc/srcwatch/internal/config"
	"github.com/MrSnakeDoc/srcwatch/internal/logger"
	"github.com/MrSnakeDoc/srcwatch/internal/models"
	"github.com/MrSnakeDoc/srcwatch/internal/service"
	"github.com/MrSnakeDoc/srcwatch/internal/utils"
)

const etagDisplayLen = 30

// Sleeper waits for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

func ContextSleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

type Prober interface {
	Head(ctx context.Context, url string) service.Outcome
	Get(ctx context.Context, url string) service.Outcome
}

type Detector struct {
	Prober     Prober
	MaxRetries int
	BaseDelay  time.Duration
	Sleep      Sleeper
	Now        func() time.Time
}

func New(client service.HTTPClient, cfg config.Config) *Detector {
	return &Detector{
		Prober: &service.Prober{
			Client:    client,
			UserAgent: cfg.UserAgent,
			Timeout:   cfg.RequestTimeout,
			MaxBody:   cfg.MaxBodyBytes,
		},
		MaxRetries: cfg.MaxRetries,
		BaseDelay:  cfg.RetryBaseDelay,
		Sleep:      ContextSleep,
		Now:        time.Now,
	}
}

// Backoff is the wait before retry n (0-based): BaseDelay * 2^(n+1).
func (d *Detector) Backoff(n int) time.Duration {
	return d.BaseDelay << uint(n+1)
}

func (d *Detector) now() time.Time {
	if d.Now == nil {
		return time.Now()
	}
	return d.Now()
}

// attempt runs call until it stops being retryable or the retry budget is spent.
func (d *Detector) attempt(ctx context.Context, src models.Source, phase string, call func() service.Outcome) service.Outcome {
	sleep := d.Sleep
	if sleep == nil {
		sleep = ContextSleep
	}

	var out service.Outcome
	for n := 0; ; n++ {
		out = call()
		if out.Kind != service.Retryable || n >= d.MaxRetries {
			return out
		}
		wait := d.Backoff(n)
		logger.Debug("[%s] %s attempt %d/%d failed (%s), retrying in %s",
			src.ID, phase, n+1, d.MaxRetries+1, out.Message(), wait)
		if err := sleep(ctx, wait); err != nil {
			return service.Outcome{Kind: service.Terminal, Failure: models.StatusRequestError, Err: err}
		}
	}
}

// Check probes src and compares against prior. A nil fingerprint means the
// prior one must be kept as is. Nothing is persisted here.
func (d *Detector) Check(ctx context.Context, src models.Source, prior models.Fingerprint) (models.CheckResult, *models.Fingerprint) {
	now := d.now()
	res := models.NewCheckResult(src, now)

	head := d.attempt(ctx, src, "HEAD", func() service.Outcome { return d.Prober.Head(ctx, src.URL) })
	res.SetHTTPStatus(head.StatusCode)

	var meta *service.Metadata
	switch head.Kind {
	case service.Success:
		meta = &head.Header
	case service.Unsupported:
		logger.Debug("[%s] HEAD not supported (405), falling back to GET", src.ID)
	default:
		fail(&res, head)
		return res, nil
	}

	get := d.attempt(ctx, src, "GET", func() service.Outcome { return d.Prober.Get(ctx, src.URL) })
	res.SetHTTPStatus(get.StatusCode)

	var hash string
	switch {
	case get.Kind == service.Success && get.Body != nil:
		hash = get.Body.SHA256
	case meta != nil:
		logger.Warn("[%s] %s - GET failed (%s), using metadata only", src.ID, src.Label(), get.Message())
		res.Partial = true
	default:
		fail(&res, get)
		return res, nil
	}

	details := compare(prior, meta, hash)
	switch {
	case prior.IsZero():
		res.Status = models.StatusFirstCheck
	case len(details) > 0:
		res.Status = models.StatusUpdated
		res.Changed = true
		res.ChangeDetails = details
	default:
		res.Status = models.StatusUnchanged
	}

	next := models.Fingerprint{
		LastChecked: now.Format(models.DateLayout),
		ContentHash: hash,
	}
	if res.HTTPStatus != nil {
		next.HTTPStatus = *res.HTTPStatus
	}
	if res.Partial {
		next.ContentHash = prior.ContentHash
	}
	if meta != nil {
		next.LastModified = meta.LastModified
		next.ETag = meta.ETag
		next.ContentLength = meta.ContentLength
		next.ContentType = meta.ContentType
	}
	return res, &next
}

func fail(res *models.CheckResult, out service.Outcome) {
	status := out.Failure
	if status == "" {
		status = models.StatusRequestError
	}
	res.Fail(status, out.Message())
}

// compare lists one descriptor per signal present on both sides that differs.
func compare(prior models.Fingerprint, meta *service.Metadata, hash string) []string {
	if prior.IsZero() {
		return nil
	}
	var out []string
	if meta != nil {
		if prior.LastModified != "" && meta.LastModified != "" && prior.LastModified != meta.LastModified {
			out = append(out, fmt.Sprintf("Last-Modified changed: %s -> %s", prior.LastModified, meta.LastModified))
		}
		if prior.ETag != "" && meta.ETag != "" && prior.ETag != meta.ETag {
			out = append(out, fmt.Sprintf("ETag changed: %s -> %s", cutETag(prior.ETag), cutETag(meta.ETag)))
		}
		if prior.ContentLength != "" && meta.ContentLength != "" && prior.ContentLength != meta.ContentLength {
			out = append(out, fmt.Sprintf("Content-Length changed: %s -> %s", prior.ContentLength, meta.ContentLength))
		}
	}
	if prior.ContentHash != "" && hash != "" && prior.ContentHash != hash {
		out = append(out, fmt.Sprintf("content hash changed: %s -> %s", utils.ShortHash(prior.ContentHash), utils.ShortHash(hash)))
	}
	return out
}

func cutETag(s string) string {
	return models.TruncateRunes(s, etagDisplayLen) + "..."
}
