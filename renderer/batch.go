package renderer

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/pagelens/pagelens/models"
)

// RenderBatch fans the batch URLs over a bounded worker pool. Every URL's
// outcome is independent — one failure never poisons another — and the
// results slice preserves input order. Caller cancellation propagates to
// all running workers.
func (r *Renderer) RenderBatch(ctx context.Context, breq *models.BatchRequest) *models.BatchOutcome {
	breq.Defaults()

	started := time.Now()
	out := &models.BatchOutcome{
		Results: make([]models.BatchItem, len(breq.URLs)),
		Total:   len(breq.URLs),
	}

	sem := make(chan struct{}, breq.MaxParallel)
	var wg sync.WaitGroup

	for i, rawURL := range breq.URLs {
		wg.Add(1)
		go func(idx int, targetURL string) {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				out.Results[idx] = failedItem(targetURL, 0, models.NewRenderError(
					models.ErrKindTimeout, "batch canceled before this URL started", ctx.Err()))
				return
			}
			defer func() { <-sem }()

			out.Results[idx] = r.renderBatchItem(ctx, targetURL, breq.Options)
		}(i, rawURL)
	}

	wg.Wait()

	for _, item := range out.Results {
		if item.Status == "success" {
			out.SuccessCount++
		} else {
			out.FailureCount++
		}
	}
	out.DurationMs = time.Since(started).Milliseconds()

	slog.Info("batch finished",
		"total", out.Total,
		"successful", out.SuccessCount,
		"failed", out.FailureCount,
		"durationMs", out.DurationMs,
	)
	return out
}

// renderBatchItem runs one URL with the shared options, recording per-item
// wall-clock duration. A worker panic-free failure becomes that URL's error.
func (r *Renderer) renderBatchItem(ctx context.Context, targetURL string, shared *models.RenderRequest) models.BatchItem {
	itemStart := time.Now()

	// Pre-flight: a host that does not even resolve should not cost a
	// browser session.
	if r.prober != nil {
		if err := r.prober.Check(ctx, targetURL); err != nil {
			return failedItem(targetURL, time.Since(itemStart).Milliseconds(), err)
		}
	}

	req := cloneRequest(shared)
	req.URL = targetURL

	outcome, err := r.Render(ctx, req)
	duration := time.Since(itemStart).Milliseconds()
	if err != nil {
		return failedItem(targetURL, duration, err)
	}

	return models.BatchItem{
		URL:        targetURL,
		Status:     "success",
		DurationMs: duration,
		Outcome:    outcome,
	}
}

func failedItem(url string, durationMs int64, err error) models.BatchItem {
	var re *models.RenderError
	if !errors.As(err, &re) {
		re = models.NewRenderError(models.ErrKindInternal, err.Error(), err)
	}
	return models.BatchItem{
		URL:        url,
		Status:     "failure",
		DurationMs: durationMs,
		Error:      re.ToDetail(),
	}
}

// cloneRequest copies the shared per-item options so workers never share
// mutable request state.
func cloneRequest(shared *models.RenderRequest) *models.RenderRequest {
	if shared == nil {
		return &models.RenderRequest{}
	}
	dup := *shared
	dup.Cookies = append([]models.Cookie(nil), shared.Cookies...)
	dup.WaitForSelectors = append([]string(nil), shared.WaitForSelectors...)
	dup.ClickSelectors = append([]string(nil), shared.ClickSelectors...)
	dup.RemoveSelectors = append([]string(nil), shared.RemoveSelectors...)
	if shared.ExtraHeaders != nil {
		dup.ExtraHeaders = make(map[string]string, len(shared.ExtraHeaders))
		for k, v := range shared.ExtraHeaders {
			dup.ExtraHeaders[k] = v
		}
	}
	if shared.Viewport != nil {
		vp := *shared.Viewport
		dup.Viewport = &vp
	}
	if shared.ScrollToBottom != nil {
		b := *shared.ScrollToBottom
		dup.ScrollToBottom = &b
	}
	if shared.ReturnPartialOnTimeout != nil {
		b := *shared.ReturnPartialOnTimeout
		dup.ReturnPartialOnTimeout = &b
	}
	if shared.WantScreenshot != nil {
		s := *shared.WantScreenshot
		dup.WantScreenshot = &s
	}
	if shared.WantPDF != nil {
		p := *shared.WantPDF
		dup.WantPDF = &p
	}
	return &dup
}
