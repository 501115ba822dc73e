// Package refs turns the search model's grounding links into readable
// "<url|title>" references. Lookups are best effort: a failure becomes a
// placeholder title and never fails the run.
package refs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html/charset"

	"github.com/amishk599/a11yjobs/internal/model"
	"github.com/amishk599/a11yjobs/internal/ratelimit"
	"github.com/amishk599/a11yjobs/internal/retry"
)

// Placeholder titles.
const (
	TitleUnreachable = "（リダイレクト失敗）"
	TitleFetchFailed = "（取得失敗）"
	TitleMissing     = "（タイトルなし）"
)

// errUnreachable marks a lookup that never got an HTTP response.
var errUnreachable = errors.New("unreachable")

// statusError is a non-200 response together with the URL that served it.
type statusError struct {
	finalURL string
	err      *model.HTTPError
}

func (e *statusError) Error() string { return fmt.Sprintf("%s: %v", e.finalURL, e.err) }

func (e *statusError) Unwrap() error { return e.err }

const maxPageBytes = 2 << 20

// Resolver follows each reference URL through its redirects and reads the
// final page's <title>.
type Resolver struct {
	client  *http.Client
	limiter *ratelimit.HostLimiter
	policy  retry.Policy
	timeout time.Duration
	logger  *slog.Logger
}

// NewResolver creates a resolver. timeout bounds each attempt; policy bounds
// the attempts per reference.
func NewResolver(client *http.Client, limiter *ratelimit.HostLimiter, policy retry.Policy, timeout time.Duration, logger *slog.Logger) *Resolver {
	return &Resolver{
		client:  client,
		limiter: limiter,
		policy:  policy,
		timeout: timeout,
		logger:  logger,
	}
}

// page is what one successful fetch yields.
type page struct {
	finalURL string
	title    string
}

// Resolve returns refs with URL replaced by the post-redirect URL and Title
// filled in. Lookups run one after another, in order.
func (r *Resolver) Resolve(ctx context.Context, refs []model.Reference) []model.Reference {
	out := make([]model.Reference, 0, len(refs))
	for _, ref := range refs {
		out = append(out, r.resolveOne(ctx, ref))
	}
	return out
}

func (r *Resolver) resolveOne(ctx context.Context, ref model.Reference) model.Reference {
	p, err := retry.Do(ctx, r.policy, r.logger, func(ctx context.Context) (page, error) {
		return r.fetch(ctx, ref.URL)
	})
	if err != nil {
		r.logger.Warn("reference lookup failed", "url", ref.URL, "error", err)
		var statusErr *statusError
		switch {
		case errors.As(err, &statusErr):
			return model.Reference{URL: statusErr.finalURL, Title: fmt.Sprintf("（取得できませんでした: %d）", statusErr.err.StatusCode)}
		case errors.Is(err, errUnreachable):
			return model.Reference{URL: ref.URL, Title: TitleUnreachable}
		default:
			return model.Reference{URL: ref.URL, Title: TitleFetchFailed}
		}
	}
	if p.title == "" {
		p.title = TitleMissing
	}
	return model.Reference{URL: p.finalURL, Title: p.title}
}

// fetch makes one attempt. An attempt that runs out its own timeout while
// ctx is still live is reported as unreachable so the caller retries it.
func (r *Resolver) fetch(ctx context.Context, rawURL string) (page, error) {
	if err := r.limiter.WaitURL(ctx, rawURL); err != nil {
		return page{}, err
	}
	if r.timeout <= 0 {
		return r.fetchPage(ctx, rawURL)
	}

	attemptCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	p, err := r.fetchPage(attemptCtx, rawURL)
	if err != nil && ctx.Err() == nil && errors.Is(attemptCtx.Err(), context.DeadlineExceeded) {
		return page{}, fmt.Errorf("fetch %s: %w: timed out after %v", rawURL, errUnreachable, r.timeout)
	}
	return p, err
}

func (r *Resolver) fetchPage(ctx context.Context, rawURL string) (page, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return page{}, fmt.Errorf("build request for %s: %w", rawURL, err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; a11yjobs)")

	resp, err := r.client.Do(req)
	if err != nil {
		return page{}, fmt.Errorf("fetch %s: %w: %w", rawURL, errUnreachable, err)
	}
	defer resp.Body.Close()

	finalURL := resp.Request.URL.String()
	if resp.StatusCode != http.StatusOK {
		return page{}, &statusError{finalURL: finalURL, err: &model.HTTPError{StatusCode: resp.StatusCode}}
	}

	body, err := charset.NewReader(io.LimitReader(resp.Body, maxPageBytes), resp.Header.Get("Content-Type"))
	if err != nil {
		return page{}, fmt.Errorf("decode %s: %w", finalURL, err)
	}
	doc, err := goquery.NewDocumentFromReader(body)
	if err != nil {
		return page{}, fmt.Errorf("parse %s: %w", finalURL, err)
	}

	title := strings.Join(strings.Fields(doc.Find("title").First().Text()), " ")
	return page{finalURL: finalURL, title: title}, nil
}

var slackEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")

// Format renders the references block appended to the summary message.
func Format(refs []model.Reference) string {
	if len(refs) == 0 {
		return "URLが取得できませんでした。ご自身でも調べてみて下さい。"
	}
	lines := []string{"*取得した参照サイト一覧:*"}
	for i, ref := range refs {
		lines = append(lines, fmt.Sprintf("%d. <%s|%s>", i+1, ref.URL, slackEscaper.Replace(ref.Title)))
	}
	return strings.Join(lines, "\n")
}
