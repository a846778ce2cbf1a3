package advisory

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"strings"
	"time"

	"github.com/chromedp/chromedp"
	readability "github.com/go-shiori/go-readability"

	"github.com/NabidKabir/kura-final-project/config"
	core "github.com/NabidKabir/kura-final-project/internal/agent/core"
	"github.com/NabidKabir/kura-final-project/internal/store"
)

const maxSummaryChars = 500

// Page is the readable content extracted from an agency advisory page.
type Page struct {
	Title string
	Text  string
}

// PageFetcher retrieves a rendered advisory page.
type PageFetcher interface {
	Fetch(ctx context.Context, url string) (Page, error)
}

// ChromeFetcher renders pages in headless Chrome and extracts the article
// text. Agency sites lean on client-side rendering, so a plain GET is not
// enough.
type ChromeFetcher struct {
	Timeout  time.Duration
	MaxChars int
}

func (f ChromeFetcher) Fetch(ctx context.Context, rawURL string) (Page, error) {
	if strings.TrimSpace(rawURL) == "" {
		return Page{}, fmt.Errorf("invalid url")
	}
	if f.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.Timeout)
		defer cancel()
	}

	html, err := fetchHTML(ctx, rawURL)
	if err != nil {
		return Page{}, fmt.Errorf("failed to render %s: %w", rawURL, err)
	}

	article, err := readability.FromReader(strings.NewReader(html), mustParseURL(rawURL))
	if err != nil {
		return Page{}, fmt.Errorf("failed to extract content from %s: %w", rawURL, err)
	}
	text := strings.TrimSpace(article.TextContent)
	if f.MaxChars > 0 && len(text) > f.MaxChars {
		text = text[:f.MaxChars]
	}
	return Page{Title: strings.TrimSpace(article.Title), Text: text}, nil
}

func fetchHTML(ctx context.Context, url string) (string, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.UserAgent("KuraBot/1.0 (+https://github.com/NabidKabir/kura-final-project)"),
	)
	actx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()
	bctx, cancelBrowser := chromedp.NewContext(actx)
	defer cancelBrowser()

	var html string
	err := chromedp.Run(bctx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	return html, err
}

func mustParseURL(raw string) *url.URL {
	u, err := url.Parse(raw)
	if err != nil {
		return &url.URL{}
	}
	return u
}

type advisoryStore interface {
	UpsertAdvisory(ctx context.Context, rec store.AdvisoryRecord) error
	ListAdvisories(ctx context.Context, state string, wasteTypes []string) ([]store.AdvisoryRecord, error)
}

// Refresher pulls configured agency advisories, persists them, and attaches
// them to the regulation table so lookups carry fresh guidance.
type Refresher struct {
	cfg     config.AdvisoryConfig
	store   advisoryStore
	table   *core.RegulationTable
	fetcher PageFetcher
	logger  *log.Logger
}

// NewRefresher builds a Refresher backed by headless Chrome.
func NewRefresher(cfg config.AdvisoryConfig, st *store.Store, table *core.RegulationTable) *Refresher {
	return NewRefresherWith(cfg, st, table, ChromeFetcher{Timeout: cfg.Timeout, MaxChars: maxSummaryChars})
}

// NewRefresherWith builds a Refresher with an explicit page fetcher.
func NewRefresherWith(cfg config.AdvisoryConfig, st advisoryStore, table *core.RegulationTable, fetcher PageFetcher) *Refresher {
	return &Refresher{
		cfg:     cfg,
		store:   st,
		table:   table,
		fetcher: fetcher,
		logger:  log.New(log.Writer(), "[ADVISORY] ", log.LstdFlags),
	}
}

// Refresh fetches every configured source, honoring the fetch policy. Partial
// failures are logged and skipped; an error is returned only when no source
// could be updated.
func (r *Refresher) Refresh(ctx context.Context) error {
	if len(r.cfg.Sources) == 0 {
		r.logger.Printf("no advisory sources configured, skipping refresh")
		return nil
	}

	updated := 0
	for _, src := range r.cfg.Sources {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !r.cfg.Policy.PermitsURL(src.URL) {
			r.logger.Printf("skipping %s: host not permitted by fetch policy", src.URL)
			continue
		}
		rec, err := r.fetchOne(ctx, src)
		if err != nil {
			r.logger.Printf("advisory fetch failed for %s: %v", src.URL, err)
			continue
		}
		if r.store != nil {
			if err := r.store.UpsertAdvisory(ctx, rec); err != nil {
				r.logger.Printf("failed to persist advisory for %s %s: %v", rec.State, rec.WasteType, err)
				continue
			}
		}
		r.table.UpsertAdvisory(rec.State, core.ParseWasteType(rec.WasteType), rec.Title, rec.URL)
		updated++
	}

	r.logger.Printf("advisory refresh complete: %d/%d sources updated", updated, len(r.cfg.Sources))
	if updated == 0 {
		return fmt.Errorf("advisory refresh failed for all %d sources", len(r.cfg.Sources))
	}
	return nil
}

func (r *Refresher) fetchOne(ctx context.Context, src config.AdvisorySourceConfig) (store.AdvisoryRecord, error) {
	page, err := r.fetcher.Fetch(ctx, src.URL)
	if err != nil {
		return store.AdvisoryRecord{}, err
	}
	title := page.Title
	if title == "" {
		title = mustParseURL(src.URL).Host
	}
	summary := page.Text
	if len(summary) > maxSummaryChars {
		summary = summary[:maxSummaryChars]
	}
	return store.AdvisoryRecord{
		State:     src.State,
		WasteType: src.WasteType,
		Title:     title,
		URL:       src.URL,
		Summary:   summary,
		FetchedAt: time.Now().UTC(),
	}, nil
}

// Prime loads previously stored advisories into the regulation table so
// restarts do not lose notes between refresh runs.
func (r *Refresher) Prime(ctx context.Context) error {
	if r.store == nil {
		return nil
	}
	seen := make(map[string]bool)
	loaded := 0
	for _, src := range r.cfg.Sources {
		if seen[src.State] {
			continue
		}
		seen[src.State] = true
		recs, err := r.store.ListAdvisories(ctx, src.State, nil)
		if err != nil {
			return fmt.Errorf("failed to load stored advisories for %s: %w", src.State, err)
		}
		for _, rec := range recs {
			r.table.UpsertAdvisory(rec.State, core.ParseWasteType(rec.WasteType), rec.Title, rec.URL)
			loaded++
		}
	}
	if loaded > 0 {
		r.logger.Printf("primed %d stored advisories", loaded)
	}
	return nil
}
