package crawler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itcaat/carlog/internal/fetcher"
	"github.com/itcaat/carlog/internal/models"
)

const testSearchURL = "https://www.example.com/ache?pag={page}"

// searchPage renders a page with one listing per id, present in both representations
func searchPage(total int, ids ...int) string {
	var items, cards []string
	for i, id := range ids {
		items = append(items, fmt.Sprintf(`{
			"position": %d,
			"item": {
				"url": "https://www.example.com/comprar/sao-paulo-sp/honda/civic/d%d",
				"name": "Honda Civic",
				"brand": {"name": "Honda"},
				"offers": {"price": %d, "seller": {"name": "Loja"}},
				"image": "https://img.example/%d.jpg"
			}
		}`, i+1, id, 50000+id, id))
		cards = append(cards, fmt.Sprintf(`<li class="anuncio" id="ac%d"><h3 class="preco_anuncio">R$ %d</h3></li>`, id, 50000+id))
	}

	return fmt.Sprintf(`<html><head><script type="application/ld+json">
		{"description": "%d carros encontrados", "itemListElement": [%s]}
	</script></head><body><ul>%s</ul></body></html>`, total, strings.Join(items, ","), strings.Join(cards, ""))
}

type fakeFetcher struct {
	mu     sync.Mutex
	pages  map[string]string
	errs   map[string]error
	visits []string
}

func (f *fakeFetcher) Fetch(_ context.Context, url string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.visits = append(f.visits, url)
	if err, ok := f.errs[url]; ok {
		return nil, err
	}
	body, ok := f.pages[url]
	if !ok {
		return nil, fmt.Errorf("%s: %w", url, fetcher.ErrPageNotFound)
	}
	return []byte(body), nil
}

type countingPacer struct {
	waits  int
	cancel context.CancelFunc
	// cancelAt cancels the crawl on that wait, zero never cancels
	cancelAt int
}

func (p *countingPacer) Wait(ctx context.Context) error {
	p.waits++
	if p.cancelAt > 0 && p.waits == p.cancelAt {
		p.cancel()
	}
	return ctx.Err()
}

type memorySink struct {
	writes   map[models.PartitionKey][]models.MergedListing
	order    []int
	failPage int
}

func newMemorySink() *memorySink {
	return &memorySink{writes: make(map[models.PartitionKey][]models.MergedListing)}
}

func (s *memorySink) Write(_ context.Context, listings []models.MergedListing, key models.PartitionKey) error {
	if key.Page == s.failPage {
		return errors.New("disk full")
	}
	s.writes[key] = listings
	s.order = append(s.order, key.Page)
	return nil
}

func (s *memorySink) Close() error { return nil }

type recordingProgress struct {
	total   int
	updates []int
	final   string
}

func (p *recordingProgress) Start(total int)          { p.total = total }
func (p *recordingProgress) Update(page int, _ string) { p.updates = append(p.updates, page) }
func (p *recordingProgress) Stop(final string)         { p.final = final }

func page(n int) string { return fetcher.PageURL(testSearchURL, n) }

var fixedNow = time.Date(2024, 3, 15, 21, 45, 0, 0, time.UTC)

func newTestCrawler(t *testing.T, opts Options) *Crawler {
	t.Helper()
	if opts.SearchURL == "" {
		opts.SearchURL = testSearchURL
	}
	if opts.ListingsPerPage == 0 {
		opts.ListingsPerPage = 2
	}
	if opts.Pacer == nil {
		opts.Pacer = &countingPacer{}
	}
	opts.Logger = log.New(io.Discard)
	opts.Now = func() time.Time { return fixedNow }

	c, err := New(opts)
	require.NoError(t, err)
	return c
}

func TestRunCrawlsAllPages(t *testing.T) {
	// 5 listings at 2 per page: pages 1 to 3
	f := &fakeFetcher{pages: map[string]string{
		page(1): searchPage(5, 1, 2),
		page(2): searchPage(5, 3, 4),
		page(3): searchPage(5, 5),
	}}
	sink := newMemorySink()
	pacer := &countingPacer{}
	prog := &recordingProgress{}

	stats, err := newTestCrawler(t, Options{Fetcher: f, Pacer: pacer, Sink: sink, Progress: prog}).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 5, stats.TotalListings)
	assert.Equal(t, 3, stats.LastPage)
	assert.Equal(t, 3, stats.PagesWritten)
	assert.Equal(t, 0, stats.PagesSkipped)
	assert.Equal(t, 5, stats.Listings)

	// Page 1 is fetched once for discovery and once for its listings
	assert.Equal(t, []string{page(1), page(1), page(2), page(3)}, f.visits)
	assert.Equal(t, 3, pacer.waits)
	assert.Equal(t, []int{1, 2, 3}, sink.order)

	key := models.NewPartitionKey(fixedNow, 2)
	require.Len(t, sink.writes[key], 2)
	assert.Equal(t, int64(3), sink.writes[key][0].ID)
	assert.Equal(t, 2, sink.writes[key][0].Page)
	assert.Equal(t, "2024-03-15", sink.writes[key][0].ReferenceDate.Format(models.DateLayout))

	assert.Equal(t, 3, prog.total)
	assert.Equal(t, []int{1, 2, 3}, prog.updates)
	assert.Contains(t, prog.final, "3 pages")
}

func TestRunSkipsFailingPages(t *testing.T) {
	f := &fakeFetcher{
		pages: map[string]string{
			page(1): searchPage(7, 1, 2),
			page(3): `<html><body><li class="anuncio" id="ac5"></li></body></html>`,
			page(4): searchPage(7, 7),
		},
		errs: map[string]error{page(2): errors.New("connection reset")},
	}
	sink := newMemorySink()

	stats, err := newTestCrawler(t, Options{Fetcher: f, Sink: sink}).Run(context.Background())
	require.NoError(t, err)

	// Page 2 fails to fetch, page 3 has no structured block
	assert.Equal(t, 4, stats.LastPage)
	assert.Equal(t, 2, stats.PagesWritten)
	assert.Equal(t, 2, stats.PagesSkipped)
	assert.Equal(t, []int{1, 4}, sink.order)
}

func TestRunSkipsPageWhenSinkFails(t *testing.T) {
	f := &fakeFetcher{pages: map[string]string{
		page(1): searchPage(3, 1, 2),
		page(2): searchPage(3, 3),
	}}
	sink := newMemorySink()
	sink.failPage = 1

	stats, err := newTestCrawler(t, Options{Fetcher: f, Sink: sink}).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, stats.PagesWritten)
	assert.Equal(t, 1, stats.PagesSkipped)
	assert.Equal(t, []int{2}, sink.order)
}

func TestRunHonoursPageWindow(t *testing.T) {
	f := &fakeFetcher{pages: map[string]string{
		page(1): searchPage(20, 1, 2),
		page(3): searchPage(20, 5, 6),
		page(4): searchPage(20, 7, 8),
	}}
	sink := newMemorySink()

	stats, err := newTestCrawler(t, Options{Fetcher: f, Sink: sink, StartPage: 3, MaxPages: 2}).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 11, stats.LastPage)
	assert.Equal(t, []int{3, 4}, sink.order)
}

func TestRunStartPastLastPage(t *testing.T) {
	f := &fakeFetcher{pages: map[string]string{page(1): searchPage(1, 1)}}
	sink := newMemorySink()

	stats, err := newTestCrawler(t, Options{Fetcher: f, Sink: sink, StartPage: 9}).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, stats.LastPage)
	assert.Empty(t, sink.order)
}

func TestRunFailsWhenCountUnavailable(t *testing.T) {
	tests := []struct {
		name  string
		pages map[string]string
	}{
		{name: "first page missing", pages: map[string]string{}},
		{name: "no structured block", pages: map[string]string{page(1): "<html></html>"}},
		{name: "description without count", pages: map[string]string{
			page(1): `<script type="application/ld+json">{"description": "carros", "itemListElement": []}</script>`,
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sink := newMemorySink()
			_, err := newTestCrawler(t, Options{Fetcher: &fakeFetcher{pages: tt.pages}, Sink: sink}).Run(context.Background())
			assert.ErrorContains(t, err, "discover listing count")
			assert.Empty(t, sink.order)
		})
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	f := &fakeFetcher{pages: map[string]string{
		page(1): searchPage(6, 1, 2),
		page(2): searchPage(6, 3, 4),
		page(3): searchPage(6, 5, 6),
	}}
	sink := newMemorySink()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	pacer := &countingPacer{cancel: cancel, cancelAt: 2}

	stats, err := newTestCrawler(t, Options{Fetcher: f, Pacer: pacer, Sink: sink}).Run(ctx)

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, stats.PagesWritten)
	assert.Equal(t, []int{1}, sink.order)
}

func TestNewValidatesOptions(t *testing.T) {
	f, sink, pacer := &fakeFetcher{}, newMemorySink(), &countingPacer{}

	tests := []struct {
		name string
		opts Options
	}{
		{name: "no placeholder", opts: Options{SearchURL: "https://www.example.com/ache", ListingsPerPage: 20, Fetcher: f, Pacer: pacer, Sink: sink}},
		{name: "no sink", opts: Options{SearchURL: testSearchURL, ListingsPerPage: 20, Fetcher: f, Pacer: pacer}},
		{name: "no fetcher", opts: Options{SearchURL: testSearchURL, ListingsPerPage: 20, Pacer: pacer, Sink: sink}},
		{name: "zero per page", opts: Options{SearchURL: testSearchURL, Fetcher: f, Pacer: pacer, Sink: sink}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.opts)
			assert.Error(t, err)
		})
	}
}
