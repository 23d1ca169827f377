// Command catalog-ingest imports supplier product feeds into the catalog.
//
// Suppliers deliver large gzipped CSV feeds (slug,title,price per line) of
// uneven quality. A product goes live only when its slug appears in at least
// two independent feeds. The feeds are too large to hold in memory, so the
// cross-feed check runs in two streaming passes: pass 1 builds one bloom
// filter per feed, pass 2 re-streams each feed and keeps rows whose slug
// hits another feed's filter.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log/slog"
	"math/bits"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	pgzip "github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/solient/storefront/internal/domain/product"
	"github.com/solient/storefront/internal/storage/postgres"
)

const (
	bloomCapacity = 10_000_000
	bloomFPR      = 0.001
	numFeeds      = 3
	progressEvery = 1_000_000
	minSlugLen    = 3
	maxSlugLen    = 64
)

// feedRow is one parsed product line from a supplier feed.
type feedRow struct {
	slug       string
	title      string
	priceCents int64
}

// feedResult holds candidate rows found in a single feed during pass 2.
type feedResult struct {
	masks map[string]uint
	rows  map[string]feedRow
}

func main() {
	var (
		feedDir     string
		databaseURL string
	)

	flag.StringVar(&feedDir, "feed-dir", "data", "directory containing feedN.gz supplier files")
	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, feedDir, databaseURL); err != nil {
		slog.Error("catalog ingest failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("catalog ingest completed successfully")
}

func run(ctx context.Context, feedDir, databaseURL string) error {
	feeds := make([]string, numFeeds)
	for i := range numFeeds {
		feeds[i] = filepath.Join(feedDir, fmt.Sprintf("feed%d.gz", i+1))
	}
	for _, f := range feeds {
		if _, err := os.Stat(f); err != nil {
			return errors.Wrapf(err, "check feed %s", f)
		}
	}

	slog.Info("pass 1: building bloom filters", slog.Int("feeds", numFeeds))
	filters, err := buildBloomFilters(ctx, feeds)
	if err != nil {
		return errors.Wrap(err, "build bloom filters")
	}

	slog.Info("pass 2: finding confirmed products")
	confirmed, err := findConfirmedRows(ctx, feeds, filters)
	if err != nil {
		return errors.Wrap(err, "find confirmed products")
	}

	slog.Info("confirmed products found", slog.Int("count", len(confirmed)))
	if len(confirmed) == 0 {
		slog.Info("nothing to import")
		return nil
	}

	slog.Info("connecting to database")
	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	products := postgres.NewProductRepository(pool)
	for _, row := range confirmed {
		err := products.Upsert(ctx, product.Product{
			Slug:       row.slug,
			Title:      row.title,
			PriceCents: row.priceCents,
		})
		if err != nil {
			return errors.Wrapf(err, "import product %q", row.slug)
		}
	}
	return nil
}

// buildBloomFilters creates one bloom filter per feed, concurrently.
func buildBloomFilters(ctx context.Context, feeds []string) ([]*bloom.BloomFilter, error) {
	filters := make([]*bloom.BloomFilter, len(feeds))

	g, ctx := errgroup.WithContext(ctx)
	for i, f := range feeds {
		g.Go(buildFilterForFeed(ctx, i, f, filters))
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return filters, nil
}

func buildFilterForFeed(ctx context.Context, idx int, path string, filters []*bloom.BloomFilter) func() error {
	return func() error {
		filter := bloom.NewWithEstimates(bloomCapacity, bloomFPR)
		var count uint64

		if err := streamFeed(ctx, path, func(row feedRow) {
			filter.AddString(row.slug)
			count++
			if count%progressEvery == 0 {
				slog.Info("pass 1 progress",
					slog.Int("feed", idx+1),
					slog.Uint64("rows", count),
				)
			}
		}); err != nil {
			return errors.Wrapf(err, "build filter for feed %d", idx+1)
		}

		slog.Info("pass 1 complete",
			slog.Int("feed", idx+1),
			slog.Uint64("total_rows", count),
		)
		filters[idx] = filter
		return nil
	}
}

// findConfirmedRows re-streams each feed and checks slugs against the OTHER
// feeds' bloom filters. A product is confirmed when it appears in 2+ feeds.
func findConfirmedRows(ctx context.Context, feeds []string, filters []*bloom.BloomFilter) ([]feedRow, error) {
	results := make([]feedResult, len(feeds))

	g, ctx := errgroup.WithContext(ctx)
	for i, f := range feeds {
		g.Go(findCandidatesInFeed(ctx, i, f, filters, results))
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// Merge per-feed bitmasks and keep slugs seen in 2+ feeds. The earliest
	// feed's row wins for title and price.
	merged := make(map[string]uint)
	rows := make(map[string]feedRow)
	for _, r := range results {
		for slug, mask := range r.masks {
			merged[slug] |= mask
			if _, ok := rows[slug]; !ok {
				rows[slug] = r.rows[slug]
			}
		}
	}

	var confirmed []feedRow
	for slug, mask := range merged {
		if bits.OnesCount(mask) >= 2 {
			confirmed = append(confirmed, rows[slug])
		}
	}
	return confirmed, nil
}

func findCandidatesInFeed(
	ctx context.Context,
	idx int,
	path string,
	filters []*bloom.BloomFilter,
	results []feedResult,
) func() error {
	return func() error {
		res := feedResult{
			masks: make(map[string]uint),
			rows:  make(map[string]feedRow),
		}
		feedBit := uint(1) << uint(idx)
		var count uint64

		if err := streamFeed(ctx, path, func(row feedRow) {
			count++
			if count%progressEvery == 0 {
				slog.Info("pass 2 progress",
					slog.Int("feed", idx+1),
					slog.Uint64("rows", count),
				)
			}

			for j, f := range filters {
				if j == idx {
					continue
				}
				if f.TestString(row.slug) {
					res.masks[row.slug] |= feedBit
					if _, ok := res.rows[row.slug]; !ok {
						res.rows[row.slug] = row
					}
					break
				}
			}
		}); err != nil {
			return errors.Wrapf(err, "scan feed %d for candidates", idx+1)
		}

		results[idx] = res
		return nil
	}
}

// streamFeed reads a gzipped CSV feed line by line, invoking fn for every
// well-formed row. Malformed lines are skipped.
func streamFeed(ctx context.Context, path string, fn func(feedRow)) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "open %s", path)
	}
	defer f.Close()

	gz, err := pgzip.NewReader(f)
	if err != nil {
		return errors.Wrapf(err, "gzip reader %s", path)
	}
	defer gz.Close()

	scanner := bufio.NewScanner(gz)
	scanner.Buffer(make([]byte, 0, 1<<16), 1<<20)
	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		row, ok := parseFeedLine(scanner.Text())
		if ok {
			fn(row)
		}
	}
	return errors.Wrapf(scanner.Err(), "scan %s", path)
}

// parseFeedLine parses "slug,title,price". Rows with bad slugs or prices
// are dropped.
func parseFeedLine(line string) (feedRow, bool) {
	parts := strings.SplitN(line, ",", 3)
	if len(parts) != 3 {
		return feedRow{}, false
	}

	slug := strings.TrimSpace(parts[0])
	if len(slug) < minSlugLen || len(slug) > maxSlugLen {
		return feedRow{}, false
	}

	price, err := decimal.NewFromString(strings.TrimSpace(parts[2]))
	if err != nil || price.IsNegative() {
		return feedRow{}, false
	}

	return feedRow{
		slug:       slug,
		title:      strings.TrimSpace(parts[1]),
		priceCents: price.Shift(2).IntPart(),
	}, true
}
