// internal/app/store/datasets/fetcher.go
package datasetstore

import (
	"context"
	"fmt"
	"time"

	"github.com/dkpmalut/lautdata/internal/app/stats"
	"github.com/dkpmalut/lautdata/internal/app/system/metrics"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// PageSize is the number of rows requested per page.
const PageSize = 1000

// PageSource returns one page of raw records from a dataset. offset and
// limit address rows in the source's stable order.
type PageSource interface {
	FetchPage(ctx context.Context, dataset string, columns []string, offset, limit int) ([]stats.Record, error)
}

// Request names one dataset and the columns to read from it.
type Request struct {
	Dataset string
	Columns []string
}

// Fetcher reads complete datasets page by page.
type Fetcher struct {
	src      PageSource
	pageSize int
	log      *zap.Logger
	metrics  *metrics.Registry
}

// NewFetcher returns a Fetcher over src. A pageSize <= 0 uses PageSize.
// m may be nil.
func NewFetcher(src PageSource, pageSize int, log *zap.Logger, m *metrics.Registry) *Fetcher {
	if pageSize <= 0 {
		pageSize = PageSize
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Fetcher{src: src, pageSize: pageSize, log: log, metrics: m}
}

// FetchAll returns every row of a dataset, pages concatenated in arrival
// order. It stops at the first page shorter than the page size (including
// an empty page). A failed page aborts the whole fetch; no partial result
// is returned.
func (f *Fetcher) FetchAll(ctx context.Context, dataset string, columns []string) ([]stats.Record, error) {
	start := time.Now()
	var out []stats.Record

	for offset := 0; ; offset += f.pageSize {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("fetch %s: %w", dataset, err)
		}
		page, err := f.src.FetchPage(ctx, dataset, columns, offset, f.pageSize)
		if err != nil {
			if f.metrics != nil {
				f.metrics.FetchErrors.WithLabelValues(dataset).Inc()
			}
			return nil, fmt.Errorf("fetch %s at offset %d: %w", dataset, offset, err)
		}
		out = append(out, page...)
		if len(page) < f.pageSize {
			break
		}
	}

	elapsed := time.Since(start)
	if f.metrics != nil {
		f.metrics.RowsFetched.WithLabelValues(dataset).Add(float64(len(out)))
		f.metrics.FetchSeconds.WithLabelValues(dataset).Observe(elapsed.Seconds())
	}
	f.log.Debug("dataset fetched",
		zap.String("dataset", dataset),
		zap.Int("rows", len(out)),
		zap.Duration("elapsed", elapsed))
	return out, nil
}

// FetchBatch reads several datasets concurrently. Any failure cancels the
// remaining reads and discards the whole batch.
func (f *Fetcher) FetchBatch(ctx context.Context, reqs []Request) (map[string][]stats.Record, error) {
	return fetchConcurrently(ctx, reqs, f.FetchAll)
}

func fetchConcurrently(ctx context.Context, reqs []Request, fetch func(context.Context, string, []string) ([]stats.Record, error)) (map[string][]stats.Record, error) {
	results := make([][]stats.Record, len(reqs))
	g, gctx := errgroup.WithContext(ctx)
	for i, req := range reqs {
		g.Go(func() error {
			rows, err := fetch(gctx, req.Dataset, req.Columns)
			if err != nil {
				return err
			}
			results[i] = rows
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make(map[string][]stats.Record, len(reqs))
	for i, req := range reqs {
		out[req.Dataset] = results[i]
	}
	return out, nil
}
