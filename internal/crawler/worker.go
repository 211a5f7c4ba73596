package crawler

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// Pool runs crawl jobs off a queue so site registration never blocks on
// traversal. Workers share nothing with the request path beyond the
// database.
type Pool struct {
	crawler *Crawler
	jobs    chan string
	workers int
	wg      sync.WaitGroup
	once    sync.Once
	log     *zap.Logger
}

// NewPool creates a crawl worker pool
func NewPool(crawler *Crawler, workers, queueSize int, log *zap.Logger) *Pool {
	if workers <= 0 {
		workers = 1
	}
	if queueSize <= 0 {
		queueSize = 32
	}
	return &Pool{
		crawler: crawler,
		jobs:    make(chan string, queueSize),
		workers: workers,
		log:     log,
	}
}

// Start launches the workers. They run until Stop is called or the
// context is cancelled.
func (p *Pool) Start(ctx context.Context) {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			for siteID := range p.jobs {
				if ctx.Err() != nil {
					return
				}
				if err := p.crawler.Crawl(ctx, siteID); err != nil {
					p.log.Error("crawl job failed",
						zap.String("site_id", siteID), zap.Error(err))
				}
			}
		}()
	}
}

// Enqueue submits a crawl job for the site. A full queue is an error so
// callers can surface backpressure instead of blocking a request.
func (p *Pool) Enqueue(siteID string) error {
	select {
	case p.jobs <- siteID:
		return nil
	default:
		return fmt.Errorf("crawl queue is full")
	}
}

// Stop drains the queue and waits for in-flight crawls to finish
func (p *Pool) Stop() {
	p.once.Do(func() {
		close(p.jobs)
	})
	p.wg.Wait()
}
