package workflow

import (
	"context"
	"sync"
	"time"

	"github.com/parishops/registry_backend/config"
	"github.com/parishops/registry_backend/models"
)

// JobPage is one poll result: the filtered page plus the unpaginated total.
type JobPage struct {
	Items []*models.Job `json:"items"`
	Total int64         `json:"total"`
}

// JobFetchFunc fetches one page; the default goes through models.ListJobs.
type JobFetchFunc func(ctx context.Context, filter models.JobFilter) (*JobPage, error)

// JobPoller re-fetches a job listing on an interval and hands each fresh
// page to OnPage. Every tick starts a new generation; a response from a
// superseded generation is discarded, never applied, so a slow in-flight
// request can not overwrite a newer page. While paused no requests are
// issued; Resume refreshes immediately instead of waiting out the interval.
type JobPoller struct {
	Interval time.Duration
	Filter   models.JobFilter
	Fetch    JobFetchFunc
	OnPage   func(page *JobPage)
	OnError  func(err error)

	mu         sync.Mutex
	generation uint64
	paused     bool
	kick       chan struct{}
}

func NewJobPoller(filter models.JobFilter, onPage func(page *JobPage)) *JobPoller {
	return &JobPoller{
		Interval: 3 * time.Second,
		Filter:   filter,
		Fetch:    fetchJobPage,
		OnPage:   onPage,
		kick:     make(chan struct{}, 1),
	}
}

func fetchJobPage(ctx context.Context, filter models.JobFilter) (*JobPage, error) {
	items, total, err := models.ListJobs(ctx, filter)
	if err != nil {
		return nil, err
	}
	return &JobPage{Items: items, Total: total}, nil
}

func (p *JobPoller) Run(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	p.poll(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-p.kick:
			p.poll(ctx)
		case <-time.After(p.Interval):
			p.poll(ctx)
		}
	}
}

// Pause stops issuing requests and invalidates any in-flight one, so a
// response arriving after Pause is dropped.
func (p *JobPoller) Pause() {
	p.mu.Lock()
	p.paused = true
	p.generation++
	p.mu.Unlock()
}

// Resume re-enables polling and triggers an immediate refresh.
func (p *JobPoller) Resume() {
	p.mu.Lock()
	wasPaused := p.paused
	p.paused = false
	p.mu.Unlock()
	if wasPaused {
		select {
		case p.kick <- struct{}{}:
		default:
		}
	}
}

func (p *JobPoller) poll(ctx context.Context) {
	p.mu.Lock()
	if p.paused {
		p.mu.Unlock()
		return
	}
	p.generation++
	gen := p.generation
	filter := p.Filter
	p.mu.Unlock()

	go func() {
		page, err := p.Fetch(ctx, filter)
		if err != nil {
			if p.isCurrent(gen) && p.OnError != nil {
				p.OnError(err)
			} else if p.OnError == nil {
				config.GetLogger().Error("job poll failed: " + err.Error())
			}
			return
		}
		// Stale generation: a newer poll (or a Pause) superseded this
		// request while it was in flight.
		if !p.isCurrent(gen) {
			return
		}
		if p.OnPage != nil {
			p.OnPage(page)
		}
	}()
}

func (p *JobPoller) isCurrent(gen uint64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return !p.paused && gen == p.generation
}
