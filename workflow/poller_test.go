package workflow

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/parishops/registry_backend/models"
)

// DB-free: Fetch is swapped for a controllable fake so the tests drive the
// generation bookkeeping directly through poll().

func TestJobPoller_StaleInFlightResponseIsDiscarded(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	pages := make(chan *JobPage, 2)

	var mu sync.Mutex
	calls := 0

	p := NewJobPoller(models.JobFilter{}, func(pg *JobPage) { pages <- pg })
	p.Fetch = func(ctx context.Context, f models.JobFilter) (*JobPage, error) {
		mu.Lock()
		calls++
		n := calls
		mu.Unlock()
		if n == 1 {
			close(started)
			<-release // slow request, superseded while in flight
			return &JobPage{Total: 1}, nil
		}
		return &JobPage{Total: 2}, nil
	}

	ctx := context.Background()
	p.poll(ctx)
	<-started
	p.poll(ctx) // supersedes the first request

	page := <-pages
	if page.Total != 2 {
		t.Fatalf("applied page total = %d, want the fresh request's 2", page.Total)
	}

	close(release)
	select {
	case stale := <-pages:
		t.Fatalf("stale response was applied: total=%d", stale.Total)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestJobPoller_PauseDropsInFlightResponse(t *testing.T) {
	release := make(chan struct{})
	pages := make(chan *JobPage, 1)

	p := NewJobPoller(models.JobFilter{}, func(pg *JobPage) { pages <- pg })
	p.Fetch = func(ctx context.Context, f models.JobFilter) (*JobPage, error) {
		<-release
		return &JobPage{Total: 1}, nil
	}

	p.poll(context.Background())
	p.Pause()
	close(release)

	select {
	case <-pages:
		t.Fatal("response arriving after Pause was applied")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestJobPoller_PausedPollerIssuesNoRequests(t *testing.T) {
	var mu sync.Mutex
	calls := 0

	p := NewJobPoller(models.JobFilter{}, nil)
	p.Fetch = func(ctx context.Context, f models.JobFilter) (*JobPage, error) {
		mu.Lock()
		calls++
		mu.Unlock()
		return &JobPage{}, nil
	}

	p.Pause()
	p.poll(context.Background())
	p.poll(context.Background())

	time.Sleep(50 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	if calls != 0 {
		t.Fatalf("paused poller issued %d requests", calls)
	}
}

func TestJobPoller_ResumeTriggersImmediateRefresh(t *testing.T) {
	p := NewJobPoller(models.JobFilter{}, nil)

	p.Pause()
	p.Resume()

	select {
	case <-p.kick:
	default:
		t.Fatal("Resume did not queue an immediate refresh")
	}

	// Resume while already running must not queue a refresh.
	p.Resume()
	select {
	case <-p.kick:
		t.Fatal("Resume without a preceding Pause queued a refresh")
	default:
	}
}
