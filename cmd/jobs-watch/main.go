// jobs-watch tails the job table from a terminal, refreshing every few
// seconds the way the console UI does.
//
// Usage:
//   DB_USER=... DB_PASSWORD=... DB_HOST=... DB_PORT=... DB_NAME=... \
//     go run ./cmd/jobs-watch -church 46 -status RUNNING
//
// Typing "p" + Enter pauses refreshing, "r" + Enter resumes it.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/parishops/registry_backend/config"
	"github.com/parishops/registry_backend/models"
	"github.com/parishops/registry_backend/workflow"
)

func main() {
	church := flag.Int("church", 0, "restrict to one church id")
	status := flag.String("status", "", "restrict to one job status (PENDING, RUNNING, ...)")
	text := flag.String("q", "", "free-text filter on type / error / id")
	limit := flag.Int("limit", 20, "page size")
	interval := flag.Duration("interval", 3*time.Second, "refresh interval")
	flag.Parse()

	config.ConnectDatabaseWithRetry()
	if config.GetDB() == nil {
		fmt.Fprintln(os.Stderr, "database not initialized (config.GetDB returned nil). Set DB_* env vars.")
		os.Exit(1)
	}

	filter := models.JobFilter{
		Status:   models.JobStatus(*status),
		ChurchId: *church,
		Text:     *text,
		Limit:    *limit,
	}

	poller := workflow.NewJobPoller(filter, printPage)
	poller.Interval = *interval
	poller.OnError = func(err error) {
		fmt.Fprintf(os.Stderr, "poll failed: %v\n", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go readCommands(poller)
	poller.Run(ctx)
}

func readCommands(poller *workflow.JobPoller) {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		switch strings.TrimSpace(scanner.Text()) {
		case "p":
			poller.Pause()
			fmt.Println("paused (r to resume)")
		case "r":
			poller.Resume()
		}
	}
}

func printPage(page *workflow.JobPage) {
	fmt.Printf("\n%s  %d job(s), showing %d\n", time.Now().Format("15:04:05"), page.Total, len(page.Items))
	for _, job := range page.Items {
		line := fmt.Sprintf("  %-36s  %-10s  %3d%%  %s", job.ID, job.Status, job.Progress, job.Type)
		if job.ErrorMessage != "" {
			line += "  error: " + job.ErrorMessage
		}
		fmt.Println(line)
	}
}
