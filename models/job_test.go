package models

import (
	"testing"
	"time"
)

func TestCompletionUpdatesBindReportId(t *testing.T) {
	now := time.Now().UTC()
	updates := completionUpdates(412, `{"recipient_count":1}`, now)

	if updates["status"] != JobStatusCompleted {
		t.Fatalf("status = %v, want %v", updates["status"], JobStatusCompleted)
	}
	if updates["progress"] != 100 {
		t.Fatalf("progress = %v, want 100", updates["progress"])
	}
	if updates["report_id"] != 412 {
		t.Fatalf("report_id = %v, want 412; a fan-out job must stay findable by report filter", updates["report_id"])
	}
	if updates["result"] != `{"recipient_count":1}` {
		t.Fatalf("result = %v", updates["result"])
	}
	if updates["finished_at"] != now {
		t.Fatalf("finished_at = %v, want %v", updates["finished_at"], now)
	}
}

func TestCompletionUpdatesWithoutReport(t *testing.T) {
	updates := completionUpdates(0, "{}", time.Now().UTC())
	if _, has := updates["report_id"]; has {
		t.Fatal("report_id must stay untouched when no report was created")
	}
}
