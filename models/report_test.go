package models

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/parishops/registry_backend/utils"
)

func TestPlanFanout_SkipsRecipientsWithoutRecords(t *testing.T) {
	plan := PlanFanout([]NewReportRecipient{
		{Email: "anna@example.org", RecordIds: []int{3, 1, 2}},
		{Email: "idle@example.org", RecordIds: nil},
	})

	if len(plan) != 1 {
		t.Fatalf("planned %d recipients, want 1", len(plan))
	}
	if plan[0].Email != "anna@example.org" {
		t.Fatalf("planned recipient = %q", plan[0].Email)
	}
	if len(plan[0].RecordIds) != 3 {
		t.Fatalf("planned %d records, want 3", len(plan[0].RecordIds))
	}
}

func TestPlanFanout_DeduplicatesRecordIds(t *testing.T) {
	plan := PlanFanout([]NewReportRecipient{
		{Email: "anna@example.org", RecordIds: []int{5, 5, 7, 5}},
	})
	if len(plan) != 1 {
		t.Fatalf("planned %d recipients, want 1", len(plan))
	}
	if len(plan[0].RecordIds) != 2 {
		t.Fatalf("planned %d records, want 2 after dedup", len(plan[0].RecordIds))
	}
}

type fakeProber struct {
	cols map[string]bool
	err  error
}

func (p fakeProber) Columns(context.Context, string) (map[string]bool, error) {
	return p.cols, p.err
}

// One recipient with three records and one with none: one recipient row,
// three assignment candidates, every candidate with a usable snapshot.
func TestFanoutCountsPerPlan(t *testing.T) {
	restore := fetchSnapshot
	defer func() { fetchSnapshot = restore }()

	var fetched int
	fetchSnapshot = func(ctx context.Context, table string, recordId int, fields []string) (map[string]interface{}, error) {
		fetched++
		return map[string]interface{}{"child_name": "Maria"}, nil
	}

	plan := PlanFanout([]NewReportRecipient{
		{Email: "anna@example.org", RecordIds: []int{3, 1, 2}},
		{Email: "idle@example.org", RecordIds: nil},
	})
	if len(plan) != 1 {
		t.Fatalf("planned %d recipients, want 1", len(plan))
	}

	prober := fakeProber{cols: map[string]bool{"child_name": true}}
	assignments := 0
	for _, planned := range plan {
		for _, recordId := range planned.RecordIds {
			if _, err := buildAssignmentSnapshot(context.Background(), prober, "baptism_records", recordId); err == nil {
				assignments++
			}
		}
	}
	if assignments != 3 {
		t.Fatalf("built %d assignments, want 3", assignments)
	}
	if fetched != 3 {
		t.Fatalf("fetched %d snapshots, want 3", fetched)
	}
}

func TestBuildAssignmentSnapshotSelectsProbedFields(t *testing.T) {
	restore := fetchSnapshot
	defer func() { fetchSnapshot = restore }()

	var gotFields []string
	fetchSnapshot = func(ctx context.Context, table string, recordId int, fields []string) (map[string]interface{}, error) {
		gotFields = fields
		return map[string]interface{}{"child_name": "Maria", "baptism_date": "1911-04-02"}, nil
	}

	prober := fakeProber{cols: map[string]bool{"child_name": true, "baptism_date": true, "notes": true}}
	snapshot, err := buildAssignmentSnapshot(context.Background(), prober, "baptism_records", 7)
	if err != nil {
		t.Fatalf("buildAssignmentSnapshot: %v", err)
	}
	if len(gotFields) != 2 || gotFields[0] != "child_name" || gotFields[1] != "baptism_date" {
		t.Fatalf("fetched fields = %v", gotFields)
	}

	var row map[string]interface{}
	if err := json.Unmarshal([]byte(snapshot), &row); err != nil {
		t.Fatalf("snapshot is not JSON: %v", err)
	}
	if row["child_name"] != "Maria" {
		t.Fatalf("snapshot = %v", row)
	}
}

func TestBuildAssignmentSnapshotNoUsableField(t *testing.T) {
	prober := fakeProber{cols: map[string]bool{"notes": true}}
	_, err := buildAssignmentSnapshot(context.Background(), prober, "baptism_records", 7)
	if !errors.Is(err, errNoUsableField) {
		t.Fatalf("err = %v, want errNoUsableField", err)
	}
}

func TestBuildAssignmentSnapshotProbeFailure(t *testing.T) {
	probeErr := errors.New("table gone")
	_, err := buildAssignmentSnapshot(context.Background(), fakeProber{err: probeErr}, "baptism_records", 7)
	if !errors.Is(err, probeErr) {
		t.Fatalf("err = %v, want probe failure", err)
	}
}

func TestNewReportValidate(t *testing.T) {
	valid := func() NewReport {
		return NewReport{
			ChurchId:      46,
			RecordType:    RecordTypeBaptism,
			Title:         "Spring cleanup",
			AllowedFields: []string{"child_name"},
			Recipients:    []NewReportRecipient{{Email: "anna@example.org", RecordIds: []int{1}}},
			ExpiresDays:   30,
		}
	}

	if input := valid(); input.validate() != nil {
		t.Fatalf("valid input rejected: %v", input.validate())
	}

	tests := []struct {
		name   string
		mutate func(*NewReport)
		field  string
	}{
		{"unknown record type", func(r *NewReport) { r.RecordType = "census" }, "record_type"},
		{"missing title", func(r *NewReport) { r.Title = "" }, "title"},
		{"no allowed fields", func(r *NewReport) { r.AllowedFields = nil }, "allowed_fields"},
		{"no recipients", func(r *NewReport) { r.Recipients = nil }, "recipients"},
		{"bad email", func(r *NewReport) { r.Recipients[0].Email = "not-an-email" }, "recipients"},
		{"negative expiry", func(r *NewReport) { r.ExpiresDays = -1 }, "expires_days"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input := valid()
			tt.mutate(&input)
			err := input.validate()
			if err == nil {
				t.Fatal("expected a validation error")
			}
			ve, ok := utils.AsValidationError(err)
			if !ok {
				t.Fatalf("unexpected error shape: %v", err)
			}
			if _, has := ve.Fields[tt.field]; !has {
				t.Fatalf("error fields %v missing %q", ve.Fields, tt.field)
			}
		})
	}
}
