package corrections

import (
	"testing"
)

func TestBuildEvent_ScorePayloadWinsOverProvenance(t *testing.T) {
	ec := EditContext{
		JobId:     "job-1",
		FieldName: "child_name",
		Score: &ScorePayload{
			Score:       0.42,
			ReasonCodes: []string{"low_confidence", ReasonFieldOK},
			TokenIds:    []string{"t1", "t2"},
			BBoxNorm:    &BBox{X0: 0.1, Y0: 0.2, X1: 0.3, Y1: 0.4},
		},
		Provenance: &Provenance{Confidence: 0.99, TokenIds: []string{"ignored"}},
	}

	ev := BuildEvent(ec)
	if ev.EditId == "" {
		t.Fatal("missing edit id")
	}
	if ev.Provenance == nil {
		t.Fatal("provenance dropped")
	}
	if ev.Provenance.Confidence != 0.42 {
		t.Fatalf("confidence = %v, want the score payload's 0.42", ev.Provenance.Confidence)
	}
	if len(ev.Provenance.TokenIds) != 2 || ev.Provenance.TokenIds[0] != "t1" {
		t.Fatalf("token ids = %v, want the score payload's", ev.Provenance.TokenIds)
	}
	if !ev.WasFlagged {
		t.Fatal("non-sentinel reason code should flag the event")
	}
	if len(ev.FlagReasons) != 1 || ev.FlagReasons[0] != "low_confidence" {
		t.Fatalf("flag reasons = %v, want [low_confidence]", ev.FlagReasons)
	}
}

func TestBuildEvent_GenericProvenanceFallback(t *testing.T) {
	ec := EditContext{
		JobId:      "job-1",
		FieldName:  "child_name",
		Provenance: &Provenance{Confidence: 0.8, TokenIds: []string{"t9"}},
	}
	ev := BuildEvent(ec)
	if ev.Provenance == nil || ev.Provenance.Confidence != 0.8 {
		t.Fatalf("generic provenance not carried: %+v", ev.Provenance)
	}
	if ev.WasFlagged || len(ev.FlagReasons) != 0 {
		t.Fatal("no reason codes, nothing should be flagged")
	}
}

func TestBuildEvent_NoProvenanceInputs(t *testing.T) {
	ev := BuildEvent(EditContext{JobId: "job-1", FieldName: "child_name"})
	if ev.Provenance != nil {
		t.Fatalf("provenance should be null, got %+v", ev.Provenance)
	}
}

func TestBuildEvent_SentinelOnlyIsNotFlagged(t *testing.T) {
	ev := BuildEvent(EditContext{
		JobId:     "job-1",
		FieldName: "child_name",
		Score:     &ScorePayload{Score: 0.95, ReasonCodes: []string{ReasonFieldOK}},
	})
	if ev.WasFlagged {
		t.Fatal("the field-ok sentinel alone must not flag")
	}
	if len(ev.FlagReasons) != 0 {
		t.Fatalf("flag reasons = %v, want none", ev.FlagReasons)
	}
}

func TestSummarize_ZeroEvents(t *testing.T) {
	s := Summarize("job-1", nil)
	if s.TotalEvents != 0 {
		t.Fatalf("total = %d, want 0", s.TotalEvents)
	}
	if s.FirstTimestamp != nil || s.LastTimestamp != nil {
		t.Fatal("timestamps should be null with no events")
	}
}

func TestSummarize_MixedEvents(t *testing.T) {
	events := []Event{
		editEvent(0, "child_name", "", "John"),
		editEvent(0, "child_name", "John", "Johnny"),
		editEvent(1, "father_name", "", "James"),
		BuildEvent(EditContext{
			JobId:          "job-1",
			CandidateIndex: 2,
			FieldName:      "mother_name",
			AfterValue:     "Mary",
			EditSource:     EditSourceFinalize,
			Score:          &ScorePayload{Score: 0.3, ReasonCodes: []string{"low_confidence"}},
		}),
	}

	s := Summarize("job-1", events)
	if s.TotalEvents != 4 {
		t.Fatalf("total = %d, want 4", s.TotalEvents)
	}
	if s.DistinctFields != 3 {
		t.Fatalf("distinct fields = %d, want 3", s.DistinctFields)
	}
	if s.DistinctCandidates != 3 {
		t.Fatalf("distinct candidates = %d, want 3", s.DistinctCandidates)
	}

	perFieldSum := 0
	for _, n := range s.PerField {
		perFieldSum += n
	}
	if perFieldSum != s.TotalEvents {
		t.Fatalf("per-field counts sum to %d, want %d", perFieldSum, s.TotalEvents)
	}
	if s.FlaggedCorrections != 1 {
		t.Fatalf("flagged = %d, want 1", s.FlaggedCorrections)
	}
	if s.FlaggedCorrections > s.TotalEvents {
		t.Fatal("flagged exceeds total")
	}
	if s.PerSource[EditSourceAutosave] != 3 || s.PerSource[EditSourceFinalize] != 1 {
		t.Fatalf("per-source counts wrong: %v", s.PerSource)
	}
	if s.FirstTimestamp == nil || s.LastTimestamp == nil {
		t.Fatal("timestamps missing")
	}
	if s.LastTimestamp.Before(*s.FirstTimestamp) {
		t.Fatal("last timestamp precedes first")
	}
}
