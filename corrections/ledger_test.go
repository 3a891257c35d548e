package corrections

import (
	"os"
	"path/filepath"
	"testing"
)

func editEvent(candidateIndex int, field, before, after string) Event {
	return BuildEvent(EditContext{
		JobId:          "job-1",
		PageId:         "page-1",
		CandidateIndex: candidateIndex,
		RecordType:     "baptism",
		UserId:         7,
		FieldName:      field,
		BeforeValue:    before,
		AfterValue:     after,
		EditSource:     EditSourceAutosave,
	})
}

func TestAppend_DeduplicatesUnchangedValue(t *testing.T) {
	path := LedgerPath(t.TempDir(), "job-1")

	written, err := Append(path, editEvent(0, "child_name", "", "John"))
	if err != nil {
		t.Fatalf("first append: %v", err)
	}
	if !written {
		t.Fatal("first append should write")
	}

	// Same key, same afterValue: autosave replay, skipped.
	written, err = Append(path, editEvent(0, "child_name", "", "John"))
	if err != nil {
		t.Fatalf("second append: %v", err)
	}
	if written {
		t.Fatal("identical re-append should be skipped")
	}

	events, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("got %d events, want 1", len(events))
	}

	// Same key, new afterValue: a real change, written.
	written, err = Append(path, editEvent(0, "child_name", "John", "Johnny"))
	if err != nil {
		t.Fatalf("third append: %v", err)
	}
	if !written {
		t.Fatal("changed value should be written")
	}

	events, err = Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2", len(events))
	}
	if events[0].AfterValue != "John" || events[1].AfterValue != "Johnny" {
		t.Fatalf("events out of order: %q then %q", events[0].AfterValue, events[1].AfterValue)
	}
}

func TestAppend_DedupIsScopedPerCandidateAndField(t *testing.T) {
	path := LedgerPath(t.TempDir(), "job-1")

	if _, err := Append(path, editEvent(0, "child_name", "", "John")); err != nil {
		t.Fatal(err)
	}
	// Same afterValue but a different field: still written.
	written, err := Append(path, editEvent(0, "father_name", "", "John"))
	if err != nil {
		t.Fatal(err)
	}
	if !written {
		t.Fatal("different field with same value should be written")
	}
	// Same field but a different candidate: still written.
	written, err = Append(path, editEvent(1, "child_name", "", "John"))
	if err != nil {
		t.Fatal(err)
	}
	if !written {
		t.Fatal("different candidate with same value should be written")
	}

	events, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 3 {
		t.Fatalf("got %d events, want 3", len(events))
	}
}

func TestLoad_MissingAndEmpty(t *testing.T) {
	dir := t.TempDir()

	events, err := Load(filepath.Join(dir, "does-not-exist.jsonl"))
	if err != nil {
		t.Fatalf("missing file: %v", err)
	}
	if len(events) != 0 {
		t.Fatalf("missing file yielded %d events", len(events))
	}

	empty := filepath.Join(dir, "empty.jsonl")
	if err := os.WriteFile(empty, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	events, err = Load(empty)
	if err != nil {
		t.Fatalf("empty file: %v", err)
	}
	if len(events) != 0 {
		t.Fatalf("empty file yielded %d events", len(events))
	}
}

func TestLoad_SkipsMalformedLines(t *testing.T) {
	path := LedgerPath(t.TempDir(), "job-1")

	if _, err := Append(path, editEvent(0, "child_name", "", "John")); err != nil {
		t.Fatal(err)
	}
	// A crash mid-write leaves a partial trailing line.
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.WriteString("{\"edit_id\":\"trunc"); err != nil {
		t.Fatal(err)
	}
	f.Close()

	events, err := Load(path)
	if err != nil {
		t.Fatalf("load with partial line: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("got %d events, want 1 (partial line skipped)", len(events))
	}

	// And a fresh append after the crash still works.
	written, err := Append(path, editEvent(0, "child_name", "John", "Johnny"))
	if err != nil {
		t.Fatal(err)
	}
	if !written {
		t.Fatal("append after partial line should write")
	}
}

func TestIntegrityDigest(t *testing.T) {
	dir := t.TempDir()
	path := LedgerPath(dir, "job-1")

	digest, err := IntegrityDigest(path)
	if err != nil {
		t.Fatalf("missing file: %v", err)
	}
	if digest != nil {
		t.Fatal("missing file should yield a nil digest")
	}

	if _, err := Append(path, editEvent(0, "child_name", "", "John")); err != nil {
		t.Fatal(err)
	}
	first, err := IntegrityDigest(path)
	if err != nil {
		t.Fatal(err)
	}
	if first == nil || first.SHA256 == "" || first.Size == 0 {
		t.Fatalf("unexpected digest: %+v", first)
	}

	// Unchanged bytes, unchanged digest. The skipped duplicate append
	// writes nothing.
	if _, err := Append(path, editEvent(0, "child_name", "", "John")); err != nil {
		t.Fatal(err)
	}
	same, err := IntegrityDigest(path)
	if err != nil {
		t.Fatal(err)
	}
	if same.SHA256 != first.SHA256 || same.Size != first.Size {
		t.Fatal("digest changed without the log's bytes changing")
	}

	if _, err := Append(path, editEvent(0, "child_name", "John", "Johnny")); err != nil {
		t.Fatal(err)
	}
	changed, err := IntegrityDigest(path)
	if err != nil {
		t.Fatal(err)
	}
	if changed.SHA256 == first.SHA256 || changed.Size <= first.Size {
		t.Fatal("digest did not change after a real append")
	}
}
