package corrections

import (
	"bufio"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"time"
)

// One JSONL file per review job. Lines are only ever appended; a crash
// mid-write may leave a partial trailing line, which Load tolerates.

// LedgerPath is the deterministic, job-id-derived location of a review
// job's correction log.
func LedgerPath(dataDir, jobId string) string {
	return filepath.Join(dataDir, "corrections", "job-"+jobId+".jsonl")
}

// DataDir is the root for on-disk ledgers, DATA_DIR env or ./data.
func DataDir() string {
	if v := os.Getenv("DATA_DIR"); v != "" {
		return v
	}
	return "./data"
}

// Append writes the event as a new line, unless the most recent entry for
// the same (candidateIndex, fieldName) already carries an identical
// afterValue. Returns whether a line was written; the skip is a no-op,
// not a failure, and keeps autosave loops from re-recording an unchanged
// value. Assumes a single active writer per job.
func Append(path string, event Event) (bool, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return false, err
	}

	existing, err := Load(path)
	if err != nil {
		return false, err
	}
	for i := len(existing) - 1; i >= 0; i-- {
		prev := existing[i]
		if prev.CandidateIndex != event.CandidateIndex || prev.FieldName != event.FieldName {
			continue
		}
		if prev.AfterValue == event.AfterValue {
			return false, nil
		}
		break
	}

	line, err := json.Marshal(event)
	if err != nil {
		return false, err
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return false, err
	}
	defer f.Close()

	if _, err := f.Write(append(line, '\n')); err != nil {
		return false, err
	}
	return true, nil
}

// Load parses the log in original order. A missing or empty file yields an
// empty result; malformed individual lines are skipped, never aborting
// the parse.
func Load(path string) ([]Event, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	var events []Event
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var ev Event
		if err := json.Unmarshal(line, &ev); err != nil {
			// Tolerates a crash mid-write leaving a partial line.
			continue
		}
		events = append(events, ev)
	}
	if err := scanner.Err(); err != nil {
		return events, err
	}
	return events, nil
}

// Summary aggregates one review job's corrections.
type Summary struct {
	JobId              string             `json:"job_id"`
	TotalEvents        int                `json:"total_events"`
	DistinctFields     int                `json:"distinct_fields"`
	DistinctCandidates int                `json:"distinct_candidates"`
	PerField           map[string]int     `json:"per_field"`
	PerSource          map[EditSource]int `json:"per_source"`
	FlaggedCorrections int                `json:"flagged_corrections"`
	FirstTimestamp     *time.Time         `json:"first_timestamp"`
	LastTimestamp      *time.Time         `json:"last_timestamp"`
}

func Summarize(jobId string, events []Event) Summary {
	s := Summary{
		JobId:     jobId,
		PerField:  map[string]int{},
		PerSource: map[EditSource]int{},
	}

	candidates := map[int]struct{}{}
	for _, ev := range events {
		s.TotalEvents++
		s.PerField[ev.FieldName]++
		s.PerSource[ev.EditSource]++
		candidates[ev.CandidateIndex] = struct{}{}
		if ev.WasFlagged {
			s.FlaggedCorrections++
		}
		ts := ev.Timestamp
		if s.FirstTimestamp == nil || ts.Before(*s.FirstTimestamp) {
			t := ts
			s.FirstTimestamp = &t
		}
		if s.LastTimestamp == nil || ts.After(*s.LastTimestamp) {
			t := ts
			s.LastTimestamp = &t
		}
	}
	s.DistinctFields = len(s.PerField)
	s.DistinctCandidates = len(candidates)
	return s
}

// Digest identifies the exact bytes of a log, for detecting whether a
// previously-observed log has since changed.
type Digest struct {
	SHA256 string `json:"sha256"`
	Size   int64  `json:"size"`
}

// IntegrityDigest hashes the log file. Returns nil for a nonexistent file.
func IntegrityDigest(path string) (*Digest, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	h := sha256.New()
	n, err := io.Copy(h, f)
	if err != nil {
		return nil, err
	}
	return &Digest{
		SHA256: hex.EncodeToString(h.Sum(nil)),
		Size:   n,
	}, nil
}
