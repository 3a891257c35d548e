// Package corrections is the append-only, per-review-job ledger of
// field-level edits made by reviewers over document-recognition output.
// Entries carry the provenance of the value being corrected and are never
// rewritten once written.
package corrections

import (
	"time"

	"github.com/google/uuid"
)

type EditSource string

const (
	EditSourceAutosave EditSource = "autosave"
	EditSourceFinalize EditSource = "finalize"
	EditSourceCommit   EditSource = "commit"
)

// ReasonFieldOK is the score engine's "field is fine" sentinel. A field is
// flagged exactly when any other reason code is present; the sentinel
// itself never appears in FlagReasons.
const ReasonFieldOK = "field_ok"

// BBox is a bounding box; coordinates are either normalized (0..1) or in
// page pixels depending on which slot it occupies.
type BBox struct {
	X0 float64 `json:"x0"`
	Y0 float64 `json:"y0"`
	X1 float64 `json:"x1"`
	Y1 float64 `json:"y1"`
}

// Provenance is the originating evidence behind the value being edited:
// which recognition tokens produced it, where on the page, how confident
// the engine was.
type Provenance struct {
	TokenIds   []string `json:"token_ids"`
	BBoxNorm   *BBox    `json:"bbox_norm,omitempty"`
	BBoxPixel  *BBox    `json:"bbox_pixel,omitempty"`
	Confidence float64  `json:"confidence"`
}

// ScorePayload is the structured score-engine output for one field. When
// present it wins over a generic provenance payload.
type ScorePayload struct {
	Score       float64  `json:"score"`
	ReasonCodes []string `json:"reason_codes"`
	TokenIds    []string `json:"token_ids"`
	BBoxNorm    *BBox    `json:"bbox_norm,omitempty"`
	BBoxPixel   *BBox    `json:"bbox_pixel,omitempty"`
}

// Event is one ledger entry. Immutable after being written.
type Event struct {
	EditId         string      `json:"edit_id"`
	JobId          string      `json:"job_id"`
	PageId         string      `json:"page_id"`
	CandidateIndex int         `json:"candidate_index"`
	RowIndex       int         `json:"row_index"`
	RecordType     string      `json:"record_type"`
	TemplateId     string      `json:"template_id"`
	UserId         int         `json:"user_id"`
	Timestamp      time.Time   `json:"timestamp"`
	FieldName      string      `json:"field_name"`
	BeforeValue    string      `json:"before_value"`
	AfterValue     string      `json:"after_value"`
	Provenance     *Provenance `json:"provenance"`
	WasFlagged     bool        `json:"was_flagged"`
	FlagReasons    []string    `json:"flag_reasons,omitempty"`
	EditSource     EditSource  `json:"edit_source"`
}

// EditContext is everything the review UI knows about one edit, plus the
// optional scoring inputs.
type EditContext struct {
	JobId          string     `json:"job_id"`
	PageId         string     `json:"page_id"`
	CandidateIndex int        `json:"candidate_index"`
	RowIndex       int        `json:"row_index"`
	RecordType     string     `json:"record_type"`
	TemplateId     string     `json:"template_id"`
	UserId         int        `json:"user_id"`
	FieldName      string     `json:"field_name"`
	BeforeValue    string     `json:"before_value"`
	AfterValue     string     `json:"after_value"`
	EditSource     EditSource `json:"edit_source"`

	Score      *ScorePayload `json:"score,omitempty"`
	Provenance *Provenance   `json:"provenance,omitempty"`
}

// BuildEvent constructs an Event from an edit context. Provenance
// precedence: the structured score-engine payload wins over a generic
// provenance payload; with neither, provenance is null.
func BuildEvent(ec EditContext) Event {
	ev := Event{
		EditId:         uuid.NewString(),
		JobId:          ec.JobId,
		PageId:         ec.PageId,
		CandidateIndex: ec.CandidateIndex,
		RowIndex:       ec.RowIndex,
		RecordType:     ec.RecordType,
		TemplateId:     ec.TemplateId,
		UserId:         ec.UserId,
		Timestamp:      time.Now().UTC(),
		FieldName:      ec.FieldName,
		BeforeValue:    ec.BeforeValue,
		AfterValue:     ec.AfterValue,
		EditSource:     ec.EditSource,
	}

	switch {
	case ec.Score != nil:
		ev.Provenance = &Provenance{
			TokenIds:   ec.Score.TokenIds,
			BBoxNorm:   ec.Score.BBoxNorm,
			BBoxPixel:  ec.Score.BBoxPixel,
			Confidence: ec.Score.Score,
		}
		ev.WasFlagged, ev.FlagReasons = flagsFromReasons(ec.Score.ReasonCodes)
	case ec.Provenance != nil:
		ev.Provenance = ec.Provenance
	}

	return ev
}

func flagsFromReasons(codes []string) (bool, []string) {
	var reasons []string
	for _, code := range codes {
		if code == ReasonFieldOK {
			continue
		}
		reasons = append(reasons, code)
	}
	return len(reasons) > 0, reasons
}
