package models

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/parishops/registry_backend/config"
	"github.com/parishops/registry_backend/utils"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Report is one delegation: an operator grants narrow, time-boxed editing
// rights over specific register records to external collaborators. Created
// once; after sent it only ever moves to revoked or expired.
type Report struct {
	ID            int          `gorm:"primary_key" json:"id"`
	ChurchId      int          `gorm:"index;not null" json:"church_id"`
	RecordType    RecordType   `gorm:"size:20;not null" json:"record_type"`
	CreatedBy     int          `gorm:"index;not null" json:"created_by"`
	Title         string       `gorm:"size:255;not null" json:"title"`
	Filters       string       `gorm:"type:text" json:"filters"`
	AllowedFields string       `gorm:"type:text;not null" json:"allowed_fields"`
	Status        ReportStatus `gorm:"size:10;not null;default:'sent'" json:"status"`
	ExpiresAt     time.Time    `gorm:"index;not null" json:"expires_at"`
	CreatedAt     time.Time    `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time    `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewReportRecipient struct {
	Email     string `json:"email" binding:"required"`
	RecordIds []int  `json:"record_ids"`
}

type NewReport struct {
	ChurchId      int                    `json:"church_id" binding:"required"`
	RecordType    RecordType             `json:"record_type" binding:"required"`
	Title         string                 `json:"title" binding:"required"`
	Filters       map[string]interface{} `json:"filters"`
	AllowedFields []string               `json:"allowed_fields" binding:"required"`
	Recipients    []NewReportRecipient   `json:"recipients" binding:"required"`
	ExpiresDays   int                    `json:"expires_days"`
}

const defaultExpiresDays = 30

// Invitation pairs a recipient with their raw capability token. It exists
// in memory only, for the mail dispatch; the token is never persisted.
type Invitation struct {
	Email     string
	Token     string
	ExpiresAt time.Time
}

type CreateReportResult struct {
	ReportId        int
	RecipientCount  int
	AssignmentCount int
	SkippedCount    int
	Invitations     []Invitation
}

// PlannedRecipient is one recipient that will actually get a row: invited
// collaborators with an empty record list are skipped entirely.
type PlannedRecipient struct {
	Email     string
	RecordIds []int
}

// PlanFanout decides which recipients and records the fan-out will touch.
// Pure; the creation workflow and its tests share it.
func PlanFanout(recipients []NewReportRecipient) []PlannedRecipient {
	var plan []PlannedRecipient
	for _, r := range recipients {
		if len(r.RecordIds) == 0 {
			continue
		}
		plan = append(plan, PlannedRecipient{
			Email:     r.Email,
			RecordIds: utils.UniqueSlice(r.RecordIds),
		})
	}
	return plan
}

func (input *NewReport) validate() error {
	if !input.RecordType.Valid() {
		return utils.NewValidationError("record_type", "unknown record type")
	}
	if input.Title == "" {
		return utils.NewValidationError("title", "required")
	}
	if len(input.AllowedFields) == 0 {
		return utils.NewValidationError("allowed_fields", "required")
	}
	if len(input.Recipients) == 0 {
		return utils.NewValidationError("recipients", "required")
	}
	for _, r := range input.Recipients {
		if !utils.IsValidEmail(r.Email) {
			return utils.NewValidationError("recipients", "invalid email: "+r.Email)
		}
	}
	if input.ExpiresDays < 0 {
		return utils.NewValidationError("expires_days", "must not be negative")
	}
	return nil
}

// CreateReport runs the fan-out: one Report row, one Recipient per invited
// collaborator with records, one Assignment per record whose register table
// exposed at least one usable snapshot field. A record whose lookup or
// snapshot fails is skipped, never aborting the call. onProgress is
// optional and reports recipients completed out of total.
// ErrFanoutCancelled aborts the fan-out when its job was cancelled. The
// transaction rolls back; nothing partial is committed.
var ErrFanoutCancelled = errors.New("fan-out cancelled")

func CreateReport(ctx context.Context, actorId int, input *NewReport, prober ColumnProber, onProgress func(done, total int), isCancelled func() bool) (*CreateReportResult, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}

	expiresDays := input.ExpiresDays
	if expiresDays == 0 {
		expiresDays = defaultExpiresDays
	}
	expiresAt := time.Now().UTC().Add(time.Duration(expiresDays) * 24 * time.Hour)

	plan := PlanFanout(input.Recipients)

	filtersJSON, _ := json.Marshal(input.Filters)
	allowedJSON, _ := json.Marshal(input.AllowedFields)

	table := input.RecordType.RecordTable()
	logger := config.GetLogger()

	result := &CreateReportResult{}

	db := config.GetDB()
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		report := Report{
			ChurchId:      input.ChurchId,
			RecordType:    input.RecordType,
			CreatedBy:     actorId,
			Title:         input.Title,
			Filters:       string(filtersJSON),
			AllowedFields: string(allowedJSON),
			Status:        ReportStatusSent,
			ExpiresAt:     expiresAt,
		}
		if err := tx.Create(&report).Error; err != nil {
			return err
		}
		result.ReportId = report.ID

		for i, planned := range plan {
			// Cancellation is cooperative: checked between recipients,
			// never mid-recipient.
			if isCancelled != nil && isCancelled() {
				return ErrFanoutCancelled
			}

			token, err := utils.GenerateCapabilityToken()
			if err != nil {
				return err
			}

			recipient := Recipient{
				ReportId:  report.ID,
				Email:     planned.Email,
				TokenHash: utils.HashCapabilityToken(token),
				Status:    RecipientStatusSent,
			}
			if err := tx.Create(&recipient).Error; err != nil {
				return err
			}
			result.RecipientCount++
			result.Invitations = append(result.Invitations, Invitation{
				Email:     planned.Email,
				Token:     token,
				ExpiresAt: expiresAt,
			})

			for _, recordId := range planned.RecordIds {
				snapshot, err := buildAssignmentSnapshot(ctx, prober, table, recordId)
				if err != nil {
					// Known limitation: a record without a usable snapshot
					// field is dropped silently, visible only as a lower
					// assignment count.
					result.SkippedCount++
					logger.WithFields(logrus.Fields{
						"module":    "report",
						"report_id": report.ID,
						"table":     table,
						"record_id": recordId,
					}).Warn("skipping assignment: " + err.Error())
					continue
				}

				assignment := Assignment{
					ReportId:        report.ID,
					RecipientId:     recipient.ID,
					RecordId:        recordId,
					RecordTable:     table,
					ContextSnapshot: snapshot,
				}
				if err := tx.Create(&assignment).Error; err != nil {
					result.SkippedCount++
					config.LogError(logger, "report", "CreateReport", "insert assignment", recordId, err)
					continue
				}
				result.AssignmentCount++
			}

			if onProgress != nil {
				onProgress(i+1, len(plan))
			}
		}

		return appendAuditEntry(tx, report.ID, AuditActorOperator, actorId, AuditActionSent, map[string]interface{}{
			"recipient_count":  result.RecipientCount,
			"assignment_count": result.AssignmentCount,
			"skipped_count":    result.SkippedCount,
		})
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

var errNoUsableField = errors.New("no usable snapshot field")

// fetchSnapshot is swapped in tests; the real read needs a live schema.
var fetchSnapshot = FetchContextSnapshot

func buildAssignmentSnapshot(ctx context.Context, prober ColumnProber, table string, recordId int) (string, error) {
	available, err := prober.Columns(ctx, table)
	if err != nil {
		return "", err
	}
	fields := SelectSnapshotFields(available)
	if len(fields) == 0 {
		return "", errNoUsableField
	}
	row, err := fetchSnapshot(ctx, table, recordId, fields)
	if err != nil {
		return "", err
	}
	b, err := json.Marshal(row)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// ResolvedLink is what a valid capability token grants: the report, the
// recipient, and exactly that recipient's assignments.
type ResolvedLink struct {
	Report      *Report
	Recipient   *Recipient
	Assignments []*Assignment
}

// ResolveByToken verifies a presented capability token and returns the
// recipient's view. Failure modes are distinguished for the audit log
// only; handlers present them uniformly.
func ResolveByToken(ctx context.Context, token string) (*ResolvedLink, error) {
	if token == "" {
		return nil, utils.ErrorTokenInvalid
	}

	db := config.GetDB()
	tokenHash := utils.HashCapabilityToken(token)

	var recipient Recipient
	if err := db.WithContext(ctx).Where("token_hash = ?", tokenHash).Take(&recipient).Error; err != nil {
		return nil, utils.ErrorTokenInvalid
	}
	if !utils.VerifyCapabilityToken(token, recipient.TokenHash) {
		return nil, utils.ErrorTokenInvalid
	}

	var report Report
	if err := db.WithContext(ctx).First(&report, recipient.ReportId).Error; err != nil {
		return nil, utils.ErrorTokenInvalid
	}

	// Revocation is a status flip, re-checked on every verify.
	if report.Status == ReportStatusRevoked || recipient.Status == RecipientStatusRevoked {
		return nil, utils.ErrorReportRevoked
	}
	if report.Status == ReportStatusExpired || !time.Now().UTC().Before(report.ExpiresAt) {
		return nil, utils.ErrorTokenExpired
	}

	assignments, err := GetAssignmentsByRecipient(ctx, recipient.ID)
	if err != nil {
		return nil, err
	}

	// Independently-failing side effect, never joined to this read.
	TouchRecipientAccess(recipient.ID)

	return &ResolvedLink{
		Report:      &report,
		Recipient:   &recipient,
		Assignments: assignments,
	}, nil
}

// SubmissionPatch is one field correction offered by a collaborator.
type SubmissionPatch struct {
	AssignmentId int    `json:"assignment_id" binding:"required"`
	Field        string `json:"field" binding:"required"`
	Value        string `json:"value"`
}

// RecordSubmission marks the recipient submitted, appends the audit entry,
// and enqueues the submission-summary notification for the original
// operator inside the same transaction. The mail itself is dispatched
// later, fire-and-forget.
func RecordSubmission(ctx context.Context, recipientId int, patches []SubmissionPatch) error {
	for _, p := range patches {
		if err := utils.ValidateResourceId[Assignment](ctx, 0, p.AssignmentId); err != nil {
			return utils.NewValidationError("patches", "unknown assignment")
		}
	}

	db := config.GetDB()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var recipient Recipient
		if err := tx.First(&recipient, recipientId).Error; err != nil {
			return utils.ErrorRecordNotFound
		}
		var report Report
		if err := tx.First(&report, recipient.ReportId).Error; err != nil {
			return utils.ErrorRecordNotFound
		}

		if err := tx.Model(&Recipient{}).Where("id = ?", recipientId).
			Update("status", RecipientStatusSubmitted).Error; err != nil {
			return err
		}

		if err := appendAuditEntry(tx, recipient.ReportId, AuditActorRecipient, recipientId, AuditActionSubmitted, map[string]interface{}{
			"patch_count": len(patches),
			"patches":     patches,
		}); err != nil {
			return err
		}

		summary := map[string]interface{}{
			"report_id":       report.ID,
			"report_title":    report.Title,
			"recipient_email": recipient.Email,
			"patch_count":     len(patches),
		}
		return EnqueueMailerMessage(ctx, tx, report.ChurchId, MailerKindSubmissionSummary, report.CreatedBy, report.ID, summary)
	})
}

// RevokeReport flips sent -> revoked. The flip is what locks every
// recipient out; token hashes stay in place.
func RevokeReport(ctx context.Context, id int, actorId int) (*Report, error) {
	db := config.GetDB()
	var report Report
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&report, id).Error; err != nil {
			return utils.ErrorRecordNotFound
		}
		if report.Status != ReportStatusSent {
			return utils.NewValidationError("status", "report is not active")
		}
		if err := tx.Model(&Report{}).Where("id = ?", id).
			Update("status", ReportStatusRevoked).Error; err != nil {
			return err
		}
		report.Status = ReportStatusRevoked
		return appendAuditEntry(tx, id, AuditActorOperator, actorId, AuditActionRevoked, nil)
	})
	if err != nil {
		return nil, err
	}
	return &report, nil
}

func GetReport(ctx context.Context, id int) (*Report, error) {
	db := config.GetDB()
	var report Report
	if err := db.WithContext(ctx).First(&report, id).Error; err != nil {
		return nil, utils.ErrorRecordNotFound
	}
	return &report, nil
}

// ExpireDueReports flips sent -> expired for reports past their expiry.
// Verification already rejects stale tokens by timestamp; this keeps the
// stored status honest for listings.
func ExpireDueReports(ctx context.Context) (int64, error) {
	db := config.GetDB()
	res := db.WithContext(ctx).Model(&Report{}).
		Where("status = ? AND expires_at <= ?", ReportStatusSent, time.Now().UTC()).
		Update("status", ReportStatusExpired)
	return res.RowsAffected, res.Error
}
