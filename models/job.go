package models

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/parishops/registry_backend/config"
	"github.com/parishops/registry_backend/utils"
	"gorm.io/gorm"
)

// Job is best-effort observability over a slow background operation. Its
// bookkeeping must never become a precondition for the operation itself.
type Job struct {
	ID           string     `gorm:"primary_key;size:36" json:"id"`
	CreatedBy    int        `gorm:"index" json:"created_by"`
	ChurchId     int        `gorm:"index" json:"church_id"`
	ReportId     int        `gorm:"index" json:"report_id"`
	Type         string     `gorm:"size:40;not null" json:"type"`
	Status       JobStatus  `gorm:"size:12;index;not null" json:"status"`
	Progress     int        `gorm:"not null;default:0" json:"progress"`
	Attempts     int        `gorm:"not null;default:0" json:"attempts"`
	MaxAttempts  int        `gorm:"not null;default:1" json:"max_attempts"`
	Payload      string     `gorm:"type:text" json:"payload"`
	Result       string     `gorm:"type:text" json:"result"`
	ErrorMessage string     `gorm:"type:text" json:"error_message"`
	CreatedAt    time.Time  `gorm:"autoCreateTime" json:"created_at"`
	StartedAt    *time.Time `json:"started_at"`
	FinishedAt   *time.Time `json:"finished_at"`
	UpdatedAt    time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

const JobTypeReportFanout = "report_fanout"

// StartJob inserts a RUNNING job with progress 0 and returns its id.
// Callers treat a failure here as "proceed without a job id".
func StartJob(ctx context.Context, createdBy int, churchId int, reportId int, jobType string, payload interface{}) (string, error) {
	p, _ := json.Marshal(payload)
	now := time.Now().UTC()

	job := Job{
		ID:          uuid.NewString(),
		CreatedBy:   createdBy,
		ChurchId:    churchId,
		ReportId:    reportId,
		Type:        jobType,
		Status:      JobStatusRunning,
		Progress:    0,
		Attempts:    1,
		MaxAttempts: 1,
		Payload:     string(p),
		StartedAt:   &now,
	}

	db := config.GetDB()
	if db == nil {
		return "", utils.ErrorRecordNotFound
	}
	if err := db.WithContext(ctx).Create(&job).Error; err != nil {
		return "", err
	}
	return job.ID, nil
}

// UpdateJobProgress raises progress, never lowering it: a late or
// out-of-order update loses against GREATEST.
func UpdateJobProgress(ctx context.Context, id string, progress int) error {
	if id == "" {
		return nil
	}
	if progress < 0 {
		progress = 0
	}
	if progress > 100 {
		progress = 100
	}
	db := config.GetDB()
	return db.WithContext(ctx).Model(&Job{}).Where("id = ?", id).
		Update("progress", gorm.Expr("GREATEST(progress, ?)", progress)).Error
}

// CompleteJob flips RUNNING to COMPLETED with a result snapshot. The job
// row is inserted before its report exists, so the loose report reference
// is bound here, once the fan-out has committed and the id is known.
func CompleteJob(ctx context.Context, id string, reportId int, result interface{}) error {
	if id == "" {
		return nil
	}
	r, _ := json.Marshal(result)
	db := config.GetDB()
	return db.WithContext(ctx).Model(&Job{}).
		Where("id = ? AND status = ?", id, JobStatusRunning).
		Updates(completionUpdates(reportId, string(r), time.Now().UTC())).Error
}

func completionUpdates(reportId int, resultJSON string, finishedAt time.Time) map[string]interface{} {
	updates := map[string]interface{}{
		"status":      JobStatusCompleted,
		"progress":    100,
		"result":      resultJSON,
		"finished_at": finishedAt,
	}
	if reportId > 0 {
		updates["report_id"] = reportId
	}
	return updates
}

// FailJob records a failure. It runs inside the same failure path as the
// primary error, so callers must only log what it returns, never let it
// mask the original failure.
func FailJob(ctx context.Context, id string, message string) error {
	if id == "" {
		return nil
	}
	now := time.Now().UTC()
	db := config.GetDB()
	if db == nil {
		return nil
	}
	return db.WithContext(ctx).Model(&Job{}).
		Where("id = ? AND status IN ?", id, []JobStatus{JobStatusRunning, JobStatusPending}).
		Updates(map[string]interface{}{
			"status":        JobStatusFailed,
			"error_message": message,
			"finished_at":   now,
		}).Error
}

// CancelJob flips PENDING/RUNNING to CANCELLED. Any other state is an
// idempotent no-op. Cancellation is cooperative: long-running work checks
// IsJobCancelled before scheduling more.
func CancelJob(ctx context.Context, id string) error {
	now := time.Now().UTC()
	db := config.GetDB()
	return db.WithContext(ctx).Model(&Job{}).
		Where("id = ? AND status IN ?", id, []JobStatus{JobStatusPending, JobStatusRunning}).
		Updates(map[string]interface{}{
			"status":      JobStatusCancelled,
			"finished_at": now,
		}).Error
}

func IsJobCancelled(ctx context.Context, id string) bool {
	if id == "" {
		return false
	}
	db := config.GetDB()
	if db == nil {
		return false
	}
	var status JobStatus
	err := db.WithContext(ctx).Model(&Job{}).Where("id = ?", id).
		Pluck("status", &status).Error
	if err != nil {
		return false
	}
	return status == JobStatusCancelled
}

func GetJob(ctx context.Context, id string) (*Job, error) {
	db := config.GetDB()
	var job Job
	if err := db.WithContext(ctx).Where("id = ?", id).Take(&job).Error; err != nil {
		return nil, utils.ErrorRecordNotFound
	}
	return &job, nil
}

type JobFilter struct {
	Status   JobStatus
	ChurchId int
	ReportId int
	Text     string
	Limit    int
	Offset   int
}

const maxJobPageSize = 100

// ListJobs is the polling surface: cheap, filtered, paginated, returning
// items plus the unpaginated total.
func ListJobs(ctx context.Context, filter JobFilter) ([]*Job, int64, error) {
	db := config.GetDB()
	q := db.WithContext(ctx).Model(&Job{})

	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	if filter.ChurchId > 0 {
		q = q.Where("church_id = ?", filter.ChurchId)
	}
	if filter.ReportId > 0 {
		q = q.Where("report_id = ?", filter.ReportId)
	}
	if filter.Text != "" {
		like := "%" + filter.Text + "%"
		q = q.Where("type LIKE ? OR error_message LIKE ? OR id LIKE ?", like, like, like)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	if limit > maxJobPageSize {
		limit = maxJobPageSize
	}

	var items []*Job
	err := q.Order("created_at DESC, id DESC").Limit(limit).Offset(filter.Offset).Find(&items).Error
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}
