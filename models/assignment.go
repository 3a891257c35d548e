package models

import (
	"context"
	"time"

	"github.com/parishops/registry_backend/config"
)

// Assignment scopes one recipient to one record of the report's register
// table. ContextSnapshot holds a small JSON subset of the record (name and
// date fields) so the collaborator can recognize it without any access to
// the register itself.
type Assignment struct {
	ID              int       `gorm:"primary_key" json:"id"`
	ReportId        int       `gorm:"index;not null" json:"report_id"`
	RecipientId     int       `gorm:"index;not null" json:"recipient_id"`
	RecordId        int       `gorm:"not null" json:"record_id"`
	RecordTable     string    `gorm:"size:64;not null" json:"record_table"`
	ContextSnapshot string    `gorm:"type:text" json:"context_snapshot"`
	CreatedAt       time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func GetAssignmentsByRecipient(ctx context.Context, recipientId int) ([]*Assignment, error) {
	db := config.GetDB()
	var results []*Assignment
	err := db.WithContext(ctx).Where("recipient_id = ?", recipientId).Order("id ASC").Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}

func CountAssignmentsByReport(ctx context.Context, reportId int) (int64, error) {
	db := config.GetDB()
	var count int64
	err := db.WithContext(ctx).Model(&Assignment{}).Where("report_id = ?", reportId).Count(&count).Error
	return count, err
}
