package models

import (
	"context"
	"time"

	"github.com/parishops/registry_backend/config"
	"github.com/sirupsen/logrus"
)

// Recipient is one invited external collaborator on a report. Only the
// token digest is stored; the raw token lives in the invitation link and
// is never persisted.
type Recipient struct {
	ID             int             `gorm:"primary_key" json:"id"`
	ReportId       int             `gorm:"index;not null" json:"report_id"`
	Email          string          `gorm:"size:100;not null" json:"email"`
	TokenHash      string          `gorm:"size:64;uniqueIndex;not null" json:"-"`
	Status         RecipientStatus `gorm:"size:10;not null;default:'sent'" json:"status"`
	LastAccessedAt *time.Time      `json:"last_accessed_at"`
	CreatedAt      time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func GetRecipientsByReport(ctx context.Context, reportId int) ([]*Recipient, error) {
	db := config.GetDB()
	var results []*Recipient
	err := db.WithContext(ctx).Where("report_id = ?", reportId).Order("id ASC").Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}

// TouchRecipientAccess records last-accessed bookkeeping for the token
// read path. It is fired on its own goroutine and its failure is logged
// only: the read must never block on or fail because of it.
func TouchRecipientAccess(recipientId int) {
	go func() {
		db := config.GetDB()
		if db == nil {
			return
		}
		now := time.Now().UTC()
		err := db.Model(&Recipient{}).Where("id = ?", recipientId).
			Update("last_accessed_at", now).Error
		if err != nil {
			config.GetLogger().WithFields(logrus.Fields{
				"module":       "recipient",
				"recipient_id": recipientId,
			}).Warn("failed to record last access: " + err.Error())
		}
	}()
}
