package models

import (
	"context"
	"encoding/json"
	"time"

	"github.com/parishops/registry_backend/config"
	"gorm.io/gorm"
)

// AuditEntry is the append-style lifecycle trail of a report: sent,
// submitted, revoked. Entries are only ever inserted.
type AuditEntry struct {
	ID        int            `gorm:"primary_key" json:"id"`
	ReportId  int            `gorm:"index;not null" json:"report_id"`
	ActorType AuditActorType `gorm:"size:20;not null" json:"actor_type"`
	ActorId   int            `gorm:"index" json:"actor_id"`
	Action    string         `gorm:"size:20;not null" json:"action"`
	Details   string         `gorm:"type:text" json:"details"`
	CreatedAt time.Time      `gorm:"autoCreateTime" json:"created_at"`
}

func appendAuditEntry(tx *gorm.DB, reportId int, actorType AuditActorType, actorId int, action string, details interface{}) error {
	d, _ := json.Marshal(details)

	entry := AuditEntry{
		ReportId:  reportId,
		ActorType: actorType,
		ActorId:   actorId,
		Action:    action,
		Details:   string(d),
	}
	return tx.Create(&entry).Error
}

func GetAuditEntriesByReport(ctx context.Context, reportId int) ([]*AuditEntry, error) {
	db := config.GetDB()
	var results []*AuditEntry
	err := db.WithContext(ctx).Where("report_id = ?", reportId).Order("created_at ASC, id ASC").Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}
