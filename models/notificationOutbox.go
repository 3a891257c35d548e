package models

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/parishops/registry_backend/config"
	"github.com/parishops/registry_backend/utils"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// MailerOutboxRecord is a transactional-outbox row for the notification
// side channel: written inside the caller's transaction, published to the
// mailer topic asynchronously by the dispatcher after commit. Delivery
// failures stay in this table and never reach the primary request.
//
// Invitation links are the one exception to the outbox: their payload
// would persist the raw capability token, so they are published directly
// (see workflow.DispatchInvitations).
type MailerOutboxRecord struct {
	ID               int        `gorm:"primary_key" json:"id"`
	ChurchId         int        `gorm:"index;not null" json:"church_id"`
	Kind             string     `gorm:"size:40;not null" json:"kind"`
	RecipientEmail   string     `gorm:"size:100;not null" json:"recipient_email"`
	ReportId         int        `gorm:"index" json:"report_id"`
	Payload          []byte     `json:"payload"`
	PublishStatus    string     `gorm:"size:12;index;not null;default:'PENDING'" json:"publish_status"`
	PublishAttempts  int        `gorm:"not null;default:0" json:"publish_attempts"`
	LastPublishError *string    `json:"last_publish_error"`
	NextAttemptAt    *time.Time `json:"next_attempt_at"`
	LockedAt         *time.Time `json:"locked_at"`
	LockedBy         *string    `json:"locked_by"`
	CorrelationId    string     `gorm:"size:36" json:"correlation_id"`
	PubSubMessageId  *string    `gorm:"size:64" json:"pub_sub_message_id"`
	CreatedAt        time.Time  `gorm:"autoCreateTime" json:"created_at"`
	PublishedAt      *time.Time `json:"published_at"`
}

// EnqueueMailerMessage writes the outbox row inside the caller's
// transaction. recipientUserId is resolved to an email address here so
// the dispatcher needs no joins.
func EnqueueMailerMessage(ctx context.Context, tx *gorm.DB, churchId int, kind string, recipientUserId int, reportId int, payload interface{}) error {
	var user User
	lookupErr := tx.First(&user, recipientUserId).Error
	email, deliverable := mailerRecipientEmail(&user, lookupErr)
	if !deliverable {
		if lookupErr != nil {
			config.GetLogger().WithFields(logrus.Fields{
				"module":  "notificationOutbox",
				"user_id": recipientUserId,
			}).Warn("mailer enqueue skipped, operator lookup failed: " + lookupErr.Error())
		}
		return nil
	}

	p, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	record := MailerOutboxRecord{
		ChurchId:       churchId,
		Kind:           kind,
		RecipientEmail: email,
		ReportId:       reportId,
		Payload:        p,
		PublishStatus:  OutboxPublishStatusPending,
		CorrelationId:  correlationIdFromContextOrNew(ctx),
	}
	return tx.Create(&record).Error
}

// mailerRecipientEmail decides whether the operator lookup produced a
// deliverable address. A failed lookup and a missing address both mean
// "nothing to deliver": the mail is best-effort and must never fail the
// caller's transaction.
func mailerRecipientEmail(user *User, lookupErr error) (string, bool) {
	if lookupErr != nil {
		return "", false
	}
	email := utils.DereferencePtr(user.Email, "")
	return email, email != ""
}

func correlationIdFromContextOrNew(ctx context.Context) string {
	if ctx != nil {
		if v, ok := utils.GetCorrelationIdFromContext(ctx); ok && v != "" {
			return v
		}
	}
	return uuid.NewString()
}
