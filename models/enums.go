package models

// RecordType is the closed set of register tables an operator may delegate
// corrections for. Anything else fails validation.
type RecordType string

const (
	RecordTypeBaptism      RecordType = "baptism"
	RecordTypeConfirmation RecordType = "confirmation"
	RecordTypeMarriage     RecordType = "marriage"
	RecordTypeFuneral      RecordType = "funeral"
	RecordTypeMember       RecordType = "member"
)

var recordTables = map[RecordType]string{
	RecordTypeBaptism:      "baptism_records",
	RecordTypeConfirmation: "confirmation_records",
	RecordTypeMarriage:     "marriage_records",
	RecordTypeFuneral:      "funeral_records",
	RecordTypeMember:       "member_records",
}

func (t RecordType) Valid() bool {
	_, ok := recordTables[t]
	return ok
}

// RecordTable maps a record type to its register table name.
func (t RecordType) RecordTable() string {
	return recordTables[t]
}

type ReportStatus string

const (
	ReportStatusSent    ReportStatus = "sent"
	ReportStatusRevoked ReportStatus = "revoked"
	ReportStatusExpired ReportStatus = "expired"
)

type RecipientStatus string

const (
	RecipientStatusSent      RecipientStatus = "sent"
	RecipientStatusSubmitted RecipientStatus = "submitted"
	RecipientStatusRevoked   RecipientStatus = "revoked"
)

type JobStatus string

const (
	JobStatusPending   JobStatus = "PENDING"
	JobStatusRunning   JobStatus = "RUNNING"
	JobStatusCompleted JobStatus = "COMPLETED"
	JobStatusFailed    JobStatus = "FAILED"
	JobStatusCancelled JobStatus = "CANCELLED"
)

type UserRole string

const (
	UserRoleAdmin    UserRole = "A"
	UserRoleOperator UserRole = "O"
	UserRoleClerk    UserRole = "C"
)

type AuditActorType string

const (
	AuditActorOperator  AuditActorType = "operator"
	AuditActorRecipient AuditActorType = "recipient"
	AuditActorSystem    AuditActorType = "system"
)

const (
	AuditActionSent      = "sent"
	AuditActionSubmitted = "submitted"
	AuditActionRevoked   = "revoked"
)

// Mailer outbox publish states, worker-side.
const (
	OutboxPublishStatusPending    = "PENDING"
	OutboxPublishStatusProcessing = "PROCESSING"
	OutboxPublishStatusSent       = "SENT"
	OutboxPublishStatusFailed     = "FAILED"
	OutboxPublishStatusDead       = "DEAD"
)

const (
	MailerKindInvitation        = "invitation"
	MailerKindSubmissionSummary = "submission_summary"
)
