package workflow

import (
	"context"
	"encoding/json"
	"os"
	"strings"
	"time"

	"github.com/parishops/registry_backend/config"
	"github.com/parishops/registry_backend/models"
	"github.com/sirupsen/logrus"
)

// CreateReportWithJob wraps the fan-out with job-lifecycle bookkeeping.
// The job is observability only: if StartJob fails the fan-out proceeds
// without an id, and a FailJob error is logged, never propagated, so it
// cannot mask the primary failure.
func CreateReportWithJob(ctx context.Context, actorId int, input *models.NewReport) (*models.CreateReportResult, string, error) {
	logger := config.GetLogger()

	jobId, err := models.StartJob(ctx, actorId, input.ChurchId, 0, models.JobTypeReportFanout, map[string]interface{}{
		"record_type":     input.RecordType,
		"title":           input.Title,
		"recipient_count": len(input.Recipients),
	})
	if err != nil {
		config.LogError(logger, "workflow", "CreateReportWithJob", "StartJob", nil, err)
		jobId = ""
	}

	onProgress := func(done, total int) {
		if jobId == "" || total == 0 {
			return
		}
		if err := models.UpdateJobProgress(ctx, jobId, done*100/total); err != nil {
			config.LogError(logger, "workflow", "CreateReportWithJob", "UpdateJobProgress", jobId, err)
		}
	}

	isCancelled := func() bool {
		return jobId != "" && models.IsJobCancelled(ctx, jobId)
	}

	result, err := models.CreateReport(ctx, actorId, input, models.NewColumnProber(), onProgress, isCancelled)
	if err != nil {
		// A cancelled job already carries its terminal status; FailJob
		// refuses to overwrite it anyway.
		if failErr := models.FailJob(ctx, jobId, err.Error()); failErr != nil {
			config.LogError(logger, "workflow", "CreateReportWithJob", "FailJob", jobId, failErr)
		}
		return nil, jobId, err
	}

	if completeErr := models.CompleteJob(ctx, jobId, result.ReportId, map[string]interface{}{
		"report_id":        result.ReportId,
		"recipient_count":  result.RecipientCount,
		"assignment_count": result.AssignmentCount,
		"skipped_count":    result.SkippedCount,
	}); completeErr != nil {
		config.LogError(logger, "workflow", "CreateReportWithJob", "CompleteJob", jobId, completeErr)
	}

	// Invitations carry the raw capability token, so they bypass the
	// durable outbox and go straight to the mailer topic. Fire-and-forget:
	// failures are logged and never reach the caller.
	DispatchInvitations(result.ReportId, input.ChurchId, result.Invitations)

	return result, jobId, nil
}

// DispatchInvitations publishes one mailer message per invitation on its
// own goroutine.
func DispatchInvitations(reportId int, churchId int, invitations []models.Invitation) {
	logger := config.GetLogger()
	go func() {
		for _, inv := range invitations {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			_, err := config.PublishMailerMessageWithResult(ctx, config.MailerMessage{
				ChurchId:  churchId,
				Kind:      models.MailerKindInvitation,
				Recipient: inv.Email,
				ReportId:  reportId,
				Payload:   invitationPayload(inv),
				QueuedAt:  time.Now().UTC(),
			})
			cancel()
			if err != nil {
				logger.WithFields(logrus.Fields{
					"module":    "workflow",
					"report_id": reportId,
					"recipient": inv.Email,
				}).Error("invitation publish failed: " + err.Error())
			}
		}
	}()
}

func linkBaseURL() string {
	if v := os.Getenv("PUBLIC_LINK_BASE_URL"); v != "" {
		return strings.TrimRight(v, "/")
	}
	return "http://localhost:8080/public/links"
}

func invitationPayload(inv models.Invitation) []byte {
	body, _ := json.Marshal(map[string]string{
		"link":       linkBaseURL() + "/" + inv.Token,
		"expires_at": inv.ExpiresAt.Format(time.RFC3339),
	})
	return body
}
