package main

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/parishops/registry_backend/config"
	"github.com/parishops/registry_backend/middlewares"
	"github.com/parishops/registry_backend/models"
	"github.com/parishops/registry_backend/utils"
	"github.com/parishops/registry_backend/workflow"
	"github.com/xuri/excelize/v2"
)

// reportForClaim loads a report and enforces church scoping: operators
// only see their own church's reports, admins see everything.
func reportForClaim(c *gin.Context) (*models.Report, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid report id"})
		return nil, false
	}
	report, err := models.GetReport(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "report not found"})
		return nil, false
	}
	claim := middlewares.CtxValue(c.Request.Context())
	if claim.Role != string(models.UserRoleAdmin) && claim.ChurchId != report.ChurchId {
		c.JSON(http.StatusNotFound, gin.H{"error": "report not found"})
		return nil, false
	}
	return report, true
}

func createReportHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := tracer.Start(c.Request.Context(), "createReport")
		defer span.End()

		claim := middlewares.CtxValue(ctx)

		var input models.NewReport
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "validation failed", "fields": utils.ProcessValidationErrors(err)})
			return
		}
		if claim.Role != string(models.UserRoleAdmin) && claim.ChurchId != input.ChurchId {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		result, jobId, err := workflow.CreateReportWithJob(ctx, claim.ID, &input)
		if err != nil {
			if ve, ok := utils.AsValidationError(err); ok {
				c.JSON(http.StatusBadRequest, gin.H{"error": "validation failed", "fields": ve.Fields})
				return
			}
			if errors.Is(err, models.ErrFanoutCancelled) {
				c.JSON(http.StatusConflict, gin.H{"error": "report creation was cancelled", "job_id": jobId})
				return
			}
			config.LogError(config.GetLogger(), "reports.go", "createReportHandler", "CreateReportWithJob", input.Title, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "report creation failed"})
			return
		}

		c.JSON(http.StatusCreated, gin.H{
			"id":               result.ReportId,
			"recipient_count":  result.RecipientCount,
			"assignment_count": result.AssignmentCount,
			"skipped_count":    result.SkippedCount,
			"job_id":           jobId,
		})
	}
}

func getReportHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		report, ok := reportForClaim(c)
		if !ok {
			return
		}
		ctx := c.Request.Context()

		recipients, err := models.GetRecipientsByReport(ctx, report.ID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not load recipients"})
			return
		}
		auditEntries, err := models.GetAuditEntriesByReport(ctx, report.ID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not load audit trail"})
			return
		}
		assignmentCount, _ := models.CountAssignmentsByReport(ctx, report.ID)

		c.JSON(http.StatusOK, gin.H{
			"report":           report,
			"recipients":       recipients,
			"assignment_count": assignmentCount,
			"audit_entries":    auditEntries,
		})
	}
}

func revokeReportHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		report, ok := reportForClaim(c)
		if !ok {
			return
		}
		claim := middlewares.CtxValue(c.Request.Context())

		revoked, err := models.RevokeReport(c.Request.Context(), report.ID, claim.ID)
		if err != nil {
			if ve, ok := utils.AsValidationError(err); ok {
				c.JSON(http.StatusBadRequest, gin.H{"error": "validation failed", "fields": ve.Fields})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "revoke failed"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"report": revoked})
	}
}

func exportReportHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		report, ok := reportForClaim(c)
		if !ok {
			return
		}
		ctx := c.Request.Context()

		recipients, err := models.GetRecipientsByReport(ctx, report.ID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not load recipients"})
			return
		}

		f := excelize.NewFile()
		if _, err := f.NewSheet("Sheet1"); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "export failed"})
			return
		}

		f.SetCellValue("Sheet1", "A1", "Email")
		f.SetCellValue("Sheet1", "B1", "Status")
		f.SetCellValue("Sheet1", "C1", "AssignmentCount")
		f.SetCellValue("Sheet1", "D1", "LastAccessedAt")

		for i, r := range recipients {
			assignments, err := models.GetAssignmentsByRecipient(ctx, r.ID)
			if err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": "export failed"})
				return
			}
			lastAccessed := ""
			if r.LastAccessedAt != nil {
				lastAccessed = r.LastAccessedAt.Format("2006-01-02 15:04:05")
			}
			f.SetCellValue("Sheet1", "A"+fmt.Sprint(i+2), r.Email)
			f.SetCellValue("Sheet1", "B"+fmt.Sprint(i+2), string(r.Status))
			f.SetCellValue("Sheet1", "C"+fmt.Sprint(i+2), len(assignments))
			f.SetCellValue("Sheet1", "D"+fmt.Sprint(i+2), lastAccessed)
		}

		c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=report-%d.xlsx", report.ID))
		if err := f.Write(c.Writer); err != nil {
			config.LogError(config.GetLogger(), "reports.go", "exportReportHandler", "excelize.Write", report.ID, err)
		}
	}
}
