package main

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/parishops/registry_backend/config"
	"github.com/parishops/registry_backend/models"
	"github.com/parishops/registry_backend/utils"
	"github.com/sirupsen/logrus"
)

// linkUnavailable is the single caller-facing answer for an invalid,
// expired or revoked token. The real cause goes to the log only; leaking
// which failure applies would tell a token-guessing caller more than it
// should know.
func linkUnavailable(c *gin.Context, token string, err error) {
	config.GetLogger().WithFields(logrus.Fields{
		"field":        "publicLinks",
		"token_prefix": utils.CapabilityTokenPrefix(token),
		"client_ip":    c.ClientIP(),
	}).Warn("link resolution rejected: " + err.Error())
	c.JSON(http.StatusGone, gin.H{"error": "link unavailable"})
}

func publicLinkHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.Param("token")

		link, err := models.ResolveByToken(c.Request.Context(), token)
		if err != nil {
			if utils.IsLinkUnavailable(err) {
				linkUnavailable(c, token, err)
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "something went wrong"})
			return
		}

		var allowedFields []string
		_ = json.Unmarshal([]byte(link.Report.AllowedFields), &allowedFields)

		c.JSON(http.StatusOK, gin.H{
			"report": gin.H{
				"title":          link.Report.Title,
				"record_type":    link.Report.RecordType,
				"allowed_fields": allowedFields,
				"expires_at":     link.Report.ExpiresAt,
			},
			"recipient": gin.H{
				"email":  link.Recipient.Email,
				"status": link.Recipient.Status,
			},
			"assignments": link.Assignments,
		})
	}
}

type submissionInput struct {
	Patches []models.SubmissionPatch `json:"patches" binding:"required"`
}

func publicSubmissionHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.Param("token")

		link, err := models.ResolveByToken(c.Request.Context(), token)
		if err != nil {
			if utils.IsLinkUnavailable(err) {
				linkUnavailable(c, token, err)
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "something went wrong"})
			return
		}

		var input submissionInput
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "patches required"})
			return
		}

		// Patches may only touch this recipient's assignments and the
		// report's allowed fields.
		assignmentIds := make(map[int]bool, len(link.Assignments))
		for _, a := range link.Assignments {
			assignmentIds[a.ID] = true
		}
		var allowedFields []string
		_ = json.Unmarshal([]byte(link.Report.AllowedFields), &allowedFields)
		allowed := make(map[string]bool, len(allowedFields))
		for _, fld := range allowedFields {
			allowed[fld] = true
		}
		for _, p := range input.Patches {
			if !assignmentIds[p.AssignmentId] {
				c.JSON(http.StatusBadRequest, gin.H{"error": "unknown assignment"})
				return
			}
			if !allowed[p.Field] {
				c.JSON(http.StatusBadRequest, gin.H{"error": "field not editable: " + p.Field})
				return
			}
		}

		if err := models.RecordSubmission(c.Request.Context(), link.Recipient.ID, input.Patches); err != nil {
			config.LogError(config.GetLogger(), "publicLinks.go", "publicSubmissionHandler", "RecordSubmission", link.Recipient.ID, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "submission failed"})
			return
		}

		c.JSON(http.StatusOK, gin.H{"status": "submitted", "patch_count": len(input.Patches)})
	}
}
