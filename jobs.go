package main

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/parishops/registry_backend/middlewares"
	"github.com/parishops/registry_backend/models"
	"github.com/parishops/registry_backend/utils"
)

func listJobsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		role, _ := utils.GetUserRoleFromContext(ctx)
		claimChurchId, _ := utils.GetChurchIdFromContext(ctx)

		filter := models.JobFilter{
			Status: models.JobStatus(c.Query("status")),
			Text:   c.Query("q"),
		}
		if v, err := strconv.Atoi(c.Query("report_id")); err == nil {
			filter.ReportId = v
		}
		if v, err := strconv.Atoi(c.Query("limit")); err == nil {
			filter.Limit = v
		}
		if v, err := strconv.Atoi(c.Query("offset")); err == nil {
			filter.Offset = v
		}
		// Operators only see their own church's jobs.
		if role == string(models.UserRoleAdmin) {
			if v, err := strconv.Atoi(c.Query("church_id")); err == nil {
				filter.ChurchId = v
			}
		} else {
			filter.ChurchId = claimChurchId
		}

		items, total, err := models.ListJobs(ctx, filter)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not list jobs"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"items": items, "total": total})
	}
}

func jobForClaim(c *gin.Context) (*models.Job, bool) {
	job, err := models.GetJob(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
		return nil, false
	}
	claim := middlewares.CtxValue(c.Request.Context())
	if claim.Role != string(models.UserRoleAdmin) && claim.ChurchId != job.ChurchId {
		c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
		return nil, false
	}
	return job, true
}

func getJobHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		job, ok := jobForClaim(c)
		if !ok {
			return
		}
		c.JSON(http.StatusOK, job)
	}
}

func cancelJobHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		job, ok := jobForClaim(c)
		if !ok {
			return
		}
		if err := models.CancelJob(c.Request.Context(), job.ID); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "cancel failed"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "cancelled"})
	}
}
