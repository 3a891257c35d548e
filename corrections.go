package main

import (
	"context"
	"net/http"
	"time"

	"github.com/bsm/redislock"
	"github.com/gin-gonic/gin"
	"github.com/parishops/registry_backend/config"
	"github.com/parishops/registry_backend/corrections"
	"github.com/parishops/registry_backend/utils"
	"github.com/parishops/registry_backend/workflow"
	"github.com/sirupsen/logrus"
)

// The ledger assumes a single active writer per review job. Writers take
// a short redis lock keyed by job id; a held lock means another reviewer
// is mid-write and the caller gets 409. With redis down the write goes
// through unguarded, which matches single-reviewer reality.
func obtainLedgerLock(c *gin.Context, jobId string) (*redislock.Lock, bool) {
	locker := config.GetRedisLock()
	if locker == nil {
		config.GetLogger().WithFields(logrus.Fields{
			"field":  "corrections",
			"job_id": jobId,
		}).Warn("redis lock not ready; appending without ledger lock")
		return nil, true
	}
	lock, err := locker.Obtain(c.Request.Context(), "ledger:"+jobId, 5*time.Second, nil)
	if err == redislock.ErrNotObtained {
		c.JSON(http.StatusConflict, gin.H{"error": "another review session is writing this ledger"})
		return nil, false
	}
	if err != nil {
		config.GetLogger().WithFields(logrus.Fields{
			"field":  "corrections",
			"job_id": jobId,
		}).Warn("error obtaining ledger lock; appending without it: " + err.Error())
		return nil, true
	}
	return lock, true
}

func appendCorrectionHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		jobId := c.Param("jobId")

		var ec corrections.EditContext
		if err := c.ShouldBindJSON(&ec); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if ec.FieldName == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "field_name required"})
			return
		}
		ec.JobId = jobId
		if userId, ok := utils.GetUserIdFromContext(c.Request.Context()); ok {
			ec.UserId = userId
		}

		lock, ok := obtainLedgerLock(c, jobId)
		if !ok {
			return
		}
		if lock != nil {
			defer func() {
				if err := lock.Release(c.Request.Context()); err != nil {
					config.GetLogger().WithFields(logrus.Fields{
						"field":  "corrections",
						"job_id": jobId,
					}).Warn("failed to release ledger lock: " + err.Error())
				}
			}()
		}

		event := corrections.BuildEvent(ec)
		path := corrections.LedgerPath(corrections.DataDir(), jobId)
		written, err := corrections.Append(path, event)
		if err != nil {
			config.LogError(config.GetLogger(), "corrections.go", "appendCorrectionHandler", "Append", jobId, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not record correction"})
			return
		}

		// A commit edit closes the review pass; push the ledger to the
		// archive bucket in the background. Best effort.
		if ec.EditSource == corrections.EditSourceCommit {
			go func() {
				archiveCtx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
				defer cancel()
				_ = workflow.ArchiveLedger(archiveCtx, jobId)
			}()
		}

		c.JSON(http.StatusOK, gin.H{"written": written, "event": event})
	}
}

func listCorrectionsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		jobId := c.Param("jobId")
		path := corrections.LedgerPath(corrections.DataDir(), jobId)

		events, err := corrections.Load(path)
		if err != nil {
			config.LogError(config.GetLogger(), "corrections.go", "listCorrectionsHandler", "Load", jobId, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not read ledger"})
			return
		}
		if events == nil {
			events = []corrections.Event{}
		}
		c.JSON(http.StatusOK, gin.H{"events": events, "total": len(events)})
	}
}

func correctionSummaryHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		jobId := c.Param("jobId")
		path := corrections.LedgerPath(corrections.DataDir(), jobId)

		events, err := corrections.Load(path)
		if err != nil {
			config.LogError(config.GetLogger(), "corrections.go", "correctionSummaryHandler", "Load", jobId, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not read ledger"})
			return
		}
		c.JSON(http.StatusOK, corrections.Summarize(jobId, events))
	}
}

func correctionDigestHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		jobId := c.Param("jobId")
		path := corrections.LedgerPath(corrections.DataDir(), jobId)

		digest, err := corrections.IntegrityDigest(path)
		if err != nil {
			config.LogError(config.GetLogger(), "corrections.go", "correctionDigestHandler", "IntegrityDigest", jobId, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not read ledger"})
			return
		}

		// Remember the last observed digest per job so a caller can tell
		// whether the ledger changed since they last looked. Redis being
		// down just means "changed" is never reported.
		var changed *bool
		if digest != nil {
			if prev, found, err := config.GetRedisValue("LedgerDigest:" + jobId); err == nil && found {
				v := prev != digest.SHA256
				changed = &v
			}
			_ = config.SetRedisValue("LedgerDigest:"+jobId, digest.SHA256, 24*time.Hour)
		}

		// digest is null when no ledger exists yet for this job.
		c.JSON(http.StatusOK, gin.H{"job_id": jobId, "digest": digest, "changed_since_last_observation": changed})
	}
}
