package workflow

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"github.com/parishops/registry_backend/config"
	"github.com/parishops/registry_backend/corrections"
	"github.com/sirupsen/logrus"
	"google.golang.org/api/option"
)

func getStorageClient(ctx context.Context) (*storage.Client, error) {
	// Prefer ADC; explicit JSON only when GCS_CREDENTIALS_JSON is set
	// (local development).
	if credJSON := os.Getenv("GCS_CREDENTIALS_JSON"); strings.TrimSpace(credJSON) != "" {
		return storage.NewClient(ctx, option.WithCredentialsJSON([]byte(credJSON)))
	}
	return storage.NewClient(ctx)
}

// ArchiveLedger copies a review job's correction log and its integrity
// digest to the archive bucket. Best effort: every failure is logged and
// returned, but callers treat it as a side effect and never fail the
// review flow on it. A missing log file is a no-op.
func ArchiveLedger(ctx context.Context, jobId string) error {
	logger := config.GetLogger()
	path := corrections.LedgerPath(corrections.DataDir(), jobId)

	digest, err := corrections.IntegrityDigest(path)
	if err != nil {
		config.LogError(logger, "workflow", "ArchiveLedger", "IntegrityDigest", jobId, err)
		return err
	}
	if digest == nil {
		return nil
	}

	bucketName := os.Getenv("GCS_BUCKET")
	if bucketName == "" {
		return errors.New("GCS_BUCKET is required")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		config.LogError(logger, "workflow", "ArchiveLedger", "ReadFile", jobId, err)
		return err
	}

	client, err := getStorageClient(ctx)
	if err != nil {
		config.LogError(logger, "workflow", "ArchiveLedger", "getStorageClient", jobId, err)
		return err
	}
	defer client.Close()

	objectName := "corrections/job-" + jobId + ".jsonl"
	wc := client.Bucket(bucketName).Object(objectName).NewWriter(ctx)
	wc.ContentType = "application/x-ndjson"
	wc.Metadata = map[string]string{
		"ledger-sha256": digest.SHA256,
		"ledger-size":   fmt.Sprintf("%d", digest.Size),
		"archived-at":   time.Now().UTC().Format(time.RFC3339),
	}
	if _, err := wc.Write(data); err != nil {
		wc.Close()
		config.LogError(logger, "workflow", "ArchiveLedger", "Write", jobId, err)
		return err
	}
	if err := wc.Close(); err != nil {
		config.LogError(logger, "workflow", "ArchiveLedger", "Close", jobId, err)
		return err
	}

	logger.WithFields(logrus.Fields{
		"module": "workflow",
		"job_id": jobId,
		"object": objectName,
		"sha256": digest.SHA256,
		"size":   digest.Size,
	}).Info("correction ledger archived")
	return nil
}
