package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/zhfeed/hnzh/internal/ingest"
	"github.com/zhfeed/hnzh/internal/logger"
)

// Archiver writes ingestion run summaries to an R2 bucket as an
// operational audit trail. Uploads are best-effort: a failed upload is
// logged and never affects the ingest response.
type Archiver struct {
	client *s3.Client
	bucket string
}

// NewR2Archiver builds an S3 client against a CloudFlare R2 endpoint.
func NewR2Archiver(ctx context.Context, endpoint, accessKey, secretKey, bucket string) (*Archiver, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion("auto"),
		awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(accessKey, secretKey, ""),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load R2 config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(endpoint)
	})

	return &Archiver{
		client: client,
		bucket: bucket,
	}, nil
}

type runSnapshot struct {
	Trigger    string                 `json:"trigger"`
	FinishedAt time.Time              `json:"finished_at"`
	ElapsedSec float64                `json:"elapsed_seconds"`
	Created    []ingest.CreatedItem   `json:"created"`
	Errors     []ingest.CategoryError `json:"errors,omitempty"`
}

// StoreRunSummary uploads one run summary under runs/YYYY/MM/DD/.
func (a *Archiver) StoreRunSummary(ctx context.Context, trigger string, summary ingest.Summary) {
	now := time.Now().UTC()
	snapshot := runSnapshot{
		Trigger:    trigger,
		FinishedAt: now,
		ElapsedSec: summary.Elapsed.Seconds(),
		Created:    summary.Created,
		Errors:     summary.Errors,
	}

	payload, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		logger.Get().Error().Err(err).Msg("Failed to marshal run snapshot")
		return
	}

	key := fmt.Sprintf("runs/%s/run-%s-%d.json", now.Format("2006/01/02"), trigger, now.Unix())
	_, err = a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(payload),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		logger.Get().Error().Err(err).Str("key", key).Msg("Failed to upload run snapshot")
		return
	}

	logger.Get().Info().Str("key", key).Int("created", len(summary.Created)).Msg("Run snapshot archived")
}
