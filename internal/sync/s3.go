package sync

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	gosync "sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Destination writes JSONL exports to an S3-compatible bucket. An export
// identical to the previous upload is not sent again.
type S3Destination struct {
	client *s3.Client
	bucket string
	key    string

	mu   gosync.Mutex
	last string // hex sha256 of the last uploaded export
}

// NewS3Destination creates an S3 destination. If endpoint is non-empty,
// path-style addressing is enabled (for MinIO and similar).
func NewS3Destination(ctx context.Context, bucket, key, region, endpoint string) (*S3Destination, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	var s3opts []func(*s3.Options)
	if endpoint != "" {
		s3opts = append(s3opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		})
	}

	return &S3Destination{
		client: s3.NewFromConfig(cfg, s3opts...),
		bucket: bucket,
		key:    key,
	}, nil
}

func (d *S3Destination) String() string {
	return "s3://" + d.bucket + "/" + d.key
}

// Write uploads data as the configured object key. The digest is stored as
// object metadata so external readers can detect changes without a download.
func (d *S3Destination) Write(ctx context.Context, data []byte) error {
	sum := sha256.Sum256(exportBody(data))
	digest := hex.EncodeToString(sum[:])

	d.mu.Lock()
	defer d.mu.Unlock()
	if digest == d.last {
		return nil
	}

	_, err := d.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(d.bucket),
		Key:         aws.String(d.key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/x-ndjson"),
		Metadata:    map[string]string{"sha256": digest},
	})
	if err != nil {
		return fmt.Errorf("s3 put object %s/%s: %w", d.bucket, d.key, err)
	}
	d.last = digest
	return nil
}

// exportBody strips the header line, whose timestamp changes on every
// export, so the digest covers only specifications and values.
func exportBody(data []byte) []byte {
	if i := bytes.IndexByte(data, '\n'); i >= 0 {
		return data[i+1:]
	}
	return nil
}
