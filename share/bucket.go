package share

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

// DefaultLinkExpiry is how long presigned share links stay valid.
const DefaultLinkExpiry = 24 * time.Hour

// BucketConfig holds the settings of an S3-compatible bucket.
type BucketConfig struct {
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	Bucket    string
	Prefix    string
	Expiry    time.Duration
}

// Enabled reports whether enough settings are present to build a Bucket.
func (c BucketConfig) Enabled() bool {
	return c.Endpoint != "" && c.AccessKey != "" && c.Bucket != ""
}

// objectAPI is the subset of the S3 client used by Bucket.
type objectAPI interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// presignAPI is the subset of the presign client used by Bucket.
type presignAPI interface {
	PresignGetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*PresignedRequest, error)
}

// PresignedRequest mirrors the fields of the SDK's presigned request that
// Bucket needs.
type PresignedRequest struct {
	URL string
}

type sdkPresigner struct {
	client *s3.PresignClient
}

func (p sdkPresigner) PresignGetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*PresignedRequest, error) {
	req, err := p.client.PresignGetObject(ctx, in, optFns...)
	if err != nil {
		return nil, err
	}
	return &PresignedRequest{URL: req.URL}, nil
}

// Bucket uploads the first shareable file to an S3-compatible bucket and
// returns a presigned download link.
type Bucket struct {
	objects objectAPI
	presign presignAPI
	bucket  string
	prefix  string
	expiry  time.Duration
	logger  *slog.Logger
}

// NewBucket creates a Bucket from cfg using path-style addressing, which works
// with MinIO and other S3-compatible stores.
func NewBucket(cfg BucketConfig, logger *slog.Logger) (*Bucket, error) {
	if !cfg.Enabled() {
		return nil, fmt.Errorf("share bucket: endpoint, access key and bucket are required")
	}
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}
	client := s3.New(s3.Options{
		Region:       region,
		BaseEndpoint: aws.String(cfg.Endpoint),
		Credentials:  credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		UsePathStyle: true,
	})
	return newBucket(client, sdkPresigner{client: s3.NewPresignClient(client)}, cfg, logger), nil
}

func newBucket(objects objectAPI, presign presignAPI, cfg BucketConfig, logger *slog.Logger) *Bucket {
	if logger == nil {
		logger = slog.Default()
	}
	expiry := cfg.Expiry
	if expiry <= 0 {
		expiry = DefaultLinkExpiry
	}
	return &Bucket{
		objects: objects,
		presign: presign,
		bucket:  cfg.Bucket,
		prefix:  strings.Trim(cfg.Prefix, "/"),
		expiry:  expiry,
		logger:  logger,
	}
}

// CanShare accepts any non-empty image.
func (b *Bucket) CanShare(f File) bool {
	return b != nil && len(f.Data) > 0 && strings.HasPrefix(f.ContentType, "image/")
}

// Share uploads the first file of p and returns a presigned link to it.
func (b *Bucket) Share(ctx context.Context, p Payload) (Receipt, error) {
	var file *File
	for i := range p.Files {
		if b.CanShare(p.Files[i]) {
			file = &p.Files[i]
			break
		}
	}
	if file == nil {
		return Receipt{}, ErrUnsupported
	}
	if err := ctx.Err(); err != nil {
		return Receipt{}, ErrCancelled
	}

	key := b.objectKey(file.Name)
	_, err := b.objects.PutObject(ctx, &s3.PutObjectInput{
		Bucket:             aws.String(b.bucket),
		Key:                aws.String(key),
		Body:               bytes.NewReader(file.Data),
		ContentLength:      aws.Int64(int64(len(file.Data))),
		ContentType:        aws.String(file.ContentType),
		ContentDisposition: aws.String(fmt.Sprintf("attachment; filename=%q", file.Name)),
	})
	if err != nil {
		if cancelled(err) {
			return Receipt{}, ErrCancelled
		}
		return Receipt{}, fmt.Errorf("s3 upload %s/%s: %w", b.bucket, key, err)
	}

	req, err := b.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(b.expiry))
	if err != nil {
		if cancelled(err) {
			return Receipt{}, ErrCancelled
		}
		return Receipt{}, fmt.Errorf("s3 presign %s/%s: %w", b.bucket, key, err)
	}

	b.logger.Info("post shared", "bucket", b.bucket, "key", key, "title", p.Title, "expires", b.expiry.String())
	return Receipt{URL: req.URL}, nil
}

func (b *Bucket) objectKey(name string) string {
	ext := path.Ext(name)
	if ext == "" {
		ext = ".png"
	}
	key := uuid.NewString() + ext
	if b.prefix != "" {
		key = b.prefix + "/" + key
	}
	return key
}
