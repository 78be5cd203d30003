package s3

import (
	"context"
	"fmt"
	"io"
	"log"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	conf "github.com/StoneRaptor5870/image-processor/internal/config"
)

// Storage is an explicitly constructed S3 client; callers inject it instead
// of reaching for process-wide SDK state, which keeps the pipeline testable.
type Storage struct {
	Bucket     string
	Region     string
	Endpoint   string // optional, R2 / MinIO style stores
	PublicBase string

	S3Client *s3.Client
	Uploader *manager.Uploader
}

func NewStorage(cfg *conf.S3Config) (*Storage, error) {
	s := &Storage{
		Bucket:     cfg.Bucket,
		Region:     cfg.Region,
		Endpoint:   cfg.Endpoint,
		PublicBase: strings.TrimSuffix(cfg.PublicBase, "/"),
	}

	awsCfg, err := config.LoadDefaultConfig(context.TODO(),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID, cfg.SecretKey, "",
		)),
		config.WithRegion(cfg.Region),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	s.S3Client = s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if s.Endpoint != "" {
			o.BaseEndpoint = aws.String(s.Endpoint)
			o.UsePathStyle = true
		}
	})
	s.Uploader = manager.NewUploader(s.S3Client)

	log.Println("s3: client initialized")
	return s, nil
}

// Put streams body into the bucket under key. The managed uploader consumes
// the reader in parts, so arbitrarily large payloads never sit in memory
// whole. Returns the durable location of the stored object.
func (s *Storage) Put(ctx context.Context, key string, body io.Reader, contentType string) (string, error) {
	_, err := s.Uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.Bucket),
		Key:         aws.String(key),
		Body:        body,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("upload %q: %w", key, err)
	}

	return s.Location(key), nil
}

// Location renders the externally retrievable address of an object.
func (s *Storage) Location(key string) string {
	if s.PublicBase != "" {
		return fmt.Sprintf("%s/%s", s.PublicBase, key)
	}
	if s.Endpoint != "" {
		return fmt.Sprintf("%s/%s/%s", strings.TrimSuffix(s.Endpoint, "/"), s.Bucket, key)
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.Bucket, s.Region, key)
}
