// Package avatars uploads profile pictures to bucket storage and records
// the resulting URL on the user's profile row.
package avatars

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/carelinkhq/carelink/internal/client/profiles"
	"github.com/carelinkhq/carelink/internal/logging"
	"github.com/carelinkhq/carelink/internal/netx"
	"github.com/google/uuid"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

var (
	loadDefaultAWSConfig = config.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}

	newS3PresignClient = func(c *s3.Client) *s3.PresignClient {
		return s3.NewPresignClient(c)
	}

	presignPutObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return pc.PresignPutObject(ctx, in, optFns...)
	}

	presignGetObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return pc.PresignGetObject(ctx, in, optFns...)
	}
)

// Config holds the bucket settings for avatar storage.
type Config struct {
	Region        string
	AccessKey     string
	SecretKey     string
	BaseEndpoint  string
	Bucket        string
	PublicBaseURL string
}

// Service presigns avatar uploads, pushes the bytes, and writes the public
// URL back to the profiles table.
type Service struct {
	store  profiles.Store
	config Config
	http   *http.Client
	log    logging.Logger
}

func NewService(store profiles.Store, cfg Config, client *http.Client, log logging.Logger) *Service {
	if client == nil {
		client = http.DefaultClient
	}
	if log == nil {
		log = logging.Nop()
	}
	return &Service{store: store, config: cfg, http: client, log: log}
}

// storageKey scopes objects per user so re-uploads never collide.
func storageKey(userID string) string {
	return fmt.Sprintf("avatars/%s/%s", userID, uuid.New())
}

func (s *Service) getPresignClient(ctx context.Context) (*s3.PresignClient, error) {
	cfg, err := loadDefaultAWSConfig(ctx,
		config.WithRegion(s.config.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			s.config.AccessKey,
			s.config.SecretKey,
			"",
		)))
	if err != nil {
		return nil, err
	}

	client := newS3ClientFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(s.config.BaseEndpoint)
	})

	return newS3PresignClient(client), nil
}

func (s *Service) presignedPutURL(ctx context.Context, key string) (string, error) {
	presignClient, err := s.getPresignClient(ctx)
	if err != nil {
		return "", err
	}

	bucket := s.config.Bucket

	req, err := presignPutObject(presignClient, ctx, &s3.PutObjectInput{
		Bucket: &bucket,
		Key:    &key,
	}, s3.WithPresignExpires(15*time.Minute))
	if err != nil {
		return "", err
	}

	return req.URL, nil
}

// publicURL derives the browsable object URL from the configured public base
// (or the bucket endpoint when no CDN/base is set).
func (s *Service) publicURL(key string) string {
	base := s.config.PublicBaseURL
	if base == "" {
		base = strings.TrimRight(s.config.BaseEndpoint, "/") + "/" + s.config.Bucket
	}
	return strings.TrimRight(base, "/") + "/" + key
}

// PresignedGetURL returns a time-limited download URL for a stored object
// key, for buckets that are not publicly readable.
func (s *Service) PresignedGetURL(ctx context.Context, key string) (string, error) {
	presignClient, err := s.getPresignClient(ctx)
	if err != nil {
		return "", err
	}

	bucket := s.config.Bucket

	req, err := presignGetObject(presignClient, ctx, &s3.GetObjectInput{
		Bucket: &bucket,
		Key:    &key,
	}, s3.WithPresignExpires(15*time.Minute))
	if err != nil {
		return "", err
	}

	return req.URL, nil
}

// Upload presigns a PUT for a fresh object key, uploads the image bytes, and
// records the public URL on the user's profile. Returns the stored URL.
func (s *Service) Upload(ctx context.Context, userID string, data []byte, contentType string) (string, error) {
	key := storageKey(userID)

	url, err := s.presignedPutURL(ctx, key)
	if err != nil {
		return "", fmt.Errorf("presigning avatar upload: %w", err)
	}

	if err := netx.UploadToPresignedURL(ctx, s.http, url, data, contentType); err != nil {
		return "", fmt.Errorf("uploading avatar: %w", err)
	}

	publicURL := s.publicURL(key)

	if err := s.store.SetAvatar(ctx, userID, publicURL); err != nil {
		return "", fmt.Errorf("saving avatar url: %w", err)
	}

	s.log.Info(ctx, "avatar uploaded", "user_id", userID, "key", key)
	return publicURL, nil
}
