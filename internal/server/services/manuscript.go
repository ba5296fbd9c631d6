package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"github.com/hungtran3011/research-review-sub001/internal/common"
	"github.com/hungtran3011/research-review-sub001/internal/server/config"
	"github.com/hungtran3011/research-review-sub001/internal/server/models"
	"github.com/hungtran3011/research-review-sub001/internal/server/repositories/repomanager"
	"github.com/hungtran3011/research-review-sub001/internal/server/workflow"
	"go.opentelemetry.io/otel/attribute"
)

var (
	loadDefaultAWSConfig = awsconfig.LoadDefaultConfig

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

// ManuscriptService hands out presigned object storage URLs for manuscript
// files. The bytes never pass through the server.
type ManuscriptService struct {
	base
	repomanager repomanager.RepositoryManager
	config      *config.Config
}

// NewManuscriptService constructs a ManuscriptService.
func NewManuscriptService(m repomanager.RepositoryManager, cfg *config.Config, opts ...Option) *ManuscriptService {
	return &ManuscriptService{base: newBase("manuscripts", opts), repomanager: m, config: cfg}
}

func articleKeyPrefix(articleID string) string {
	return "articles/" + articleID + "/"
}

// StorageKey returns a fresh object key under the article's prefix.
func StorageKey(articleID string, at time.Time) string {
	return fmt.Sprintf("%s%04d/%02d/%v", articleKeyPrefix(articleID), at.Year(), int(at.Month()), uuid.New())
}

func (s *ManuscriptService) getPresignClient(ctx context.Context) (*s3.PresignClient, error) {
	cfg, err := loadDefaultAWSConfig(ctx,
		awsconfig.WithRegion(s.config.S3Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			s.config.S3RootUser,
			s.config.S3RootPassword,
			"",
		)))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := newS3ClientFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(s.config.S3BaseEndpoint)
		o.UsePathStyle = true
	})

	return newS3PresignClient(client), nil
}

// UploadURL returns a new storage key and a presigned PUT URL for it. Only
// the article author may upload, and only while the article is SUBMITTED or
// in REVISIONS.
func (s *ManuscriptService) UploadURL(ctx context.Context, subject models.Subject, articleID string) (key, url string, err error) {
	ctx, end := s.startSpan(ctx, "ManuscriptService.UploadURL", attribute.String("article.id", articleID))
	defer func() { end(err) }()

	a, err := s.repomanager.Repositories().Articles().Get(ctx, articleID)
	if err != nil {
		return "", "", err
	}
	if subject.ID != a.AuthorID {
		return "", "", unauthorized(subject, "upload manuscripts for article "+a.ID)
	}
	if a.Status != models.StatusSubmitted && a.Status != models.StatusRevisions {
		return "", "", fmt.Errorf("%w: manuscripts cannot be uploaded in %s", common.ErrIllegalTransition, a.Status)
	}

	pc, err := s.getPresignClient(ctx)
	if err != nil {
		return "", "", err
	}

	bucket := s.config.S3Bucket
	key = StorageKey(a.ID, s.now())
	req, err := presignPutObject(pc, ctx, &s3.PutObjectInput{
		Bucket: &bucket,
		Key:    &key,
	}, s3.WithPresignExpires(s.config.ManuscriptURLValidityDuration))
	if err != nil {
		return "", "", fmt.Errorf("presign put: %w", err)
	}

	s.logger.Info(ctx, "manuscript upload url issued", "article_id", a.ID, "key", key)
	return key, req.URL, nil
}

// DownloadURL returns a presigned GET URL for a manuscript of the article.
// The author, editors and reviewers who accepted an invitation may download.
func (s *ManuscriptService) DownloadURL(ctx context.Context, subject models.Subject, articleID, key string) (url string, err error) {
	ctx, end := s.startSpan(ctx, "ManuscriptService.DownloadURL", attribute.String("article.id", articleID))
	defer func() { end(err) }()

	if !strings.HasPrefix(key, articleKeyPrefix(articleID)) || strings.Contains(key, "..") {
		return "", fmt.Errorf("%w: key does not belong to article %s", common.ErrorValidation, articleID)
	}

	r := s.repomanager.Repositories()
	a, err := r.Articles().Get(ctx, articleID)
	if err != nil {
		return "", err
	}
	if err := s.canDownload(ctx, r, subject, a); err != nil {
		return "", err
	}

	pc, err := s.getPresignClient(ctx)
	if err != nil {
		return "", err
	}

	bucket := s.config.S3Bucket
	req, err := presignGetObject(pc, ctx, &s3.GetObjectInput{
		Bucket: &bucket,
		Key:    &key,
	}, s3.WithPresignExpires(s.config.ManuscriptURLValidityDuration))
	if err != nil {
		return "", fmt.Errorf("presign get: %w", err)
	}
	return req.URL, nil
}

func (s *ManuscriptService) canDownload(ctx context.Context, r repomanager.Repositories, subject models.Subject, a *models.Article) error {
	if subject.ID == a.AuthorID || workflow.Capable(subject.Roles, models.RoleEditor) {
		return nil
	}
	as, err := r.Assignments().FindActive(ctx, a.ID, subject.ID)
	if err != nil && !errors.Is(err, common.ErrorNotFound) {
		return err
	}
	if err == nil && as.InvitationStatus == models.InvitationAccepted {
		return nil
	}
	return unauthorized(subject, "download manuscripts of article "+a.ID)
}
