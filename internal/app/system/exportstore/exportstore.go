// Package exportstore publishes generated chart exports to a location
// that can be shared by URL: a local directory served under /exports, or
// an S3-compatible bucket.
package exportstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"
)

// Publisher stores one export object and returns its public URL.
type Publisher interface {
	Publish(ctx context.Context, key, contentType string, body []byte) (string, error)
}

// Config selects and configures a publisher.
type Config struct {
	Kind string // "local" or "s3"

	LocalPath string // directory for local exports
	LocalURL  string // URL prefix the directory is served under

	S3Region   string
	S3Bucket   string
	S3Prefix   string
	S3Endpoint string // optional, for S3-compatible services
	PublicURL  string // optional URL prefix in front of the bucket
}

// ErrInvalidKey is returned for keys that would escape the store root.
var ErrInvalidKey = errors.New("exportstore: invalid key")

// New builds the publisher named by cfg.Kind.
func New(ctx context.Context, cfg Config, logger *zap.Logger) (Publisher, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Kind)) {
	case "", "local":
		return NewLocal(cfg.LocalPath, cfg.LocalURL)
	case "s3":
		return NewS3(ctx, cfg, logger)
	default:
		return nil, fmt.Errorf("unknown export store %q (want local or s3)", cfg.Kind)
	}
}

// Key builds an object key for a chart export:
// <chart>/<yyyymmdd-hhmmss>-<filename>.
func Key(chartID, filename string, now time.Time) string {
	return path.Join(chartID, now.UTC().Format("20060102-150405")+"-"+filename)
}

func cleanKey(key string) (string, error) {
	for _, seg := range strings.Split(key, "/") {
		if seg == ".." {
			return "", ErrInvalidKey
		}
	}
	k := strings.TrimPrefix(path.Clean("/"+key), "/")
	if k == "" {
		return "", ErrInvalidKey
	}
	return k, nil
}

/*─────────────────────────────────────────────────────────────────────────────*
| Local directory                                                             |
*─────────────────────────────────────────────────────────────────────────────*/

// Local writes exports below a directory.
type Local struct {
	root    string
	baseURL string
}

// NewLocal creates the root directory if needed.
func NewLocal(root, baseURL string) (*Local, error) {
	if root == "" {
		return nil, errors.New("exportstore: local path is required")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create export dir: %w", err)
	}
	if baseURL == "" {
		baseURL = "/exports"
	}
	return &Local{root: root, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

// Root returns the directory exports are written to.
func (l *Local) Root() string { return l.root }

// Publish writes body to root/key and returns baseURL/key.
func (l *Local) Publish(ctx context.Context, key, contentType string, body []byte) (string, error) {
	k, err := cleanKey(key)
	if err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	dst := filepath.Join(l.root, filepath.FromSlash(k))
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return "", err
	}
	if err := os.WriteFile(dst, body, 0o644); err != nil {
		return "", err
	}
	return l.baseURL + "/" + escapePath(k), nil
}

/*─────────────────────────────────────────────────────────────────────────────*
| S3                                                                          |
*─────────────────────────────────────────────────────────────────────────────*/

// S3 uploads exports to a bucket.
type S3 struct {
	client    *s3.Client
	bucket    string
	prefix    string
	publicURL string
	log       *zap.Logger
}

// NewS3 builds an S3 publisher using the default AWS credential chain.
func NewS3(ctx context.Context, cfg Config, logger *zap.Logger) (*S3, error) {
	if cfg.S3Bucket == "" {
		return nil, errors.New("exportstore: s3 bucket is required")
	}
	region := cfg.S3Region
	if region == "" {
		region = "ap-southeast-3"
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.S3Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.S3Endpoint)
			o.UsePathStyle = true
		}
	})

	public := strings.TrimRight(cfg.PublicURL, "/")
	if public == "" {
		if cfg.S3Endpoint != "" {
			public = strings.TrimRight(cfg.S3Endpoint, "/") + "/" + cfg.S3Bucket
		} else {
			public = fmt.Sprintf("https://%s.s3.%s.amazonaws.com", cfg.S3Bucket, region)
		}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &S3{
		client:    client,
		bucket:    cfg.S3Bucket,
		prefix:    strings.Trim(cfg.S3Prefix, "/"),
		publicURL: public,
		log:       logger,
	}, nil
}

// Publish uploads body and returns its public URL.
func (s *S3) Publish(ctx context.Context, key, contentType string, body []byte) (string, error) {
	k, err := cleanKey(key)
	if err != nil {
		return "", err
	}
	if s.prefix != "" {
		k = s.prefix + "/" + k
	}
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(k),
		Body:          bytes.NewReader(body),
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(int64(len(body))),
	})
	if err != nil {
		return "", fmt.Errorf("put s3://%s/%s: %w", s.bucket, k, err)
	}
	s.log.Info("export published", zap.String("bucket", s.bucket), zap.String("key", k))
	return s.publicURL + "/" + escapePath(k), nil
}

func escapePath(k string) string {
	parts := strings.Split(k, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}
