package infrastructure

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3ImageStoreConfig 对象存储配置；Endpoint 用于 MinIO 等 S3 兼容服务。
type S3ImageStoreConfig struct {
	Bucket        string
	Region        string
	Endpoint      string
	Prefix        string
	PublicBaseURL string
}

// S3ImageStore 把卡片图片写入 S3 兼容的对象存储
type S3ImageStore struct {
	client *s3.Client
	cfg    S3ImageStoreConfig
}

// NewS3ImageStore 使用默认凭证链创建客户端。
func NewS3ImageStore(ctx context.Context, cfg S3ImageStoreConfig) (*S3ImageStore, error) {
	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return NewS3ImageStoreWithClient(s3.NewFromConfig(awsCfg, endpointOption(cfg.Endpoint)), cfg), nil
}

// NewS3ImageStoreWithClient 使用外部构造的客户端。
func NewS3ImageStoreWithClient(client *s3.Client, cfg S3ImageStoreConfig) *S3ImageStore {
	return &S3ImageStore{client: client, cfg: cfg}
}

func endpointOption(endpoint string) func(*s3.Options) {
	return func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true // MinIO / LocalStack 需要
		}
	}
}

// Put 上传图片并返回公开 URL
func (s *S3ImageStore) Put(ctx context.Context, key string, body []byte, contentType string) (string, error) {
	fullKey := s.cfg.Prefix + key
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.cfg.Bucket),
		Key:           aws.String(fullKey),
		Body:          bytes.NewReader(body),
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(int64(len(body))),
		CacheControl:  aws.String("public, max-age=86400"),
	})
	if err != nil {
		return "", fmt.Errorf("s3 put failed for %s: %w", fullKey, err)
	}
	return s.PublicURL(fullKey), nil
}

// PublicURL 优先使用配置的 CDN 地址，其次是自定义 endpoint，最后是 AWS 虚拟主机风格地址。
func (s *S3ImageStore) PublicURL(fullKey string) string {
	switch {
	case s.cfg.PublicBaseURL != "":
		return strings.TrimRight(s.cfg.PublicBaseURL, "/") + "/" + fullKey
	case s.cfg.Endpoint != "":
		return strings.TrimRight(s.cfg.Endpoint, "/") + "/" + s.cfg.Bucket + "/" + fullKey
	default:
		return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.cfg.Bucket, s.cfg.Region, fullKey)
	}
}
