// Package storage реализует загрузку файлов в S3-совместимое объектное хранилище.
package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
)

// Config содержит параметры подключения к объектному хранилищу.
type Config struct {
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
	Endpoint  string
}

// S3Storage загружает объекты в заданный бакет.
type S3Storage struct {
	client   *s3.S3
	bucket   string
	endpoint string
}

// NewS3Storage создаёт клиент объектного хранилища.
func NewS3Storage(cfg Config) (*S3Storage, error) {
	if cfg.AccessKey == "" || cfg.SecretKey == "" || cfg.Bucket == "" || cfg.Endpoint == "" {
		return nil, errors.New("storage: access key, secret key, bucket and endpoint are required")
	}

	sess, err := session.NewSession(&aws.Config{
		Region:   aws.String(cfg.Region),
		Endpoint: aws.String(cfg.Endpoint),
		Credentials: credentials.NewStaticCredentials(
			cfg.AccessKey, cfg.SecretKey, "",
		),
	})
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	return &S3Storage{
		client:   s3.New(sess),
		bucket:   cfg.Bucket,
		endpoint: cfg.Endpoint,
	}, nil
}

// Upload загружает объект под указанным ключом и возвращает публичный URL.
// Объект доступен на чтение без подписи: подтверждения платежей
// просматриваются администраторами по прямой ссылке.
func (s *S3Storage) Upload(ctx context.Context, key, contentType string, data []byte) (string, error) {
	_, err := s.client.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String(contentType),
		ACL:           aws.String("public-read"),
	})
	if err != nil {
		return "", fmt.Errorf("upload object: %w", err)
	}

	host := strings.TrimPrefix(strings.TrimPrefix(s.endpoint, "https://"), "http://")
	return fmt.Sprintf("https://%s.%s/%s", s.bucket, host, key), nil
}
