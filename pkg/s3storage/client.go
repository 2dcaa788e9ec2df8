// Package s3storage архивирует загруженные документы в S3-совместимое хранилище.
//
// Архив опционален и работает best-effort: ошибка загрузки логируется
// вызывающим, но не влияет на ответ клиенту.
package s3storage

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/ronaldyipts/lds-ilo-chatbot/pkg/config"
)

// Archiver определяет интерфейс архива документов.
// Используется для мокания в тестах и внедрения зависимостей.
type Archiver interface {
	Upload(ctx context.Context, key string, data []byte, contentType string) error
	Key(now time.Time, filename string) string
}

// Client — архив поверх minio.
type Client struct {
	api    *minio.Client
	bucket string
	prefix string
}

// Проверка что Client реализует Archiver
var _ Archiver = (*Client)(nil)

// New создает клиент, используя наш конфиг
func New(cfg config.S3Config) (*Client, error) {
	minioClient, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	return &Client{
		api:    minioClient,
		bucket: cfg.Bucket,
		prefix: cfg.Prefix,
	}, nil
}

// Upload кладёт объект целиком из памяти.
func (c *Client) Upload(ctx context.Context, key string, data []byte, contentType string) error {
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	_, err := c.api.PutObject(ctx, c.bucket, key, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return fmt.Errorf("put object %s: %w", key, err)
	}
	return nil
}

// Key возвращает ключ архива с префиксом клиента.
func (c *Client) Key(now time.Time, filename string) string {
	return ArchiveKey(c.prefix, now, filename)
}

// ArchiveKey строит ключ вида [prefix/]documents/YYYY/MM/DD/<uuid>-<filename>.
//
// Дата берётся в UTC.
func ArchiveKey(prefix string, now time.Time, filename string) string {
	day := now.UTC().Format("2006/01/02")
	name := uuid.NewString() + "-" + filename

	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return path.Join("documents", day, name)
	}
	return path.Join(prefix, "documents", day, name)
}
