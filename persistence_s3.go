/*
Copyright (C) 2026  YourDB Contributors

    This program is free software: you can redistribute it and/or modify
    it under the terms of the GNU General Public License as published by
    the Free Software Foundation, either version 3 of the License, or
    (at your option) any later version.

    This program is distributed in the hope that it will be useful,
    but WITHOUT ANY WARRANTY; without even the implied warranty of
    MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
    GNU General Public License for more details.

    You should have received a copy of the GNU General Public License
    along with this program.  If not, see <https://www.gnu.org/licenses/>.
*/
package yourdb

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

/*
S3Backend is an alternate PersistenceBackend: a database root becomes an
object-key prefix in an S3-compatible bucket, grounded directly on the
teacher's S3Storage (persistence-s3.go). S3 has no append primitive, so
"append" means buffer-then-PUT-the-whole-object, same tradeoff the teacher
documents for its own log segments; a PUT return is this backend's
durability boundary in place of fsync, so the returned writer implements
Syncer by PUTting the whole buffered object.
*/
type S3Config struct {
	AccessKeyID     string
	SecretAccessKey string
	Region          string
	Endpoint        string // custom endpoint for S3-compatible storage (MinIO, etc.)
	Bucket          string
	Prefix          string
	ForcePathStyle  bool
}

type S3Backend struct {
	cfg S3Config

	mu     sync.Mutex
	client *s3.Client
	opened bool
}

// NewS3Backend constructs a PersistenceBackend rooted at cfg.Prefix within
// cfg.Bucket. The underlying client is lazily created on first use.
func NewS3Backend(cfg S3Config) *S3Backend {
	return &S3Backend{cfg: cfg}
}

func (s *S3Backend) ensureOpen() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.opened {
		return nil
	}

	ctx := context.Background()
	var opts []func(*config.LoadOptions) error
	if s.cfg.Region != "" {
		opts = append(opts, config.WithRegion(s.cfg.Region))
	}
	if s.cfg.AccessKeyID != "" && s.cfg.SecretAccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(s.cfg.AccessKeyID, s.cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return ioErr("load aws config", err)
	}

	var s3Opts []func(*s3.Options)
	if s.cfg.Endpoint != "" {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(s.cfg.Endpoint)
		})
	}
	if s.cfg.ForcePathStyle {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.UsePathStyle = true
		})
	}

	s.client = s3.NewFromConfig(awsCfg, s3Opts...)
	s.opened = true
	return nil
}

func (s *S3Backend) key(parts ...string) string {
	pfx := strings.TrimSuffix(s.cfg.Prefix, "/")
	all := append([]string{pfx}, parts...)
	return strings.Join(all, "/")
}

func (s *S3Backend) getObject(key string) ([]byte, error) {
	if err := s.ensureOpen(); err != nil {
		return nil, err
	}
	resp, err := s.client.GetObject(context.Background(), &s3.GetObjectInput{
		Bucket: aws.String(s.cfg.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, os.ErrNotExist
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, ioErr("read object "+key, err)
	}
	return data, nil
}

func (s *S3Backend) putObject(key string, data []byte) error {
	if err := s.ensureOpen(); err != nil {
		return err
	}
	_, err := s.client.PutObject(context.Background(), &s3.PutObjectInput{
		Bucket: aws.String(s.cfg.Bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(data),
	})
	if err != nil {
		return ioErr("put object "+key, err)
	}
	return nil
}

func (s *S3Backend) ReadCatalogIndex() ([]byte, error) {
	data, err := s.getObject(s.key("catalog.meta"))
	if err == os.ErrNotExist {
		return nil, nil
	}
	return data, err
}

func (s *S3Backend) WriteCatalogIndex(data []byte) error {
	return s.putObject(s.key("catalog.meta"), data)
}

func (s *S3Backend) ReadSchema(entity string) ([]byte, error) {
	data, err := s.getObject(s.key("entities", entity, "schema.meta"))
	if err == os.ErrNotExist {
		return nil, nil
	}
	return data, err
}

func (s *S3Backend) WriteSchema(entity string, data []byte) error {
	return s.putObject(s.key("entities", entity, "schema.meta"), data)
}

// s3BufferedWriter accumulates bytes and flushes the whole buffer as a
// single PUT on each Sync and on Close, the same buffer-then-replace tradeoff the teacher's S3Logfile
// makes for its append-only log segments.
type s3BufferedWriter struct {
	backend *S3Backend
	key     string
	buf     bytes.Buffer
	closed  bool
}

func (w *s3BufferedWriter) Write(p []byte) (int, error) {
	if w.closed {
		return 0, io.ErrClosedPipe
	}
	return w.buf.Write(p)
}

func (w *s3BufferedWriter) Sync() error {
	if w.closed {
		return io.ErrClosedPipe
	}
	return w.backend.putObject(w.key, w.buf.Bytes())
}

func (w *s3BufferedWriter) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	return w.backend.putObject(w.key, w.buf.Bytes())
}

func (s *S3Backend) OpenLogWriter(entity string) (io.WriteCloser, error) {
	key := s.key("entities", entity, "data.log")
	existing, err := s.getObject(key)
	w := &s3BufferedWriter{backend: s, key: key}
	if err == nil {
		w.buf.Write(existing) // append semantics: seed with what's already there
	}
	return w, nil
}

func (s *S3Backend) OpenLogReader(entity string) (io.ReadCloser, error) {
	data, err := s.getObject(s.key("entities", entity, "data.log"))
	if err != nil {
		return nil, err
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (s *S3Backend) OpenStagingWriter(entity, stagingID string) (io.WriteCloser, error) {
	key := s.key("entities", entity, "data.log.tmp."+stagingID)
	return &s3BufferedWriter{backend: s, key: key}, nil
}

func (s *S3Backend) CommitStaging(entity, stagingID string) error {
	if err := s.ensureOpen(); err != nil {
		return err
	}
	stagedKey := s.key("entities", entity, "data.log.tmp."+stagingID)
	liveKey := s.key("entities", entity, "data.log")
	_, err := s.client.CopyObject(context.Background(), &s3.CopyObjectInput{
		Bucket:     aws.String(s.cfg.Bucket),
		Key:        aws.String(liveKey),
		CopySource: aws.String(fmt.Sprintf("%s/%s", s.cfg.Bucket, stagedKey)),
	})
	if err != nil {
		_, _ = s.client.DeleteObject(context.Background(), &s3.DeleteObjectInput{
			Bucket: aws.String(s.cfg.Bucket),
			Key:    aws.String(stagedKey),
		})
		return ioErr("commit compacted segment", err)
	}
	_, _ = s.client.DeleteObject(context.Background(), &s3.DeleteObjectInput{
		Bucket: aws.String(s.cfg.Bucket),
		Key:    aws.String(stagedKey),
	})
	return nil
}

func (s *S3Backend) RemoveEntity(entity string) error {
	if err := s.ensureOpen(); err != nil {
		return err
	}
	prefix := s.key("entities", entity) + "/"
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.cfg.Bucket),
		Prefix: aws.String(prefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(context.Background())
		if err != nil {
			return ioErr("list objects", err)
		}
		for _, obj := range page.Contents {
			_, _ = s.client.DeleteObject(context.Background(), &s3.DeleteObjectInput{
				Bucket: aws.String(s.cfg.Bucket),
				Key:    obj.Key,
			})
		}
	}
	return nil
}
