package storage

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"sync/atomic"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

type Store struct {
	client     *minio.Client
	bucketName string
	region     string
	publicURL  string
}

// New buat koneksi MinIO
func New(ctx context.Context, endpoint, region, bucket, accessKey, secretKey string, useSSL bool) (*Store, error) {
	cli, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
		Region: region,
	})
	if err != nil {
		return nil, err
	}

	// pastikan bucket ada
	exists, err := cli.BucketExists(ctx, bucket)
	if err != nil {
		return nil, err
	}
	if !exists {
		if err := cli.MakeBucket(ctx, bucket, minio.MakeBucketOptions{Region: region}); err != nil {
			return nil, err
		}
	}

	return &Store{client: cli, bucketName: bucket, region: region, publicURL: cli.EndpointURL().String()}, nil
}

// Put implementasi uploads.ObjectStore. progress receives the cumulative byte count as
// minio consumes the stream.
func (s *Store) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string, progress func(written int64)) (string, error) {
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	opts := minio.PutObjectOptions{ContentType: contentType}
	if progress != nil {
		opts.Progress = &progressReader{fn: progress}
	}
	if size <= 0 {
		size = -1
	}
	if _, err := s.client.PutObject(ctx, s.bucketName, key, r, size, opts); err != nil {
		return "", err
	}
	return s.ObjectURL(key), nil
}

// ObjectURL publik (jika bucket public), kalau private harus generate presigned URL
func (s *Store) ObjectURL(key string) string {
	return fmt.Sprintf("%s/%s/%s", s.publicURL, s.bucketName, (&url.URL{Path: key}).EscapedPath())
}

// Check backs /health/ready: the bucket must still be reachable
func (s *Store) Check(ctx context.Context) error {
	ok, err := s.client.BucketExists(ctx, s.bucketName)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("bucket %s does not exist", s.bucketName)
	}
	return nil
}

// progressReader is handed to minio as PutObjectOptions.Progress; minio reads from it
// once for every chunk it has sent.
type progressReader struct {
	written atomic.Int64
	fn      func(int64)
}

func (p *progressReader) Read(b []byte) (int, error) {
	n := len(b)
	p.fn(p.written.Add(int64(n)))
	return n, nil
}
