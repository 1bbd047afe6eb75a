package blobstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// S3API is the subset of the S3 client used by S3BlobStore.
type S3API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	HeadObject(ctx context.Context, in *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// S3BlobStore stores each blob as one object under prefix. Metadata travels
// as user-defined object metadata.
type S3BlobStore struct {
	client S3API
	bucket string
	prefix string
}

// NewS3BlobStore loads the default AWS configuration for region and returns
// a store writing to bucket.
func NewS3BlobStore(ctx context.Context, region, bucket, prefix string) (*S3BlobStore, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return NewS3BlobStoreWithClient(s3.NewFromConfig(cfg), bucket, prefix), nil
}

func NewS3BlobStoreWithClient(client S3API, bucket, prefix string) *S3BlobStore {
	return &S3BlobStore{client: client, bucket: bucket, prefix: prefix}
}

func (s *S3BlobStore) key(id string) string {
	return path.Join(s.prefix, id)
}

func (s *S3BlobStore) Upload(ctx context.Context, meta BlobMetadata, content io.Reader) (*BlobMetadata, error) {
	meta, data, err := prepare(meta, content)
	if err != nil {
		return nil, err
	}

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(s.key(meta.ID)),
		Body:          bytes.NewReader(data),
		ContentType:   aws.String(meta.ContentType),
		ContentLength: aws.Int64(meta.Size),
		Metadata:      toObjectMetadata(meta),
	})
	if err != nil {
		return nil, fmt.Errorf("put object %s: %w", meta.ID, err)
	}
	return &meta, nil
}

func (s *S3BlobStore) Download(ctx context.Context, id string) (io.ReadCloser, *BlobMetadata, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(id)),
	})
	if err != nil {
		return nil, nil, s.mapError(id, err)
	}
	meta := fromObjectMetadata(id, out.Metadata)
	meta.ContentType = aws.ToString(out.ContentType)
	meta.Size = aws.ToInt64(out.ContentLength)
	return out.Body, &meta, nil
}

func (s *S3BlobStore) GetMetadata(ctx context.Context, id string) (*BlobMetadata, error) {
	out, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(id)),
	})
	if err != nil {
		return nil, s.mapError(id, err)
	}
	meta := fromObjectMetadata(id, out.Metadata)
	meta.ContentType = aws.ToString(out.ContentType)
	meta.Size = aws.ToInt64(out.ContentLength)
	return &meta, nil
}

// Delete removes the object. S3 does not report missing keys on delete, so
// existence is checked first.
func (s *S3BlobStore) Delete(ctx context.Context, id string) error {
	if _, err := s.GetMetadata(ctx, id); err != nil {
		return err
	}
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(id)),
	})
	if err != nil {
		return fmt.Errorf("delete object %s: %w", id, err)
	}
	return nil
}

func (s *S3BlobStore) mapError(id string, err error) error {
	var noKey *types.NoSuchKey
	var notFound *types.NotFound
	if errors.As(err, &noKey) || errors.As(err, &notFound) {
		return ErrBlobNotFound
	}
	return fmt.Errorf("s3 object %s: %w", id, err)
}

func toObjectMetadata(m BlobMetadata) map[string]string {
	md := map[string]string{
		"file-name":  m.FileName,
		"hash":       m.Hash,
		"created-at": m.CreatedAt.Format(time.RFC3339Nano),
		"size":       strconv.FormatInt(m.Size, 10),
	}
	if m.PatientID != "" {
		md["patient-id"] = m.PatientID
	}
	if m.ReportID != "" {
		md["report-id"] = m.ReportID
	}
	if m.CreatedBy != "" {
		md["created-by"] = m.CreatedBy
	}
	return md
}

func fromObjectMetadata(id string, md map[string]string) BlobMetadata {
	m := BlobMetadata{
		ID:        id,
		FileName:  md["file-name"],
		PatientID: md["patient-id"],
		ReportID:  md["report-id"],
		Hash:      md["hash"],
		CreatedBy: md["created-by"],
	}
	m.CreatedAt, _ = time.Parse(time.RFC3339Nano, md["created-at"])
	return m
}
