package storage

import (
	"context"
	"fmt"
	"net/url"
	"path"
	"strings"

	"dgisync/config"
	"dgisync/internal/types"

	logger "github.com/Bparsons0904/goLogger"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

const (
	ParquetContentType  = "application/vnd.apache.parquet"
	WorkbookContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	defaultContentType  = "application/octet-stream"
)

// ObjectStore mirrors artifacts into an S3-compatible bucket. Object keys are
// the remote identifiers, so re-uploading a name keeps its id.
type ObjectStore struct {
	client *minio.Client
	bucket string
	prefix string
	region string
	log    logger.Logger
}

func NewObjectStore(config config.Config) (*ObjectStore, error) {
	log := logger.New("objectStore").Function("NewObjectStore")

	if config.S3Endpoint == "" {
		return nil, wrapError(CodeEndpointUnreachable, false, fmt.Errorf("S3 endpoint is required"))
	}

	endpoint := config.S3Endpoint
	useSSL := config.S3UseSSL
	if u, err := url.Parse(config.S3Endpoint); err == nil && u.Host != "" {
		endpoint = u.Host
		if u.Scheme == "https" {
			useSSL = true
		}
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(config.S3AccessKey, config.S3SecretKey, ""),
		Secure: useSSL,
		Region: config.S3Region,
	})
	if err != nil {
		return nil, log.Err("failed to create object store client", err, "endpoint", endpoint)
	}

	log.Info("Object store configured", "endpoint", endpoint, "bucket", config.S3Bucket, "prefix", config.S3Prefix)
	return &ObjectStore{
		client: client,
		bucket: config.S3Bucket,
		prefix: strings.Trim(config.S3Prefix, "/"),
		region: config.S3Region,
		log:    logger.New("objectStore"),
	}, nil
}

// EnsureBucket creates the bucket when it does not exist yet.
func (s *ObjectStore) EnsureBucket(ctx context.Context) error {
	log := s.log.Function("EnsureBucket")

	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return log.Err("failed to check bucket", classifyMinioError(err), "bucket", s.bucket)
	}
	if exists {
		return nil
	}

	if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{Region: s.region}); err != nil {
		return log.Err("failed to create bucket", classifyMinioError(err), "bucket", s.bucket)
	}
	log.Info("Created bucket", "bucket", s.bucket)
	return nil
}

func (s *ObjectStore) List(ctx context.Context, folder string) ([]types.RemoteObject, error) {
	prefix := joinKey(s.prefix, folder) + "/"

	var objects []types.RemoteObject
	for obj := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	}) {
		if obj.Err != nil {
			return nil, classifyMinioError(obj.Err)
		}
		objects = append(objects, types.RemoteObject{ID: obj.Key, Name: path.Base(obj.Key)})
	}
	return objects, nil
}

func (s *ObjectStore) Upsert(ctx context.Context, localPath, remoteName string) (string, error) {
	key := joinKey(s.prefix, remoteName)

	_, err := s.client.FPutObject(ctx, s.bucket, key, localPath, minio.PutObjectOptions{
		ContentType: contentTypeFor(remoteName),
	})
	if err != nil {
		return "", classifyMinioError(err)
	}
	return key, nil
}

func (s *ObjectStore) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.client.RemoveObject(ctx, s.bucket, id, minio.RemoveObjectOptions{}); err != nil {
		return classifyMinioError(err)
	}
	return nil
}

func joinKey(parts ...string) string {
	var kept []string
	for _, part := range parts {
		if trimmed := strings.Trim(part, "/"); trimmed != "" {
			kept = append(kept, trimmed)
		}
	}
	return strings.Join(kept, "/")
}

func contentTypeFor(name string) string {
	switch strings.ToLower(path.Ext(name)) {
	case ".parquet":
		return ParquetContentType
	case ".xlsx":
		return WorkbookContentType
	}
	return defaultContentType
}

// classifyMinioError converts minio-go errors to a coded Error.
func classifyMinioError(err error) error {
	if err == nil {
		return nil
	}

	resp := minio.ToErrorResponse(err)
	switch resp.Code {
	case "NoSuchBucket":
		return wrapError(CodeBucketNotFound, false, err)
	case "NoSuchKey":
		return wrapError(CodeObjectNotFound, false, err)
	case "AccessDenied":
		return wrapError(CodePermissionDenied, false, err)
	case "InvalidAccessKeyId", "SignatureDoesNotMatch":
		return wrapError(CodeAuthInvalid, false, err)
	}

	errStr := strings.ToLower(err.Error())
	switch {
	case strings.Contains(errStr, "timeout") || strings.Contains(errStr, "deadline"):
		return wrapError(CodeTimeout, true, err)
	case strings.Contains(errStr, "connection refused") || strings.Contains(errStr, "no such host"):
		return wrapError(CodeEndpointUnreachable, true, err)
	}
	return wrapError(CodeWriteFailed, true, err)
}
