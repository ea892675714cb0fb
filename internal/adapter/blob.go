package adapter

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"filesentry/internal/models"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/rs/zerolog"
)

// BlobAdapter lists and fetches objects from S3-compatible object storage.
// The resolved path is interpreted as "bucket/prefix": the first segment
// names the bucket, the remainder the key prefix.
type BlobAdapter struct {
	client      *minio.Client
	callTimeout time.Duration
	logger      zerolog.Logger
}

// NewBlobAdapter creates an object-storage adapter. The endpoint and access
// keys come from the resolved credentials.
func NewBlobAdapter(creds Credentials, callTimeout time.Duration, logger zerolog.Logger) (*BlobAdapter, error) {
	if creds.Endpoint == "" {
		return nil, models.NewValidationError("credential_ref", "blob storage requires an endpoint in the credential material")
	}

	client, err := minio.New(creds.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(creds.AccessKey, creds.SecretKey, ""),
		Secure: creds.UseSSL,
	})
	if err != nil {
		return nil, models.NewValidationError("credential_ref", fmt.Sprintf("building object storage client: %v", err))
	}

	return &BlobAdapter{
		client:      client,
		callTimeout: callTimeout,
		logger:      logger.With().Str("component", "BlobAdapter").Logger(),
	}, nil
}

// Protocol returns the protocol kind this adapter serves.
func (a *BlobAdapter) Protocol() models.ProtocolKind {
	return models.ProtocolBlob
}

// List enumerates objects under the resolved prefix and matches their base
// names against the resolved filename (glob wildcards allowed).
func (a *BlobAdapter) List(ctx context.Context, resolvedPath, resolvedFilename string) ([]CandidateFile, error) {
	bucket, prefix, err := splitBlobPath(resolvedPath)
	if err != nil {
		return nil, err
	}

	listCtx, cancel := context.WithTimeout(ctx, a.callTimeout)
	defer cancel()

	objects := a.client.ListObjects(listCtx, bucket, minio.ListObjectsOptions{
		Prefix:    listPrefix(prefix),
		Recursive: false,
	})

	var candidates []CandidateFile
	for object := range objects {
		if object.Err != nil {
			return nil, classifyBlobError(resolvedPath, object.Err)
		}
		name := path.Base(object.Key)
		matched, matchErr := path.Match(resolvedFilename, name)
		if matchErr != nil {
			return nil, models.NewValidationError("filename_pattern", fmt.Sprintf("bad glob %q: %v", resolvedFilename, matchErr))
		}
		if !matched {
			continue
		}
		size := object.Size
		modified := object.LastModified
		candidates = append(candidates, CandidateFile{
			URL:          bucket + "/" + object.Key,
			Filename:     name,
			Size:         &size,
			LastModified: &modified,
		})
	}

	a.logger.Debug().Str("bucket", bucket).Str("prefix", prefix).Int("candidates", len(candidates)).Msg("Blob listing completed")
	return candidates, nil
}

// Fetch streams the object's bytes.
func (a *BlobAdapter) Fetch(ctx context.Context, candidate CandidateFile) (io.ReadCloser, int64, error) {
	bucket, key, err := splitBlobPath(candidate.URL)
	if err != nil {
		return nil, 0, err
	}

	object, err := a.client.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, 0, classifyBlobError(candidate.URL, err)
	}

	stat, err := object.Stat()
	if err != nil {
		_ = object.Close()
		return nil, 0, classifyBlobError(candidate.URL, err)
	}
	return object, stat.Size, nil
}

// listPrefix terminates a non-empty key prefix with "/" so delimiter-based
// listing descends into the resolved directory. Without the trailing slash
// the server collapses everything under "reports/2026/" into a single
// common-prefix entry and no objects come back.
func listPrefix(prefix string) string {
	if prefix == "" || strings.HasSuffix(prefix, "/") {
		return prefix
	}
	return prefix + "/"
}

// splitBlobPath splits "bucket/prefix/sub" into bucket and key prefix.
// A leading "s3://" or "blob://" scheme is tolerated.
func splitBlobPath(raw string) (bucket string, prefix string, err error) {
	trimmed := raw
	for _, scheme := range []string{"s3://", "blob://"} {
		trimmed = strings.TrimPrefix(trimmed, scheme)
	}
	trimmed = strings.Trim(trimmed, "/")
	if trimmed == "" {
		return "", "", models.NewValidationError("path_pattern", fmt.Sprintf("invalid blob location %q", raw))
	}

	parts := strings.SplitN(trimmed, "/", 2)
	bucket = parts[0]
	if len(parts) == 2 {
		prefix = parts[1]
	}
	return bucket, prefix, nil
}

// classifyBlobError maps S3 error codes onto error categories.
func classifyBlobError(source string, err error) error {
	resp := minio.ToErrorResponse(err)
	switch resp.Code {
	case "AccessDenied", "InvalidAccessKeyId", "SignatureDoesNotMatch", "AccountProblem":
		return models.NewAuthenticationError(source, err)
	case "NoSuchBucket", "NoSuchKey":
		return models.NewConnectionError(source, err)
	}
	return classifyNetworkError(source, err)
}
