package artifact

import (
	"context"
	"fmt"
	"os"
	"path"
	"strings"
	"time"

	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog/log"
)

// DefaultPresignExpiry is how long a shared bundle link stays valid.
const DefaultPresignExpiry = 24 * time.Hour

// S3API is the subset of the S3 client used for exports.
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Presigner is the subset of s3.PresignClient used to share exports.
type Presigner interface {
	PresignGetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// BundleKey is the object key of a session bundle: prefix/{id}/bundle.zip.
func BundleKey(prefix, sessionID string) string {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return path.Join(sessionID, "bundle.zip")
	}
	return path.Join(prefix, sessionID, "bundle.zip")
}

// UploadBundle uploads the bundle at bundlePath and returns its object key.
func UploadBundle(ctx context.Context, client S3API, bucket, prefix, sessionID, bundlePath string) (string, error) {
	if bucket == "" {
		return "", fmt.Errorf("no S3 bucket configured")
	}
	key := BundleKey(prefix, sessionID)

	f, err := os.Open(bundlePath)
	if err != nil {
		return "", fmt.Errorf("failed to open bundle: %w", err)
	}
	defer f.Close()

	log.Debug().
		Str("bucket", bucket).
		Str("key", key).
		Str("path", bundlePath).
		Msg("Uploading bundle to S3")

	contentType := "application/zip"
	_, err = client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      &bucket,
		Key:         &key,
		Body:        f,
		ContentType: &contentType,
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload bundle to S3: %w", err)
	}

	log.Info().
		Str("sessionId", sessionID).
		Str("location", "s3://"+bucket+"/"+key).
		Msg("Bundle uploaded to S3")
	return key, nil
}

// ShareURL returns a pre-signed GET URL for an uploaded bundle.
func ShareURL(ctx context.Context, presigner Presigner, bucket, key string, expiry time.Duration) (string, error) {
	if expiry <= 0 {
		expiry = DefaultPresignExpiry
	}
	result, err := presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: &bucket, Key: &key,
	}, func(opts *s3.PresignOptions) {
		opts.Expires = expiry
	})
	if err != nil {
		return "", fmt.Errorf("failed to presign bundle URL: %w", err)
	}
	return result.URL, nil
}
