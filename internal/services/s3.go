package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

// maxDeleteBatch is the S3 DeleteObjects per-request limit.
const maxDeleteBatch = 1000

// s3API is the slice of the S3 client this service uses.
type s3API interface {
	HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
	ListObjectVersions(ctx context.Context, params *s3.ListObjectVersionsInput, optFns ...func(*s3.Options)) (*s3.ListObjectVersionsOutput, error)
	DeleteObjects(ctx context.Context, params *s3.DeleteObjectsInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error)
	DeleteBucket(ctx context.Context, params *s3.DeleteBucketInput, optFns ...func(*s3.Options)) (*s3.DeleteBucketOutput, error)
}

// S3Service wraps the direct S3 calls made outside terraform: existence
// probes during provisioning and bucket teardown during uninstall.
type S3Service struct {
	client s3API
}

// NewS3Service creates an S3Service from an aws.Config.
func NewS3Service(cfg aws.Config) *S3Service {
	return &S3Service{client: s3.NewFromConfig(cfg)}
}

// NewS3ServiceWithClient creates an S3Service with a custom client. This is
// useful for testing.
func NewS3ServiceWithClient(client s3API) *S3Service {
	return &S3Service{client: client}
}

// BucketExists probes the bucket with HeadBucket.
func (s *S3Service) BucketExists(ctx context.Context, bucket string) (bool, error) {
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(bucket)})
	if err == nil {
		return true, nil
	}
	if isErrorCode(err, "NotFound", "NoSuchBucket") {
		return false, nil
	}
	return false, fmt.Errorf("failed to check bucket %s: %w", bucket, err)
}

// EmptyBucket removes every object version and delete marker from a
// versioned bucket, batching DeleteObjects requests at the API limit of
// 1000 entries. A plain delete is not enough: versioned buckets retain all
// prior versions and the markers themselves. Returns the number of entries
// deleted.
func (s *S3Service) EmptyBucket(ctx context.Context, bucket string) (int, error) {
	var (
		deleted         int
		batch           []types.ObjectIdentifier
		keyMarker       *string
		versionIDMarker *string
	)

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		_, err := s.client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
			Bucket: aws.String(bucket),
			Delete: &types.Delete{
				Objects: batch,
				Quiet:   aws.Bool(true),
			},
		})
		if err != nil {
			return fmt.Errorf("failed to delete batch of %d objects from %s: %w", len(batch), bucket, err)
		}
		deleted += len(batch)
		batch = batch[:0]
		return nil
	}

	for {
		page, err := s.client.ListObjectVersions(ctx, &s3.ListObjectVersionsInput{
			Bucket:          aws.String(bucket),
			KeyMarker:       keyMarker,
			VersionIdMarker: versionIDMarker,
		})
		if err != nil {
			return deleted, fmt.Errorf("failed to list object versions in %s: %w", bucket, err)
		}

		for _, version := range page.Versions {
			batch = append(batch, types.ObjectIdentifier{Key: version.Key, VersionId: version.VersionId})
			if len(batch) == maxDeleteBatch {
				if err := flush(); err != nil {
					return deleted, err
				}
			}
		}
		for _, marker := range page.DeleteMarkers {
			batch = append(batch, types.ObjectIdentifier{Key: marker.Key, VersionId: marker.VersionId})
			if len(batch) == maxDeleteBatch {
				if err := flush(); err != nil {
					return deleted, err
				}
			}
		}

		if page.IsTruncated == nil || !*page.IsTruncated {
			break
		}
		keyMarker = page.NextKeyMarker
		versionIDMarker = page.NextVersionIdMarker
	}

	if err := flush(); err != nil {
		return deleted, err
	}
	return deleted, nil
}

// DeleteBucket deletes the (already emptied) bucket. A missing bucket is
// not an error.
func (s *S3Service) DeleteBucket(ctx context.Context, bucket string) error {
	_, err := s.client.DeleteBucket(ctx, &s3.DeleteBucketInput{Bucket: aws.String(bucket)})
	if err != nil && !isErrorCode(err, "NotFound", "NoSuchBucket") {
		return fmt.Errorf("failed to delete bucket %s: %w", bucket, err)
	}
	return nil
}

// isErrorCode reports whether err is an AWS API error with one of the
// given codes.
func isErrorCode(err error, codes ...string) bool {
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	for _, code := range codes {
		if apiErr.ErrorCode() == code {
			return true
		}
	}
	return false
}
