package storage

import (
	"context"
	"fmt"
	"io"
	"log"
	"path"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

const (
	MaxImageSize = 5 << 20
	keyPrefix    = "products/"
)

var allowedExtensions = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".webp": "image/webp",
}

type uploader interface {
	Upload(ctx context.Context, input *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

type objectDeleter interface {
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// Image is a stored object and its public location.
type Image struct {
	URL string
	Key string
}

// S3Store keeps product images in one bucket.
type S3Store struct {
	bucket   string
	region   string
	uploader uploader
	deleter  objectDeleter
}

func NewS3Store(ctx context.Context, region, bucket string) (*S3Store, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("error loading AWS config: %w", err)
	}
	client := s3.NewFromConfig(cfg)
	return &S3Store{
		bucket:   bucket,
		region:   region,
		uploader: manager.NewUploader(client),
		deleter:  client,
	}, nil
}

// ValidateImage checks the filename extension and size and returns the
// normalized extension.
func ValidateImage(filename string, size int64) (string, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	if ext == "" {
		return "", fmt.Errorf("image file extension is required")
	}
	if _, ok := allowedExtensions[ext]; !ok {
		return "", fmt.Errorf("unsupported image type: %s", ext)
	}
	if size > MaxImageSize {
		return "", fmt.Errorf("image file too large (max 5MB)")
	}
	return ext, nil
}

func (s *S3Store) Upload(ctx context.Context, filename string, size int64, body io.Reader) (Image, error) {
	ext, err := ValidateImage(filename, size)
	if err != nil {
		return Image{}, err
	}

	key := keyPrefix + uuid.NewString() + ext
	out, err := s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        body,
		ContentType: aws.String(allowedExtensions[ext]),
	})
	if err != nil {
		log.Printf("[UPLOAD] [ERROR] upload %s failed: %v", filename, err)
		return Image{}, err
	}

	url := out.Location
	if url == "" {
		url = fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.bucket, s.region, key)
	}
	return Image{URL: url, Key: key}, nil
}

// Delete removes a product image. Keys outside the product prefix are refused.
func (s *S3Store) Delete(ctx context.Context, key string) error {
	clean, err := CleanKey(key)
	if err != nil {
		return err
	}
	if clean == "" {
		return nil
	}
	_, err = s.deleter.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(clean),
	})
	return err
}

func CleanKey(key string) (string, error) {
	trimmed := strings.TrimSpace(key)
	if trimmed == "" {
		return "", nil
	}
	clean := strings.TrimPrefix(path.Clean("/"+strings.TrimPrefix(trimmed, "/")), "/")
	if !strings.HasPrefix(clean, keyPrefix) || clean == strings.TrimSuffix(keyPrefix, "/") {
		return "", fmt.Errorf("refusing to delete non-product key: %s", key)
	}
	return clean, nil
}
