package aws

import (
	"context"
	"fmt"
	"time"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// PresignedUpload is what a client needs to PUT an object directly to S3.
type PresignedUpload struct {
	URL       string            `json:"upload_url"`
	Headers   map[string]string `json:"headers"`
	Key       string            `json:"key"`
	PublicURL string            `json:"public_url"`
	ExpiresAt time.Time         `json:"expires_at"`
}

// ImageUploader presigns product image uploads into one bucket.
type ImageUploader struct {
	presigner *s3.PresignClient
	bucket    string
	publicURL string
	expiry    time.Duration
}

// NewImageUploader builds an uploader. publicBase is the URL prefix under
// which uploaded keys are served; it defaults to the virtual-hosted bucket URL.
func NewImageUploader(cfg sdkaws.Config, bucket, publicBase string, expiry time.Duration) *ImageUploader {
	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.BaseEndpoint != nil
	})
	if publicBase == "" {
		publicBase = fmt.Sprintf("https://%s.s3.%s.amazonaws.com", bucket, cfg.Region)
	}
	return &ImageUploader{
		presigner: s3.NewPresignClient(client),
		bucket:    bucket,
		publicURL: publicBase,
		expiry:    expiry,
	}
}

// PresignPut returns a presigned PUT for key with the given content type.
func (u *ImageUploader) PresignPut(ctx context.Context, key, contentType string) (*PresignedUpload, error) {
	input := &s3.PutObjectInput{
		Bucket:      sdkaws.String(u.bucket),
		Key:         sdkaws.String(key),
		ContentType: sdkaws.String(contentType),
	}
	req, err := u.presigner.PresignPutObject(ctx, input, s3.WithPresignExpires(u.expiry))
	if err != nil {
		return nil, fmt.Errorf("failed to presign put object: %w", err)
	}

	headers := make(map[string]string, len(req.SignedHeader))
	for k, v := range req.SignedHeader {
		if len(v) > 0 {
			headers[k] = v[0]
		}
	}
	return &PresignedUpload{
		URL:       req.URL,
		Headers:   headers,
		Key:       key,
		PublicURL: u.publicURL + "/" + key,
		ExpiresAt: time.Now().Add(u.expiry),
	}, nil
}
