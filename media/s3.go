////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package media

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	jww "github.com/spf13/jwalterweatherman"

	"gitlab.com/parley/parley-wasm/backend"
)

// S3Config configures uploads to an S3 bucket with public read access.
type S3Config struct {
	Region string `mapstructure:"region" json:"region"`
	Bucket string `mapstructure:"bucket" json:"bucket"`

	// PublicURL overrides the virtual-hosted bucket URL that object keys are
	// appended to (e.g. a CDN in front of the bucket).
	PublicURL string `mapstructure:"public_url" json:"publicURL,omitempty"`
}

// uploader is the part of manager.Uploader used by S3.
type uploader interface {
	Upload(ctx context.Context, input *s3.PutObjectInput,
		opts ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

// S3 uploads files to an S3 bucket and returns their public URL.
type S3 struct {
	cfg      S3Config
	uploader uploader
}

// NewS3 loads the default AWS configuration for the region and returns an S3
// media host.
func NewS3(ctx context.Context, cfg S3Config) (*S3, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("s3 bucket is required")
	}

	awsCfg, err := awscfg.LoadDefaultConfig(ctx, awscfg.WithRegion(cfg.Region))
	if err != nil {
		return nil, errors.Wrap(err, "failed to load AWS config")
	}

	return newS3(cfg, manager.NewUploader(s3.NewFromConfig(awsCfg))), nil
}

func newS3(cfg S3Config, u uploader) *S3 {
	return &S3{cfg: cfg, uploader: u}
}

// Upload stores the attachment under the folder with a unique key and returns
// its public URL.
func (s *S3) Upload(
	ctx context.Context, a backend.Attachment, folder string) (string, error) {
	key, err := objectKey(folder, a.Name)
	if err != nil {
		return "", err
	}

	jww.DEBUG.Printf("[MEDIA] Uploading %s (%d bytes) to s3://%s/%s",
		a.Name, a.Size(), s.cfg.Bucket, key)

	_, err = s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.cfg.Bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(a.Data),
		ContentType: aws.String(contentType(a)),
	})
	if err != nil {
		return "", errors.Wrapf(err, "failed to upload %s to %s", a.Name, key)
	}

	u := s.publicURL(key)
	jww.INFO.Printf("[MEDIA] Uploaded %s to %s", a.Name, u)
	return u, nil
}

// publicURL returns the URL an object key is served from.
func (s *S3) publicURL(key string) string {
	escaped := (&url.URL{Path: key}).EscapedPath()
	if s.cfg.PublicURL != "" {
		return strings.TrimRight(s.cfg.PublicURL, "/") + "/" + escaped
	}
	return fmt.Sprintf(
		"https://%s.s3.%s.amazonaws.com/%s", s.cfg.Bucket, s.cfg.Region, escaped)
}

// objectKey returns a unique key for the file in the folder. The base name of
// the file is kept so that the URL stays recognisable.
func objectKey(folder, name string) (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", errors.Wrap(err, "failed to generate object key")
	}

	base := path.Base(strings.ReplaceAll(name, "\\", "/"))
	if base == "." || base == "/" {
		base = "upload"
	}

	return path.Join(strings.Trim(folder, "/"), id.String()+"_"+base), nil
}
