////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

// Package media contains the backend.MediaHost implementations used to store
// chat attachments and profile photos.
package media

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/aquilax/truncate"
	"github.com/pkg/errors"
	jww "github.com/spf13/jwalterweatherman"

	"gitlab.com/parley/parley-wasm/backend"
)

const (
	// DefaultCloudinaryURL is the base of the Cloudinary upload API.
	DefaultCloudinaryURL = "https://api.cloudinary.com"

	defaultUploadTimeout = 2 * time.Minute

	// maxErrorBody is the number of bytes of an error response that are
	// included in the returned error.
	maxErrorBody = 256
)

// CloudinaryConfig configures unsigned uploads to a Cloudinary cloud.
type CloudinaryConfig struct {
	CloudName    string `mapstructure:"cloud_name" json:"cloudName"`
	UploadPreset string `mapstructure:"upload_preset" json:"uploadPreset"`

	// BaseURL overrides DefaultCloudinaryURL.
	BaseURL string `mapstructure:"base_url" json:"baseURL,omitempty"`
}

// Cloudinary uploads files to Cloudinary with an unsigned upload preset.
type Cloudinary struct {
	cfg    CloudinaryConfig
	client *http.Client
}

// NewCloudinary returns a Cloudinary media host. If client is nil, a client
// with a default timeout is used.
func NewCloudinary(cfg CloudinaryConfig, client *http.Client) (*Cloudinary, error) {
	if cfg.CloudName == "" {
		return nil, errors.New("cloudinary cloud name is required")
	} else if cfg.UploadPreset == "" {
		return nil, errors.New("cloudinary upload preset is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultCloudinaryURL
	}
	if client == nil {
		client = &http.Client{Timeout: defaultUploadTimeout}
	}

	return &Cloudinary{cfg: cfg, client: client}, nil
}

// cloudinaryResponse is the part of the upload response that is used.
type cloudinaryResponse struct {
	SecureURL string `json:"secure_url"`
	PublicID  string `json:"public_id"`
	Error     *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Upload stores the attachment in the folder and returns its secure URL.
func (c *Cloudinary) Upload(
	ctx context.Context, a backend.Attachment, folder string) (string, error) {
	body, contentType, err := c.multipartBody(a, folder)
	if err != nil {
		return "", err
	}

	endpoint := fmt.Sprintf("%s/v1_1/%s/auto/upload",
		strings.TrimRight(c.cfg.BaseURL, "/"), c.cfg.CloudName)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, body)
	if err != nil {
		return "", errors.Wrap(err, "failed to build upload request")
	}
	req.Header.Set("Content-Type", contentType)

	jww.DEBUG.Printf("[MEDIA] Uploading %s (%d bytes) to cloudinary folder %s",
		a.Name, a.Size(), folder)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", errors.Wrapf(err, "failed to upload %s", a.Name)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", errors.Wrap(err, "failed to read upload response")
	}

	var r cloudinaryResponse
	jsonErr := json.Unmarshal(data, &r)
	if resp.StatusCode != http.StatusOK {
		msg := truncate.Truncate(
			string(data), maxErrorBody, "...", truncate.PositionEnd)
		if jsonErr == nil && r.Error != nil {
			msg = r.Error.Message
		}
		return "", errors.Errorf("upload of %s failed with status %d: %s",
			a.Name, resp.StatusCode, msg)
	} else if jsonErr != nil {
		return "", errors.Wrap(jsonErr, "failed to parse upload response")
	} else if r.SecureURL == "" {
		return "", errors.Errorf("upload of %s returned no URL", a.Name)
	}

	jww.INFO.Printf("[MEDIA] Uploaded %s as %s", a.Name, r.PublicID)
	return r.SecureURL, nil
}

// multipartBody encodes the attachment and upload parameters as a multipart
// form.
func (c *Cloudinary) multipartBody(
	a backend.Attachment, folder string) (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	fields := [][2]string{
		{"upload_preset", c.cfg.UploadPreset},
		{"cloud_name", c.cfg.CloudName},
	}
	if folder != "" {
		fields = append(fields, [2]string{"folder", folder})
	}
	for _, f := range fields {
		if err := w.WriteField(f[0], f[1]); err != nil {
			return nil, "", errors.Wrapf(err, "failed to write field %s", f[0])
		}
	}

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(
		`form-data; name="file"; filename=%q`, fileName(a)))
	h.Set("Content-Type", contentType(a))
	part, err := w.CreatePart(h)
	if err != nil {
		return nil, "", errors.Wrap(err, "failed to create file part")
	}
	if _, err = part.Write(a.Data); err != nil {
		return nil, "", errors.Wrap(err, "failed to write file part")
	}

	if err = w.Close(); err != nil {
		return nil, "", errors.Wrap(err, "failed to close multipart body")
	}
	return &buf, w.FormDataContentType(), nil
}

func fileName(a backend.Attachment) string {
	if a.Name == "" {
		return "upload"
	}
	return a.Name
}

func contentType(a backend.Attachment) string {
	if a.ContentType != "" {
		return a.ContentType
	}
	return http.DetectContentType(a.Data)
}
