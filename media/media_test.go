////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package media

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"gitlab.com/parley/parley-wasm/backend"
)

// Tests that Cloudinary.Upload posts the file and upload parameters as a
// multipart form and returns the secure URL.
func TestCloudinary_Upload(t *testing.T) {
	a := backend.Attachment{
		Name:        "cat.png",
		ContentType: "image/png",
		Data:        []byte("not really a png"),
	}

	srv := httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost ||
				r.URL.Path != "/v1_1/demo/auto/upload" {
				http.Error(w, "bad route "+r.URL.Path, http.StatusNotFound)
				return
			}
			if err := r.ParseMultipartForm(1 << 20); err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			if r.FormValue("upload_preset") != "unsigned" ||
				r.FormValue("cloud_name") != "demo" ||
				r.FormValue("folder") != "chat_media" {
				http.Error(w, "bad fields", http.StatusBadRequest)
				return
			}
			f, h, err := r.FormFile("file")
			if err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			data, _ := io.ReadAll(f)
			if h.Filename != a.Name || string(data) != string(a.Data) {
				http.Error(w, "bad file", http.StatusBadRequest)
				return
			}

			_, _ = w.Write([]byte(`{"public_id":"chat_media/abc",` +
				`"secure_url":"https://res.cloudinary.com/demo/chat_media/abc.png"}`))
		}))
	defer srv.Close()

	c, err := NewCloudinary(CloudinaryConfig{
		CloudName:    "demo",
		UploadPreset: "unsigned",
		BaseURL:      srv.URL,
	}, srv.Client())
	require.NoError(t, err)

	u, err := c.Upload(context.Background(), a, "chat_media")
	require.NoError(t, err)
	require.Equal(t, "https://res.cloudinary.com/demo/chat_media/abc.png", u)
}

// Tests that a Cloudinary error response is returned as an error carrying its
// message.
func TestCloudinary_Upload_Error(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":{"message":"Upload preset not found"}}`))
		}))
	defer srv.Close()

	c, err := NewCloudinary(CloudinaryConfig{
		CloudName:    "demo",
		UploadPreset: "missing",
		BaseURL:      srv.URL,
	}, srv.Client())
	require.NoError(t, err)

	_, err = c.Upload(context.Background(),
		backend.Attachment{Name: "a.txt", Data: []byte("a")}, "")
	require.Error(t, err)
	if !strings.Contains(err.Error(), "Upload preset not found") {
		t.Errorf("Error does not contain the response message: %+v", err)
	}
}

// Tests that NewCloudinary rejects incomplete configurations.
func TestNewCloudinary_Invalid(t *testing.T) {
	_, err := NewCloudinary(CloudinaryConfig{UploadPreset: "p"}, nil)
	require.Error(t, err)
	_, err = NewCloudinary(CloudinaryConfig{CloudName: "c"}, nil)
	require.Error(t, err)
}

// mockUploader records the inputs of Upload.
type mockUploader struct {
	inputs []*s3.PutObjectInput
	err    error
}

func (mu *mockUploader) Upload(_ context.Context, input *s3.PutObjectInput,
	_ ...func(*manager.Uploader)) (*manager.UploadOutput, error) {
	if mu.err != nil {
		return nil, mu.err
	}
	mu.inputs = append(mu.inputs, input)
	return &manager.UploadOutput{}, nil
}

// Tests that S3.Upload puts the object under the folder and returns the
// virtual-hosted URL of the key.
func TestS3_Upload(t *testing.T) {
	mu := &mockUploader{}
	s := newS3(S3Config{Region: "eu-west-1", Bucket: "parley"}, mu)

	a := backend.Attachment{Name: "my photo.jpg", Data: []byte{0xFF, 0xD8, 0xFF}}
	u, err := s.Upload(context.Background(), a, "profile_images")
	require.NoError(t, err)

	require.Len(t, mu.inputs, 1)
	in := mu.inputs[0]
	key := aws.ToString(in.Key)
	require.Equal(t, "parley", aws.ToString(in.Bucket))
	require.True(t, strings.HasPrefix(key, "profile_images/"), key)
	require.True(t, strings.HasSuffix(key, "_my photo.jpg"), key)
	require.Equal(t, "image/jpeg", aws.ToString(in.ContentType))

	expected := "https://parley.s3.eu-west-1.amazonaws.com/" +
		strings.ReplaceAll(key, " ", "%20")
	require.Equal(t, expected, u)
}

// Tests that S3.Upload uses the configured public URL and reports uploader
// failures.
func TestS3_Upload_PublicURLAndError(t *testing.T) {
	mu := &mockUploader{}
	s := newS3(S3Config{Bucket: "parley", PublicURL: "https://cdn.example.com/"}, mu)

	u, err := s.Upload(context.Background(),
		backend.Attachment{Name: "../../etc/passwd", Data: []byte("x")}, "chat_media")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(u, "https://cdn.example.com/chat_media/"), u)
	require.True(t, strings.HasSuffix(u, "_passwd"), u)

	mu.err = errors.New("access denied")
	_, err = s.Upload(context.Background(),
		backend.Attachment{Name: "a", Data: []byte("a")}, "chat_media")
	require.Error(t, err)
}

// Tests that objectKey produces distinct keys for the same file.
func TestObjectKey_Unique(t *testing.T) {
	a, err := objectKey("chat_media/", "file.txt")
	require.NoError(t, err)
	b, err := objectKey("chat_media", "file.txt")
	require.NoError(t, err)

	require.NotEqual(t, a, b)
	require.True(t, strings.HasPrefix(a, "chat_media/"))
}
