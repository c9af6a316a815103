package s3uploader

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUploadImage(t *testing.T) {
	var (
		mu          sync.Mutex
		gotPath     string
		gotBody     string
		contentType string
	)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)

		mu.Lock()
		gotPath = r.URL.Path
		gotBody = string(body)
		contentType = r.Header.Get("Content-Type")
		mu.Unlock()

		w.Header().Set("ETag", `"abc"`)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	u, err := New(context.Background(), Config{
		Bucket:    "listings",
		Region:    "eu-west-1",
		AccessKey: "key",
		SecretKey: "secret",
		Prefix:    "/images/",
		Endpoint:  srv.URL,
	})
	require.NoError(t, err)

	ref, err := u.UploadImage(context.Background(), "Front Door.JPG", "image/jpeg", strings.NewReader("jpeg-bytes"))
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()

	assert.True(t, strings.HasPrefix(gotPath, "/listings/images/"), gotPath)
	assert.True(t, strings.HasSuffix(gotPath, ".jpg"), gotPath)
	assert.Equal(t, "jpeg-bytes", gotBody)
	assert.Equal(t, "image/jpeg", contentType)

	assert.Equal(t, "image", ref.Type)
	assert.Equal(t, "reference", ref.Asset.Type)
	assert.True(t, strings.HasPrefix(ref.Asset.Ref, "s3-images/"))
	assert.Equal(t, srv.URL+gotPath, ref.URL)
}

func TestNewRequiresBucket(t *testing.T) {
	_, err := New(context.Background(), Config{})
	assert.Error(t, err)
}

func TestObjectURL(t *testing.T) {
	u, err := New(context.Background(), Config{Bucket: "b", Region: "ap-south-1", AccessKey: "k", SecretKey: "s"})
	require.NoError(t, err)

	assert.Equal(t, "https://b.s3.ap-south-1.amazonaws.com/x/a%20b.png", u.objectURL("x/a b.png"))

	key := u.objectKey("photo.PNG")
	assert.True(t, strings.HasSuffix(key, ".png"))
	assert.NotContains(t, key, "/")
}
