package media

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pngBytes = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x02\x00\x00\x00")

func fileHeader(t *testing.T, name string, data []byte) *multipart.FileHeader {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	fw, err := w.CreateFormFile("file", name)
	require.NoError(t, err)
	_, err = fw.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	r := httptest.NewRequest(http.MethodPost, "/", &body)
	r.Header.Set("Content-Type", w.FormDataContentType())
	require.NoError(t, r.ParseMultipartForm(1<<20))
	return r.MultipartForm.File["file"][0]
}

func TestInspectAcceptsImages(t *testing.T) {
	u, err := Inspect(fileHeader(t, "a.png", pngBytes), 1<<20)
	require.NoError(t, err)
	assert.Equal(t, "image/png", u.ContentType)
	assert.Equal(t, ".png", u.Ext)
}

func TestInspectRejects(t *testing.T) {
	_, err := Inspect(fileHeader(t, "a.png", []byte("just some text")), 1<<20)
	assert.ErrorIs(t, err, ErrNotImage)

	_, err = Inspect(fileHeader(t, "a.png", pngBytes), 4)
	assert.ErrorIs(t, err, ErrTooLarge)
}

func TestInspectRasterOnly(t *testing.T) {
	for name, data := range map[string][]byte{
		"a.gif": []byte("GIF89a\x01\x00\x01\x00\x00\x00\x00;"),
		"a.jpg": []byte("\xff\xd8\xff\xe0\x00\x10JFIF\x00\x01"),
	} {
		_, err := Inspect(fileHeader(t, name, data), 1<<20)
		assert.NoError(t, err, name)
	}

	svg := []byte(`<svg xmlns="http://www.w3.org/2000/svg"><script>alert(1)</script></svg>`)
	_, err := Inspect(fileHeader(t, "a.svg", svg), 1<<20)
	assert.ErrorIs(t, err, ErrNotImage)

	_, err = Inspect(fileHeader(t, "a.png", []byte("<html><body>hi</body></html>")), 1<<20)
	assert.ErrorIs(t, err, ErrNotImage)
}

func TestNewKey(t *testing.T) {
	k := NewKey(".jpg")
	assert.True(t, strings.HasPrefix(k, KeyPrefix))
	assert.True(t, strings.HasSuffix(k, ".jpg"))
	assert.NotEqual(t, k, NewKey(".jpg"))
}

func TestCleanKey(t *testing.T) {
	k, err := cleanKey("post-gallery/a.png")
	require.NoError(t, err)
	assert.Equal(t, "post-gallery/a.png", k)

	for _, bad := range []string{"", "../etc/passwd", "post-gallery/../../x", "/abs"} {
		_, err := cleanKey(bad)
		assert.ErrorIs(t, err, ErrBadKey, bad)
	}
}

func TestLocalStorage(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	st, err := NewLocalStorage(dir)
	require.NoError(t, err)

	u, err := Inspect(fileHeader(t, "a.png", pngBytes), 0)
	require.NoError(t, err)
	key, err := Save(ctx, st, u)
	require.NoError(t, err)

	got, err := os.ReadFile(filepath.Join(dir, filepath.FromSlash(key)))
	require.NoError(t, err)
	assert.Equal(t, pngBytes, got)

	rec := httptest.NewRecorder()
	st.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/"+key, nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	body, _ := io.ReadAll(rec.Body)
	assert.Equal(t, pngBytes, body)
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))

	for _, p := range []string{"/", "/" + KeyPrefix, "/" + strings.TrimSuffix(KeyPrefix, "/"), "/missing.png", "/../secret"} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.URL.Path = p
		rec = httptest.NewRecorder()
		st.Handler().ServeHTTP(rec, req)
		assert.Equal(t, http.StatusNotFound, rec.Code, p)
		assert.NotContains(t, rec.Body.String(), ".png", p)
	}

	require.NoError(t, st.Remove(ctx, key))
	_, err = os.Stat(filepath.Join(dir, filepath.FromSlash(key)))
	assert.True(t, os.IsNotExist(err))
	assert.NoError(t, st.Remove(ctx, key), "removing twice is fine")

	assert.ErrorIs(t, st.Put(ctx, "../escape", "", bytes.NewReader(nil), 0), ErrBadKey)
}

func TestS3Storage(t *testing.T) {
	endpoint := os.Getenv("TEST_S3_ENDPOINT")
	if endpoint == "" {
		t.Skip("TEST_S3_ENDPOINT not set")
	}
	ctx := context.Background()
	st, err := NewS3Storage(S3Config{
		Endpoint:  endpoint,
		AccessKey: os.Getenv("TEST_S3_ACCESS_KEY"),
		SecretKey: os.Getenv("TEST_S3_SECRET_KEY"),
		Bucket:    "blog-test",
	})
	require.NoError(t, err)
	require.NoError(t, st.EnsureBucket(ctx))

	key := NewKey(".png")
	require.NoError(t, st.Put(ctx, key, "image/png", bytes.NewReader(pngBytes), int64(len(pngBytes))))
	defer st.Remove(ctx, key)

	rec := httptest.NewRecorder()
	st.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/"+key, nil))
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Contains(t, rec.Header().Get("Location"), key)
}
