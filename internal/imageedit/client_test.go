package imageedit

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, handler func(w http.ResponseWriter, body map[string]any)) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		body := map[string]any{}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		body["_path"] = r.URL.Path
		handler(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestRemoveBackground(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, body map[string]any) {
		assert.Equal(t, "/v1/image/edit", body["_path"])
		assert.Equal(t, "https://cdn/in.jpg", body["input"])
		_, _ = w.Write([]byte(`{"data":{"input":{"tmp_url":"ignored"},"output":{"tmp_url":"https://tmp/out.png"}}}`))
	})
	c := NewClient(srv.URL, "secret", 100)
	u, err := c.RemoveBackground(context.Background(), "https://cdn/in.jpg")
	require.NoError(t, err)
	assert.Equal(t, "https://tmp/out.png", u)
}

func TestCreateSceneListOutput(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, body map[string]any) {
		assert.Equal(t, "/v1/scene/create", body["_path"])
		scene := body["scene"].(map[string]any)
		assert.Equal(t, "9:7", scene["aspect_ratio"])
		out := body["output"].(map[string]any)
		assert.Equal(t, float64(2), out["number_of_images"])
		_, _ = w.Write([]byte(`{"data":{"output":[{"tmp_url":"https://tmp/1.png"},{"tmp_url":"https://tmp/2.png"}]}}`))
	})
	c := NewClient(srv.URL, "secret", 100)
	opts := DefaultScene
	opts.Images = 2
	urls, err := c.CreateScene(context.Background(), "https://tmp/out.png", opts)
	require.NoError(t, err)
	assert.Equal(t, []string{"https://tmp/1.png", "https://tmp/2.png"}, urls)
}

func TestNoOutput(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, body map[string]any) {
		_, _ = w.Write([]byte(`{"data":{}}`))
	})
	c := NewClient(srv.URL, "secret", 100)
	_, err := c.RemoveBackground(context.Background(), "https://cdn/in.jpg")
	assert.ErrorIs(t, err, ErrNoOutput)
}

func TestServiceError(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, body map[string]any) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error_message":"input is not an image"}`))
	})
	c := NewClient(srv.URL, "secret", 100)
	_, err := c.RemoveBackground(context.Background(), "https://cdn/in.txt")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "input is not an image")
	assert.Contains(t, err.Error(), "400")
}

func TestCancelledContext(t *testing.T) {
	c := NewClient("http://127.0.0.1:1", "secret", 100)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.RemoveBackground(ctx, "https://cdn/in.jpg")
	assert.Error(t, err)
}

func TestDownload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte("png-bytes"))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "secret", 100)
	dst := filepath.Join(t.TempDir(), "out.png")
	require.NoError(t, c.Download(context.Background(), srv.URL+"/img.png", dst))
	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "png-bytes", string(data))

	assert.Error(t, c.Download(context.Background(), srv.URL+"/missing", dst))
}
