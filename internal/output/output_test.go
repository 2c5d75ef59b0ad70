package output

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/theeshop/listingbot/internal/types"
)

func records(n int) <-chan types.RunRecord {
	ch := make(chan types.RunRecord, n)
	for i := range n {
		ch <- types.RunRecord{
			RunID:      string(rune('a' + i)),
			AccountKey: "shop1",
			Category:   "Wall Art",
			Title:      "Cats & <Dogs>",
			Status:     types.RunStatusDone,
			StartedAt:  time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC),
		}
	}
	close(ch)
	return ch
}

func TestNewWriter(t *testing.T) {
	w, err := NewWriter(&WriterConfig{})
	require.NoError(t, err)
	assert.IsType(t, &StdoutWriter{}, w)

	_, err = NewWriter(&WriterConfig{Type: FILE_WRITER_TYPE})
	assert.Error(t, err)

	_, err = NewWriter(&WriterConfig{Type: API_WRITER_TYPE})
	assert.Error(t, err)

	_, err = NewWriter(&WriterConfig{Type: "carrier-pigeon"})
	assert.Error(t, err)
}

func TestStdoutWriterDoesNotEscapeHTML(t *testing.T) {
	var buf bytes.Buffer
	w := NewStdoutWriter(&WriterConfig{})
	w.out = &buf
	w.Write(records(1))
	assert.Contains(t, buf.String(), "Cats & <Dogs>")
	assert.Contains(t, buf.String(), `"status": "done"`)
}

func TestFileWriter(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	w, err := NewFileWriter(&WriterConfig{FileDir: dir})
	require.NoError(t, err)
	w.Write(records(3))

	data, err := os.ReadFile(filepath.Join(dir, runsFilename))
	require.NoError(t, err)
	var got []types.RunRecord
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Len(t, got, 3)
}

func TestAPIWriterBatches(t *testing.T) {
	var batches, total atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "u", user)
		assert.Equal(t, "p", pass)
		var got []types.RunRecord
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		batches.Add(1)
		total.Add(int32(len(got)))
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	w, err := NewAPIWriter(&WriterConfig{Uri: srv.URL, User: "u", Password: "p", BatchSize: 2})
	require.NoError(t, err)
	w.Write(records(5))

	assert.Equal(t, int32(3), batches.Load())
	assert.Equal(t, int32(5), total.Load())
}

func TestAPIWriterRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte("bad"))
	}))
	defer srv.Close()

	w, err := NewAPIWriter(&WriterConfig{Uri: srv.URL})
	require.NoError(t, err)
	err = w.persistBatch([]types.RunRecord{{RunID: "x"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "400")
}
