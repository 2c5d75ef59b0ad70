package output

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/theeshop/listingbot/internal/types"
)

// APIWriter represents a writer that posts run records to a dashboard api.
type APIWriter struct {
	*WriterConfig
	client *retryablehttp.Client
	logger *slog.Logger
}

// NewAPIWriter returns a new APIWriter
func NewAPIWriter(wc *WriterConfig) (*APIWriter, error) {
	if wc.Uri == "" {
		return nil, errors.New("uri needs to be specified for the APIWriter")
	}
	if wc.BatchSize == 0 {
		wc.BatchSize = 20 // default
	}
	logger := slog.With(slog.String("writer", string(API_WRITER_TYPE)))
	client := retryablehttp.NewClient()
	client.RetryMax = 3
	client.RetryWaitMin = 500 * time.Millisecond
	client.HTTPClient.Timeout = 60 * time.Second
	client.Logger = nil
	return &APIWriter{
		WriterConfig: wc,
		client:       client,
		logger:       logger,
	}, nil
}

func (w *APIWriter) Write(recordChan <-chan types.RunRecord) {
	nrWritten := 0
	batch := []types.RunRecord{}
	for r := range recordChan {
		batch = append(batch, r)
		if len(batch) == w.BatchSize {
			nrWritten += w.writeBatch(batch)
			batch = []types.RunRecord{}
		}
	}
	nrWritten += w.writeBatch(batch)
	w.logger.Info(fmt.Sprintf("wrote %d runs to the api", nrWritten))
}

func (w *APIWriter) writeBatch(batch []types.RunRecord) int {
	if len(batch) == 0 {
		return 0
	}
	if err := w.persistBatch(batch); err != nil {
		w.logger.Error(fmt.Sprintf("error while posting batch: %v", err))
		return 0
	}
	return len(batch)
}

func (w *APIWriter) persistBatch(batch []types.RunRecord) error {
	body, err := encode(batch)
	if err != nil {
		return err
	}
	req, err := retryablehttp.NewRequest(http.MethodPost, w.Uri, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if w.User != "" {
		req.SetBasicAuth(w.User, w.Password)
	}
	resp, err := w.client.Do(req)
	if err != nil {
		w.logger.Debug(fmt.Sprintf("post request body %s", body))
		return fmt.Errorf("error while sending post request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		respBody, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("error while reading post request response: %w", err)
		}
		return fmt.Errorf("error while posting runs. Status Code: %d Response: %s", resp.StatusCode, respBody)
	}
	return nil
}
