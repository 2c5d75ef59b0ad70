package output

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/theeshop/listingbot/internal/types"
)

const runsFilename = "runs.json"

// FileWriter represents a writer that writes to a file
type FileWriter struct {
	*WriterConfig
	logger *slog.Logger
}

// NewFileWriter returns a new FileWriter
func NewFileWriter(wc *WriterConfig) (*FileWriter, error) {
	if wc.FileDir == "" {
		return nil, errors.New("filedir needs to be specified for the FileWriter")
	}

	if err := os.MkdirAll(wc.FileDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory %s: %w", wc.FileDir, err)
	}

	return &FileWriter{
		WriterConfig: wc,
		logger:       slog.With(slog.String("writer", string(FILE_WRITER_TYPE))),
	}, nil
}

// Write collects all records and writes them as one json array once the
// channel is closed.
func (w *FileWriter) Write(recordChan <-chan types.RunRecord) {
	path := filepath.Join(w.FileDir, runsFilename)
	allRecords := []types.RunRecord{}
	for r := range recordChan {
		allRecords = append(allRecords, r)
	}

	b, err := encode(allRecords)
	if err != nil {
		w.logger.Error(fmt.Sprintf("error while encoding runs: %v", err))
		return
	}
	if err := os.WriteFile(path, b, 0644); err != nil {
		w.logger.Error(fmt.Sprintf("error while writing runs json to file: %v", err))
		return
	}
	w.logger.Info(fmt.Sprintf("wrote %d runs to file %s", len(allRecords), path))
}
