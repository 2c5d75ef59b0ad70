// Package output provides the interface and configuration and implementation for writers
package output

import (
	"fmt"

	"github.com/theeshop/listingbot/internal/types"
)

// Writer defines the interface for all writers that are responsible
// for publishing run records to a specific output.
type Writer interface {
	// Write consumes records until recordChan is closed.
	Write(recordChan <-chan types.RunRecord)
}

// WriterConfig defines the necessary paramters to make a new writer
// which is responsible for writing the run records to a specific output
// eg. stdout.
type WriterConfig struct {
	Type      WriterType `yaml:"type" env:"WRITER_TYPE" env-default:"stdout"`
	Uri       string     `yaml:"uri" env:"WRITER_URI"`
	User      string     `yaml:"user" env:"WRITER_USER"`         // we want to be able to pass credentials via env vars
	Password  string     `yaml:"password" env:"WRITER_PASSWORD"` // we want to be able to pass credentials via env vars
	FileDir   string     `yaml:"filedir" env:"WRITER_FILEDIR"`
	BatchSize int        `yaml:"batch_size,omitempty"`
}

// WriterType encapsulates the type of a writer
// See below constants for possible types
type WriterType string

const (
	STDOUT_WRITER_TYPE WriterType = "stdout"
	FILE_WRITER_TYPE   WriterType = "file"
	API_WRITER_TYPE    WriterType = "api"
)

// NewWriter returns a new writer depending on the writer type
func NewWriter(wc *WriterConfig) (Writer, error) {
	switch wc.Type {
	case STDOUT_WRITER_TYPE, "":
		return NewStdoutWriter(wc), nil
	case FILE_WRITER_TYPE:
		return NewFileWriter(wc)
	case API_WRITER_TYPE:
		return NewAPIWriter(wc)
	default:
		return nil, fmt.Errorf("writer of type '%s' not implemented", wc.Type)
	}
}
