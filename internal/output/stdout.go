package output

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/theeshop/listingbot/internal/types"
)

// StdoutWriter prints every record as indented json.
type StdoutWriter struct {
	*WriterConfig
	out    io.Writer
	logger *slog.Logger
}

func NewStdoutWriter(wc *WriterConfig) *StdoutWriter {
	return &StdoutWriter{
		WriterConfig: wc,
		out:          os.Stdout,
		logger:       slog.With(slog.String("writer", string(STDOUT_WRITER_TYPE))),
	}
}

func (w *StdoutWriter) Write(recordChan <-chan types.RunRecord) {
	for r := range recordChan {
		b, err := encode(r)
		if err != nil {
			w.logger.Error(fmt.Sprintf("error while encoding run %s: %v", r.RunID, err))
			continue
		}
		fmt.Fprintln(w.out, string(b))
	}
}

// encode marshals v without escaping html characters, which occur in
// titles and descriptions.
func encode(v any) ([]byte, error) {
	buffer := &bytes.Buffer{}
	encoder := json.NewEncoder(buffer)
	encoder.SetEscapeHTML(false)
	if err := encoder.Encode(v); err != nil {
		return nil, err
	}
	var indentBuffer bytes.Buffer
	if err := json.Indent(&indentBuffer, bytes.TrimSpace(buffer.Bytes()), "", "  "); err != nil {
		return nil, err
	}
	return indentBuffer.Bytes(), nil
}
