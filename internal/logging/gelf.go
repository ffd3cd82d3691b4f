package logging

import (
	"fmt"
	"log/slog"

	"github.com/Graylog2/go-gelf/gelf"
)

// NewGelfHandler returns a JSON handler that ships records to a Graylog GELF
// UDP input. The returned writer must be closed on shutdown.
func NewGelfHandler(addr, level string) (slog.Handler, *gelf.Writer, error) {
	w, err := gelf.NewWriter(addr)
	if err != nil {
		return nil, nil, fmt.Errorf("connecting to graylog at %s: %w", addr, err)
	}
	w.Facility = "strike"
	return slog.NewJSONHandler(w, handlerOptions(level)), w, nil
}
