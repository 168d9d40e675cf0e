package logger

import (
	"bufio"
	"errors"
	"io"
	"sync"
)

// lineWriter fans complete log lines out to one or more buffered sinks.
type lineWriter struct {
	mu    sync.Mutex
	sinks []*bufio.Writer
}

func newLineWriter(writers []io.Writer) *lineWriter {
	sinks := make([]*bufio.Writer, 0, len(writers))
	for _, w := range writers {
		if w == nil {
			continue
		}
		sinks = append(sinks, bufio.NewWriterSize(w, 64*1024))
	}
	return &lineWriter{sinks: sinks}
}

// Write copies the payload to every sink and flushes so lines survive crashes.
func (w *lineWriter) Write(p []byte) error {
	if len(p) == 0 {
		return nil
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, sink := range w.sinks {
		if _, err := sink.Write(p); err != nil {
			return err
		}
		if err := sink.Flush(); err != nil {
			return err
		}
	}
	return nil
}

// Flush forces buffered content out to all sinks.
func (w *lineWriter) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	var errs []error
	for _, sink := range w.sinks {
		if err := sink.Flush(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
