package progress

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// TimestampLayout renders e.g. 2024-Mar-07-14:05:09.
const TimestampLayout = "2006-Jan-02-15:04:05"

// Sink receives one message per stage boundary event.
type Sink interface {
	Record(ctx context.Context, message string)
}

// FileSink appends `<timestamp> : <message>` lines to Path, creating its
// directory on first use. Write failures are logged and swallowed, a
// broken progress log never fails a run.
type FileSink struct {
	Path string
	// Now defaults to time.Now.
	Now func() time.Time

	mutex sync.Mutex
}

func NewFileSink(path string) *FileSink {
	return &FileSink{Path: path}
}

func (s *FileSink) Record(ctx context.Context, message string) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	line := fmt.Sprintf("%s : %s\n", now().Format(TimestampLayout), message)

	err := s.append(line)
	if err != nil {
		slog.WarnContext(ctx, "failed to write progress log", "path", s.Path, "err", err)
	}
}

func (s *FileSink) append(line string) error {
	err := os.MkdirAll(filepath.Dir(s.Path), 0777)
	if err != nil {
		return err
	}
	f, err := os.OpenFile(s.Path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	_, err = f.WriteString(line)
	if err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// SlogSink forwards progress messages to the default logger.
type SlogSink struct {
	Attrs []any
}

func (s SlogSink) Record(ctx context.Context, message string) {
	slog.InfoContext(ctx, message, s.Attrs...)
}

type multi []Sink

func (m multi) Record(ctx context.Context, message string) {
	for _, sink := range m {
		sink.Record(ctx, message)
	}
}

// Multi fans every message out to each non-nil sink in order.
func Multi(sinks ...Sink) Sink {
	out := make(multi, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			out = append(out, s)
		}
	}
	return out
}

type nop struct{}

func (nop) Record(context.Context, string) {}

// Nop discards every message.
var Nop Sink = nop{}
