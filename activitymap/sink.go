package activitymap

import (
	"context"
	"encoding/json"
	"io"
	"sync"

	authclient "github.com/goliatone/go-auth-client"
)

// WriterSink is an ActivitySink writing one normalized JSON record per line.
type WriterSink struct {
	mu   sync.Mutex
	enc  *json.Encoder
	opts []Option
}

var _ authclient.ActivitySink = (*WriterSink)(nil)

// NewWriterSink returns a sink appending records to w.
func NewWriterSink(w io.Writer, opts ...Option) *WriterSink {
	return &WriterSink{
		enc:  json.NewEncoder(w),
		opts: opts,
	}
}

func (s *WriterSink) Record(_ context.Context, event authclient.ActivityEvent) error {
	record := Normalize(event, s.opts...)

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enc.Encode(record)
}
