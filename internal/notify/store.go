package notify

import (
	"context"

	"github.com/hazz-dev/dataprobe/internal/check"
)

// RecordWriter persists a result's field values in the order given.
type RecordWriter interface {
	WriteResult(ctx context.Context, fields []check.Field) error
}

// StoreSink forwards failed results to a durable store. Fields are
// passed in their fixed record order so column-positional inserts
// line up.
type StoreSink struct {
	writer RecordWriter
}

// NewStoreSink creates a StoreSink over w.
func NewStoreSink(w RecordWriter) *StoreSink {
	return &StoreSink{writer: w}
}

func (s *StoreSink) Name() string { return "store" }

func (s *StoreSink) Send(ctx context.Context, res check.Result, _ string) error {
	return s.writer.WriteResult(ctx, res.Fields())
}
