package motor

import (
	"context"

	"github.com/pb33f/mirrorlog/motor/model"
	"github.com/pb33f/mirrorlog/suffix"
)

// Framer splits a connection's byte stream into raw records.
// Next returns io.EOF once the peer has closed cleanly; any other
// error, except an *OversizeError, ends the connection.
type Framer interface {
	Next() (RawRecord, error)
}

// Sink receives one normalized entry per successfully processed record.
// The pipeline does not retry a failed Emit.
type Sink interface {
	// Emit writes a single entry
	Emit(ctx context.Context, entry *model.Entry) error

	// Close flushes and releases the sink
	Close() error
}

// SuffixLookup resolves a host name to its registered-domain annotation.
// Implementations must be safe for concurrent use and are never mutated
// after construction.
type SuffixLookup interface {
	Lookup(host string) (suffix.Annotation, bool)
}
