// Package sink contains the destinations normalized entries are written to.
package sink

import (
	"context"
	"errors"

	"github.com/pb33f/mirrorlog/motor/model"
)

// Sink is implemented by every destination in this package.
type Sink interface {
	Emit(ctx context.Context, entry *model.Entry) error
	Close() error
}

// Multi fans each entry out to several sinks.
type Multi []Sink

// Emit writes to every sink, even after one fails, and joins the errors.
func (m Multi) Emit(ctx context.Context, entry *model.Entry) error {
	var errs []error
	for _, s := range m {
		if err := s.Emit(ctx, entry); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m Multi) Close() error {
	var errs []error
	for _, s := range m {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
