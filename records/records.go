// Package records persists one ConversionRecord per finished job.
package records

import (
	"context"

	"fileflow/models"
)

// Sink stores conversion records somewhere durable.
type Sink interface {
	Name() string
	Write(ctx context.Context, record models.ConversionRecord) error
	Close() error
}
