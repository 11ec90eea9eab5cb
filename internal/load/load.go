package load

import (
	"bankcap/internal/dataset"
	"bankcap/lib/telemetry"
	"context"
)

var tracer = telemetry.Tracer("bankcap.internal.load")

// Loader persists a dataset, fully replacing what a previous run wrote.
type Loader interface {
	Name() string
	Load(ctx context.Context, ds dataset.Dataset) error
}

// Nop is the disabled destination.
type Nop struct{}

func (Nop) Name() string {
	return "nop"
}

func (Nop) Load(context.Context, dataset.Dataset) error {
	return nil
}
