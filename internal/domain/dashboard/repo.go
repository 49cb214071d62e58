package dashboard

import "context"

type Repository interface {
	Counts(ctx context.Context) (*Counts, error)
	// Latest returns the most recent observation named name, or nil.
	Latest(ctx context.Context, name string) (*Observation, error)
	CreateObservation(ctx context.Context, o *Observation) error
	ListObservations(ctx context.Context, f ObservationFilter, limit, offset int) ([]*Observation, int, error)
}
