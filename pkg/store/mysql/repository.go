package mysql

import "context"

// Repository aggregates all MySQL repositories
type Repository struct {
	ds *Datastore

	ScalingEvent *ScalingEventRepository
}

// NewRepository opens the datastore, migrates the schema and wires repositories for pool
func NewRepository(ctx context.Context, dsn string, pool string) (*Repository, error) {
	ds, err := NewDatastore(dsn)
	if err != nil {
		return nil, err
	}
	if err := ds.Migrate(ctx); err != nil {
		ds.Close()
		return nil, err
	}

	return &Repository{
		ds:           ds,
		ScalingEvent: NewScalingEventRepository(ds, pool),
	}, nil
}

// GetDatastore returns the underlying datastore for transaction support
func (r *Repository) GetDatastore() *Datastore {
	return r.ds
}

// Close closes the database connection
func (r *Repository) Close() error {
	return r.ds.Close()
}
