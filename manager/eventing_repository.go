package manager

import (
	"context"

	"github.com/asaidimu/supersave/entity"
	"github.com/asaidimu/supersave/repository"
)

// eventingRepository wraps a concrete engine repository so every write
// emits a Record* event on the owning manager's bus, mirroring the
// start/success/failure emission the entity sync path already does.
type eventingRepository struct {
	repository.Repository
	name string
	m    *EntityManager
}

func (r *eventingRepository) Create(ctx context.Context, input entity.Entity) (entity.Entity, error) {
	created, err := r.Repository.Create(ctx, input)
	r.m.emit(RecordCreated, r.name, err)
	r.m.metrics.ObserveWrite(r.name, "create")
	return created, err
}

func (r *eventingRepository) Update(ctx context.Context, id string, input entity.Entity) (entity.Entity, error) {
	updated, err := r.Repository.Update(ctx, id, input)
	r.m.emit(RecordUpdated, r.name, err)
	r.m.metrics.ObserveWrite(r.name, "update")
	return updated, err
}

func (r *eventingRepository) DeleteUsingID(ctx context.Context, id string) error {
	err := r.Repository.DeleteUsingID(ctx, id)
	r.m.emit(RecordDeleted, r.name, err)
	r.m.metrics.ObserveWrite(r.name, "delete")
	return err
}

var _ repository.Repository = (*eventingRepository)(nil)
