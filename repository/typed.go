package repository

import (
	"context"

	"github.com/asaidimu/supersave/query"
	"github.com/asaidimu/supersave/utils"
)

// CreateTyped marshals input to an entity.Entity, creates it through repo,
// and unmarshals the stored result (including any server-assigned id) back
// into T.
func CreateTyped[T any](ctx context.Context, repo Repository, input T) (T, error) {
	var zero T
	rec, err := utils.StructToMap(input)
	if err != nil {
		return zero, err
	}
	created, err := repo.Create(ctx, rec)
	if err != nil {
		return zero, err
	}
	return utils.MapToStruct[T](created)
}

// UpdateTyped is CreateTyped's counterpart for repo.Update.
func UpdateTyped[T any](ctx context.Context, repo Repository, id string, input T) (T, error) {
	var zero T
	rec, err := utils.StructToMap(input)
	if err != nil {
		return zero, err
	}
	updated, err := repo.Update(ctx, id, rec)
	if err != nil {
		return zero, err
	}
	return utils.MapToStruct[T](updated)
}

// GetByIDTyped unmarshals the entity.Entity repo.GetByID returns into T.
func GetByIDTyped[T any](ctx context.Context, repo Repository, id string) (T, error) {
	var zero T
	e, err := repo.GetByID(ctx, id)
	if err != nil {
		return zero, err
	}
	return utils.MapToStruct[T](e)
}

// GetByQueryTyped unmarshals every entity.Entity repo.GetByQuery returns into T.
func GetByQueryTyped[T any](ctx context.Context, repo Repository, q query.Query) ([]T, error) {
	entities, err := repo.GetByQuery(ctx, q)
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, len(entities))
	for _, e := range entities {
		v, err := utils.MapToStruct[T](e)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}
