package file

import (
	"context"
	"time"

	"github.com/dukex/jobline/pkg/models"
	"github.com/dukex/jobline/pkg/persistence"
)

func newParamCollection(root string) *collection[models.Param] {
	return newCollection(root, "params",
		func(p *models.Param) string { return p.ID },
		func(p *models.Param) time.Time { return p.CreatedAt },
	)
}

// ParamRepository handles param-related file operations.
type ParamRepository struct {
	p     *Persistence
	items *collection[models.Param]
}

func (r *ParamRepository) GetByID(_ context.Context, id string) (*models.Param, error) {
	param, err := r.items.get(id)
	if err != nil {
		return nil, persistence.NewEntityError("GetByID", "param", id, err)
	}

	if param == nil {
		return nil, persistence.NewEntityError("GetByID", "param", id, persistence.ErrParamNotFound)
	}

	return param, nil
}

func (r *ParamRepository) GetByScope(_ context.Context, scope models.ParamScope) ([]*models.Param, error) {
	params, err := r.items.filter(func(p *models.Param) bool { return p.Scope == scope })
	if err != nil {
		return nil, persistence.NewEntityError("GetByScope", "param", "", err)
	}

	return params, nil
}

func (r *ParamRepository) Save(_ context.Context, param *models.Param) error {
	return r.p.locked(func() error {
		if err := stamp(&param.ID, &param.CreatedAt, &param.UpdatedAt); err != nil {
			return err
		}

		return r.items.save(param)
	})
}

func (r *ParamRepository) Delete(_ context.Context, id string) error {
	return r.p.locked(func() error {
		return r.items.delete(id)
	})
}

func (r *ParamRepository) DeleteByScope(_ context.Context, scope models.ParamScope) error {
	return r.p.locked(func() error {
		return r.items.deleteWhere(func(p *models.Param) bool { return p.Scope == scope })
	})
}
