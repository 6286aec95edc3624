package file

import (
	"context"
	"time"

	"github.com/dukex/jobline/pkg/models"
	"github.com/dukex/jobline/pkg/persistence"
)

func newPipelineCollection(root string) *collection[models.Pipeline] {
	return newCollection(root, "pipelines",
		func(p *models.Pipeline) string { return p.ID },
		func(p *models.Pipeline) time.Time { return p.CreatedAt },
	)
}

// PipelineRepository handles pipeline-related file operations.
type PipelineRepository struct {
	p     *Persistence
	items *collection[models.Pipeline]
}

func (r *PipelineRepository) GetAll(_ context.Context) ([]*models.Pipeline, error) {
	pipelines, err := r.items.all()
	if err != nil {
		return nil, persistence.NewEntityError("GetAll", "pipeline", "", err)
	}

	return pipelines, nil
}

func (r *PipelineRepository) GetByID(_ context.Context, id string) (*models.Pipeline, error) {
	pipeline, err := r.items.get(id)
	if err != nil {
		return nil, persistence.NewEntityError("GetByID", "pipeline", id, err)
	}

	if pipeline == nil {
		return nil, persistence.NewEntityError("GetByID", "pipeline", id, persistence.ErrPipelineNotFound)
	}

	return pipeline, nil
}

func (r *PipelineRepository) Save(_ context.Context, pipeline *models.Pipeline) error {
	return r.p.locked(func() error {
		if err := stamp(&pipeline.ID, &pipeline.CreatedAt, &pipeline.UpdatedAt); err != nil {
			return err
		}

		return r.items.save(pipeline)
	})
}

func (r *PipelineRepository) Update(_ context.Context, id string, mutate persistence.PipelineMutation) (*models.Pipeline, error) {
	var updated *models.Pipeline

	err := r.p.locked(func() error {
		pipeline, err := r.items.get(id)
		if err != nil {
			return persistence.NewEntityError("Update", "pipeline", id, err)
		}

		if pipeline == nil {
			return persistence.NewEntityError("Update", "pipeline", id, persistence.ErrPipelineNotFound)
		}

		if err := mutate(pipeline); err != nil {
			return err
		}

		pipeline.UpdatedAt = time.Now().UTC()

		if err := r.items.save(pipeline); err != nil {
			return persistence.NewEntityError("Update", "pipeline", id, err)
		}

		updated = pipeline

		return nil
	})

	return updated, err
}

func (r *PipelineRepository) Delete(_ context.Context, id string) error {
	return r.p.locked(func() error {
		return r.items.delete(id)
	})
}
