package file

import (
	"context"
	"slices"
	"time"

	"github.com/dukex/jobline/pkg/models"
	"github.com/dukex/jobline/pkg/persistence"
)

func newJobCollection(root string) *collection[models.Job] {
	return newCollection(root, "jobs",
		func(j *models.Job) string { return j.ID },
		func(j *models.Job) time.Time { return j.CreatedAt },
	)
}

// JobRepository handles job-related file operations.
type JobRepository struct {
	p     *Persistence
	items *collection[models.Job]
}

func (r *JobRepository) GetByID(_ context.Context, id string) (*models.Job, error) {
	job, err := r.items.get(id)
	if err != nil {
		return nil, persistence.NewEntityError("GetByID", "job", id, err)
	}

	if job == nil {
		return nil, persistence.NewEntityError("GetByID", "job", id, persistence.ErrJobNotFound)
	}

	return job, nil
}

// GetByIDs returns the jobs that exist among ids, in creation order.
func (r *JobRepository) GetByIDs(_ context.Context, ids []string) ([]*models.Job, error) {
	jobs, err := r.items.filter(func(j *models.Job) bool { return slices.Contains(ids, j.ID) })
	if err != nil {
		return nil, persistence.NewEntityError("GetByIDs", "job", "", err)
	}

	return jobs, nil
}

func (r *JobRepository) GetByPipeline(_ context.Context, pipelineID string) ([]*models.Job, error) {
	jobs, err := r.items.filter(func(j *models.Job) bool { return j.PipelineID == pipelineID })
	if err != nil {
		return nil, persistence.NewEntityError("GetByPipeline", "job", "", err)
	}

	return jobs, nil
}

func (r *JobRepository) GetByStatus(_ context.Context, pipelineID string, statuses ...models.JobStatus) ([]*models.Job, error) {
	jobs, err := r.items.filter(func(j *models.Job) bool {
		return j.PipelineID == pipelineID && slices.Contains(statuses, j.Status)
	})
	if err != nil {
		return nil, persistence.NewEntityError("GetByStatus", "job", "", err)
	}

	return jobs, nil
}

func (r *JobRepository) Save(_ context.Context, job *models.Job) error {
	return r.p.locked(func() error {
		if err := stamp(&job.ID, &job.CreatedAt, &job.UpdatedAt); err != nil {
			return err
		}

		return r.items.save(job)
	})
}

func (r *JobRepository) Update(_ context.Context, id string, mutate persistence.JobMutation) (*models.Job, error) {
	var updated *models.Job

	err := r.p.locked(func() error {
		job, err := r.items.get(id)
		if err != nil {
			return persistence.NewEntityError("Update", "job", id, err)
		}

		if job == nil {
			return persistence.NewEntityError("Update", "job", id, persistence.ErrJobNotFound)
		}

		if err := mutate(job); err != nil {
			return err
		}

		job.UpdatedAt = time.Now().UTC()

		if err := r.items.save(job); err != nil {
			return persistence.NewEntityError("Update", "job", id, err)
		}

		updated = job

		return nil
	})

	return updated, err
}

func (r *JobRepository) Delete(_ context.Context, id string) error {
	return r.p.locked(func() error {
		return r.items.delete(id)
	})
}
