package file

import (
	"context"
	"time"

	"github.com/dukex/jobline/pkg/models"
	"github.com/dukex/jobline/pkg/persistence"
)

func newStartConditionCollection(root string) *collection[models.StartCondition] {
	return newCollection(root, "start_conditions",
		func(sc *models.StartCondition) string { return sc.ID },
		func(sc *models.StartCondition) time.Time { return sc.CreatedAt },
	)
}

// StartConditionRepository handles start condition file operations.
type StartConditionRepository struct {
	p     *Persistence
	items *collection[models.StartCondition]
}

func (r *StartConditionRepository) GetByJob(_ context.Context, jobID string) ([]*models.StartCondition, error) {
	conditions, err := r.items.filter(func(sc *models.StartCondition) bool { return sc.JobID == jobID })
	if err != nil {
		return nil, persistence.NewEntityError("GetByJob", "start condition", "", err)
	}

	return conditions, nil
}

func (r *StartConditionRepository) GetByPrecedingJob(_ context.Context, jobID string) ([]*models.StartCondition, error) {
	conditions, err := r.items.filter(func(sc *models.StartCondition) bool { return sc.PrecedingJobID == jobID })
	if err != nil {
		return nil, persistence.NewEntityError("GetByPrecedingJob", "start condition", "", err)
	}

	return conditions, nil
}

// GetByPipeline returns the edges whose dependent job belongs to the pipeline.
func (r *StartConditionRepository) GetByPipeline(ctx context.Context, pipelineID string) ([]*models.StartCondition, error) {
	jobs, err := r.p.jobRepo.GetByPipeline(ctx, pipelineID)
	if err != nil {
		return nil, err
	}

	jobIDs := make(map[string]bool, len(jobs))
	for _, job := range jobs {
		jobIDs[job.ID] = true
	}

	conditions, err := r.items.filter(func(sc *models.StartCondition) bool { return jobIDs[sc.JobID] })
	if err != nil {
		return nil, persistence.NewEntityError("GetByPipeline", "start condition", "", err)
	}

	return conditions, nil
}

func (r *StartConditionRepository) Save(_ context.Context, startCondition *models.StartCondition) error {
	return r.p.locked(func() error {
		if err := stamp(&startCondition.ID, &startCondition.CreatedAt, nil); err != nil {
			return err
		}

		return r.items.save(startCondition)
	})
}

func (r *StartConditionRepository) Delete(_ context.Context, id string) error {
	return r.p.locked(func() error {
		return r.items.delete(id)
	})
}

func (r *StartConditionRepository) DeleteByJob(_ context.Context, jobID string) error {
	return r.p.locked(func() error {
		return r.items.deleteWhere(func(sc *models.StartCondition) bool {
			return sc.JobID == jobID || sc.PrecedingJobID == jobID
		})
	})
}
