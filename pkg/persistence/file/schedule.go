package file

import (
	"context"
	"time"

	"github.com/dukex/jobline/pkg/models"
	"github.com/dukex/jobline/pkg/persistence"
)

func newScheduleCollection(root string) *collection[models.Schedule] {
	return newCollection(root, "schedules",
		func(s *models.Schedule) string { return s.ID },
		func(s *models.Schedule) time.Time { return s.CreatedAt },
	)
}

// ScheduleRepository handles schedule-related file operations.
type ScheduleRepository struct {
	p     *Persistence
	items *collection[models.Schedule]
}

func (r *ScheduleRepository) GetAll(_ context.Context) ([]*models.Schedule, error) {
	schedules, err := r.items.all()
	if err != nil {
		return nil, persistence.NewEntityError("GetAll", "schedule", "", err)
	}

	return schedules, nil
}

func (r *ScheduleRepository) GetByPipeline(_ context.Context, pipelineID string) ([]*models.Schedule, error) {
	schedules, err := r.items.filter(func(s *models.Schedule) bool { return s.PipelineID == pipelineID })
	if err != nil {
		return nil, persistence.NewEntityError("GetByPipeline", "schedule", "", err)
	}

	return schedules, nil
}

func (r *ScheduleRepository) Save(_ context.Context, schedule *models.Schedule) error {
	return r.p.locked(func() error {
		if err := stamp(&schedule.ID, &schedule.CreatedAt, &schedule.UpdatedAt); err != nil {
			return err
		}

		return r.items.save(schedule)
	})
}

func (r *ScheduleRepository) Delete(_ context.Context, id string) error {
	return r.p.locked(func() error {
		return r.items.delete(id)
	})
}

func (r *ScheduleRepository) DeleteByPipeline(_ context.Context, pipelineID string) error {
	return r.p.locked(func() error {
		return r.items.deleteWhere(func(s *models.Schedule) bool { return s.PipelineID == pipelineID })
	})
}
