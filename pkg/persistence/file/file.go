// Package file provides file-based persistence implementation for pipelines and jobs.
package file

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dukex/jobline/pkg/persistence"
)

// Persistence implements the persistence.Persistence interface using the file system.
// Writes are serialized by a single mutex, which makes every Update atomic within the process.
type Persistence struct {
	root string
	mu   sync.Mutex

	pipelineRepo       *PipelineRepository
	jobRepo            *JobRepository
	paramRepo          *ParamRepository
	startConditionRepo *StartConditionRepository
	scheduleRepo       *ScheduleRepository
}

// NewPersistence creates a new instance of Persistence with the specified root directory.
func NewPersistence(root string) *Persistence {
	cleanRoot := strings.Replace(root, "file://", "", 1)

	p := &Persistence{root: cleanRoot}
	p.pipelineRepo = &PipelineRepository{p: p, items: newPipelineCollection(cleanRoot)}
	p.jobRepo = &JobRepository{p: p, items: newJobCollection(cleanRoot)}
	p.paramRepo = &ParamRepository{p: p, items: newParamCollection(cleanRoot)}
	p.startConditionRepo = &StartConditionRepository{p: p, items: newStartConditionCollection(cleanRoot)}
	p.scheduleRepo = &ScheduleRepository{p: p, items: newScheduleCollection(cleanRoot)}

	return p
}

// Close performs any necessary cleanup. For file-based persistence, there is nothing to clean up.
func (fp *Persistence) Close(_ context.Context) error {
	return nil
}

// HealthCheck checks if the file persistence layer is healthy by verifying the root directory exists.
func (fp *Persistence) HealthCheck(_ context.Context) error {
	if _, err := os.Stat(fp.root); os.IsNotExist(err) {
		return os.ErrNotExist
	}

	return nil
}

func (fp *Persistence) PipelineRepository() persistence.PipelineRepository {
	return fp.pipelineRepo
}

func (fp *Persistence) JobRepository() persistence.JobRepository {
	return fp.jobRepo
}

func (fp *Persistence) ParamRepository() persistence.ParamRepository {
	return fp.paramRepo
}

func (fp *Persistence) StartConditionRepository() persistence.StartConditionRepository {
	return fp.startConditionRepo
}

func (fp *Persistence) ScheduleRepository() persistence.ScheduleRepository {
	return fp.scheduleRepo
}

// locked runs fn while holding the write lock.
func (fp *Persistence) locked(fn func() error) error {
	fp.mu.Lock()
	defer fp.mu.Unlock()

	return fn()
}

func newID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("failed to generate ID: %w", err)
	}

	return id.String(), nil
}

// stamp fills the ID and timestamps of a record about to be written.
func stamp(id *string, createdAt, updatedAt *time.Time) error {
	if *id == "" {
		generated, err := newID()
		if err != nil {
			return err
		}

		*id = generated
	}

	now := time.Now().UTC()
	if createdAt.IsZero() {
		*createdAt = now
	}

	if updatedAt != nil {
		*updatedAt = now
	}

	return nil
}
