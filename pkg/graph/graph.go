// Package graph evaluates start conditions between jobs of a pipeline.
package graph

import (
	"errors"
	"fmt"

	"github.com/dukex/jobline/pkg/models"
)

var ErrCycle = errors.New("start conditions form a cycle")

// Verdict is the outcome of evaluating an incoming edge.
type Verdict int

const (
	// Pass lets the dependent job run as far as this edge is concerned.
	Pass Verdict = iota
	// Block keeps the dependent job waiting.
	Block
	// HardFail means the predecessor finished with the opposite outcome;
	// the dependent job fails without running.
	HardFail
)

func (v Verdict) String() string {
	switch v {
	case Pass:
		return "pass"
	case Block:
		return "block"
	case HardFail:
		return "hard_fail"
	default:
		return fmt.Sprintf("verdict(%d)", int(v))
	}
}

// Edge is an incoming start condition paired with the current status of its predecessor.
type Edge struct {
	PrecedingJobID  string
	Condition       models.Condition
	PrecedingStatus models.JobStatus
}

// EvaluateEdge decides a single edge.
func EvaluateEdge(condition models.Condition, preceding models.JobStatus) Verdict {
	switch condition {
	case models.ConditionSuccess:
		switch preceding {
		case models.JobStatusSucceeded:
			return Pass
		case models.JobStatusFailed:
			return HardFail
		default:
			return Block
		}
	case models.ConditionFail:
		switch preceding {
		case models.JobStatusFailed:
			return Pass
		case models.JobStatusSucceeded:
			return HardFail
		default:
			return Block
		}
	case models.ConditionWhatever:
		if preceding.IsFinished() {
			return Pass
		}

		return Block
	default:
		return Block
	}
}

// Evaluate ANDs the incoming edges of a job, in order, stopping at the first
// edge that does not pass. A job with no incoming edges always passes.
func Evaluate(edges []Edge) Verdict {
	for _, edge := range edges {
		if verdict := EvaluateEdge(edge.Condition, edge.PrecedingStatus); verdict != Pass {
			return verdict
		}
	}

	return Pass
}

// IsGated reports whether any incoming edge keeps the job from running.
func IsGated(edges []Edge) bool {
	return Evaluate(edges) != Pass
}

// Roots returns the jobs with no incoming edge, preserving input order.
func Roots(jobIDs []string, conditions []*models.StartCondition) []string {
	hasIncoming := make(map[string]bool, len(conditions))
	for _, sc := range conditions {
		hasIncoming[sc.JobID] = true
	}

	roots := make([]string, 0, len(jobIDs))

	for _, id := range jobIDs {
		if !hasIncoming[id] {
			roots = append(roots, id)
		}
	}

	return roots
}

// Dependents returns the ids of jobs with an edge coming from jobID, without duplicates.
func Dependents(jobID string, conditions []*models.StartCondition) []string {
	seen := make(map[string]bool)
	dependents := make([]string, 0)

	for _, sc := range conditions {
		if sc.PrecedingJobID != jobID || seen[sc.JobID] {
			continue
		}

		seen[sc.JobID] = true
		dependents = append(dependents, sc.JobID)
	}

	return dependents
}

// CheckAcyclic runs Kahn's algorithm over the jobs and their start conditions.
// Repeated job ids count once. Edges referencing unknown jobs are rejected.
func CheckAcyclic(jobIDs []string, conditions []*models.StartCondition) error {
	inDegree := make(map[string]int, len(jobIDs))
	dependents := make(map[string][]string)
	ids := make([]string, 0, len(jobIDs))

	for _, id := range jobIDs {
		if _, dup := inDegree[id]; dup {
			continue
		}

		inDegree[id] = 0
		ids = append(ids, id)
	}

	for _, sc := range conditions {
		if _, ok := inDegree[sc.PrecedingJobID]; !ok {
			return fmt.Errorf("edge references unknown job %q", sc.PrecedingJobID)
		}

		if _, ok := inDegree[sc.JobID]; !ok {
			return fmt.Errorf("edge references unknown job %q", sc.JobID)
		}

		if sc.PrecedingJobID == sc.JobID {
			return fmt.Errorf("%w: job %q depends on itself", ErrCycle, sc.JobID)
		}

		inDegree[sc.JobID]++
		dependents[sc.PrecedingJobID] = append(dependents[sc.PrecedingJobID], sc.JobID)
	}

	var queue []string

	for _, id := range ids {
		if inDegree[id] == 0 {
			queue = append(queue, id)
		}
	}

	visited := 0

	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		visited++

		for _, dependent := range dependents[id] {
			inDegree[dependent]--
			if inDegree[dependent] == 0 {
				queue = append(queue, dependent)
			}
		}
	}

	if visited != len(ids) {
		return fmt.Errorf("%w: %d of %d jobs are reachable in order", ErrCycle, visited, len(ids))
	}

	return nil
}
