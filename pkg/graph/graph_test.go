package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukex/jobline/pkg/models"
)

var nonTerminal = []models.JobStatus{
	models.JobStatusIdle,
	models.JobStatusWaiting,
	models.JobStatusRunning,
	models.JobStatusStopping,
}

func TestEvaluateEdge_Success(t *testing.T) {
	assert.Equal(t, Pass, EvaluateEdge(models.ConditionSuccess, models.JobStatusSucceeded))
	assert.Equal(t, HardFail, EvaluateEdge(models.ConditionSuccess, models.JobStatusFailed))

	for _, status := range nonTerminal {
		assert.Equal(t, Block, EvaluateEdge(models.ConditionSuccess, status), status)
	}
}

func TestEvaluateEdge_Fail(t *testing.T) {
	assert.Equal(t, Pass, EvaluateEdge(models.ConditionFail, models.JobStatusFailed))
	assert.Equal(t, HardFail, EvaluateEdge(models.ConditionFail, models.JobStatusSucceeded))

	for _, status := range nonTerminal {
		assert.Equal(t, Block, EvaluateEdge(models.ConditionFail, status), status)
	}
}

func TestEvaluateEdge_Whatever(t *testing.T) {
	assert.Equal(t, Pass, EvaluateEdge(models.ConditionWhatever, models.JobStatusFailed))
	assert.Equal(t, Pass, EvaluateEdge(models.ConditionWhatever, models.JobStatusSucceeded))

	for _, status := range nonTerminal {
		assert.Equal(t, Block, EvaluateEdge(models.ConditionWhatever, status), status)
	}
}

func TestEvaluateEdge_UnknownConditionBlocks(t *testing.T) {
	assert.Equal(t, Block, EvaluateEdge("sometimes", models.JobStatusSucceeded))
}

func TestEvaluate(t *testing.T) {
	assert.Equal(t, Pass, Evaluate(nil))
	assert.False(t, IsGated(nil))

	edges := []Edge{
		{PrecedingJobID: "a", Condition: models.ConditionSuccess, PrecedingStatus: models.JobStatusSucceeded},
		{PrecedingJobID: "b", Condition: models.ConditionWhatever, PrecedingStatus: models.JobStatusRunning},
		{PrecedingJobID: "c", Condition: models.ConditionSuccess, PrecedingStatus: models.JobStatusFailed},
	}

	assert.Equal(t, Block, Evaluate(edges))
	assert.True(t, IsGated(edges))

	edges[1].PrecedingStatus = models.JobStatusFailed
	assert.Equal(t, HardFail, Evaluate(edges))

	edges[2].PrecedingStatus = models.JobStatusSucceeded
	assert.Equal(t, Pass, Evaluate(edges))
	assert.False(t, IsGated(edges))
}

func edge(from, to string) *models.StartCondition {
	return &models.StartCondition{PrecedingJobID: from, JobID: to, Condition: models.ConditionSuccess}
}

func TestRootsAndDependents(t *testing.T) {
	conditions := []*models.StartCondition{edge("a", "b"), edge("a", "c"), edge("b", "c")}

	assert.Equal(t, []string{"a", "d"}, Roots([]string{"a", "b", "c", "d"}, conditions))
	assert.Equal(t, []string{"b", "c"}, Dependents("a", conditions))
	assert.Empty(t, Dependents("c", conditions))
}

func TestCheckAcyclic(t *testing.T) {
	jobs := []string{"a", "b", "c"}

	require.NoError(t, CheckAcyclic(jobs, []*models.StartCondition{edge("a", "b"), edge("b", "c"), edge("a", "c")}))
	require.NoError(t, CheckAcyclic(jobs, nil))

	err := CheckAcyclic(jobs, []*models.StartCondition{edge("a", "b"), edge("b", "c"), edge("c", "a")})
	assert.ErrorIs(t, err, ErrCycle)

	err = CheckAcyclic(jobs, []*models.StartCondition{edge("a", "a")})
	assert.ErrorIs(t, err, ErrCycle)

	err = CheckAcyclic(jobs, []*models.StartCondition{edge("a", "z")})
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrCycle)
}

func TestCheckAcyclic_RepeatedJobIDs(t *testing.T) {
	jobs := []string{"a", "b", "a", "c", "b"}

	require.NoError(t, CheckAcyclic(jobs, []*models.StartCondition{edge("a", "b"), edge("b", "c")}))
	require.NoError(t, CheckAcyclic(jobs, nil))
	require.NoError(t, CheckAcyclic(jobs, []*models.StartCondition{edge("a", "b"), edge("a", "b")}))

	err := CheckAcyclic(jobs, []*models.StartCondition{edge("a", "b"), edge("b", "a")})
	assert.ErrorIs(t, err, ErrCycle)
}
