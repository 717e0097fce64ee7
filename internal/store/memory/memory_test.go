package memory

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atlasops/be-ops-approvals/internal/domain"
	"github.com/atlasops/be-ops-approvals/internal/errors"
	"github.com/atlasops/be-ops-approvals/internal/store"
)

func TestSuperiorChain(t *testing.T) {
	st := New()
	st.AddUser("ceo", "")
	st.AddUser("vp", "ceo")
	st.AddUser("lead", "vp")
	st.AddUser("dev", "lead")

	chain, err := st.SuperiorChain(context.Background(), "dev", 5)
	require.NoError(t, err)
	assert.Equal(t, []string{"lead", "vp", "ceo"}, chain)

	chain, err = st.SuperiorChain(context.Background(), "dev", 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"lead", "vp"}, chain)

	chain, err = st.SuperiorChain(context.Background(), "ceo", 5)
	require.NoError(t, err)
	assert.Empty(t, chain)

	_, err = st.SuperiorChain(context.Background(), "nobody", 5)
	assert.Equal(t, errors.ErrCodeNotFound, errors.CodeOf(err))
}

func TestAtomicallyRollsBackOnError(t *testing.T) {
	st := New()
	taskID := st.AddTask("Task", "draft", "", "dev")

	wf := &domain.WorkflowInstance{
		EntityType:  domain.EntityTask,
		EntityID:    taskID,
		SubmittedBy: "dev",
		MaxLevel:    1,
		Status:      domain.WorkflowPending,
	}
	records := []*domain.ApprovalRecord{
		{Level: 1, ApproverID: "lead", Status: domain.RecordPending},
	}

	boom := stderrors.New("boom")
	err := st.Atomically(context.Background(), func(ctx context.Context, tx store.Store) error {
		if err := tx.CreateWorkflow(ctx, wf, records); err != nil {
			return err
		}
		if err := tx.SetEntityStatus(ctx, domain.EntityTask, taskID, "pending_approval"); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	// Nothing from the failed transaction is visible.
	_, err = st.GetWorkflow(context.Background(), wf.ID)
	assert.Equal(t, errors.ErrCodeNotFound, errors.CodeOf(err))

	task, ok := st.Task(taskID)
	require.True(t, ok)
	assert.Equal(t, "draft", task.Status)
}

func TestFinalizeWorkflowGuard(t *testing.T) {
	st := New()
	ctx := context.Background()
	taskID := st.AddTask("Task", "draft", "", "dev")

	wf := &domain.WorkflowInstance{
		EntityType: domain.EntityTask, EntityID: taskID,
		SubmittedBy: "dev", MaxLevel: 0, Status: domain.WorkflowPending,
	}
	require.NoError(t, st.CreateWorkflow(ctx, wf, nil))

	require.NoError(t, st.FinalizeWorkflow(ctx, wf.ID, domain.WorkflowApproved, time.Now(), nil))

	err := st.FinalizeWorkflow(ctx, wf.ID, domain.WorkflowRejected, time.Now(), nil)
	assert.Equal(t, errors.ErrCodeConflict, errors.CodeOf(err))

	got, err := st.GetWorkflow(ctx, wf.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.WorkflowApproved, got.Status)
}

func TestUpdateRecordDecisionGuard(t *testing.T) {
	st := New()
	ctx := context.Background()
	taskID := st.AddTask("Task", "draft", "", "dev")

	wf := &domain.WorkflowInstance{
		EntityType: domain.EntityTask, EntityID: taskID,
		SubmittedBy: "dev", MaxLevel: 1, Status: domain.WorkflowPending,
	}
	records := []*domain.ApprovalRecord{{Level: 1, ApproverID: "lead", Status: domain.RecordPending}}
	require.NoError(t, st.CreateWorkflow(ctx, wf, records))

	require.NoError(t, st.UpdateRecordDecision(ctx, records[0].ID, domain.RecordApproved, nil, time.Now()))

	err := st.UpdateRecordDecision(ctx, records[0].ID, domain.RecordRejected, nil, time.Now())
	assert.Equal(t, errors.ErrCodeConflict, errors.CodeOf(err))
}

func TestExecuteTransfer(t *testing.T) {
	st := New()
	ctx := context.Background()

	from := st.AddProject("From", "active")
	to := st.AddProject("To", "active")
	taskID := st.AddTask("Task", "todo", from, "dev")
	trID := st.AddTransfer(taskID, to, "lead", "pending_approval")

	require.NoError(t, st.ExecuteTransfer(ctx, trID))

	task, _ := st.Task(taskID)
	assert.Equal(t, to, task.ProjectID)
	assert.Equal(t, "lead", task.AssigneeID)
}

func TestGetEntitySummary(t *testing.T) {
	st := New()
	ctx := context.Background()

	projectID := st.AddProject("Big project", "draft")
	summary, err := st.GetEntitySummary(ctx, domain.EntityProject, projectID)
	require.NoError(t, err)
	assert.Equal(t, "Big project", summary.Title)
	assert.Equal(t, "draft", summary.Status)

	_, err = st.GetEntitySummary(ctx, domain.EntityTask, "missing")
	assert.Equal(t, errors.ErrCodeNotFound, errors.CodeOf(err))
}
