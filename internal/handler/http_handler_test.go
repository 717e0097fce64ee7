package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atlasops/be-ops-approvals/internal/domain"
	"github.com/atlasops/be-ops-approvals/internal/logger"
	"github.com/atlasops/be-ops-approvals/internal/middleware"
	"github.com/atlasops/be-ops-approvals/internal/service"
	"github.com/atlasops/be-ops-approvals/internal/store/memory"
)

type testServer struct {
	store   *memory.Store
	service *service.ApprovalService
	handler http.Handler
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	st := memory.New()
	st.AddUser("b", "")
	st.AddUser("a", "b")
	st.AddUser("u1", "a")

	log := logger.Nop()
	svc := service.NewApprovalService(st, service.NewSynchronizer(log), nil, log, 5)

	mux := http.NewServeMux()
	NewHTTPHandler(svc, log, 1).Register(mux)

	return &testServer{store: st, service: svc, handler: middleware.Identity(mux)}
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func (s *testServer) do(t *testing.T, method, path, userID string, body any) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if userID != "" {
		req.Header.Set(middleware.UserIDHeader, userID)
	}

	rr := httptest.NewRecorder()
	s.handler.ServeHTTP(rr, req)

	var env envelope
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &env), "body: %s", rr.Body.String())
	return rr, env
}

func (s *testServer) submitTask(t *testing.T, levels int) (*domain.WorkflowInstance, string) {
	t.Helper()
	taskID := s.store.AddTask("API task", "draft", "", "u1")
	wf, err := s.service.Submit(context.Background(), domain.EntityTask, taskID, "u1", levels)
	require.NoError(t, err)
	return wf, taskID
}

func TestSubmitEndpoint(t *testing.T) {
	srv := newTestServer(t)
	taskID := srv.store.AddTask("New task", "draft", "", "u1")

	rr, env := srv.do(t, http.MethodPost, "/api/v1/approvals/submit", "u1", map[string]any{
		"entity_type":     "task",
		"entity_id":       taskID,
		"required_levels": 2,
	})

	require.Equal(t, http.StatusCreated, rr.Code)
	require.True(t, env.Success)

	var wf domain.WorkflowInstance
	require.NoError(t, json.Unmarshal(env.Data, &wf))
	assert.Equal(t, domain.WorkflowPending, wf.Status)
	assert.Len(t, wf.Records, 2)
}

func TestSubmitEndpointAppliesDefaultLevels(t *testing.T) {
	srv := newTestServer(t)
	taskID := srv.store.AddTask("Defaulted task", "draft", "", "u1")

	rr, env := srv.do(t, http.MethodPost, "/api/v1/approvals/submit", "u1", map[string]any{
		"entity_type": "task",
		"entity_id":   taskID,
	})

	require.Equal(t, http.StatusCreated, rr.Code)

	var wf domain.WorkflowInstance
	require.NoError(t, json.Unmarshal(env.Data, &wf))
	assert.Len(t, wf.Records, 1)
	assert.Equal(t, "a", wf.Records[0].ApproverID)
}

func TestSubmitEndpointRejectsUnknownEntityType(t *testing.T) {
	srv := newTestServer(t)

	rr, env := srv.do(t, http.MethodPost, "/api/v1/approvals/submit", "u1", map[string]any{
		"entity_type": "kanban_column",
		"entity_id":   "x",
	})

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.False(t, env.Success)
}

func TestPendingEndpoint(t *testing.T) {
	srv := newTestServer(t)
	srv.submitTask(t, 2)

	rr, env := srv.do(t, http.MethodGet, "/api/v1/approvals/pending", "a", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	require.True(t, env.Success)

	var pending []*domain.PendingApproval
	require.NoError(t, json.Unmarshal(env.Data, &pending))
	require.Len(t, pending, 1)
	assert.Equal(t, "API task", pending[0].Entity.Title)

	// All levels are pending from submission, so "b" sees their record too.
	_, env = srv.do(t, http.MethodGet, "/api/v1/approvals/pending", "b", nil)
	require.NoError(t, json.Unmarshal(env.Data, &pending))
	assert.Len(t, pending, 1)
}

func TestPendingEndpointRequiresIdentity(t *testing.T) {
	srv := newTestServer(t)

	rr, env := srv.do(t, http.MethodGet, "/api/v1/approvals/pending", "", nil)
	assert.Equal(t, http.StatusForbidden, rr.Code)
	assert.False(t, env.Success)
}

func TestProcessEndpointApprove(t *testing.T) {
	srv := newTestServer(t)
	wf, taskID := srv.submitTask(t, 1)

	rr, env := srv.do(t, http.MethodPost,
		fmt.Sprintf("/api/v1/approvals/%s/process", wf.Records[0].ID), "a",
		map[string]any{"action": "approve", "comments": "ok"})

	require.Equal(t, http.StatusOK, rr.Code)
	assert.True(t, env.Success)

	task, _ := srv.store.Task(taskID)
	assert.Equal(t, domain.TaskStatusTodo, task.Status)
}

func TestProcessEndpointUnauthorizedActor(t *testing.T) {
	srv := newTestServer(t)
	wf, _ := srv.submitTask(t, 1)

	rr, env := srv.do(t, http.MethodPost,
		fmt.Sprintf("/api/v1/approvals/%s/process", wf.Records[0].ID), "u1",
		map[string]any{"action": "approve"})

	assert.Equal(t, http.StatusForbidden, rr.Code)
	assert.False(t, env.Success)
}

func TestProcessEndpointInvalidAction(t *testing.T) {
	srv := newTestServer(t)
	wf, _ := srv.submitTask(t, 1)

	rr, _ := srv.do(t, http.MethodPost,
		fmt.Sprintf("/api/v1/approvals/%s/process", wf.Records[0].ID), "a",
		map[string]any{"action": "escalate"})

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestProcessEndpointDelegateRequiresTarget(t *testing.T) {
	srv := newTestServer(t)
	wf, _ := srv.submitTask(t, 1)

	rr, _ := srv.do(t, http.MethodPost,
		fmt.Sprintf("/api/v1/approvals/%s/process", wf.Records[0].ID), "a",
		map[string]any{"action": "delegate"})

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestProcessEndpointConflictOnRepeat(t *testing.T) {
	srv := newTestServer(t)
	wf, _ := srv.submitTask(t, 2)
	body := map[string]any{"action": "approve"}
	path := fmt.Sprintf("/api/v1/approvals/%s/process", wf.Records[0].ID)

	rr, _ := srv.do(t, http.MethodPost, path, "a", body)
	require.Equal(t, http.StatusOK, rr.Code)

	rr, env := srv.do(t, http.MethodPost, path, "a", body)
	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.False(t, env.Success)
}

func TestHistoryEndpoint(t *testing.T) {
	srv := newTestServer(t)
	wf, taskID := srv.submitTask(t, 1)
	require.NoError(t, srv.service.Decide(context.Background(), wf.Records[0].ID, "a", domain.ActionReject, "nope", ""))

	rr, env := srv.do(t, http.MethodGet,
		"/api/v1/approvals/history?entity_type=task&entity_id="+taskID, "u1", nil)

	require.Equal(t, http.StatusOK, rr.Code)

	var history []*domain.WorkflowInstance
	require.NoError(t, json.Unmarshal(env.Data, &history))
	require.Len(t, history, 1)
	assert.Equal(t, domain.WorkflowRejected, history[0].Status)
	require.Len(t, history[0].Records, 1)
}

func TestHistoryEndpointValidatesParams(t *testing.T) {
	srv := newTestServer(t)

	rr, _ := srv.do(t, http.MethodGet, "/api/v1/approvals/history?entity_type=task", "u1", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr, _ = srv.do(t, http.MethodGet, "/api/v1/approvals/history?entity_type=widget&entity_id=x", "u1", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestStatsEndpoint(t *testing.T) {
	srv := newTestServer(t)
	srv.submitTask(t, 2)

	rr, env := srv.do(t, http.MethodGet, "/api/v1/approvals/stats", "a", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	var stats domain.ApproverStats
	require.NoError(t, json.Unmarshal(env.Data, &stats))
	assert.Equal(t, 1, stats.PendingTasks)
	assert.Equal(t, 1, stats.TotalPending)
}
