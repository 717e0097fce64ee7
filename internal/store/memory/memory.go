// Package memory implements store.Store in process memory. It backs the
// service and handler tests and the local development mode; transactions are
// serialized by a store-wide mutex with snapshot rollback, which gives the
// same isolation the postgres implementation gets from row locks.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/atlasops/be-ops-approvals/internal/domain"
	"github.com/atlasops/be-ops-approvals/internal/errors"
	"github.com/atlasops/be-ops-approvals/internal/store"
)

// Task is the minimal governed task row.
type Task struct {
	ID         string
	Title      string
	Status     string
	ProjectID  string
	AssigneeID string
}

// Project is the minimal governed project row.
type Project struct {
	ID     string
	Name   string
	Status string
}

// Transfer is the minimal governed task-transfer row.
type Transfer struct {
	ID           string
	TaskID       string
	ToProjectID  string
	ToAssigneeID string
	Status       string
}

type data struct {
	workflows map[string]*domain.WorkflowInstance
	records   map[string]*domain.ApprovalRecord
	managers  map[string]string // user -> manager; "" means top of chain
	tasks     map[string]*Task
	projects  map[string]*Project
	transfers map[string]*Transfer
	audit     []*domain.AuditEntry
}

// Store is the in-memory store.Store.
type Store struct {
	mu   *sync.Mutex
	d    *data
	inTx bool
}

var _ store.Store = (*Store)(nil)

// New creates an empty in-memory store.
func New() *Store {
	return &Store{
		mu: &sync.Mutex{},
		d: &data{
			workflows: map[string]*domain.WorkflowInstance{},
			records:   map[string]*domain.ApprovalRecord{},
			managers:  map[string]string{},
			tasks:     map[string]*Task{},
			projects:  map[string]*Project{},
			transfers: map[string]*Transfer{},
		},
	}
}

// lock acquires the store mutex unless already inside a transaction.
// Returns the matching unlock.
func (s *Store) lock() func() {
	if s.inTx {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

// Atomically serializes fn against all other store access and rolls every
// mutation back if fn fails.
func (s *Store) Atomically(ctx context.Context, fn func(ctx context.Context, tx store.Store) error) error {
	if s.inTx {
		return fn(ctx, s)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snap := s.d.snapshot()
	tx := &Store{mu: s.mu, d: s.d, inTx: true}
	if err := fn(ctx, tx); err != nil {
		s.d.restore(snap)
		return err
	}
	return nil
}

func (d *data) snapshot() *data {
	snap := &data{
		workflows: make(map[string]*domain.WorkflowInstance, len(d.workflows)),
		records:   make(map[string]*domain.ApprovalRecord, len(d.records)),
		managers:  make(map[string]string, len(d.managers)),
		tasks:     make(map[string]*Task, len(d.tasks)),
		projects:  make(map[string]*Project, len(d.projects)),
		transfers: make(map[string]*Transfer, len(d.transfers)),
		audit:     append([]*domain.AuditEntry(nil), d.audit...),
	}
	for k, v := range d.workflows {
		cp := *v
		cp.Records = nil
		snap.workflows[k] = &cp
	}
	for k, v := range d.records {
		cp := *v
		snap.records[k] = &cp
	}
	for k, v := range d.managers {
		snap.managers[k] = v
	}
	for k, v := range d.tasks {
		cp := *v
		snap.tasks[k] = &cp
	}
	for k, v := range d.projects {
		cp := *v
		snap.projects[k] = &cp
	}
	for k, v := range d.transfers {
		cp := *v
		snap.transfers[k] = &cp
	}
	return snap
}

func (d *data) restore(snap *data) {
	d.workflows = snap.workflows
	d.records = snap.records
	d.managers = snap.managers
	d.tasks = snap.tasks
	d.projects = snap.projects
	d.transfers = snap.transfers
	d.audit = snap.audit
}

// ── Seeding helpers ───────────────────────────────────────────────────────────

// AddUser registers a user and their direct manager ("" for none).
func (s *Store) AddUser(userID, managerID string) {
	defer s.lock()()
	s.d.managers[userID] = managerID
}

// AddTask seeds a task and returns its id.
func (s *Store) AddTask(title, status, projectID, assigneeID string) string {
	defer s.lock()()
	t := &Task{ID: uuid.NewString(), Title: title, Status: status, ProjectID: projectID, AssigneeID: assigneeID}
	s.d.tasks[t.ID] = t
	return t.ID
}

// AddProject seeds a project and returns its id.
func (s *Store) AddProject(name, status string) string {
	defer s.lock()()
	p := &Project{ID: uuid.NewString(), Name: name, Status: status}
	s.d.projects[p.ID] = p
	return p.ID
}

// AddTransfer seeds a task transfer and returns its id.
func (s *Store) AddTransfer(taskID, toProjectID, toAssigneeID, status string) string {
	defer s.lock()()
	tr := &Transfer{ID: uuid.NewString(), TaskID: taskID, ToProjectID: toProjectID, ToAssigneeID: toAssigneeID, Status: status}
	s.d.transfers[tr.ID] = tr
	return tr.ID
}

// Task returns a copy of a seeded task.
func (s *Store) Task(id string) (Task, bool) {
	defer s.lock()()
	t, ok := s.d.tasks[id]
	if !ok {
		return Task{}, false
	}
	return *t, true
}

// Project returns a copy of a seeded project.
func (s *Store) Project(id string) (Project, bool) {
	defer s.lock()()
	p, ok := s.d.projects[id]
	if !ok {
		return Project{}, false
	}
	return *p, true
}

// Transfer returns a copy of a seeded transfer.
func (s *Store) Transfer(id string) (Transfer, bool) {
	defer s.lock()()
	tr, ok := s.d.transfers[id]
	if !ok {
		return Transfer{}, false
	}
	return *tr, true
}

// AuditEntries returns a copy of the audit log.
func (s *Store) AuditEntries() []*domain.AuditEntry {
	defer s.lock()()
	return append([]*domain.AuditEntry(nil), s.d.audit...)
}

// ── WorkflowStore ─────────────────────────────────────────────────────────────

func (s *Store) CreateWorkflow(ctx context.Context, wf *domain.WorkflowInstance, records []*domain.ApprovalRecord) error {
	defer s.lock()()

	wf.ID = uuid.NewString()
	if wf.SubmittedDate.IsZero() {
		wf.SubmittedDate = time.Now()
	}
	cp := *wf
	cp.Records = nil
	s.d.workflows[wf.ID] = &cp

	for _, rec := range records {
		rec.ID = uuid.NewString()
		rec.WorkflowID = wf.ID
		if rec.CreatedAt.IsZero() {
			rec.CreatedAt = time.Now()
		}
		rcp := *rec
		s.d.records[rec.ID] = &rcp
	}
	return nil
}

func (s *Store) GetWorkflow(ctx context.Context, id string) (*domain.WorkflowInstance, error) {
	defer s.lock()()
	wf, ok := s.d.workflows[id]
	if !ok {
		return nil, errors.NotFound("workflow", id)
	}
	cp := *wf
	return &cp, nil
}

// GetWorkflowForUpdate is GetWorkflow; the transaction mutex already
// serializes the whole Atomically block.
func (s *Store) GetWorkflowForUpdate(ctx context.Context, id string) (*domain.WorkflowInstance, error) {
	return s.GetWorkflow(ctx, id)
}

func (s *Store) GetActiveWorkflow(ctx context.Context, entityType domain.EntityType, entityID string) (*domain.WorkflowInstance, error) {
	defer s.lock()()
	var latest *domain.WorkflowInstance
	for _, wf := range s.d.workflows {
		if wf.EntityType != entityType || wf.EntityID != entityID || wf.Status != domain.WorkflowPending {
			continue
		}
		if latest == nil || wf.SubmittedDate.After(latest.SubmittedDate) {
			latest = wf
		}
	}
	if latest == nil {
		return nil, nil
	}
	cp := *latest
	return &cp, nil
}

func (s *Store) FinalizeWorkflow(ctx context.Context, id string, status domain.WorkflowStatus, completedAt time.Time, rejectionReason *string) error {
	defer s.lock()()
	wf, ok := s.d.workflows[id]
	if !ok {
		return errors.NotFound("workflow", id)
	}
	if wf.Status != domain.WorkflowPending {
		return errors.New(errors.ErrCodeConflict, "workflow is not pending")
	}
	wf.Status = status
	wf.CompletedDate = &completedAt
	wf.RejectionReason = rejectionReason
	return nil
}

func (s *Store) ListWorkflowHistory(ctx context.Context, entityType domain.EntityType, entityID string) ([]*domain.WorkflowInstance, error) {
	defer s.lock()()
	var instances []*domain.WorkflowInstance
	for _, wf := range s.d.workflows {
		if wf.EntityType != entityType || wf.EntityID != entityID {
			continue
		}
		cp := *wf
		cp.Records = s.recordsOf(wf.ID)
		instances = append(instances, &cp)
	}
	sort.Slice(instances, func(i, j int) bool {
		return instances[i].SubmittedDate.After(instances[j].SubmittedDate)
	})
	return instances, nil
}

func (s *Store) recordsOf(workflowID string) []*domain.ApprovalRecord {
	var records []*domain.ApprovalRecord
	for _, rec := range s.d.records {
		if rec.WorkflowID == workflowID {
			cp := *rec
			records = append(records, &cp)
		}
	}
	sort.Slice(records, func(i, j int) bool { return records[i].Level < records[j].Level })
	return records
}

// ── RecordStore ───────────────────────────────────────────────────────────────

func (s *Store) GetRecord(ctx context.Context, id string) (*domain.ApprovalRecord, error) {
	defer s.lock()()
	rec, ok := s.d.records[id]
	if !ok {
		return nil, errors.NotFound("approval record", id)
	}
	cp := *rec
	return &cp, nil
}

func (s *Store) GetRecordsByWorkflow(ctx context.Context, workflowID string) ([]*domain.ApprovalRecord, error) {
	defer s.lock()()
	return s.recordsOf(workflowID), nil
}

func (s *Store) UpdateRecordDecision(ctx context.Context, id string, status domain.RecordStatus, comments *string, decidedAt time.Time) error {
	defer s.lock()()
	rec, ok := s.d.records[id]
	if !ok {
		return errors.NotFound("approval record", id)
	}
	if rec.Status != domain.RecordPending {
		return errors.New(errors.ErrCodeConflict, "approval record is not pending")
	}
	rec.Status = status
	rec.Comments = comments
	rec.ApprovedDate = &decidedAt
	return nil
}

func (s *Store) ReassignRecord(ctx context.Context, id, delegateID string) error {
	defer s.lock()()
	rec, ok := s.d.records[id]
	if !ok {
		return errors.NotFound("approval record", id)
	}
	if rec.Status != domain.RecordPending {
		return errors.New(errors.ErrCodeConflict, "approval record is not pending")
	}
	rec.ApproverID = delegateID
	rec.DelegatedTo = &delegateID
	return nil
}

func (s *Store) CountPendingRecords(ctx context.Context, workflowID string) (int, error) {
	defer s.lock()()
	count := 0
	for _, rec := range s.d.records {
		if rec.WorkflowID == workflowID && rec.Status == domain.RecordPending {
			count++
		}
	}
	return count, nil
}

func (s *Store) ListPendingForApprover(ctx context.Context, approverID string) ([]*domain.PendingApproval, error) {
	defer s.lock()()
	var pending []*domain.PendingApproval
	for _, rec := range s.d.records {
		if rec.ApproverID != approverID || rec.Status != domain.RecordPending {
			continue
		}
		wf, ok := s.d.workflows[rec.WorkflowID]
		if !ok || wf.Status != domain.WorkflowPending {
			continue
		}
		entity, err := s.entitySummary(wf.EntityType, wf.EntityID)
		if err != nil {
			return nil, err
		}
		rcp := *rec
		pending = append(pending, &domain.PendingApproval{
			Record:        &rcp,
			Entity:        entity,
			SubmittedBy:   wf.SubmittedBy,
			SubmittedDate: wf.SubmittedDate,
		})
	}
	sort.Slice(pending, func(i, j int) bool {
		return pending[i].SubmittedDate.After(pending[j].SubmittedDate)
	})
	return pending, nil
}

func (s *Store) ApproverStats(ctx context.Context, approverID string, periodStart time.Time) (*domain.ApproverStats, error) {
	defer s.lock()()
	stats := &domain.ApproverStats{}
	for _, rec := range s.d.records {
		if rec.ApproverID != approverID {
			continue
		}
		wf := s.d.workflows[rec.WorkflowID]
		if rec.Status == domain.RecordPending && wf != nil && wf.Status == domain.WorkflowPending {
			stats.TotalPending++
			switch wf.EntityType {
			case domain.EntityTask:
				stats.PendingTasks++
			case domain.EntityProject:
				stats.PendingProjects++
			}
		}
		if (rec.Status == domain.RecordApproved || rec.Status == domain.RecordRejected) &&
			rec.ApprovedDate != nil && !rec.ApprovedDate.Before(periodStart) {
			stats.CompletedThisMonth++
		}
	}
	return stats, nil
}

// ── HierarchyStore ────────────────────────────────────────────────────────────

func (s *Store) SuperiorChain(ctx context.Context, userID string, maxDepth int) ([]string, error) {
	defer s.lock()()
	if _, ok := s.d.managers[userID]; !ok {
		return nil, errors.NotFound("user", userID)
	}

	var chain []string
	current := userID
	for depth := 0; depth < maxDepth; depth++ {
		manager := s.d.managers[current]
		if manager == "" {
			break
		}
		chain = append(chain, manager)
		current = manager
	}
	return chain, nil
}

// ── EntityStore ───────────────────────────────────────────────────────────────

func (s *Store) SetEntityStatus(ctx context.Context, entityType domain.EntityType, entityID, status string) error {
	defer s.lock()()
	switch entityType {
	case domain.EntityTask:
		t, ok := s.d.tasks[entityID]
		if !ok {
			return errors.NotFound("task", entityID)
		}
		t.Status = status
	case domain.EntityProject:
		p, ok := s.d.projects[entityID]
		if !ok {
			return errors.NotFound("project", entityID)
		}
		p.Status = status
	case domain.EntityTaskTransfer:
		tr, ok := s.d.transfers[entityID]
		if !ok {
			return errors.NotFound("task_transfer", entityID)
		}
		tr.Status = status
	default:
		return errors.InvalidInput("entity_type", "unknown entity type "+string(entityType))
	}
	return nil
}

func (s *Store) ExecuteTransfer(ctx context.Context, transferID string) error {
	defer s.lock()()
	tr, ok := s.d.transfers[transferID]
	if !ok {
		return errors.NotFound("task_transfer", transferID)
	}
	task, ok := s.d.tasks[tr.TaskID]
	if !ok {
		return errors.NotFound("task", tr.TaskID)
	}
	task.ProjectID = tr.ToProjectID
	if tr.ToAssigneeID != "" {
		task.AssigneeID = tr.ToAssigneeID
	}
	return nil
}

func (s *Store) GetEntitySummary(ctx context.Context, entityType domain.EntityType, entityID string) (*domain.EntitySummary, error) {
	defer s.lock()()
	return s.entitySummary(entityType, entityID)
}

func (s *Store) entitySummary(entityType domain.EntityType, entityID string) (*domain.EntitySummary, error) {
	summary := &domain.EntitySummary{EntityType: entityType, EntityID: entityID}
	switch entityType {
	case domain.EntityTask:
		t, ok := s.d.tasks[entityID]
		if !ok {
			return nil, errors.NotFound("task", entityID)
		}
		summary.Title = t.Title
		summary.Status = t.Status
	case domain.EntityProject:
		p, ok := s.d.projects[entityID]
		if !ok {
			return nil, errors.NotFound("project", entityID)
		}
		summary.Title = p.Name
		summary.Status = p.Status
	case domain.EntityTaskTransfer:
		tr, ok := s.d.transfers[entityID]
		if !ok {
			return nil, errors.NotFound("task_transfer", entityID)
		}
		if t, ok := s.d.tasks[tr.TaskID]; ok {
			summary.Title = t.Title
		}
		summary.Status = tr.Status
	default:
		return nil, errors.InvalidInput("entity_type", "unknown entity type "+string(entityType))
	}
	return summary, nil
}

// ── AuditStore ────────────────────────────────────────────────────────────────

func (s *Store) AppendAudit(ctx context.Context, entry *domain.AuditEntry) error {
	defer s.lock()()
	entry.ID = uuid.NewString()
	if entry.PerformedAt.IsZero() {
		entry.PerformedAt = time.Now()
	}
	cp := *entry
	s.d.audit = append(s.d.audit, &cp)
	return nil
}
