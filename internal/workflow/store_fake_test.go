package workflow

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/autohive/workshop-service/internal/model"
	"github.com/autohive/workshop-service/internal/repository"
)

// memStore is an in-memory Store with the same compare-and-swap contract
// as the MySQL workflow store: the status write only lands if the stored
// status still equals the snapshot the transition was validated against.
type memStore struct {
	mu      sync.Mutex
	jobs    map[uint64]*model.JobCard
	history []model.HistoryEntry
	audits  []model.AuditEntry
	nextID  uint64

	// staleNext fails that many ApplyTransition calls with ErrStaleStatus
	// before touching anything, simulating lost CAS races.
	staleNext int
	// beforeApply runs once at the start of the next ApplyTransition,
	// outside the lock, so a test can interleave a competing writer.
	beforeApply func(s *memStore)
}

func newMemStore(jobs ...*model.JobCard) *memStore {
	s := &memStore{jobs: make(map[uint64]*model.JobCard)}
	for _, j := range jobs {
		cp := *j
		s.jobs[j.ID] = &cp
	}
	return s
}

func (s *memStore) GetForWorkshop(ctx context.Context, jobID, workshopID uint64) (*model.JobCard, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[jobID]
	if !ok || j.WorkshopID != workshopID {
		return nil, sql.ErrNoRows
	}
	cp := *j
	return &cp, nil
}

func (s *memStore) GetByApprovalToken(ctx context.Context, token string) (*model.JobCard, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, j := range s.jobs {
		if j.ApprovalToken != nil && *j.ApprovalToken == token {
			cp := *j
			return &cp, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (s *memStore) ApplyTransition(ctx context.Context, w repository.TransitionWrite) (*model.JobCard, error) {
	if hook := s.beforeApply; hook != nil {
		s.beforeApply = nil
		hook(s)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.staleNext > 0 {
		s.staleNext--
		return nil, repository.ErrStaleStatus
	}
	j, ok := s.jobs[w.JobID]
	if !ok || j.WorkshopID != w.WorkshopID || j.Status != w.FromStatus {
		return nil, repository.ErrStaleStatus
	}
	j.Status = w.ToStatus
	j.StatusNotes = w.Notes
	j.UpdatedBy = w.ActorID
	if w.SentForApprovalAt != nil {
		j.SentForApprovalAt = w.SentForApprovalAt
	}
	if w.CustomerApprovedAt != nil {
		j.CustomerApprovedAt = w.CustomerApprovedAt
	}
	if w.StartedAt != nil {
		j.StartedAt = w.StartedAt
	}
	if w.ClosedAt != nil {
		j.ClosedAt = w.ClosedAt
	}
	if w.ClearApprovalToken {
		j.ApprovalToken = nil
		j.ApprovalExpiresAt = nil
	}
	j.UpdatedAt = time.Now().UTC()

	s.nextID++
	s.history = append(s.history, model.HistoryEntry{
		ID:             s.nextID,
		JobID:          j.ID,
		PreviousStatus: w.FromStatus,
		NewStatus:      w.ToStatus,
		ActorID:        w.ActorID,
		Notes:          w.Notes,
		CreatedAt:      j.UpdatedAt,
	})
	s.audits = append(s.audits, model.AuditEntry{
		WorkshopID: j.WorkshopID,
		ActorID:    w.ActorID,
		Action:     w.Action,
		EntityType: "job_card",
		EntityID:   j.ID,
		CreatedAt:  j.UpdatedAt,
	})
	cp := *j
	return &cp, nil
}

func (s *memStore) BindApprovalToken(ctx context.Context, b repository.TokenBind) (*model.JobCard, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[b.JobID]
	if !ok || j.WorkshopID != b.WorkshopID {
		return nil, sql.ErrNoRows
	}
	token := b.Token
	expires := b.ExpiresAt
	j.ApprovalToken = &token
	j.ApprovalExpiresAt = &expires
	s.audits = append(s.audits, model.AuditEntry{
		WorkshopID: j.WorkshopID,
		ActorID:    &b.ActorID,
		Action:     "job.approval_token_issued",
		EntityType: "job_card",
		EntityID:   j.ID,
		CreatedAt:  time.Now().UTC(),
	})
	cp := *j
	return &cp, nil
}

func (s *memStore) job(id uint64) model.JobCard {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.jobs[id]
}

func (s *memStore) historyFor(id uint64) []model.HistoryEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.HistoryEntry
	for _, e := range s.history {
		if e.JobID == id {
			out = append(out, e)
		}
	}
	return out
}
