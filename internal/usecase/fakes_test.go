package usecase

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"

	"github.com/Doc-Scripter/HelpingHand/internal/domain"
	"github.com/Doc-Scripter/HelpingHand/internal/events"
	"github.com/Doc-Scripter/HelpingHand/internal/provider/mpesa"
	"github.com/Doc-Scripter/HelpingHand/internal/repository"
)

// memState is one snapshot of the tables.
type memState struct {
	projects  map[string]domain.Project
	donations []domain.Donation
	pending   map[string]domain.PendingTransaction
	nextID    int64
}

func (s *memState) clone() *memState {
	c := &memState{
		projects:  make(map[string]domain.Project, len(s.projects)),
		donations: append([]domain.Donation(nil), s.donations...),
		pending:   make(map[string]domain.PendingTransaction, len(s.pending)),
		nextID:    s.nextID,
	}
	for k, v := range s.projects {
		c.projects[k] = v
	}
	for k, v := range s.pending {
		c.pending[k] = v
	}
	return c
}

type faults struct {
	findPending    error
	insertPending  error
	insertDonation error
	increment      error
	transition     error
}

// memStore is an in-memory stand-in for the Postgres store. RunInTx works
// on a copy and swaps it in on success, so a failed unit leaves no trace.
// Units are serialized the way row locks serialize them in Postgres.
type memStore struct {
	mu     sync.Mutex
	state  *memState
	faults faults
	txRuns int
}

func newMemStore() *memStore {
	return &memStore{state: &memState{
		projects: map[string]domain.Project{},
		pending:  map[string]domain.PendingTransaction{},
	}}
}

func (s *memStore) addProject(id string, status domain.ProjectStatus, raised int64) {
	s.state.projects[id] = domain.Project{
		ID:           id,
		Title:        "Project " + id,
		TargetAmount: decimal.NewFromInt(100000),
		RaisedAmount: decimal.NewFromInt(raised),
		Status:       status,
	}
}

func (s *memStore) addPending(pt domain.PendingTransaction) {
	s.state.nextID++
	pt.ID = s.state.nextID
	if pt.Status == "" {
		pt.Status = domain.TxStatusPending
	}
	s.state.pending[pt.CheckoutRequestID] = pt
}

func (s *memStore) repos() repository.Repositories {
	b := binding{store: s}
	return repository.Repositories{Projects: memProjects{b}, Donations: memDonations{b}, Pending: memPending{b}}
}

func (s *memStore) RunInTx(_ context.Context, fn func(repository.Repositories) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.txRuns++

	work := s.state.clone()
	b := binding{store: s, tx: work}
	if err := fn(repository.Repositories{Projects: memProjects{b}, Donations: memDonations{b}, Pending: memPending{b}}); err != nil {
		return err
	}
	s.state = work
	return nil
}

func (s *memStore) project(id string) domain.Project {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.projects[id]
}

func (s *memStore) pendingRow(checkoutID string) domain.PendingTransaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.pending[checkoutID]
}

func (s *memStore) donationCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.state.donations)
}

func (s *memStore) donationsFor(projectID string) []domain.Donation {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Donation
	for _, d := range s.state.donations {
		if d.ProjectID == projectID {
			out = append(out, d)
		}
	}
	return out
}

// binding runs against the open transaction's copy, or against the live
// state under the store lock.
type binding struct {
	store *memStore
	tx    *memState
}

func (b binding) do(fn func(s *memState, f faults) error) error {
	if b.tx != nil {
		return fn(b.tx, b.store.faults)
	}
	b.store.mu.Lock()
	defer b.store.mu.Unlock()
	return fn(b.store.state, b.store.faults)
}

type memProjects struct{ binding }

func (r memProjects) FindActiveByID(_ context.Context, id string) (*domain.Project, error) {
	var out *domain.Project
	err := r.do(func(s *memState, _ faults) error {
		if p, ok := s.projects[id]; ok && p.Status == domain.ProjectStatusActive {
			out = &p
		}
		return nil
	})
	return out, err
}

func (r memProjects) GetByID(_ context.Context, id string) (*domain.Project, error) {
	var out *domain.Project
	err := r.do(func(s *memState, _ faults) error {
		if p, ok := s.projects[id]; ok && p.Status != domain.ProjectStatusDeleted {
			out = &p
		}
		return nil
	})
	return out, err
}

func (r memProjects) ListActive(_ context.Context) ([]domain.Project, error) {
	var out []domain.Project
	err := r.do(func(s *memState, _ faults) error {
		for _, p := range s.projects {
			if p.Status == domain.ProjectStatusActive {
				out = append(out, p)
			}
		}
		sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
		return nil
	})
	return out, err
}

func (r memProjects) IncrementRaisedAmount(_ context.Context, id string, amount decimal.Decimal) error {
	return r.do(func(s *memState, f faults) error {
		if f.increment != nil {
			return f.increment
		}
		p, ok := s.projects[id]
		if !ok {
			return fmt.Errorf("%w: %s", domain.ErrProjectNotFound, id)
		}
		p.RaisedAmount = p.RaisedAmount.Add(amount)
		s.projects[id] = p
		return nil
	})
}

type memDonations struct{ binding }

func (r memDonations) Insert(_ context.Context, d *domain.Donation) (int64, error) {
	err := r.do(func(s *memState, f faults) error {
		if f.insertDonation != nil {
			return f.insertDonation
		}
		for _, existing := range s.donations {
			if existing.MpesaReceiptNumber == d.MpesaReceiptNumber || existing.TransactionRef == d.TransactionRef {
				return &pgconn.PgError{Code: "23505", Message: "duplicate key value violates unique constraint"}
			}
		}
		s.nextID++
		d.ID = s.nextID
		s.donations = append(s.donations, *d)
		return nil
	})
	return d.ID, err
}

func (r memDonations) ListByProject(_ context.Context, projectID string, limit int) ([]domain.Donation, error) {
	out := make([]domain.Donation, 0)
	err := r.do(func(s *memState, _ faults) error {
		for i := len(s.donations) - 1; i >= 0 && len(out) < limit; i-- {
			if s.donations[i].ProjectID == projectID {
				out = append(out, s.donations[i])
			}
		}
		return nil
	})
	return out, err
}

type memPending struct{ binding }

func (r memPending) Insert(_ context.Context, t *domain.PendingTransaction) error {
	return r.do(func(s *memState, f faults) error {
		if f.insertPending != nil {
			return f.insertPending
		}
		if _, ok := s.pending[t.CheckoutRequestID]; ok {
			return &pgconn.PgError{Code: "23505", Message: "duplicate checkout_request_id"}
		}
		s.nextID++
		t.ID = s.nextID
		t.Status = domain.TxStatusPending
		s.pending[t.CheckoutRequestID] = *t
		return nil
	})
}

func (r memPending) FindByCheckoutAndMerchantID(_ context.Context, checkoutID, merchantID string) (*domain.PendingTransaction, error) {
	var out *domain.PendingTransaction
	err := r.do(func(s *memState, f faults) error {
		if f.findPending != nil {
			return f.findPending
		}
		if t, ok := s.pending[checkoutID]; ok && t.MerchantRequestID == merchantID {
			out = &t
		}
		return nil
	})
	return out, err
}

func (r memPending) FindByCheckoutID(_ context.Context, checkoutID string) (*domain.PendingTransaction, error) {
	var out *domain.PendingTransaction
	err := r.do(func(s *memState, f faults) error {
		if f.findPending != nil {
			return f.findPending
		}
		if t, ok := s.pending[checkoutID]; ok {
			out = &t
		}
		return nil
	})
	return out, err
}

func (r memPending) TransitionIfPending(_ context.Context, checkoutID string, status domain.TransactionStatus, fields domain.TransitionFields) (bool, error) {
	applied := false
	err := r.do(func(s *memState, f faults) error {
		if f.transition != nil {
			return f.transition
		}
		t, ok := s.pending[checkoutID]
		if !ok || t.Status != domain.TxStatusPending {
			return nil
		}
		completedAt := fields.CompletedAt
		t.Status = status
		t.MpesaReceiptNumber = fields.MpesaReceiptNumber
		t.FailureReason = fields.FailureReason
		t.CompletedAt = &completedAt
		s.pending[checkoutID] = t
		applied = true
		return nil
	})
	return applied, err
}

// recordingPublisher keeps every published event.
type recordingPublisher struct {
	mu     sync.Mutex
	events []events.DonationEvent
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, e events.DonationEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) types() []events.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]events.EventType, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

// mockGateway is a testify mock of the provider.
type mockGateway struct {
	mock.Mock
}

func (m *mockGateway) InitiateSTKPush(ctx context.Context, in mpesa.STKPushInput) mpesa.STKPushResult {
	args := m.Called(ctx, in)
	return args.Get(0).(mpesa.STKPushResult)
}

func (m *mockGateway) QuerySTKPush(ctx context.Context, checkoutRequestID string) mpesa.QueryResult {
	args := m.Called(ctx, checkoutRequestID)
	return args.Get(0).(mpesa.QueryResult)
}
