package expenses

import (
	"context"
	"time"

	"github.com/finguard/finguard-server/auth"
	"github.com/finguard/finguard-server/internal/validate"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Service applies the ownership rules around the expense repository. Every
// mutation resolves the record, asks the guard, then writes, all inside one
// transaction.
type Service struct {
	repo         Repository
	tx           auth.TransactionManager
	guard        auth.Guard
	logger       auth.Logger
	activitySink auth.ActivitySink
	now          func() time.Time
}

// ServiceOption customizes a Service
type ServiceOption func(*Service)

// WithLogger sets the logger
func WithLogger(logger auth.Logger) ServiceOption {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithActivitySink records forbidden mutation attempts
func WithActivitySink(sink auth.ActivitySink) ServiceOption {
	return func(s *Service) {
		s.activitySink = sink
	}
}

// WithClock overrides the time source for created_at
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

func NewService(repo Repository, tx auth.TransactionManager, guard auth.Guard, opts ...ServiceOption) *Service {
	s := &Service{
		repo:  repo,
		tx:    tx,
		guard: guard,
		now:   time.Now,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}

	return s
}

// Create stores a new expense owned by requester
func (s *Service) Create(ctx context.Context, requester auth.Identity, input Input) (*Expense, error) {
	if requester.IsZero() {
		return nil, auth.ErrUnauthenticated
	}

	input = input.normalize()
	if err := validate.Check(input, "invalid expense"); err != nil {
		return nil, err
	}

	record := &Expense{
		Description: input.Description,
		Amount:      input.Amount,
		Date:        input.Date,
		Owner:       requester.ID,
		CreatedBy:   requester.Email,
		CreatedAt:   s.now().UTC(),
	}

	return s.repo.Create(ctx, record)
}

// Get returns a single expense if the read scope lets requester see it.
func (s *Service) Get(ctx context.Context, requester auth.Identity, id uuid.UUID) (*Expense, error) {
	record, err := s.repo.FindByID(ctx, id)
	if err != nil && !auth.HasTextCode(err, auth.TextCodeNotFound) {
		return nil, err
	}

	if err := s.guard.AuthorizeRead(resourceOf(record), requester); err != nil {
		return nil, err
	}

	return record, nil
}

// List returns the expenses visible to requester
func (s *Service) List(ctx context.Context, requester auth.Identity) ([]*Expense, error) {
	if requester.IsZero() {
		return nil, auth.ErrUnauthenticated
	}

	if owner, scoped := s.guard.ReadOwnerFilter(requester); scoped {
		return s.repo.ListByOwner(ctx, owner)
	}

	return s.repo.ListAll(ctx)
}

// ListOwned returns requester's own expenses regardless of read scope
func (s *Service) ListOwned(ctx context.Context, requester auth.Identity) ([]*Expense, error) {
	if requester.IsZero() {
		return nil, auth.ErrUnauthenticated
	}
	return s.repo.ListByOwner(ctx, requester.ID)
}

// Update replaces the mutable fields of an expense owned by requester
func (s *Service) Update(ctx context.Context, requester auth.Identity, id uuid.UUID, input Input) (*Expense, error) {
	input = input.normalize()
	if err := validate.Check(input, "invalid expense"); err != nil {
		return nil, err
	}

	var updated *Expense
	err := s.tx.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		record, err := s.authorizeMutation(ctx, tx, requester, id)
		if err != nil {
			return err
		}

		record.Description = input.Description
		record.Amount = input.Amount
		record.Date = input.Date

		updated, err = s.repo.UpdateTx(ctx, tx, record)
		return err
	})

	if err != nil {
		return nil, err
	}

	return updated, nil
}

// Delete removes an expense owned by requester
func (s *Service) Delete(ctx context.Context, requester auth.Identity, id uuid.UUID) error {
	return s.tx.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := s.authorizeMutation(ctx, tx, requester, id); err != nil {
			return err
		}
		return s.repo.DeleteByIDTx(ctx, tx, id)
	})
}

func (s *Service) authorizeMutation(ctx context.Context, tx bun.IDB, requester auth.Identity, id uuid.UUID) (*Expense, error) {
	record, err := s.repo.FindByIDTx(ctx, tx, id)
	if err != nil && !auth.HasTextCode(err, auth.TextCodeNotFound) {
		return nil, err
	}

	if err := s.guard.AuthorizeMutation(resourceOf(record), requester); err != nil {
		if auth.HasTextCode(err, auth.TextCodeForbidden) {
			s.recordForbidden(ctx, requester, id)
		}
		return nil, err
	}

	return record, nil
}

func (s *Service) recordForbidden(ctx context.Context, requester auth.Identity, id uuid.UUID) {
	if s.logger != nil {
		s.logger.Warn("mutation rejected: requester does not own expense", "expense_id", id.String(), "user_id", requester.ID.String())
	}

	if s.activitySink == nil {
		return
	}

	err := s.activitySink.Record(ctx, auth.ActivityEvent{
		EventType:  auth.ActivityEventMutationForbidden,
		UserID:     requester.ID.String(),
		Metadata:   map[string]any{"resource": "expense", "resource_id": id.String()},
		OccurredAt: s.now().UTC(),
	})
	if err != nil && s.logger != nil {
		s.logger.Error("failed to record activity event", "error", err)
	}
}

func resourceOf(record *Expense) auth.OwnedResource {
	if record == nil {
		return nil
	}
	return record
}
