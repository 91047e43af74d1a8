package expenses

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/finguard/finguard-server/auth"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type Repository interface {
	repository.Repository[*Expense]

	FindByID(ctx context.Context, id uuid.UUID) (*Expense, error)
	FindByIDTx(ctx context.Context, tx bun.IDB, id uuid.UUID) (*Expense, error)
	ListByOwner(ctx context.Context, owner uuid.UUID) ([]*Expense, error)
	ListAll(ctx context.Context) ([]*Expense, error)
	DeleteByIDTx(ctx context.Context, tx bun.IDB, id uuid.UUID) error
}

type expenses struct {
	repository.Repository[*Expense]
	db  *bun.DB
	now func() time.Time
}

var (
	_ Repository                      = (*expenses)(nil)
	_ repository.Repository[*Expense] = (*expenses)(nil)
)

func NewRepository(db *bun.DB) Repository {
	repo := repository.NewRepository[*Expense](db, repository.ModelHandlers[*Expense]{
		NewRecord: func() *Expense { return &Expense{} },
		GetID: func(record *Expense) uuid.UUID {
			if record == nil {
				return uuid.Nil
			}
			return record.ID
		},
		SetID: func(record *Expense, id uuid.UUID) {
			if record != nil {
				record.ID = id
			}
		},
		GetIdentifier: func() string {
			return "id"
		},
	})

	return &expenses{
		Repository: repo,
		db:         db,
		now:        time.Now,
	}
}

func (r *expenses) Create(ctx context.Context, record *Expense, criteria ...repository.InsertCriteria) (*Expense, error) {
	return r.CreateTx(ctx, r.db, record, criteria...)
}

func (r *expenses) CreateTx(ctx context.Context, tx bun.IDB, record *Expense, criteria ...repository.InsertCriteria) (*Expense, error) {
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}

	if record.CreatedAt.IsZero() {
		record.CreatedAt = r.now().UTC()
	}

	created, err := r.Repository.CreateTx(ctx, tx, record, criteria...)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to insert expense")
	}

	return created, nil
}

func (r *expenses) FindByID(ctx context.Context, id uuid.UUID) (*Expense, error) {
	return r.FindByIDTx(ctx, r.db, id)
}

// FindByIDTx resolves a record regardless of owner. Callers decide visibility.
func (r *expenses) FindByIDTx(ctx context.Context, tx bun.IDB, id uuid.UUID) (*Expense, error) {
	record, err := r.Repository.GetByIdentifierTx(ctx, tx, id.String())
	if err != nil {
		if repository.IsRecordNotFound(err) || errors.Is(err, sql.ErrNoRows) {
			return nil, auth.ErrNotFound
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to load expense")
	}

	return record, nil
}

func (r *expenses) ListByOwner(ctx context.Context, owner uuid.UUID) ([]*Expense, error) {
	return r.list(ctx, func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("?TableAlias.owner_id = ?", owner)
	})
}

func (r *expenses) ListAll(ctx context.Context) ([]*Expense, error) {
	return r.list(ctx)
}

func (r *expenses) list(ctx context.Context, criteria ...repository.SelectCriteria) ([]*Expense, error) {
	records := []*Expense{}
	q := r.db.NewSelect().Model(&records)

	for _, c := range criteria {
		q.Apply(c)
	}

	err := q.
		OrderExpr("?TableAlias.date DESC, ?TableAlias.created_at DESC").
		Scan(ctx)

	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to list expenses")
	}

	return records, nil
}

func (r *expenses) Update(ctx context.Context, record *Expense, criteria ...repository.UpdateCriteria) (*Expense, error) {
	return r.UpdateTx(ctx, r.db, record, criteria...)
}

// UpdateTx writes the mutable columns only. Owner and created_at never change.
func (r *expenses) UpdateTx(ctx context.Context, tx bun.IDB, record *Expense, criteria ...repository.UpdateCriteria) (*Expense, error) {
	criteria = append([]repository.UpdateCriteria{
		repository.UpdateByID(record.ID.String()),
		func(q *bun.UpdateQuery) *bun.UpdateQuery {
			return q.Column("description", "amount", "date")
		},
	}, criteria...)

	updated, err := r.Repository.UpdateTx(ctx, tx, record, criteria...)
	if err != nil {
		if repository.IsRecordNotFound(err) || errors.Is(err, sql.ErrNoRows) {
			return nil, auth.ErrNotFound
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to update expense")
	}

	return updated, nil
}

func (r *expenses) DeleteByIDTx(ctx context.Context, tx bun.IDB, id uuid.UUID) error {
	res, err := tx.NewDelete().
		Model((*Expense)(nil)).
		Where("id = ?", id).
		Exec(ctx)

	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to delete expense")
	}

	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return auth.ErrNotFound
	}

	return nil
}
