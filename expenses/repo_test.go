package expenses_test

import (
	"time"

	"github.com/finguard/finguard-server/auth"
	"github.com/finguard/finguard-server/expenses"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func (s *ServiceSuite) TestRepositoryFindByIDUnknown() {
	_, err := s.repo.FindByID(s.ctx, uuid.New())
	s.requireTextCode(err, auth.TextCodeNotFound)
}

func (s *ServiceSuite) TestRepositoryCreateAssignsIDAndTimestamp() {
	date, err := expenses.ParseDate("2024-02-01")
	s.Require().NoError(err)

	record, err := s.repo.Create(s.ctx, &expenses.Expense{
		Description: "Rent",
		Amount:      decimal.RequireFromString("950.00"),
		Date:        date,
		Owner:       s.alice.ID,
	})
	s.Require().NoError(err)
	s.NotEqual(uuid.Nil, record.ID)
	s.False(record.CreatedAt.IsZero())

	stored, err := s.repo.FindByID(s.ctx, record.ID)
	s.Require().NoError(err)
	s.Equal("Rent", stored.Description)
	s.True(decimal.RequireFromString("950").Equal(stored.Amount))
	s.Equal(s.alice.ID, stored.Owner)
}

func (s *ServiceSuite) TestRepositoryUpdateKeepsOwnerAndCreatedAt() {
	date, err := expenses.ParseDate("2024-02-01")
	s.Require().NoError(err)
	created := time.Date(2024, 2, 1, 8, 0, 0, 0, time.UTC)

	record, err := s.repo.Create(s.ctx, &expenses.Expense{
		Description: "Taxi",
		Amount:      decimal.RequireFromString("12.00"),
		Date:        date,
		Owner:       s.alice.ID,
		CreatedBy:   "alice@example.com",
		CreatedAt:   created,
	})
	s.Require().NoError(err)

	changed := *record
	changed.Description = "Taxi home"
	changed.Owner = s.bob.ID
	changed.CreatedBy = "bob@example.com"
	changed.CreatedAt = created.Add(time.Hour)

	_, err = s.repo.UpdateTx(s.ctx, s.db, &changed)
	s.Require().NoError(err)

	stored, err := s.repo.FindByID(s.ctx, record.ID)
	s.Require().NoError(err)
	s.Equal("Taxi home", stored.Description)
	s.Equal(s.alice.ID, stored.Owner)
	s.Equal("alice@example.com", stored.CreatedBy)
	s.True(created.Equal(stored.CreatedAt.UTC()))
}

func (s *ServiceSuite) TestRepositoryListByOwnerNewestFirst() {
	for _, day := range []string{"2024-01-01", "2024-03-01", "2024-02-01"} {
		date, err := expenses.ParseDate(day)
		s.Require().NoError(err)
		_, err = s.repo.Create(s.ctx, &expenses.Expense{
			Description: day,
			Amount:      decimal.RequireFromString("1"),
			Date:        date,
			Owner:       s.alice.ID,
		})
		s.Require().NoError(err)
	}

	records, err := s.repo.ListByOwner(s.ctx, s.alice.ID)
	s.Require().NoError(err)
	s.Require().Len(records, 3)
	s.Equal("2024-03-01", records[0].Description)
	s.Equal("2024-01-01", records[2].Description)

	records, err = s.repo.ListByOwner(s.ctx, s.bob.ID)
	s.Require().NoError(err)
	s.Empty(records)
}

func (s *ServiceSuite) TestRepositoryDeleteUnknown() {
	err := s.repo.DeleteByIDTx(s.ctx, s.db, uuid.New())
	s.requireTextCode(err, auth.TextCodeNotFound)
}
