package auth_test

import (
	"context"
	"errors"
	"testing"

	"github.com/finguard/finguard-server/auth"
	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestRegisterUserHandler_Execute(t *testing.T) {
	ctx := context.Background()
	repo := auth.NewRepositoryManager(newTestDB(t))
	handler := auth.NewRegisterUserHandler(repo)

	msg := auth.RegisterUserMessage{
		ID:           uuid.New(),
		Username:     "carol",
		Email:        "Carol@Example.com",
		PasswordHash: "$2a$04$notarealhashbutlongenoughtostore",
	}
	assert.Equal(t, "user.register", msg.Type())

	require.NoError(t, handler.Execute(ctx, msg))

	user, err := repo.Users().FindByID(ctx, msg.ID)
	require.NoError(t, err)
	assert.Equal(t, "carol", user.Username)
	assert.Equal(t, "carol@example.com", user.Email)

	byEmail, err := repo.Users().GetByEmail(ctx, "CAROL@example.com")
	require.NoError(t, err)
	assert.Equal(t, msg.ID, byEmail.ID)

	msg.ID = uuid.New()
	err = handler.Execute(ctx, msg)
	requireTextCode(t, err, auth.TextCodeDuplicateEmail)
}

func TestRegisterUserHandler_CancelledContext(t *testing.T) {
	users := &MockUsers{}
	handler := auth.NewRegisterUserHandler(stubRepoManager{users: users})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := handler.Execute(ctx, auth.RegisterUserMessage{ID: uuid.New(), Username: "dave", Email: "dave@example.com"})
	require.Error(t, err)

	var richErr *goerrors.Error
	require.True(t, goerrors.As(err, &richErr))
	assert.Equal(t, goerrors.CategoryOperation, richErr.Category)

	users.AssertNotCalled(t, "RegisterTx", mock.Anything, mock.Anything, mock.Anything)
}

func TestRegisterUserHandler_StoreFailureIsInternal(t *testing.T) {
	users := &MockUsers{}
	handler := auth.NewRegisterUserHandler(stubRepoManager{users: users})

	users.On("RegisterTx", mock.Anything, mock.Anything, mock.AnythingOfType("*auth.User")).
		Return(nil, errors.New("connection reset")).Once()

	err := handler.Execute(context.Background(), auth.RegisterUserMessage{ID: uuid.New(), Username: "erin", Email: "erin@example.com"})
	require.Error(t, err)

	var richErr *goerrors.Error
	require.True(t, goerrors.As(err, &richErr))
	assert.Equal(t, goerrors.CategoryInternal, richErr.Category)
	assert.False(t, auth.HasTextCode(err, auth.TextCodeDuplicateEmail))

	users.AssertExpectations(t)
}
