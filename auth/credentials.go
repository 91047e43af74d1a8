package auth

import (
	"context"
	"strings"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/google/uuid"
)

// CredentialStore persists user identities with their password hash and
// verifies login credentials.
type CredentialStore struct {
	repo         RepositoryManager
	register     *RegisterUserHandler
	hasher       PasswordHasher
	logger       Logger
	activitySink ActivitySink
	useHashid    bool
}

var (
	_ IdentityProvider  = (*CredentialStore)(nil)
	_ AccountRegisterer = (*CredentialStore)(nil)
)

// CredentialStoreOption customizes a CredentialStore
type CredentialStoreOption func(*CredentialStore)

// WithCredentialLogger sets the logger
func WithCredentialLogger(logger Logger) CredentialStoreOption {
	return func(s *CredentialStore) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithActivitySink configures an ActivitySink for emitting auth events.
func WithActivitySink(sink ActivitySink) CredentialStoreOption {
	return func(s *CredentialStore) {
		s.activitySink = normalizeActivitySink(sink)
	}
}

// WithHashidUserIDs derives user ids from the registration email instead of
// generating random ones.
func WithHashidUserIDs(enabled bool) CredentialStoreOption {
	return func(s *CredentialStore) {
		s.useHashid = enabled
	}
}

// NewCredentialStore will create a new CredentialStore
func NewCredentialStore(repo RepositoryManager, hasher PasswordHasher, opts ...CredentialStoreOption) *CredentialStore {
	s := &CredentialStore{
		repo:         repo,
		register:     NewRegisterUserHandler(repo),
		hasher:       hasher,
		logger:       defLogger{},
		activitySink: noopActivitySink{},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}

	return s
}

// Register creates a new user and returns its id. A second registration with
// the same email (ignoring case) yields ErrDuplicateEmail.
func (s *CredentialStore) Register(ctx context.Context, username, email, password string) (uuid.UUID, error) {
	username = strings.TrimSpace(username)
	email = NormalizeEmail(email)

	if username == "" || email == "" {
		return uuid.Nil, goerrors.New("username and email are required", goerrors.CategoryValidation).
			WithCode(goerrors.CodeBadRequest)
	}

	hash, err := s.hasher.Hash(ctx, password)
	if err != nil {
		s.recordRegisterFailure(ctx, email, err)
		if HasTextCode(err, TextCodeEmptyPassword) {
			return uuid.Nil, err
		}
		return uuid.Nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to hash password")
	}

	msg := RegisterUserMessage{
		ID:           uuid.New(),
		Username:     username,
		Email:        email,
		PasswordHash: hash,
	}

	if s.useHashid {
		if id, err := hashid.NewUUID(email); err == nil {
			msg.ID = id
		}
	}

	if err := s.register.Execute(ctx, msg); err != nil {
		s.recordRegisterFailure(ctx, email, err)
		if HasTextCode(err, TextCodeDuplicateEmail) {
			return uuid.Nil, ErrDuplicateEmail
		}
		return uuid.Nil, err
	}

	emitActivity(ctx, s.activitySink, s.logger, ActivityEvent{
		EventType: ActivityEventRegisterSuccess,
		UserID:    msg.ID.String(),
	})

	return msg.ID, nil
}

// Verify will find the user by email and compare the password. Unknown
// emails and wrong passwords return the same ErrInvalidCredentials after the
// same bcrypt work.
func (s *CredentialStore) Verify(ctx context.Context, email, password string) (Identity, error) {
	user, err := s.repo.Users().GetByEmail(ctx, email)
	if err != nil {
		if !HasTextCode(err, TextCodeIdentityNotFound) {
			return Identity{}, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve user during verification")
		}

		if err := s.hasher.CompareDummy(ctx, password); !HasTextCode(err, TextCodeInvalidCreds) {
			return Identity{}, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to verify credentials")
		}

		s.recordLoginFailure(ctx, "")
		return Identity{}, ErrInvalidCredentials
	}

	if err := s.hasher.Compare(ctx, password, user.PasswordHash); err != nil {
		if !HasTextCode(err, TextCodeInvalidCreds) {
			return Identity{}, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to verify credentials")
		}

		s.recordLoginFailure(ctx, user.ID.String())
		return Identity{}, ErrInvalidCredentials
	}

	emitActivity(ctx, s.activitySink, s.logger, ActivityEvent{
		EventType: ActivityEventLoginSuccess,
		UserID:    user.ID.String(),
	})

	return user.Identity(), nil
}

// FindIdentity loads the identity for a user id
func (s *CredentialStore) FindIdentity(ctx context.Context, id uuid.UUID) (Identity, error) {
	user, err := s.repo.Users().FindByID(ctx, id)
	if err != nil {
		return Identity{}, err
	}
	return user.Identity(), nil
}

func (s *CredentialStore) recordRegisterFailure(ctx context.Context, email string, err error) {
	reason := "internal"
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) && richErr.TextCode != "" {
		reason = richErr.TextCode
	}

	emitActivity(ctx, s.activitySink, s.logger, ActivityEvent{
		EventType: ActivityEventRegisterFailure,
		Metadata: map[string]any{
			"email":  email,
			"reason": reason,
		},
	})
}

// user id is empty for unknown emails; the event stays server side.
func (s *CredentialStore) recordLoginFailure(ctx context.Context, userID string) {
	emitActivity(ctx, s.activitySink, s.logger, ActivityEvent{
		EventType: ActivityEventLoginFailure,
		UserID:    userID,
	})
}
