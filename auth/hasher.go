package auth

import (
	"context"
	"runtime"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/semaphore"
)

// HasherConfig tunes the bcrypt work factor and how many hash computations
// may run at once.
type HasherConfig struct {
	Cost    int
	Workers int
	Timeout time.Duration
}

// Hasher runs bcrypt on a bounded pool so CPU heavy hashing never starves
// unrelated request handling. A caller that times out gets an error right
// away; the computation still finishes in the background and is discarded.
type Hasher struct {
	cost    int
	timeout time.Duration
	slots   *semaphore.Weighted
	dummy   string
}

var _ PasswordHasher = (*Hasher)(nil)

// NewHasher creates a Hasher and precomputes the dummy hash used to equalize
// the work done for unknown accounts.
func NewHasher(cfg HasherConfig) (*Hasher, error) {
	if cfg.Cost == 0 {
		cfg.Cost = passwordHashCost()
	}

	if cfg.Cost < bcrypt.MinCost || cfg.Cost > bcrypt.MaxCost {
		return nil, goerrors.New("bcrypt cost out of range", goerrors.CategoryBadInput).
			WithMetadata(map[string]any{"cost": cfg.Cost})
	}

	if cfg.Workers <= 0 {
		cfg.Workers = runtime.GOMAXPROCS(0)
	}

	dummy, err := RandomPasswordHash(cfg.Cost)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to prepare dummy password hash")
	}

	return &Hasher{
		cost:    cfg.Cost,
		timeout: cfg.Timeout,
		slots:   semaphore.NewWeighted(int64(cfg.Workers)),
		dummy:   dummy,
	}, nil
}

// Cost returns the configured work factor
func (h *Hasher) Cost() int {
	return h.cost
}

// Hash computes a salted bcrypt hash of password
func (h *Hasher) Hash(ctx context.Context, password string) (string, error) {
	return h.run(ctx, func() (string, error) {
		return HashPassword(password, h.cost)
	})
}

// Compare checks password against hash. A mismatch yields ErrInvalidCredentials.
func (h *Hasher) Compare(ctx context.Context, password, hash string) error {
	_, err := h.run(ctx, func() (string, error) {
		return "", ComparePasswordAndHash(password, hash)
	})
	return err
}

// CompareDummy performs the same amount of work as Compare against a hash
// nobody knows the password for. It always returns ErrInvalidCredentials
// unless the pool itself fails.
func (h *Hasher) CompareDummy(ctx context.Context, password string) error {
	if err := h.Compare(ctx, password, h.dummy); err != nil {
		return err
	}
	return ErrInvalidCredentials
}

type hashResult struct {
	value string
	err   error
}

func (h *Hasher) run(ctx context.Context, fn func() (string, error)) (string, error) {
	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}

	if err := h.slots.Acquire(ctx, 1); err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "password hasher unavailable")
	}

	done := make(chan hashResult, 1)
	go func() {
		defer h.slots.Release(1)
		value, err := fn()
		done <- hashResult{value: value, err: err}
	}()

	select {
	case res := <-done:
		return res.value, res.err
	case <-ctx.Done():
		return "", goerrors.Wrap(ctx.Err(), goerrors.CategoryInternal, "password hashing timed out")
	}
}
