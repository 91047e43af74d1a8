package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/finguard/finguard-server/api"
	"github.com/finguard/finguard-server/auth"
	"github.com/finguard/finguard-server/expenses"
	"github.com/finguard/finguard-server/internal/database"
	"github.com/finguard/finguard-server/internal/validate"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
	"github.com/uptrace/bun"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"golang.org/x/crypto/bcrypt"
)

var testSigningKey = []byte("0123456789abcdef0123456789abcdef")

var testTokenConfig = auth.TokenConfig{
	SigningKey: testSigningKey,
	Issuer:     "finguard",
	Audience:   []string{"finguard-api"},
	TTL:        time.Hour,
}

type APISuite struct {
	suite.Suite

	db     *bun.DB
	tokens *auth.TokenService
	app    *fiber.App
}

func TestAPISuite(t *testing.T) {
	suite.Run(t, new(APISuite))
}

func (s *APISuite) SetupTest() {
	s.db, s.tokens, s.app = s.newApp("", auth.ReadScopeOwner)
}

func (s *APISuite) TearDownTest() {
	_ = s.db.Close()
}

func (s *APISuite) newApp(basePath string, scope auth.ReadScope) (*bun.DB, *auth.TokenService, *fiber.App) {
	return s.newAppWithLogger(basePath, scope, nil)
}

func (s *APISuite) newAppWithLogger(basePath string, scope auth.ReadScope, logger *zap.Logger) (*bun.DB, *auth.TokenService, *fiber.App) {
	ctx := context.Background()

	db, err := database.Open(ctx, database.Config{
		Driver: database.DriverSQLite,
		DSN:    "file:" + filepath.Join(s.T().TempDir(), "api.db"),
	})
	s.Require().NoError(err)

	_, err = database.Migrate(ctx, db)
	s.Require().NoError(err)

	hasher, err := auth.NewHasher(auth.HasherConfig{Cost: bcrypt.MinCost, Workers: 2})
	s.Require().NoError(err)

	tokens, err := auth.NewTokenService(testTokenConfig)
	s.Require().NoError(err)

	manager := auth.NewRepositoryManager(db)
	credentials := auth.NewCredentialStore(manager, hasher)
	service := expenses.NewService(expenses.NewRepository(db), manager, auth.NewGuard(scope))

	app := api.New(api.Options{
		BasePath: basePath,
		Logger:   logger,
		DB:       db,
		Verifier: tokens,
		Users: api.NewUsersController(func(c *api.UsersController) *api.UsersController {
			c.Credentials = credentials
			c.Tokens = tokens
			c.Expenses = service
			return c
		}),
		Expenses: api.NewExpensesController(func(c *api.ExpensesController) *api.ExpensesController {
			c.Expenses = service
			c.BasePath = basePath
			return c
		}),
	})

	return db, tokens, app
}

type response struct {
	status int
	header http.Header
	body   []byte
}

func (r response) errorBody(s *APISuite) api.ErrorBody {
	var out api.ErrorBody
	s.Require().NoError(json.Unmarshal(r.body, &out), string(r.body))
	return out
}

func (s *APISuite) do(app *fiber.App, method, path, token string, body any) response {
	var reader io.Reader
	switch v := body.(type) {
	case nil:
	case string:
		reader = strings.NewReader(v)
	default:
		raw, err := json.Marshal(v)
		s.Require().NoError(err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	if token != "" {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	}

	res, err := app.Test(req, -1)
	s.Require().NoError(err)
	defer res.Body.Close()

	raw, err := io.ReadAll(res.Body)
	s.Require().NoError(err)

	return response{status: res.StatusCode, header: res.Header, body: raw}
}

func (s *APISuite) register(username, email, password string) auth.Token {
	res := s.do(s.app, http.MethodPost, "/users/register", "", map[string]string{
		"username": username,
		"email":    email,
		"password": password,
	})
	s.Require().Equal(http.StatusOK, res.status, string(res.body))

	var token auth.Token
	s.Require().NoError(json.Unmarshal(res.body, &token))
	s.Require().NotEmpty(token.Value)
	return token
}

func (s *APISuite) login(email, password string) response {
	return s.do(s.app, http.MethodPost, "/users/login", "", map[string]string{
		"email":    email,
		"password": password,
	})
}

func (s *APISuite) createExpense(token string, body map[string]any) api.ExpenseResponse {
	res := s.do(s.app, http.MethodPost, "/expenses", token, body)
	s.Require().Equal(http.StatusCreated, res.status, string(res.body))

	var out api.ExpenseResponse
	s.Require().NoError(json.Unmarshal(res.body, &out))
	return out
}

func (s *APISuite) TestOwnershipScenario() {
	registered := s.register("alice", "alice@x.com", "Secret123!")
	s.NotEmpty(registered.Value)
	s.register("bob", "bob@x.com", "secret2")

	res := s.login("alice@x.com", "Secret123!")
	s.Require().Equal(http.StatusOK, res.status, string(res.body))
	var aliceToken auth.Token
	s.Require().NoError(json.Unmarshal(res.body, &aliceToken))

	res = s.login("bob@x.com", "secret2")
	s.Require().Equal(http.StatusOK, res.status)
	var bobToken auth.Token
	s.Require().NoError(json.Unmarshal(res.body, &bobToken))

	res = s.do(s.app, http.MethodGet, "/users/me", aliceToken.Value, nil)
	s.Require().Equal(http.StatusOK, res.status)
	var profile api.ProfileResponse
	s.Require().NoError(json.Unmarshal(res.body, &profile))
	s.Equal("alice", profile.Username)
	s.Empty(profile.Expenses)

	identity, err := s.tokens.Verify(aliceToken.Value)
	s.Require().NoError(err)
	s.Equal(profile.ID, identity.ID.String())

	created := s.createExpense(aliceToken.Value, map[string]any{
		"description": "Coffee",
		"amount":      3.50,
		"date":        "2024-01-01",
	})
	s.Equal(profile.ID, created.OwnerID)
	s.Equal("alice@x.com", created.CreatedBy)
	s.Equal(json.Number("3.50"), created.Amount)
	s.Equal("2024-01-01", created.Date)

	res = s.do(s.app, http.MethodPut, "/expenses/"+created.ID, bobToken.Value, map[string]any{
		"description": "hijacked",
		"amount":      "1",
		"date":        "2024-01-02",
	})
	s.Equal(http.StatusForbidden, res.status)
	s.Equal(auth.TextCodeForbidden, res.errorBody(s).Error.TextCode)

	res = s.do(s.app, http.MethodDelete, "/expenses/"+created.ID, bobToken.Value, nil)
	s.Equal(http.StatusForbidden, res.status)

	res = s.do(s.app, http.MethodGet, "/expenses/"+created.ID, aliceToken.Value, nil)
	s.Require().Equal(http.StatusOK, res.status)
	var fetched api.ExpenseResponse
	s.Require().NoError(json.Unmarshal(res.body, &fetched))
	s.Equal("Coffee", fetched.Description)
	s.Equal(json.Number("3.50"), fetched.Amount)

	res = s.do(s.app, http.MethodGet, "/expenses/"+created.ID, bobToken.Value, nil)
	s.Equal(http.StatusNotFound, res.status)

	res = s.do(s.app, http.MethodGet, "/expenses", bobToken.Value, nil)
	s.Require().Equal(http.StatusOK, res.status)
	s.JSONEq(`[]`, string(res.body))

	res = s.do(s.app, http.MethodPut, "/expenses/"+created.ID, aliceToken.Value, map[string]any{
		"description": "latte",
		"amount":      "4.25",
		"date":        "2024-01-03",
	})
	s.Require().Equal(http.StatusOK, res.status, string(res.body))
	var updated api.ExpenseResponse
	s.Require().NoError(json.Unmarshal(res.body, &updated))
	s.Equal("latte", updated.Description)
	s.Equal(json.Number("4.25"), updated.Amount)
	s.Equal(created.OwnerID, updated.OwnerID)

	res = s.do(s.app, http.MethodGet, "/users/me", aliceToken.Value, nil)
	s.Require().NoError(json.Unmarshal(res.body, &profile))
	s.Require().Len(profile.Expenses, 1)
	s.Equal(created.ID, profile.Expenses[0].ID)

	res = s.do(s.app, http.MethodDelete, "/expenses/"+created.ID, aliceToken.Value, nil)
	s.Equal(http.StatusNoContent, res.status)

	res = s.do(s.app, http.MethodGet, "/expenses/"+created.ID, aliceToken.Value, nil)
	s.Equal(http.StatusNotFound, res.status)
}

func (s *APISuite) TestCreateSetsLocation() {
	token := s.register("alice", "alice@example.com", "secret1")

	res := s.do(s.app, http.MethodPost, "/expenses", token.Value, map[string]any{
		"description": "rent",
		"amount":      "1200.00",
		"date":        "2024-02-01",
	})
	s.Require().Equal(http.StatusCreated, res.status)

	var created api.ExpenseResponse
	s.Require().NoError(json.Unmarshal(res.body, &created))
	s.Equal("/expenses/"+created.ID, res.header.Get(fiber.HeaderLocation))
}

func (s *APISuite) TestTokenFailures() {
	res := s.do(s.app, http.MethodGet, "/expenses", "", nil)
	s.Equal(http.StatusUnauthorized, res.status)
	s.Equal("Bearer", res.header.Get(fiber.HeaderWWWAuthenticate))
	body := res.errorBody(s)
	s.Equal(auth.TextCodeTokenMissing, body.Error.TextCode)
	s.Equal(auth.InvalidTokenMessage, body.Error.Message)

	res = s.do(s.app, http.MethodGet, "/expenses", "not-a-token", nil)
	s.Equal(http.StatusUnauthorized, res.status)
	body = res.errorBody(s)
	s.Equal(auth.TextCodeTokenMalformed, body.Error.TextCode)
	s.Equal(auth.InvalidTokenMessage, body.Error.Message)

	past, err := auth.NewTokenService(auth.TokenConfig{
		SigningKey: testSigningKey,
		Issuer:     testTokenConfig.Issuer,
		Audience:   testTokenConfig.Audience,
		TTL:        time.Minute,
	}, auth.WithClock(func() time.Time { return time.Now().Add(-2 * time.Hour) }))
	s.Require().NoError(err)

	stale, err := past.Issue(auth.Identity{ID: uuid.New(), Username: "ghost", Email: "ghost@example.com"})
	s.Require().NoError(err)

	res = s.do(s.app, http.MethodGet, "/users/me", stale.Value, nil)
	s.Equal(http.StatusUnauthorized, res.status)
	body = res.errorBody(s)
	s.Equal(auth.TextCodeTokenExpired, body.Error.TextCode)
	s.Equal(auth.InvalidTokenMessage, body.Error.Message)
}

func (s *APISuite) TestMeForDeletedUser() {
	token := s.register("alice", "alice@example.com", "secret1")

	_, err := s.db.ExecContext(context.Background(), "DELETE FROM users WHERE email = ?", "alice@example.com")
	s.Require().NoError(err)

	res := s.do(s.app, http.MethodGet, "/users/me", token.Value, nil)
	s.Equal(http.StatusNotFound, res.status)
	s.Equal(auth.TextCodeIdentityNotFound, res.errorBody(s).Error.TextCode)
}

func (s *APISuite) TestLoginFailuresLookAlike() {
	s.register("alice", "alice@example.com", "secret1")

	wrong := s.login("alice@example.com", "nope-nope")
	unknown := s.login("nobody@example.com", "nope-nope")

	s.Equal(http.StatusUnauthorized, wrong.status)
	s.Equal(wrong.status, unknown.status)
	s.JSONEq(string(wrong.body), string(unknown.body))
	s.Equal(auth.TextCodeInvalidCreds, wrong.errorBody(s).Error.TextCode)
}

func (s *APISuite) TestRegisterDuplicateEmail() {
	s.register("alice", "alice@example.com", "secret1")

	res := s.do(s.app, http.MethodPost, "/users/register", "", map[string]string{
		"username": "alice2",
		"email":    "ALICE@example.com",
		"password": "secret1",
	})
	s.Equal(http.StatusConflict, res.status)
	s.Equal(auth.TextCodeDuplicateEmail, res.errorBody(s).Error.TextCode)
}

func (s *APISuite) TestRegisterValidation() {
	res := s.do(s.app, http.MethodPost, "/users/register", "", map[string]string{
		"username": "al",
		"email":    "not-an-email",
		"password": "123",
	})
	s.Equal(http.StatusBadRequest, res.status)

	body := res.errorBody(s)
	s.Equal(validate.TextCodeValidationFailed, body.Error.TextCode)
	s.Contains(body.Error.Fields, "username")
	s.Contains(body.Error.Fields, "email")
	s.Contains(body.Error.Fields, "password")
}

func (s *APISuite) TestExpenseValidation() {
	token := s.register("alice", "alice@example.com", "secret1")

	res := s.do(s.app, http.MethodPost, "/expenses", token.Value, map[string]any{
		"description": "",
		"date":        "yesterday",
	})
	s.Equal(http.StatusBadRequest, res.status)
	body := res.errorBody(s)
	s.Equal(validate.TextCodeValidationFailed, body.Error.TextCode)
	s.Contains(body.Error.Fields, "description")
	s.Contains(body.Error.Fields, "amount")
	s.Contains(body.Error.Fields, "date")

	for _, amount := range []string{"-1", "0", "1.999"} {
		res = s.do(s.app, http.MethodPost, "/expenses", token.Value, map[string]any{
			"description": "bad amount",
			"amount":      amount,
			"date":        "2024-01-02",
		})
		s.Equal(http.StatusBadRequest, res.status, amount)
		s.Contains(res.errorBody(s).Error.Fields, "amount", amount)
	}
}

func (s *APISuite) TestMalformedBody() {
	token := s.register("alice", "alice@example.com", "secret1")

	res := s.do(s.app, http.MethodPost, "/expenses", token.Value, `{"description":`)
	s.Equal(http.StatusBadRequest, res.status)
	s.Equal(api.TextCodeBadRequest, res.errorBody(s).Error.TextCode)
}

func (s *APISuite) TestInvalidExpenseIDIsNotFound() {
	token := s.register("alice", "alice@example.com", "secret1")

	for _, method := range []string{http.MethodGet, http.MethodDelete} {
		res := s.do(s.app, method, "/expenses/not-a-uuid", token.Value, nil)
		s.Equal(http.StatusNotFound, res.status, method)
		s.Equal(auth.TextCodeNotFound, res.errorBody(s).Error.TextCode)
	}

	res := s.do(s.app, http.MethodGet, "/expenses/00000000-0000-0000-0000-000000000001", token.Value, nil)
	s.Equal(http.StatusNotFound, res.status)
}

func (s *APISuite) TestGlobalReadScope() {
	db, _, app := s.newApp("/api", auth.ReadScopeGlobal)
	defer db.Close()

	register := func(username, email string) string {
		res := s.do(app, http.MethodPost, "/api/users/register", "", map[string]string{
			"username": username,
			"email":    email,
			"password": "secret1",
		})
		s.Require().Equal(http.StatusOK, res.status, string(res.body))
		var token auth.Token
		s.Require().NoError(json.Unmarshal(res.body, &token))
		return token.Value
	}

	alice := register("alice", "alice@example.com")
	bob := register("bob", "bob@example.com")

	res := s.do(app, http.MethodPost, "/api/expenses", alice, map[string]any{
		"description": "books",
		"amount":      "20",
		"date":        "2024-03-01",
	})
	s.Require().Equal(http.StatusCreated, res.status)
	var created api.ExpenseResponse
	s.Require().NoError(json.Unmarshal(res.body, &created))
	s.Equal("/api/expenses/"+created.ID, res.header.Get(fiber.HeaderLocation))

	res = s.do(app, http.MethodGet, "/api/expenses/"+created.ID, bob, nil)
	s.Equal(http.StatusOK, res.status)

	res = s.do(app, http.MethodGet, "/api/expenses", bob, nil)
	s.Require().Equal(http.StatusOK, res.status)
	var listed []api.ExpenseResponse
	s.Require().NoError(json.Unmarshal(res.body, &listed))
	s.Len(listed, 1)

	res = s.do(app, http.MethodPut, "/api/expenses/"+created.ID, bob, map[string]any{
		"description": "mine now",
		"amount":      "1",
		"date":        "2024-03-01",
	})
	s.Equal(http.StatusForbidden, res.status)
}

func (s *APISuite) TestHealthAndMetrics() {
	res := s.do(s.app, http.MethodGet, "/healthz", "", nil)
	s.Equal(http.StatusOK, res.status)
	s.JSONEq(`{"status":"ok"}`, string(res.body))

	res = s.do(s.app, http.MethodGet, "/metrics", "", nil)
	s.Equal(http.StatusOK, res.status)
	s.Contains(string(res.body), "finguard_http_histogram_response_time_seconds")
}

func (s *APISuite) TestHealthReportsClosedDatabase() {
	db, _, app := s.newApp("", auth.ReadScopeOwner)
	s.Require().NoError(db.Close())

	res := s.do(app, http.MethodGet, "/healthz", "", nil)
	s.Equal(http.StatusServiceUnavailable, res.status)
}

func (s *APISuite) TestUnknownRoute() {
	res := s.do(s.app, http.MethodGet, "/nope", "", nil)
	s.Equal(http.StatusNotFound, res.status)
}

func (s *APISuite) TestPanickingHandlerIsLoggedAndRecovered() {
	core, logs := observer.New(zapcore.InfoLevel)
	db, _, app := s.newAppWithLogger("", auth.ReadScopeOwner, zap.New(core))
	defer db.Close()

	app.Get("/boom", func(*fiber.Ctx) error {
		panic("boom")
	})

	res := s.do(app, http.MethodGet, "/boom", "", nil)
	s.Equal(http.StatusInternalServerError, res.status)
	s.Equal(api.TextCodeInternal, res.errorBody(s).Error.TextCode)

	requests := logs.FilterMessage("request").All()
	s.Require().Len(requests, 1)
	fields := requests[0].ContextMap()
	s.EqualValues(http.StatusInternalServerError, fields["status"])
	s.Equal("/boom", fields["route"])
}
