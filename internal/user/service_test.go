// AngelaMos | 2026
// service_test.go

package user

import (
	"context"
	"database/sql"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reportriser/backend/internal/core"
	"github.com/reportriser/backend/internal/entitlement"
	"github.com/reportriser/backend/internal/middleware"
)

func newMockService(t *testing.T) (*Service, sqlmock.Sqlmock) {
	t.Helper()
	repo, mock := newMockRepo(t)
	engine := entitlement.NewEngine(entitlement.EngineConfig{Accounts: repo})
	return NewService(repo, engine), mock
}

func TestService_GetOrCreateByEmailExisting(t *testing.T) {
	svc, mock := newMockService(t)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE email = $1")).
		WithArgs("ada@example.com").
		WillReturnRows(userRow("u1", "ada@example.com", entitlement.TierPremium, 0, 0))

	info, created, err := svc.GetOrCreateByEmail(context.Background(), "  Ada@Example.com ")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, "u1", info.ID)
	assert.Equal(t, "premium", info.Tier)
}

func TestService_GetOrCreateByEmailCreatesFreeUser(t *testing.T) {
	svc, mock := newMockService(t)
	now := time.Now().UTC()

	mock.ExpectQuery(regexp.QuoteMeta("WHERE email = $1")).
		WithArgs("new@example.com").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO users")).
		WithArgs(sqlmock.AnyArg(), "new@example.com", "new", RoleUser, "free").
		WillReturnRows(sqlmock.NewRows([]string{
			"created_at", "updated_at", "token_version", "reports_used", "sites_used",
		}).AddRow(now, now, 0, 0, 0))

	info, created, err := svc.GetOrCreateByEmail(context.Background(), "new@example.com")
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "free", info.Tier)
	assert.Equal(t, "new", info.Name)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestService_GetOrCreateByEmailRace(t *testing.T) {
	svc, mock := newMockService(t)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE email = $1")).
		WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO users")).
		WillReturnError(&pgconn.PgError{Code: "23505"})
	mock.ExpectQuery(regexp.QuoteMeta("WHERE email = $1")).
		WillReturnRows(userRow("u9", "race@example.com", entitlement.TierFree, 0, 0))

	info, created, err := svc.GetOrCreateByEmail(context.Background(), "race@example.com")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, "u9", info.ID)
}

func TestService_EmailFor(t *testing.T) {
	svc, mock := newMockService(t)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE id = $1")).
		WithArgs("u1").
		WillReturnRows(userRow("u1", "ada@example.com", entitlement.TierPremium, 0, 0))

	to, err := svc.EmailFor(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", to)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE id = $1")).
		WithArgs("ghost").
		WillReturnError(sql.ErrNoRows)

	_, err = svc.EmailFor(context.Background(), "ghost")
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestService_UpdateUserTier(t *testing.T) {
	svc, mock := newMockService(t)

	_, err := svc.UpdateUserTier(context.Background(), "u1", "pro")
	assert.ErrorIs(t, err, core.ErrInvalidInput)

	mock.ExpectExec(regexp.QuoteMeta("SET tier = $2")).
		WithArgs("u1", "enterprise").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta("WHERE id = $1")).
		WithArgs("u1").
		WillReturnRows(userRow("u1", "ada@example.com", entitlement.TierEnterprise, 0, 0))

	u, err := svc.UpdateUserTier(context.Background(), "u1", "enterprise")
	require.NoError(t, err)
	assert.Equal(t, entitlement.TierEnterprise, u.Tier)
}

func TestHandler_GetUsage(t *testing.T) {
	svc, mock := newMockService(t)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE id = $1")).
		WithArgs("u1").
		WillReturnRows(userRow("u1", "ada@example.com", entitlement.TierStarter, 45, 1))

	r := chi.NewRouter()
	NewHandler(svc).RegisterRoutes(r, func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(
				context.WithValue(r.Context(), middleware.UserIDKey, "u1"),
			))
		})
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/users/me/usage", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `"usage_percentage":90`)
	assert.Contains(t, body, `"should_prompt_upgrade":true`)
	assert.Contains(t, body, `"recommended_upgrade":"premium"`)
}

func adminRouter(svc *Service, requesterID string) chi.Router {
	r := chi.NewRouter()
	asUser := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(
				context.WithValue(r.Context(), middleware.UserIDKey, requesterID),
			))
		})
	}
	allow := func(next http.Handler) http.Handler { return next }
	NewHandler(svc).RegisterAdminRoutes(r, asUser, allow)
	return r
}

func TestHandler_AdminUpdateTier(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		setup  func(sqlmock.Sqlmock)
		status int
	}{
		{
			name:   "rejects unknown tier",
			body:   `{"tier":"pro"}`,
			status: http.StatusBadRequest,
		},
		{
			name: "missing user",
			body: `{"tier":"premium"}`,
			setup: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec(regexp.QuoteMeta("SET tier = $2")).
					WithArgs("u1", "premium").
					WillReturnResult(sqlmock.NewResult(0, 0))
			},
			status: http.StatusNotFound,
		},
		{
			name: "assigns tier",
			body: `{"tier":"premium"}`,
			setup: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec(regexp.QuoteMeta("SET tier = $2")).
					WithArgs("u1", "premium").
					WillReturnResult(sqlmock.NewResult(0, 1))
				mock.ExpectQuery(regexp.QuoteMeta("WHERE id = $1")).
					WithArgs("u1").
					WillReturnRows(userRow("u1", "ada@example.com", entitlement.TierPremium, 0, 0))
			},
			status: http.StatusOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, mock := newMockService(t)
			if tt.setup != nil {
				tt.setup(mock)
			}

			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPut, "/admin/users/u1/tier", strings.NewReader(tt.body))
			adminRouter(svc, "admin-1").ServeHTTP(rec, req)

			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestHandler_DeleteRequiresAdminRequester(t *testing.T) {
	svc, mock := newMockService(t)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE id = $1")).
		WithArgs("u2").
		WillReturnRows(userRow("u2", "bob@example.com", entitlement.TierFree, 0, 0))

	rec := httptest.NewRecorder()
	adminRouter(svc, "u2").ServeHTTP(rec,
		httptest.NewRequest(http.MethodDelete, "/admin/users/u1", nil))

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}
