// AngelaMos | 2026
// registry_test.go

package site

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reportriser/backend/internal/core"
	"github.com/reportriser/backend/internal/entitlement"
	"github.com/reportriser/backend/internal/middleware"
)

const (
	lockQuery   = "SELECT id, tier, reports_used, sites_used FROM users WHERE id = $1 AND deleted_at IS NULL FOR UPDATE"
	existsQuery = "SELECT EXISTS(SELECT 1 FROM sites WHERE user_id = $1 AND url = $2)"
	countQuery  = "SELECT COUNT(*) FROM sites WHERE user_id = $1"
)

func newMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return sqlx.NewDb(db, "sqlmock"), mock
}

func newEngine(db *sqlx.DB) *entitlement.Engine {
	return entitlement.NewEngine(entitlement.EngineConfig{Registry: NewRegistry(db)})
}

func expectLock(mock sqlmock.Sqlmock, userID string, tier entitlement.Tier, reports, sites int) {
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(lockQuery)).
		WithArgs(userID).
		WillReturnRows(sqlmock.NewRows([]string{"id", "tier", "reports_used", "sites_used"}).
			AddRow(userID, string(tier), reports, sites))
}

func TestRegistry_AdmitsNewSite(t *testing.T) {
	db, mock := newMockDB(t)

	expectLock(mock, "u1", entitlement.TierFree, 0, 0)
	mock.ExpectQuery(regexp.QuoteMeta(existsQuery)).
		WithArgs("u1", "https://example.com").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectQuery(regexp.QuoteMeta(countQuery)).
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO sites")).
		WithArgs(sqlmock.AnyArg(), "u1", "https://example.com").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE users SET sites_used = sites_used + 1")).
		WithArgs("u1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	d, err := newEngine(db).CanAddSite(context.Background(),
		entitlement.Account{UserID: "u1", Tier: entitlement.TierFree},
		"https://example.com",
	)
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRegistry_DeniesAtLimitWithoutWriting(t *testing.T) {
	db, mock := newMockDB(t)

	expectLock(mock, "u1", entitlement.TierFree, 0, 1)
	mock.ExpectQuery(regexp.QuoteMeta(existsQuery)).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectQuery(regexp.QuoteMeta(countQuery)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectCommit()

	d, err := newEngine(db).CanAddSite(context.Background(),
		entitlement.Account{UserID: "u1", Tier: entitlement.TierFree, SitesUsed: 1},
		"https://other.com",
	)
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, entitlement.ActionAddSite, d.Action)
	assert.Equal(t, 1, d.Limit)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRegistry_RegisteredSiteSkipsCounters(t *testing.T) {
	db, mock := newMockDB(t)

	expectLock(mock, "u1", entitlement.TierFree, 0, 1)
	mock.ExpectQuery(regexp.QuoteMeta(existsQuery)).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectCommit()

	d, err := newEngine(db).CanAddSite(context.Background(),
		entitlement.Account{UserID: "u1", Tier: entitlement.TierFree, SitesUsed: 1},
		"https://example.com",
	)
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRegistry_UnknownUserRollsBack(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(lockQuery)).
		WithArgs("ghost").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	_, err := newEngine(db).CanAddSite(context.Background(),
		entitlement.Account{UserID: "ghost", Tier: entitlement.TierFree},
		"https://example.com",
	)
	assert.ErrorIs(t, err, core.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func expectNewSite(mock sqlmock.Sqlmock, userID, siteURL string) {
	mock.ExpectQuery(regexp.QuoteMeta(existsQuery)).
		WithArgs(userID, siteURL).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectQuery(regexp.QuoteMeta(countQuery)).
		WithArgs(userID).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
}

func TestRegistry_FailedUsageIncrementRollsBackSite(t *testing.T) {
	db, mock := newMockDB(t)

	expectLock(mock, "u1", entitlement.TierFree, 0, 0)
	expectNewSite(mock, "u1", "https://example.com")
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO sites")).
		WithArgs(sqlmock.AnyArg(), "u1", "https://example.com").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE users SET sites_used = sites_used + 1")).
		WithArgs("u1").
		WillReturnError(errors.New("serialization failure"))
	mock.ExpectRollback()

	_, err := newEngine(db).CanAddSite(context.Background(),
		entitlement.Account{UserID: "u1", Tier: entitlement.TierFree},
		"https://example.com",
	)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "serialization failure")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRegistry_DuplicateInsertRollsBack(t *testing.T) {
	db, mock := newMockDB(t)

	expectLock(mock, "u1", entitlement.TierFree, 0, 0)
	expectNewSite(mock, "u1", "https://example.com")
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO sites")).
		WithArgs(sqlmock.AnyArg(), "u1", "https://example.com").
		WillReturnError(&pgconn.PgError{Code: "23505"})
	mock.ExpectRollback()

	_, err := newEngine(db).CanAddSite(context.Background(),
		entitlement.Account{UserID: "u1", Tier: entitlement.TierFree},
		"https://example.com",
	)
	assert.ErrorIs(t, err, core.ErrDuplicateKey)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRegistry_RecordReportCommitsOneUnit(t *testing.T) {
	db, mock := newMockDB(t)

	expectLock(mock, "u1", entitlement.TierFree, 0, 0)
	expectNewSite(mock, "u1", "https://example.com")
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO sites")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE users SET sites_used = sites_used + 1")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("SET reports_used = reports_used + 1")).
		WithArgs("u1", 1).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO reports")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	d, err := newEngine(db).RecordReport(context.Background(),
		entitlement.Account{UserID: "u1", Tier: entitlement.TierFree},
		"https://example.com",
		func(ctx context.Context, tx core.DBTX) error {
			_, err := tx.ExecContext(ctx, "INSERT INTO reports (id) VALUES ($1)", "r1")
			return err
		},
	)
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRegistry_RecordReportLostRaceRollsBackSite(t *testing.T) {
	db, mock := newMockDB(t)

	expectLock(mock, "u1", entitlement.TierFree, 0, 0)
	expectNewSite(mock, "u1", "https://example.com")
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO sites")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE users SET sites_used = sites_used + 1")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("SET reports_used = reports_used + 1")).
		WithArgs("u1", 1).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	d, err := newEngine(db).RecordReport(context.Background(),
		entitlement.Account{UserID: "u1", Tier: entitlement.TierFree},
		"https://example.com",
		nil,
	)
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, entitlement.ActionGenerateReport, d.Action)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRegistry_DowngradedTierUnderLockDenies(t *testing.T) {
	db, mock := newMockDB(t)

	expectLock(mock, "u1", entitlement.TierFree, 0, 1)
	mock.ExpectQuery(regexp.QuoteMeta(existsQuery)).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectQuery(regexp.QuoteMeta(countQuery)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectCommit()

	d, err := newEngine(db).CanAddSite(context.Background(),
		entitlement.Account{UserID: "u1", Tier: entitlement.TierPremium, SitesUsed: 1},
		"https://second.com",
	)
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, 1, d.Limit)
	assert.NoError(t, mock.ExpectationsWereMet())
}

type staticAccounts map[string]entitlement.Account

func (s staticAccounts) GetAccount(_ context.Context, userID string) (entitlement.Account, error) {
	a, ok := s[userID]
	if !ok {
		return entitlement.Account{}, core.ErrNotFound
	}
	return a, nil
}

func serve(t *testing.T, h *Handler, method, body string) *httptest.ResponseRecorder {
	t.Helper()

	r := chi.NewRouter()
	h.RegisterRoutes(r, func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := context.WithValue(r.Context(), middleware.UserIDKey, "u1")
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	})

	req := httptest.NewRequest(method, "/sites/", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestHandler_AddDeniedReturnsQuotaError(t *testing.T) {
	db, mock := newMockDB(t)

	expectLock(mock, "u1", entitlement.TierFree, 0, 1)
	mock.ExpectQuery(regexp.QuoteMeta(existsQuery)).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectQuery(regexp.QuoteMeta(countQuery)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectCommit()

	svc := NewService(NewRepository(db),
		staticAccounts{"u1": {UserID: "u1", Tier: entitlement.TierFree, SitesUsed: 1}},
		newEngine(db),
	)

	rec := serve(t, NewHandler(svc), http.MethodPost, `{"url":"https://other.com"}`)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, rec.Body.String(), "QUOTA_EXCEEDED")
	assert.Contains(t, rec.Body.String(), `"upgrade_to":"starter"`)
}

func TestHandler_AddValidatesURL(t *testing.T) {
	db, _ := newMockDB(t)
	svc := NewService(NewRepository(db), staticAccounts{}, newEngine(db))

	rec := serve(t, NewHandler(svc), http.MethodPost, `{"url":"not a url"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandler_List(t *testing.T) {
	db, mock := newMockDB(t)
	now := time.Now().UTC()

	mock.ExpectQuery(regexp.QuoteMeta("FROM sites")).
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "url", "created_at"}).
			AddRow("s1", "u1", "https://a.com", now).
			AddRow("s2", "u1", "https://b.com", now))

	svc := NewService(NewRepository(db),
		staticAccounts{"u1": {UserID: "u1", Tier: entitlement.TierStarter}},
		newEngine(db),
	)

	rec := serve(t, NewHandler(svc), http.MethodGet, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"used":2`)
	assert.Contains(t, rec.Body.String(), `"limit":3`)
	assert.Contains(t, rec.Body.String(), "https://b.com")
}

func TestHandler_AddNormalizesURL(t *testing.T) {
	db, mock := newMockDB(t)
	now := time.Now().UTC()

	expectLock(mock, "u1", entitlement.TierFree, 0, 1)
	mock.ExpectQuery(regexp.QuoteMeta(existsQuery)).
		WithArgs("u1", "https://example.com").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectCommit()
	mock.ExpectQuery(regexp.QuoteMeta("WHERE user_id = $1 AND url = $2")).
		WithArgs("u1", "https://example.com").
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "url", "created_at"}).
			AddRow("s1", "u1", "https://example.com", now))

	svc := NewService(NewRepository(db),
		staticAccounts{"u1": {UserID: "u1", Tier: entitlement.TierFree, SitesUsed: 1}},
		newEngine(db),
	)

	rec := serve(t, NewHandler(svc), http.MethodPost, `{"url":"https://Example.com/#pricing"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"url":"https://example.com"`)
	assert.NoError(t, mock.ExpectationsWereMet())
}
