// AngelaMos | 2026
// apikey_test.go

package apikey

import (
	"context"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"sync"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-chi/chi/v5"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reportriser/backend/internal/core"
	"github.com/reportriser/backend/internal/entitlement"
	"github.com/reportriser/backend/internal/middleware"
)

type memKeys struct {
	mu      sync.Mutex
	keys    map[string]*APIKey
	touched []string
}

func newMemKeys() *memKeys {
	return &memKeys{keys: map[string]*APIKey{}}
}

func (m *memKeys) Create(_ context.Context, key *APIKey) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.keys[key.Prefix] = key
	return nil
}

func (m *memKeys) GetByPrefix(_ context.Context, prefix string) (*APIKey, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k, ok := m.keys[prefix]
	if !ok || k.IsRevoked() {
		return nil, core.ErrNotFound
	}
	return k, nil
}

func (m *memKeys) ListForUser(_ context.Context, userID string) ([]APIKey, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []APIKey
	for _, k := range m.keys {
		if k.UserID == userID && !k.IsRevoked() {
			out = append(out, *k)
		}
	}
	return out, nil
}

func (m *memKeys) Revoke(_ context.Context, id, userID string) error {
	return core.ErrNotFound
}

func (m *memKeys) TouchLastUsed(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.touched = append(m.touched, id)
	return nil
}

type tierAccounts map[string]entitlement.Tier

func (a tierAccounts) GetAccount(_ context.Context, userID string) (entitlement.Account, error) {
	tier, ok := a[userID]
	if !ok {
		return entitlement.Account{}, core.ErrNotFound
	}
	return entitlement.Account{UserID: userID, Tier: tier}, nil
}

func TestParseKey(t *testing.T) {
	prefix, secret, ok := ParseKey("rr_abc123.s3cr3t")
	require.True(t, ok)
	assert.Equal(t, "abc123", prefix)
	assert.Equal(t, "s3cr3t", secret)

	for _, raw := range []string{"", "abc.def", "rr_", "rr_abc", "rr_.secret", "rr_abc."} {
		_, _, ok := ParseKey(raw)
		assert.False(t, ok, raw)
	}
}

func TestCreate_RequiresAPIAccess(t *testing.T) {
	accounts := tierAccounts{"ent": entitlement.TierEnterprise, "prem": entitlement.TierPremium}
	svc := NewService(newMemKeys(), accounts, nil)

	_, _, err := svc.Create(context.Background(), "prem", "ci")
	assert.ErrorIs(t, err, core.ErrForbidden)

	key, raw, err := svc.Create(context.Background(), "ent", " ci ")
	require.NoError(t, err)
	assert.Equal(t, "ci", key.Name)
	assert.True(t, strings.HasPrefix(raw, "rr_"+key.Prefix+"."))
	assert.NotContains(t, key.SecretHash, raw)
	assert.True(t, strings.HasPrefix(key.SecretHash, "$argon2id$"))
}

func TestVerifyAPIKey(t *testing.T) {
	repo := newMemKeys()
	accounts := tierAccounts{"ent": entitlement.TierEnterprise}
	svc := NewService(repo, accounts, nil)
	ctx := context.Background()

	key, raw, err := svc.Create(ctx, "ent", "ci")
	require.NoError(t, err)

	p, err := svc.VerifyAPIKey(ctx, raw)
	require.NoError(t, err)
	assert.Equal(t, &middleware.APIKeyPrincipal{
		KeyID: key.ID, UserID: "ent", Role: "user", Tier: "enterprise",
	}, p)
	assert.Equal(t, []string{key.ID}, repo.touched)

	_, err = svc.VerifyAPIKey(ctx, "rr_"+key.Prefix+".wrong")
	assert.ErrorIs(t, err, core.ErrUnauthorized)

	_, err = svc.VerifyAPIKey(ctx, "rr_unknown.secret")
	assert.ErrorIs(t, err, core.ErrUnauthorized)

	_, err = svc.VerifyAPIKey(ctx, "garbage")
	assert.ErrorIs(t, err, core.ErrUnauthorized)

	accounts["ent"] = entitlement.TierStarter
	_, err = svc.VerifyAPIKey(ctx, raw)
	assert.ErrorIs(t, err, core.ErrForbidden)
}

func TestRevoke_RejectsMalformedID(t *testing.T) {
	svc := NewService(newMemKeys(), tierAccounts{}, nil)
	err := svc.Revoke(context.Background(), "u1", "not-a-uuid")
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestHandler_Create(t *testing.T) {
	svc := NewService(newMemKeys(), tierAccounts{
		"ent":  entitlement.TierEnterprise,
		"free": entitlement.TierFree,
	}, nil)

	r := chi.NewRouter()
	NewHandler(svc).RegisterRoutes(r, func(next http.Handler) http.Handler { return next })

	post := func(userID, body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api-keys/", strings.NewReader(body))
		req = req.WithContext(context.WithValue(req.Context(), middleware.UserIDKey, userID))
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		return rec
	}

	rec := post("ent", `{"name":"deploy"}`)
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Contains(t, rec.Body.String(), `"key":"rr_`)

	rec = post("free", `{"name":"deploy"}`)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = post("ent", `{"name":""}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRepository_GetByPrefixAndRevoke(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	repo := NewRepository(sqlx.NewDb(db, "sqlmock"))
	ctx := context.Background()

	mock.ExpectQuery(regexp.QuoteMeta("WHERE prefix = $1 AND revoked_at IS NULL")).
		WithArgs("abc").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err = repo.GetByPrefix(ctx, "abc")
	assert.ErrorIs(t, err, core.ErrNotFound)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE api_keys")).
		WithArgs("k1", "u1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err = repo.Revoke(ctx, "k1", "u1")
	assert.ErrorIs(t, err, core.ErrNotFound)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE api_keys")).
		WithArgs("k2", "u1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	assert.NoError(t, repo.Revoke(ctx, "k2", "u1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}
