// AngelaMos | 2026
// core_test.go

package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reportriser/backend/internal/config"
)

func TestHashSecret_RoundTrip(t *testing.T) {
	hash, err := HashSecret("s3cret-value")
	require.NoError(t, err)
	assert.Contains(t, hash, "$argon2id$")

	ok, err := VerifySecret("s3cret-value", hash)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = VerifySecret("other-value", hash)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestVerifySecret_MalformedHash(t *testing.T) {
	_, err := VerifySecret("x", "not-a-hash")
	assert.Error(t, err)
}

func TestVerifySecretTimingSafe_MissingHash(t *testing.T) {
	ok, err := VerifySecretTimingSafe("anything", nil)
	require.NoError(t, err)
	assert.False(t, ok)

	empty := ""
	ok, err = VerifySecretTimingSafe("anything", &empty)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestTokenHash(t *testing.T) {
	token, err := GenerateSecureToken(32)
	require.NoError(t, err)
	assert.NotEmpty(t, token)

	hash := HashToken(token)
	assert.Len(t, hash, 64)
	assert.True(t, CompareTokenHash(token, hash))
	assert.False(t, CompareTokenHash(token+"x", hash))
}

func TestIsDuplicateKeyError(t *testing.T) {
	dup := fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505"})
	assert.True(t, IsDuplicateKeyError(dup))
	assert.False(t, IsDuplicateKeyError(&pgconn.PgError{Code: "23503"}))
	assert.False(t, IsDuplicateKeyError(errors.New("boom")))
}

func TestJSONError_AppError(t *testing.T) {
	rec := httptest.NewRecorder()
	JSONError(rec, QuotaExceededError("limit reached", map[string]int{"limit": 1}))

	assert.Equal(t, http.StatusForbidden, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, false, body["success"])

	errBody, ok := body["error"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "QUOTA_EXCEEDED", errBody["code"])
	assert.Equal(t, "limit reached", errBody["message"])
	assert.NotNil(t, errBody["details"])
}

func TestJSONError_PlainErrorIsInternal(t *testing.T) {
	rec := httptest.NewRecorder()
	JSONError(rec, errors.New("db exploded"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "db exploded")
}

func TestAppError_Unwrap(t *testing.T) {
	err := fmt.Errorf("wrap: %w", TokenExpiredError())
	assert.True(t, errors.Is(err, ErrTokenExpired))
	assert.True(t, IsAppError(err))
}

func TestPaginated(t *testing.T) {
	rec := httptest.NewRecorder()
	Paginated(rec, []string{"a"}, 2, 10, 21)

	var body Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.NotNil(t, body.Meta)
	assert.Equal(t, 3, body.Meta.TotalPages)
}

func TestFormatValidationError(t *testing.T) {
	type req struct {
		Email string `validate:"required,email"`
		URL   string `validate:"required,url"`
	}

	err := validator.New().Struct(req{Email: "nope"})
	require.Error(t, err)

	msg := FormatValidationError(err)
	assert.Contains(t, msg, "email must be a valid email")
	assert.Contains(t, msg, "url is required")
}

func TestMetrics_Handler(t *testing.T) {
	m := NewMetrics()
	m.ReportsGenerated.WithLabelValues("free").Inc()
	m.VitalsFallbacks.Inc()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `reportriser_reports_generated_total{tier="free"} 1`)
	assert.Contains(t, rec.Body.String(), "reportriser_vitals_fallbacks_total 1")
}

func TestNormalizeURL(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"https://example.com", "https://example.com"},
		{" https://Example.COM/ ", "https://example.com"},
		{"HTTPS://example.com/shop/#top", "https://example.com/shop"},
		{"https://example.com/Shop?ref=ad", "https://example.com/Shop?ref=ad"},
		{"Example.com/", "example.com"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeURL(tt.in))
		})
	}
}

func TestRedis_ConnectAndPoolMetrics(t *testing.T) {
	mr := miniredis.RunT(t)

	r, err := NewRedis(context.Background(), config.RedisConfig{
		URL:         "redis://" + mr.Addr(),
		PoolSize:    2,
		PingTimeout: time.Second,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })

	require.NoError(t, r.Ping(context.Background()))

	m := NewMetrics()
	m.Register(r.Collectors()...)

	n, err := testutil.GatherAndCount(m.Registry(),
		"reportriser_redis_pool_hits_total",
		"reportriser_redis_pool_connections",
	)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.GreaterOrEqual(t, r.PoolStats().TotalConns, uint32(1))
}

func TestRedis_UnreachableFailsFast(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := NewRedis(context.Background(), config.RedisConfig{
		URL:         "redis://" + addr,
		PingTimeout: 200 * time.Millisecond,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ping redis")
}
