package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/airwaycast/airwaycast/internal/api"
	"github.com/airwaycast/airwaycast/internal/api/models"
	"github.com/airwaycast/airwaycast/internal/auth"
	"github.com/airwaycast/airwaycast/internal/pipeline"
	"github.com/airwaycast/airwaycast/internal/prediction"
	"github.com/airwaycast/airwaycast/internal/provider/resilience"
)

var jwtService = auth.NewJWTService(auth.JWTConfig{
	SigningKey: "test-secret-key-for-testing-only",
	Issuer:     "airwaycast",
	Audience:   "airwaycast-api",
})

type fakeRunner struct {
	mu   sync.Mutex
	last pipeline.Request
	err  error
}

func (f *fakeRunner) Run(_ context.Context, req pipeline.Request) (*pipeline.Result, error) {
	f.mu.Lock()
	f.last = req
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}

	start := req.Start
	if start.IsZero() {
		start = time.Date(2026, 2, 7, 0, 0, 0, 0, time.UTC)
	}
	days := req.Days
	if days == 0 {
		days = 7
	}
	res := &pipeline.Result{}
	for d := 0; d < days; d++ {
		for _, id := range req.UserIDs {
			if id == "ghost" {
				continue
			}
			conf := 0.5
			res.Records = append(res.Records, prediction.Record{
				UserID:     id,
				Date:       start.AddDate(0, 0, d),
				Risk:       2.5,
				Confidence: &conf,
				Scorer:     prediction.ScorerPersonalized,
			})
		}
	}
	for _, id := range req.UserIDs {
		if id == "ghost" {
			res.Unknown = append(res.Unknown, id)
		}
	}
	return res, nil
}

type fakePinger struct{ err error }

func (p fakePinger) Ping(context.Context) error { return p.err }

func newTestRouter(runner *fakeRunner, db fakePinger) http.Handler {
	return api.NewRouter(api.RouterConfig{
		Version:   "test",
		BuildTime: "2026-01-01T00:00:00Z",
		Logger:    zerolog.New(io.Discard),
		Tokens:    jwtService,
		Runner:    runner,
		Database:  db,
		Providers: resilience.NewRegistry(),
		MaxUsers:  50,
		MaxDays:   14,
	})
}

func token(t *testing.T, userID string, scopes ...string) string {
	t.Helper()
	tok, _, err := jwtService.GenerateAccessToken(userID, time.Hour, scopes...)
	require.NoError(t, err)
	return tok
}

func get(t *testing.T, h http.Handler, path, bearer string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, http.NoBody)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealthEndpoints(t *testing.T) {
	router := newTestRouter(&fakeRunner{}, fakePinger{})

	rec := get(t, router, "/v1/ops/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))

	var health models.Health
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
	assert.Equal(t, models.HealthStatusOK, health.Status)
	assert.Equal(t, "test", health.Details["version"])

	rec = get(t, router, "/v1/ops/ready", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestReadiness_DatabaseDown(t *testing.T) {
	router := newTestRouter(&fakeRunner{}, fakePinger{err: errors.New("connection refused")})

	rec := get(t, router, "/v1/ops/ready", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "connection refused")
}

func TestStatus_RequiresOpsScope(t *testing.T) {
	router := newTestRouter(&fakeRunner{}, fakePinger{})

	assert.Equal(t, http.StatusUnauthorized, get(t, router, "/v1/ops/status", "").Code)
	assert.Equal(t, http.StatusForbidden, get(t, router, "/v1/ops/status", token(t, "u1")).Code)

	rec := get(t, router, "/v1/ops/status", token(t, "ops-bot", auth.ScopeOps))
	require.Equal(t, http.StatusOK, rec.Code)

	var status models.SystemStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, models.HealthStatusOK, status.Status)
	require.Len(t, status.Subsystems, 1)
	assert.Equal(t, "database", status.Subsystems[0].Name)
}

func TestMyRisk(t *testing.T) {
	runner := &fakeRunner{}
	router := newTestRouter(runner, fakePinger{})

	rec := get(t, router, "/v1/me/risk?start=2026-03-01&days=3&refresh=true", token(t, "u1"))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	assert.Equal(t, []string{"u1"}, runner.last.UserIDs)
	assert.Equal(t, 3, runner.last.Days)
	assert.True(t, runner.last.SkipCache)
	assert.Equal(t, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), runner.last.Start)

	var forecast models.RiskForecast
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &forecast))
	assert.Equal(t, "2026-03-01", forecast.Start)
	assert.Equal(t, 3, forecast.Days)
	require.Len(t, forecast.Items, 3)
	assert.Equal(t, "2026-03-03", forecast.Items[2].Date)
	assert.Equal(t, 2.5, forecast.Items[0].Risk)
	assert.Equal(t, "personalized", forecast.Items[0].Model)
	assert.True(t, forecast.Meta.Stored)
}

func TestMyRisk_UnknownProfile(t *testing.T) {
	router := newTestRouter(&fakeRunner{}, fakePinger{})

	rec := get(t, router, "/v1/me/risk", token(t, "ghost"))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRisk_Authorization(t *testing.T) {
	runner := &fakeRunner{}
	router := newTestRouter(runner, fakePinger{})

	assert.Equal(t, http.StatusUnauthorized, get(t, router, "/v1/risk?user_id=u1", "").Code)
	assert.Equal(t, http.StatusOK, get(t, router, "/v1/risk?user_id=u1", token(t, "u1")).Code)
	assert.Equal(t, http.StatusForbidden, get(t, router, "/v1/risk?user_id=u1&user_id=u2", token(t, "u1")).Code)

	rec := get(t, router, "/v1/risk?user_id=u1,u2&user_id=ghost&days=2", token(t, "clinician", auth.ScopeReadAll))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"u1", "u2", "ghost"}, runner.last.UserIDs)

	var forecast models.RiskForecast
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &forecast))
	assert.Len(t, forecast.Items, 4)
	assert.Equal(t, []string{"ghost"}, forecast.Meta.UnknownUsers)
}

func TestRisk_Validation(t *testing.T) {
	router := newTestRouter(&fakeRunner{}, fakePinger{})
	admin := token(t, "clinician", auth.ScopeReadAll)

	tooMany := "/v1/risk?user_id="
	for i := 0; i < 51; i++ {
		if i > 0 {
			tooMany += ","
		}
		tooMany += fmt.Sprintf("u%d", i)
	}

	tests := []struct {
		name  string
		path  string
		field string
	}{
		{"no users", "/v1/risk", "user_id"},
		{"days too large", "/v1/risk?user_id=u1&days=15", "days"},
		{"days zero", "/v1/risk?user_id=u1&days=0", "days"},
		{"days not a number", "/v1/risk?user_id=u1&days=week", "days"},
		{"bad start", "/v1/risk?user_id=u1&start=07-02-2026", "start"},
		{"bad refresh", "/v1/risk?user_id=u1&refresh=maybe", "refresh"},
		{"too many users", tooMany, "user_id"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := get(t, router, tt.path, admin)
			require.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))

			var p models.Problem
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &p))
			require.NotEmpty(t, p.Errors)
			assert.Equal(t, tt.field, p.Errors[0].Field)
		})
	}
}

func TestRisk_PipelineErrors(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{fmt.Errorf("%w: boom", pipeline.ErrStoreUnavailable), http.StatusServiceUnavailable},
		{fmt.Errorf("%w: negative days", pipeline.ErrInvalidRequest), http.StatusBadRequest},
		{fmt.Errorf("%w: shape mismatch", pipeline.ErrScoring), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			router := newTestRouter(&fakeRunner{err: tt.err}, fakePinger{})
			rec := get(t, router, "/v1/me/risk", token(t, "u1"))
			assert.Equal(t, tt.status, rec.Code)
		})
	}
}

func TestUnknownRoute(t *testing.T) {
	router := newTestRouter(&fakeRunner{}, fakePinger{})

	rec := get(t, router, "/v1/forecasts", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
}
