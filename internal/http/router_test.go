package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	nethttp "net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/curriculum-orchestrator/internal/data/repos"
	"github.com/yungbote/curriculum-orchestrator/internal/data/repos/testutil"
	types "github.com/yungbote/curriculum-orchestrator/internal/domain"
	httpH "github.com/yungbote/curriculum-orchestrator/internal/http/handlers"
	httpMW "github.com/yungbote/curriculum-orchestrator/internal/http/middleware"
	"github.com/yungbote/curriculum-orchestrator/internal/observability"
	"github.com/yungbote/curriculum-orchestrator/internal/platform/dbctx"
	"github.com/yungbote/curriculum-orchestrator/internal/realtime"
	"github.com/yungbote/curriculum-orchestrator/internal/services"
)

type nopDispatcher struct{}

func (nopDispatcher) Dispatch(context.Context, *types.GenerationRun) error { return nil }
func (nopDispatcher) Cancel(context.Context, uuid.UUID, string) error      { return nil }
func (nopDispatcher) Name() string                                         { return "nop" }

type apiFixture struct {
	router *gin.Engine
	tenant *types.Tenant
	other  *types.Tenant
}

type failingRunRepo struct {
	repos.GenerationRunRepo
}

func (failingRunRepo) Create(dbctx.Context, *types.GenerationRun) (*types.GenerationRun, error) {
	return nil, errors.New("connection reset by peer")
}

func newAPI(t *testing.T) *apiFixture {
	t.Helper()
	return newAPIWithRuns(t, nil)
}

// newAPIWithRuns lets a test wrap the run repo the service writes through.
func newAPIWithRuns(t *testing.T, wrap func(repos.GenerationRunRepo) repos.GenerationRunRepo) *apiFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)
	db := testutil.DB(t)
	log := testutil.Logger(t)
	tenant := testutil.SeedTenant(t, db, "default")
	other := testutil.SeedTenant(t, db, "other")

	runs := repos.NewGenerationRunRepo(db, log)
	if wrap != nil {
		runs = wrap(runs)
	}
	resolver := services.NewTenantResolver(log, repos.NewTenantRepo(db, log), repos.NewUserTenantRepo(db, log), services.TenancyConfig{})
	svc := services.NewGenerationService(log, runs, resolver, nopDispatcher{}, nil)

	router := NewRouter(RouterConfig{
		Log:               log,
		Metrics:           observability.NewMetrics(),
		AuthMiddleware:    httpMW.NewAuthMiddleware(log, "secret"),
		TriggerLimiter:    httpMW.NewRateLimiter(600, 100),
		GenerationHandler: httpH.NewGenerationHandler(svc),
		RealtimeHandler:   httpH.NewRealtimeHandler(log, realtime.NewSSEHub(log)),
		HealthHandler:     httpH.NewHealthHandler(nil),
	})
	return &apiFixture{router: router, tenant: tenant, other: other}
}

func (f *apiFixture) do(t *testing.T, method, path string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	out := map[string]any{}
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
			t.Fatalf("decode %s: %v", rec.Body.String(), err)
		}
	}
	return rec, out
}

func errorCode(body map[string]any) string {
	e, _ := body["error"].(map[string]any)
	code, _ := e["code"].(string)
	return code
}

func TestTriggerReturnsRunID(t *testing.T) {
	f := newAPI(t)
	rec, body := f.do(t, nethttp.MethodPost, "/api/generation-runs", map[string]any{"course_count": 1, "modules_per_course": 2})
	if rec.Code != nethttp.StatusAccepted {
		t.Fatalf("status: expected 202 got %d (%s)", rec.Code, rec.Body.String())
	}
	runID, _ := body["run_id"].(string)
	if _, err := uuid.Parse(runID); err != nil {
		t.Fatalf("run_id: expected uuid got %q", runID)
	}

	rec, body = f.do(t, nethttp.MethodGet, "/api/tenants/"+f.tenant.ID.String()+"/generation-runs/latest", nil)
	if rec.Code != nethttp.StatusOK {
		t.Fatalf("latest: expected 200 got %d", rec.Code)
	}
	run, _ := body["run"].(map[string]any)
	if run == nil || run["id"] != runID || run["status"] != types.RunStatusQueued {
		t.Fatalf("latest: got %v", body)
	}
}

func TestTriggerErrors(t *testing.T) {
	f := newAPI(t)
	cases := []struct {
		name   string
		body   any
		status int
		code   string
	}{
		{"zero courses", map[string]any{"course_count": 0, "modules_per_course": 1}, nethttp.StatusBadRequest, "invalid_request"},
		{"too many modules", map[string]any{"course_count": 1, "modules_per_course": 99}, nethttp.StatusBadRequest, "invalid_request"},
		{"wrong type", map[string]any{"course_count": "three", "modules_per_course": 1}, nethttp.StatusBadRequest, "invalid_request"},
		{"bad tenant", map[string]any{"tenant_id": "x", "course_count": 1, "modules_per_course": 1}, nethttp.StatusUnprocessableEntity, "tenant_unresolved"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec, body := f.do(t, nethttp.MethodPost, "/api/generation-runs", tc.body)
			if rec.Code != tc.status || errorCode(body) != tc.code {
				t.Fatalf("expected %d/%s got %d/%s", tc.status, tc.code, rec.Code, errorCode(body))
			}
		})
	}
}

func TestTriggerRunInsertFailureIs500(t *testing.T) {
	f := newAPIWithRuns(t, func(r repos.GenerationRunRepo) repos.GenerationRunRepo {
		return failingRunRepo{GenerationRunRepo: r}
	})
	rec, body := f.do(t, nethttp.MethodPost, "/api/generation-runs", map[string]any{"course_count": 1, "modules_per_course": 1})
	if rec.Code != nethttp.StatusInternalServerError || errorCode(body) != "run_creation_failed" {
		t.Fatalf("expected 500/run_creation_failed got %d/%s", rec.Code, errorCode(body))
	}
}

func TestLatestIsNullForTenantWithoutRuns(t *testing.T) {
	f := newAPI(t)
	if rec, _ := f.do(t, nethttp.MethodPost, "/api/generation-runs", map[string]any{"course_count": 1, "modules_per_course": 1}); rec.Code != nethttp.StatusAccepted {
		t.Fatalf("trigger: %d", rec.Code)
	}
	rec, body := f.do(t, nethttp.MethodGet, "/api/tenants/"+f.other.ID.String()+"/generation-runs/latest", nil)
	if rec.Code != nethttp.StatusOK {
		t.Fatalf("status: expected 200 got %d", rec.Code)
	}
	if v, ok := body["run"]; !ok || v != nil {
		t.Fatalf("expected run:null got %v", body)
	}

	rec, body = f.do(t, nethttp.MethodGet, "/api/tenants/not-a-uuid/generation-runs/latest", nil)
	if rec.Code != nethttp.StatusBadRequest || errorCode(body) != "invalid_tenant_id" {
		t.Fatalf("invalid tenant: got %d/%s", rec.Code, errorCode(body))
	}
}

func TestGetAndCancelAreTenantScoped(t *testing.T) {
	f := newAPI(t)
	_, body := f.do(t, nethttp.MethodPost, "/api/generation-runs", map[string]any{"course_count": 1, "modules_per_course": 1})
	runID := body["run_id"].(string)

	rec, body := f.do(t, nethttp.MethodGet, "/api/tenants/"+f.other.ID.String()+"/generation-runs/"+runID, nil)
	if rec.Code != nethttp.StatusNotFound || errorCode(body) != "run_not_found" {
		t.Fatalf("cross-tenant get: got %d/%s", rec.Code, errorCode(body))
	}

	rec, body = f.do(t, nethttp.MethodPost, "/api/tenants/"+f.tenant.ID.String()+"/generation-runs/"+runID+"/cancel", nil)
	if rec.Code != nethttp.StatusOK {
		t.Fatalf("cancel: expected 200 got %d (%s)", rec.Code, rec.Body.String())
	}
	run, _ := body["run"].(map[string]any)
	if run["status"] != types.RunStatusCanceled || run["progress"] != float64(types.ProgressErrored) {
		t.Fatalf("cancel: got %v", run)
	}

	rec, body = f.do(t, nethttp.MethodGet, "/api/tenants/"+f.tenant.ID.String()+"/generation-runs/"+runID, nil)
	if rec.Code != nethttp.StatusOK || body["run"].(map[string]any)["status"] != types.RunStatusCanceled {
		t.Fatalf("get after cancel: got %d %v", rec.Code, body)
	}
}

func TestHealthAndMetrics(t *testing.T) {
	f := newAPI(t)
	rec, _ := f.do(t, nethttp.MethodGet, "/healthcheck", nil)
	if rec.Code != nethttp.StatusOK || rec.Body.String() != "ok" {
		t.Fatalf("healthcheck: got %d %q", rec.Code, rec.Body.String())
	}
	f.do(t, nethttp.MethodGet, "/api/tenants/"+f.tenant.ID.String()+"/generation-runs/latest", nil)
	rec, _ = f.do(t, nethttp.MethodGet, "/metrics", nil)
	if rec.Code != nethttp.StatusOK {
		t.Fatalf("metrics: got %d", rec.Code)
	}
}
