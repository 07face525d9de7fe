package api

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/timmy/facecheck/internal/config"
	"github.com/timmy/facecheck/internal/domain"
	"github.com/timmy/facecheck/internal/integrity"
	"github.com/timmy/facecheck/internal/logger"
	"github.com/timmy/facecheck/internal/repository"
	"github.com/timmy/facecheck/internal/service"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func newTestRouter(t *testing.T) (*gin.Engine, *gorm.DB) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatal(err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	if err := repository.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	log := logger.New(&logger.Config{Level: "error", Output: io.Discard})
	settings := service.NewSettingsProvider(repository.NewSettingRepository(db), integrity.DefaultThresholds(), log)
	engine := integrity.NewEngine(repository.NewStore(db), settings, nil, nil)
	svc := service.NewIntegrityService(engine, repository.NewScanRunRepository(db), nil, settings, log)

	r := SetupRouter(RouterDeps{IntegrityService: svc, Logger: log, Ping: sqlDB.PingContext}, config.ServerConfig{
		Mode: "test",
		CORS: config.CORSConfig{AllowedOrigins: []string{"https://console.example.com"}},
	})
	return r, db
}

func do(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRouterStatusMapping(t *testing.T) {
	r, db := newTestRouter(t)
	for _, p := range []*domain.Person{
		{ID: 1, DisplayName: "Ada", Email: "ada@example.com"},
		{ID: 2, DisplayName: "ada", Email: "ADA@example.com "},
	} {
		if err := db.Create(p).Error; err != nil {
			t.Fatal(err)
		}
	}

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		want   int
	}{
		{name: "health", method: http.MethodGet, path: "/health", want: http.StatusOK},
		{name: "ready", method: http.MethodGet, path: "/ready", want: http.StatusOK},
		{name: "unknown issue type", method: http.MethodPost, path: "/api/v1/integrity/fixes/bogus", want: http.StatusBadRequest},
		{name: "operator issue", method: http.MethodPost, path: "/api/v1/integrity/fixes/duplicate-person-identity", want: http.StatusBadRequest},
		{name: "auto fix", method: http.MethodPost, path: "/api/v1/integrity/fixes/duplicate-observations", want: http.StatusOK},
		{name: "merge into itself", method: http.MethodPost, path: "/api/v1/persons/merge", body: `{"keep_id":1,"discard_ids":[1]}`, want: http.StatusConflict},
		{name: "merge missing person", method: http.MethodPost, path: "/api/v1/persons/merge", body: `{"keep_id":1,"discard_ids":[9]}`, want: http.StatusConflict},
		{name: "merge without body", method: http.MethodPost, path: "/api/v1/persons/merge", want: http.StatusBadRequest},
		{name: "delete missing person", method: http.MethodDelete, path: "/api/v1/persons/42", want: http.StatusNotFound},
		{name: "delete bad id", method: http.MethodDelete, path: "/api/v1/persons/abc", want: http.StatusBadRequest},
		{name: "audit missing person", method: http.MethodGet, path: "/api/v1/persons/42/embeddings/audit", want: http.StatusNotFound},
		{name: "audit bad threshold", method: http.MethodGet, path: "/api/v1/persons/1/embeddings/audit?threshold=2", want: http.StatusBadRequest},
		{name: "audit", method: http.MethodGet, path: "/api/v1/persons/1/embeddings/audit", want: http.StatusOK},
		{name: "missing run", method: http.MethodGet, path: "/api/v1/integrity/runs/nope", want: http.StatusNotFound},
		{name: "bad setting", method: http.MethodPut, path: "/api/v1/settings/page_size", body: `{"value":"-1"}`, want: http.StatusBadRequest},
		{name: "unknown setting", method: http.MethodPut, path: "/api/v1/settings/colour", body: `{"value":"1"}`, want: http.StatusBadRequest},
		{name: "setting", method: http.MethodPut, path: "/api/v1/settings/outlier_threshold", body: `{"value":"0.4"}`, want: http.StatusOK},
		{name: "mass audit", method: http.MethodPost, path: "/api/v1/embeddings/mass-audit", want: http.StatusOK},
		{name: "metrics", method: http.MethodGet, path: "/metrics", want: http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(r, tt.method, tt.path, tt.body)
			if w.Code != tt.want {
				t.Errorf("%s %s = %d, want %d: %s", tt.method, tt.path, w.Code, tt.want, w.Body.String())
			}
		})
	}
}

func TestRouterScanAndHistory(t *testing.T) {
	r, _ := newTestRouter(t)

	w := do(r, http.MethodPost, "/api/v1/integrity/scans", "")
	if w.Code != http.StatusOK {
		t.Fatalf("scan = %d: %s", w.Code, w.Body.String())
	}
	var report integrity.Report
	if err := json.Unmarshal(w.Body.Bytes(), &report); err != nil {
		t.Fatalf("decode report: %v", err)
	}
	if report.ChecksAttempted != 13 || !report.Complete() {
		t.Errorf("report checks = %d/%d", report.ChecksPerformed, report.ChecksAttempted)
	}

	w = do(r, http.MethodGet, "/api/v1/integrity/runs/"+report.ScanID, "")
	if w.Code != http.StatusOK {
		t.Fatalf("get run = %d: %s", w.Code, w.Body.String())
	}
	w = do(r, http.MethodGet, "/api/v1/integrity/runs/"+report.ScanID+"/report", "")
	if w.Code != http.StatusNotFound {
		t.Errorf("report without archive = %d, want 404", w.Code)
	}

	w = do(r, http.MethodGet, "/api/v1/integrity/scans/status", "")
	if !bytes.Contains(w.Body.Bytes(), []byte(`"last_run_status":"complete"`)) {
		t.Errorf("status = %s", w.Body.String())
	}
}

func TestRouterDuplicatesAndMerge(t *testing.T) {
	r, db := newTestRouter(t)
	for _, p := range []*domain.Person{
		{ID: 1, DisplayName: "Ada", Email: "ada@example.com"},
		{ID: 2, Email: "ADA@example.com", AvatarRef: "avatars/2.png"},
	} {
		if err := db.Create(p).Error; err != nil {
			t.Fatal(err)
		}
	}

	w := do(r, http.MethodGet, "/api/v1/persons/duplicates", "")
	var dup struct {
		Groups []integrity.DuplicateGroup `json:"groups"`
		Total  int                        `json:"total"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &dup); err != nil {
		t.Fatal(err)
	}
	if dup.Total != 1 || dup.Groups[0].MatchField != "email" {
		t.Fatalf("duplicates = %s", w.Body.String())
	}

	w = do(r, http.MethodPost, "/api/v1/persons/merge", `{"keep_id":1,"discard_ids":[2]}`)
	if w.Code != http.StatusOK {
		t.Fatalf("merge = %d: %s", w.Code, w.Body.String())
	}
	var merged integrity.MergeResult
	if err := json.Unmarshal(w.Body.Bytes(), &merged); err != nil {
		t.Fatal(err)
	}
	if merged.DeletedCount != 1 || len(merged.MergedFields) != 1 || merged.MergedFields[0] != "avatar" {
		t.Errorf("merge = %+v", merged)
	}
}

func TestCORSPreflight(t *testing.T) {
	r, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/settings", nil)
	req.Header.Set("Origin", "https://console.example.com")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusNoContent {
		t.Errorf("preflight = %d, want 204", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "https://console.example.com" {
		t.Errorf("Allow-Origin = %q", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("Allow-Origin for foreign origin = %q", got)
	}
	if w.Header().Get("X-Request-ID") == "" {
		t.Error("X-Request-ID header missing")
	}
}
