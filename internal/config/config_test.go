package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "server:\n  port: 9090\n"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("Server.Port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Database.Driver != "sqlite" || cfg.Index.Provider != IndexProviderML {
		t.Errorf("driver/provider = %s/%s", cfg.Database.Driver, cfg.Index.Provider)
	}
	if cfg.Integrity.PageSize != 1000 || cfg.Integrity.MaxRowsPerTable != 200000 || cfg.Integrity.MinDescriptors != 3 {
		t.Errorf("Integrity = %+v", cfg.Integrity)
	}
	if cfg.ML.Timeout != 30*time.Second {
		t.Errorf("ML.Timeout = %v", cfg.ML.Timeout)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{name: "driver", body: "database:\n  driver: oracle\n", want: "unknown driver"},
		{name: "provider", body: "index:\n  provider: faiss\n", want: "unknown provider"},
		{name: "ml url", body: "ml:\n  base_url: localhost:5001\n", want: "must start with http"},
		{name: "ratio", body: "integrity:\n  outlier_threshold: 1.5\n", want: "outlier_threshold"},
		{name: "page size", body: "integrity:\n  page_size: -1\n", want: "page_size"},
		{name: "retention", body: "storage:\n  retain_reports: -1\n", want: "retain_reports"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Load() error = %v, want %q", err, tt.want)
			}
		})
	}
}

func TestDSN(t *testing.T) {
	pg := DatabaseConfig{Driver: "postgres", Host: "db", Port: 5432, User: "u", Password: "p", DBName: "g", SSLMode: "disable"}
	if got := pg.DSN(); got != "host=db port=5432 user=u password=p dbname=g sslmode=disable" {
		t.Errorf("postgres DSN = %q", got)
	}
	lite := DatabaseConfig{Driver: "sqlite", Path: "./data/gallery.db"}
	if lite.DSN() != "./data/gallery.db" {
		t.Errorf("sqlite DSN = %q", lite.DSN())
	}
}

func TestMLConfigResolvesKeyFromEnv(t *testing.T) {
	t.Setenv("FACECHECK_TEST_ML_KEY", "from-env")
	cfg := MLConfig{BaseURL: "http://ml:5001/", APIKeyEnv: "FACECHECK_TEST_ML_KEY"}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if cfg.APIKey != "from-env" {
		t.Errorf("APIKey = %q", cfg.APIKey)
	}
	if got := cfg.Endpoint("/v1/index/rebuild"); got != "http://ml:5001/v1/index/rebuild" {
		t.Errorf("Endpoint() = %q", got)
	}
}
