package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sethvargo/go-envconfig"

	msgerrors "github.com/wippyai/msgwire/errors"
)

func load(t *testing.T, env map[string]string, opts ...Option) (Config, error) {
	t.Helper()
	opts = append([]Option{WithEnvFile(""), WithLookuper(envconfig.MapLookuper(env))}, opts...)
	return Load(context.Background(), opts...)
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := load(t, nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	want := Config{
		Engine:        EngineNative,
		LogLevel:      "info",
		LogFormat:     "console",
		ListenAddr:    ":8080",
		BodyLimit:     "1M",
		InvokeTimeout: 5 * time.Second,
		PoolSize:      4,
	}
	if cfg != want {
		t.Errorf("got %+v\nwant %+v", cfg, want)
	}
}

func TestLoad_Environment(t *testing.T) {
	cfg, err := load(t, map[string]string{
		"MSGWIRE_ENGINE":             "wasm",
		"MSGWIRE_MODULE":             "/tmp/enc.wasm",
		"MSGWIRE_POOL_SIZE":          "8",
		"MSGWIRE_INVOKE_TIMEOUT":     "250ms",
		"MSGWIRE_RATE_LIMIT":         "12.5",
		"MSGWIRE_MEMORY_LIMIT_PAGES": "256",
		"ENGINE":                     "ignored without prefix",
	})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Engine != EngineWasm || cfg.ModulePath != "/tmp/enc.wasm" {
		t.Errorf("engine = %q, module = %q", cfg.Engine, cfg.ModulePath)
	}
	if cfg.PoolSize != 8 || cfg.InvokeTimeout != 250*time.Millisecond {
		t.Errorf("pool = %d, timeout = %v", cfg.PoolSize, cfg.InvokeTimeout)
	}
	if cfg.RateLimit != 12.5 || cfg.MemoryLimitPages != 256 {
		t.Errorf("rate = %v, pages = %d", cfg.RateLimit, cfg.MemoryLimitPages)
	}
}

func TestLoad_FileThenEnvironment(t *testing.T) {
	path := filepath.Join(t.TempDir(), "msgwire.yaml")
	doc := []byte("engine: wasm\nmodule: enc.wasm\npool_size: 2\ninvoke_timeout: 2s\nlog_format: json\n")
	if err := os.WriteFile(path, doc, 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := load(t, map[string]string{"MSGWIRE_POOL_SIZE": "6"}, WithFile(path))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Engine != EngineWasm || cfg.ModulePath != "enc.wasm" || cfg.LogFormat != "json" {
		t.Errorf("file values lost: %+v", cfg)
	}
	if cfg.InvokeTimeout != 2*time.Second {
		t.Errorf("timeout = %v, file value should beat the default", cfg.InvokeTimeout)
	}
	if cfg.PoolSize != 6 {
		t.Errorf("pool = %d, environment should beat the file", cfg.PoolSize)
	}
	if cfg.ListenAddr != ":8080" {
		t.Errorf("listen = %q, unset fields take defaults", cfg.ListenAddr)
	}
}

func TestLoad_EnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte("MSGWIRE_TEST_ENVFILE_LISTEN=:9999\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Unsetenv("MSGWIRE_TEST_ENVFILE_LISTEN") })

	if _, err := Load(context.Background(), WithEnvFile(path), WithLookuper(envconfig.MapLookuper(nil))); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := os.Getenv("MSGWIRE_TEST_ENVFILE_LISTEN"); got != ":9999" {
		t.Errorf("env file not loaded: %q", got)
	}
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		path string
	}{
		{"unknown engine", map[string]string{"MSGWIRE_ENGINE": "jit"}, "engine"},
		{"wasm without module", map[string]string{"MSGWIRE_ENGINE": "wasm"}, "module"},
		{"zero pool", map[string]string{"MSGWIRE_POOL_SIZE": "0"}, "pool_size"},
		{"negative rate", map[string]string{"MSGWIRE_RATE_LIMIT": "-1"}, "rate_limit"},
		{"bad log format", map[string]string{"MSGWIRE_LOG_FORMAT": "xml"}, "log_format"},
		{"bad duration", map[string]string{"MSGWIRE_INVOKE_TIMEOUT": "soon"}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := load(t, tt.env)
			var e *msgerrors.Error
			if !errors.As(err, &e) {
				t.Fatalf("err = %v, want *errors.Error", err)
			}
			if e.Phase != msgerrors.PhaseConfig {
				t.Errorf("Phase = %s", e.Phase)
			}
			if e.PathString() != tt.path {
				t.Errorf("Path = %q, want %q", e.PathString(), tt.path)
			}
		})
	}
}

func TestLoad_UnknownFileKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("engin: native\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := load(t, nil, WithFile(path)); err == nil {
		t.Error("misspelled key should be rejected")
	}
}
