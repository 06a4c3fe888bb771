package config

import (
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// resetFlags gives each test a fresh flag set and viper instance
func resetFlags() {
	pflag.CommandLine = pflag.NewFlagSet(os.Args[0], pflag.ExitOnError)
	viper.Reset()
}

func setArgs(args []string) {
	os.Args = args
}

var testEnvVars = []string{
	"CONTRACT_GUARDIAN_MODE",
	"CONTRACT_GUARDIAN_HOST",
	"CONTRACT_GUARDIAN_PORT",
	"CONTRACT_GUARDIAN_DIR",
	"CONTRACT_GUARDIAN_RESTRICT_DIR",
	"CONTRACT_GUARDIAN_LOG_LEVEL",
	"CONTRACT_GUARDIAN_MAX_FILE_SIZE",
	"CONTRACT_GUARDIAN_OCR_MAX_PAGES",
	"CONTRACT_GUARDIAN_SCAN_TIMEOUT",
	"CONTRACT_GUARDIAN_OPENAI_KEY",
	"OPENAI_API_KEY",
}

// isolate saves os.Args and clears the environment for one test
func isolate(t *testing.T) {
	t.Helper()
	originalArgs := os.Args
	for _, name := range testEnvVars {
		t.Setenv(name, "")
		os.Unsetenv(name)
	}
	t.Cleanup(func() {
		os.Args = originalArgs
		resetFlags()
	})
	resetFlags()
}

func TestLoadFromFlags_DefaultConfig(t *testing.T) {
	isolate(t)
	setArgs([]string{"contract-guardian"})

	cfg, err := LoadFromFlags()
	if err != nil {
		t.Fatalf("LoadFromFlags() unexpected error: %v", err)
	}

	if cfg.Mode != "stdio" {
		t.Errorf("LoadFromFlags() Mode = %v, want %v", cfg.Mode, "stdio")
	}
	if cfg.Port != 8080 {
		t.Errorf("LoadFromFlags() Port = %v, want %v", cfg.Port, 8080)
	}
	if cfg.MaxFileSize != 10*1024*1024 {
		t.Errorf("LoadFromFlags() MaxFileSize = %v, want %v", cfg.MaxFileSize, 10*1024*1024)
	}
	if cfg.ScanTimeout != 30*time.Second {
		t.Errorf("LoadFromFlags() ScanTimeout = %v, want 30s", cfg.ScanTimeout)
	}
	if cfg.OpenAIKey != "" {
		t.Errorf("LoadFromFlags() OpenAIKey should be empty")
	}
	if cfg.DocumentDirectory == "" {
		t.Error("LoadFromFlags() DocumentDirectory should not be empty")
	}
}

func TestLoadFromFlags_ValidFlags(t *testing.T) {
	tests := []struct {
		name  string
		args  []string
		check func(t *testing.T, cfg *Config)
	}{
		{
			name: "server mode with custom host and port",
			args: []string{"--mode=server", "--host=0.0.0.0", "--port=9090"},
			check: func(t *testing.T, cfg *Config) {
				if cfg.Mode != "server" || cfg.Host != "0.0.0.0" || cfg.Port != 9090 {
					t.Errorf("got %s %s:%d", cfg.Mode, cfg.Host, cfg.Port)
				}
			},
		},
		{
			name: "restricted document directory",
			args: []string{"--restrict-dir"},
			check: func(t *testing.T, cfg *Config) {
				if !cfg.RestrictToDir {
					t.Errorf("RestrictToDir = false, want true")
				}
			},
		},
		{
			name: "debug logging as json",
			args: []string{"--log-level=debug", "--log-format=json"},
			check: func(t *testing.T, cfg *Config) {
				if cfg.LogLevel != "debug" || cfg.LogFormat != "json" {
					t.Errorf("got %s/%s", cfg.LogLevel, cfg.LogFormat)
				}
			},
		},
		{
			name: "OCR and budgets",
			args: []string{"--ocr-max-pages=4", "--ocr-dpi=300", "--max-analysis-chars=1000", "--extract-timeout=90s"},
			check: func(t *testing.T, cfg *Config) {
				if cfg.OCRMaxPages != 4 || cfg.OCRDPI != 300 {
					t.Errorf("got OCR %d pages at %d DPI", cfg.OCRMaxPages, cfg.OCRDPI)
				}
				if cfg.MaxAnalysisChars != 1000 || cfg.ExtractTimeout != 90*time.Second {
					t.Errorf("got %d chars, %s", cfg.MaxAnalysisChars, cfg.ExtractTimeout)
				}
			},
		},
		{
			name: "advisory model",
			args: []string{"--openai-key=sk-flag", "--openai-model=gpt-4o-mini", "--openai-base-url=http://localhost:11434/v1"},
			check: func(t *testing.T, cfg *Config) {
				if cfg.OpenAIKey != "sk-flag" || cfg.OpenAIModel != "gpt-4o-mini" || cfg.OpenAIBaseURL != "http://localhost:11434/v1" {
					t.Errorf("got %s %s %s", cfg.OpenAIKey, cfg.OpenAIModel, cfg.OpenAIBaseURL)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			isolate(t)
			setArgs(append([]string{"contract-guardian", "--dir=" + t.TempDir()}, tt.args...))

			cfg, err := LoadFromFlags()
			if err != nil {
				t.Fatalf("LoadFromFlags() unexpected error: %v", err)
			}
			tt.check(t, cfg)
		})
	}
}

func TestLoadFromFlags_EnvironmentVariables(t *testing.T) {
	isolate(t)
	tempDir := t.TempDir()

	t.Setenv("CONTRACT_GUARDIAN_MODE", "server")
	t.Setenv("CONTRACT_GUARDIAN_HOST", "192.168.1.1")
	t.Setenv("CONTRACT_GUARDIAN_PORT", "3000")
	t.Setenv("CONTRACT_GUARDIAN_DIR", tempDir)
	t.Setenv("CONTRACT_GUARDIAN_LOG_LEVEL", "warn")
	t.Setenv("CONTRACT_GUARDIAN_MAX_FILE_SIZE", "2000000")
	t.Setenv("CONTRACT_GUARDIAN_OCR_MAX_PAGES", "5")
	t.Setenv("CONTRACT_GUARDIAN_SCAN_TIMEOUT", "10s")
	setArgs([]string{"contract-guardian"})

	cfg, err := LoadFromFlags()
	if err != nil {
		t.Fatalf("LoadFromFlags() unexpected error: %v", err)
	}

	if cfg.Mode != "server" || cfg.Host != "192.168.1.1" || cfg.Port != 3000 {
		t.Errorf("LoadFromFlags() server = %s %s:%d", cfg.Mode, cfg.Host, cfg.Port)
	}
	if cfg.LogLevel != "warn" {
		t.Errorf("LoadFromFlags() LogLevel = %v, want %v", cfg.LogLevel, "warn")
	}
	if cfg.MaxFileSize != 2000000 {
		t.Errorf("LoadFromFlags() MaxFileSize = %v, want %v", cfg.MaxFileSize, 2000000)
	}
	if cfg.OCRMaxPages != 5 {
		t.Errorf("LoadFromFlags() OCRMaxPages = %v, want 5", cfg.OCRMaxPages)
	}
	if cfg.ScanTimeout != 10*time.Second {
		t.Errorf("LoadFromFlags() ScanTimeout = %v, want 10s", cfg.ScanTimeout)
	}
}

func TestLoadFromFlags_OpenAIKeyFallback(t *testing.T) {
	isolate(t)
	t.Setenv("OPENAI_API_KEY", "sk-env")
	setArgs([]string{"contract-guardian"})

	cfg, err := LoadFromFlags()
	if err != nil {
		t.Fatalf("LoadFromFlags() unexpected error: %v", err)
	}
	if cfg.OpenAIKey != "sk-env" {
		t.Errorf("LoadFromFlags() OpenAIKey = %q, want fallback to OPENAI_API_KEY", cfg.OpenAIKey)
	}
}

func TestLoadFromFlags_FlagOverridesEnvironment(t *testing.T) {
	isolate(t)
	t.Setenv("CONTRACT_GUARDIAN_MODE", "server")
	t.Setenv("CONTRACT_GUARDIAN_HOST", "192.168.1.1")
	t.Setenv("CONTRACT_GUARDIAN_PORT", "3000")
	setArgs([]string{"contract-guardian", "--mode=stdio", "--host=localhost", "--port=8888"})

	cfg, err := LoadFromFlags()
	if err != nil {
		t.Fatalf("LoadFromFlags() unexpected error: %v", err)
	}

	if cfg.Mode != "stdio" {
		t.Errorf("LoadFromFlags() Mode = %v, want %v (should override env)", cfg.Mode, "stdio")
	}
	if cfg.Host != "localhost" {
		t.Errorf("LoadFromFlags() Host = %v, want %v (should override env)", cfg.Host, "localhost")
	}
	if cfg.Port != 8888 {
		t.Errorf("LoadFromFlags() Port = %v, want %v (should override env)", cfg.Port, 8888)
	}
}

func TestLoadFromFlags_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{"invalid mode", []string{"--mode=invalid"}, "mode must be either 'stdio' or 'server'"},
		{"invalid port", []string{"--mode=server", "--port=99999"}, "port must be between 1 and 65535"},
		{"invalid log level", []string{"--log-level=invalid"}, "invalid log level"},
		{"missing rules file", []string{"--rules-file=/nonexistent/rules.yaml"}, "cannot access rules file"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			isolate(t)
			setArgs(append([]string{"contract-guardian", "--dir=" + t.TempDir()}, tt.args...))

			_, err := LoadFromFlags()
			if err == nil {
				t.Fatalf("LoadFromFlags() expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("LoadFromFlags() error = %v, want %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoadFromFlags_VersionFlag(t *testing.T) {
	isolate(t)
	setArgs([]string{"contract-guardian", "--version"})

	_, err := LoadFromFlags()
	if !errors.Is(err, ErrVersionRequested) {
		t.Errorf("LoadFromFlags() error = %v, want ErrVersionRequested", err)
	}
}
