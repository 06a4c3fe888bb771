package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/a3tai/contract-guardian/internal/advisory/openai"
	"github.com/a3tai/contract-guardian/internal/analysis"
	"github.com/a3tai/contract-guardian/internal/extract"
	"github.com/a3tai/contract-guardian/internal/logger"
)

const (
	// Mode constants
	ModeStdio  = "stdio"
	ModeServer = "server"

	// Default values
	DefaultPort        = 8080
	DefaultHost        = "127.0.0.1"
	DefaultLogLevel    = "info"
	DefaultLogFormat   = "text"
	DefaultMaxFileSize = extract.DefaultMaxBytes
	DefaultModel       = "gpt-4"
	DefaultBaseURL     = "https://api.openai.com/v1"

	envPrefix = "CONTRACT_GUARDIAN"
)

// ErrVersionRequested is returned by LoadFromFlags when --version is present
var ErrVersionRequested = errors.New("version requested")

// Config holds all configuration for the contract analysis server
type Config struct {
	// Server configuration
	Mode string // "server" or "stdio"
	Host string
	Port int

	// Relative document paths are resolved against this directory.
	// With RestrictToDir set, paths outside it are refused.
	DocumentDirectory string
	RestrictToDir     bool

	// Application configuration
	Version     string
	ServerName  string
	LogLevel    string
	LogFormat   string // "text" or "json"
	MaxFileSize int64  // Maximum upload size in bytes
	RulesFile   string // optional YAML rules appended to the built-in catalog

	// External tools
	Pdftotext     string
	Pdftoppm      string
	Tesseract     string
	TesseractLang string
	TessdataDir   string
	OCRDPI        int
	OCRMaxPages   int

	// Analysis budgets
	MaxAnalysisChars int
	MaxAdvisoryChars int
	ExtractTimeout   time.Duration
	ScanTimeout      time.Duration
	AdvisoryTimeout  time.Duration

	// Advisory model
	OpenAIKey     string
	OpenAIBaseURL string
	OpenAIModel   string
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	currentDir, err := os.Getwd()
	if err != nil {
		currentDir = "."
	}

	return &Config{
		Mode:              ModeStdio,
		Host:              DefaultHost,
		Port:              DefaultPort,
		DocumentDirectory: currentDir,
		Version:           "1.0.0",
		ServerName:        "contract-guardian",
		LogLevel:          DefaultLogLevel,
		LogFormat:         DefaultLogFormat,
		MaxFileSize:       DefaultMaxFileSize,
		Pdftotext:         "pdftotext",
		Pdftoppm:          "pdftoppm",
		Tesseract:         "tesseract",
		TesseractLang:     "eng",
		OCRDPI:            extract.DefaultDPI,
		OCRMaxPages:       extract.DefaultMaxPages,
		MaxAnalysisChars:  analysis.DefaultMaxAnalysisChars,
		MaxAdvisoryChars:  analysis.DefaultMaxAdvisoryChars,
		ExtractTimeout:    analysis.DefaultExtractTimeout,
		ScanTimeout:       analysis.DefaultScanTimeout,
		AdvisoryTimeout:   analysis.DefaultAdvisoryTimeout,
		OpenAIBaseURL:     DefaultBaseURL,
		OpenAIModel:       DefaultModel,
	}
}

// LoadFromFlags parses command line flags and environment variables
func LoadFromFlags() (*Config, error) {
	cfg := DefaultConfig()

	setupViperEnvironment(cfg)
	defineCommandLineFlags(cfg)
	bindFlagsToViper()
	setupUsageMessage()

	if err := checkVersionFlag(); err != nil {
		return nil, err
	}

	pflag.Parse()

	populateConfigFromViper(cfg)

	if cfg.DocumentDirectory != "" {
		if expandedPath, err := filepath.Abs(cfg.DocumentDirectory); err == nil {
			cfg.DocumentDirectory = expandedPath
		}
	}
	if cfg.OpenAIKey == "" {
		cfg.OpenAIKey = os.Getenv("OPENAI_API_KEY")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// setupViperEnvironment configures viper with environment variables and defaults
func setupViperEnvironment(cfg *Config) {
	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	viper.SetDefault("mode", cfg.Mode)
	viper.SetDefault("host", cfg.Host)
	viper.SetDefault("port", cfg.Port)
	viper.SetDefault("dir", cfg.DocumentDirectory)
	viper.SetDefault("restrict-dir", cfg.RestrictToDir)
	viper.SetDefault("log-level", cfg.LogLevel)
	viper.SetDefault("log-format", cfg.LogFormat)
	viper.SetDefault("max-file-size", cfg.MaxFileSize)
	viper.SetDefault("rules-file", cfg.RulesFile)
	viper.SetDefault("pdftotext", cfg.Pdftotext)
	viper.SetDefault("pdftoppm", cfg.Pdftoppm)
	viper.SetDefault("tesseract", cfg.Tesseract)
	viper.SetDefault("tesseract-lang", cfg.TesseractLang)
	viper.SetDefault("tessdata-dir", cfg.TessdataDir)
	viper.SetDefault("ocr-dpi", cfg.OCRDPI)
	viper.SetDefault("ocr-max-pages", cfg.OCRMaxPages)
	viper.SetDefault("max-analysis-chars", cfg.MaxAnalysisChars)
	viper.SetDefault("max-advisory-chars", cfg.MaxAdvisoryChars)
	viper.SetDefault("extract-timeout", cfg.ExtractTimeout)
	viper.SetDefault("scan-timeout", cfg.ScanTimeout)
	viper.SetDefault("advisory-timeout", cfg.AdvisoryTimeout)
	viper.SetDefault("openai-key", cfg.OpenAIKey)
	viper.SetDefault("openai-base-url", cfg.OpenAIBaseURL)
	viper.SetDefault("openai-model", cfg.OpenAIModel)
}

// defineCommandLineFlags sets up all command line flags
func defineCommandLineFlags(cfg *Config) {
	pflag.String("mode", cfg.Mode, "Server mode: 'stdio' for MCP standard I/O, 'server' for streamable HTTP")
	pflag.String("host", cfg.Host, "Server host address (server mode only)")
	pflag.Int("port", cfg.Port, "Server port (server mode only)")
	pflag.String("dir", cfg.DocumentDirectory, "Directory relative document paths are resolved against")
	pflag.Bool("restrict-dir", cfg.RestrictToDir, "Refuse document paths outside --dir")
	pflag.String("log-level", cfg.LogLevel, "Log level (debug, info, warn, error)")
	pflag.String("log-format", cfg.LogFormat, "Log format (text, json)")
	pflag.Int64("max-file-size", cfg.MaxFileSize, "Maximum document size in bytes")
	pflag.String("rules-file", cfg.RulesFile, "YAML file of extra rules appended to the built-in catalog")

	pflag.String("pdftotext", cfg.Pdftotext, "pdftotext binary")
	pflag.String("pdftoppm", cfg.Pdftoppm, "pdftoppm binary")
	pflag.String("tesseract", cfg.Tesseract, "tesseract binary")
	pflag.String("tesseract-lang", cfg.TesseractLang, "tesseract language")
	pflag.String("tessdata-dir", cfg.TessdataDir, "tesseract tessdata directory")
	pflag.Int("ocr-dpi", cfg.OCRDPI, "Rasterization DPI for OCR")
	pflag.Int("ocr-max-pages", cfg.OCRMaxPages, "Maximum pages rasterized for OCR")

	pflag.Int("max-analysis-chars", cfg.MaxAnalysisChars, "Characters scanned for risky clauses")
	pflag.Int("max-advisory-chars", cfg.MaxAdvisoryChars, "Characters sent to the advisory model")
	pflag.Duration("extract-timeout", cfg.ExtractTimeout, "Text extraction budget")
	pflag.Duration("scan-timeout", cfg.ScanTimeout, "Pattern matching budget")
	pflag.Duration("advisory-timeout", cfg.AdvisoryTimeout, "Advisory model budget")

	pflag.String("openai-key", cfg.OpenAIKey, "API key for the advisory model (falls back to OPENAI_API_KEY)")
	pflag.String("openai-base-url", cfg.OpenAIBaseURL, "Base URL of an OpenAI-compatible API")
	pflag.String("openai-model", cfg.OpenAIModel, "Advisory model name")
}

var flagKeys = []string{
	"mode", "host", "port", "dir", "restrict-dir", "log-level", "log-format", "max-file-size", "rules-file",
	"pdftotext", "pdftoppm", "tesseract", "tesseract-lang", "tessdata-dir", "ocr-dpi", "ocr-max-pages",
	"max-analysis-chars", "max-advisory-chars", "extract-timeout", "scan-timeout", "advisory-timeout",
	"openai-key", "openai-base-url", "openai-model",
}

// bindFlagsToViper binds command line flags to viper configuration
func bindFlagsToViper() {
	for _, key := range flagKeys {
		_ = viper.BindPFlag(key, pflag.Lookup(key))
	}
}

// setupUsageMessage configures the custom usage message
func setupUsageMessage() {
	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage of %s:\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\nContract Guardian - flags risky clauses in contracts over the Model Context Protocol\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		pflag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s                                          # stdio mode (default)\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --dir=/path/to/contracts                 # resolve relative paths here\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --dir=/path/to/contracts --restrict-dir  # only serve documents under --dir\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --mode=server --host=0.0.0.0 --port=8081 # streamable HTTP on all interfaces\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --rules-file=extra-rules.yaml            # extend the rule catalog\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\nEnvironment Variables:\n")
		fmt.Fprintf(os.Stderr, "  Every flag can be set as %s_<FLAG>, dashes replaced by underscores,\n", envPrefix)
		fmt.Fprintf(os.Stderr, "  e.g. %s_LOG_LEVEL=debug or %s_OCR_MAX_PAGES=5\n", envPrefix, envPrefix)
	}
}

// checkVersionFlag checks if version flag was requested
func checkVersionFlag() error {
	for _, arg := range os.Args[1:] {
		if arg == "-version" || arg == "--version" || arg == "-v" {
			return ErrVersionRequested
		}
	}
	return nil
}

// populateConfigFromViper fills the config struct with values from viper
func populateConfigFromViper(cfg *Config) {
	cfg.Mode = viper.GetString("mode")
	cfg.Host = viper.GetString("host")
	cfg.Port = viper.GetInt("port")
	cfg.DocumentDirectory = viper.GetString("dir")
	cfg.RestrictToDir = viper.GetBool("restrict-dir")
	cfg.LogLevel = viper.GetString("log-level")
	cfg.LogFormat = viper.GetString("log-format")
	cfg.MaxFileSize = viper.GetInt64("max-file-size")
	cfg.RulesFile = viper.GetString("rules-file")

	cfg.Pdftotext = viper.GetString("pdftotext")
	cfg.Pdftoppm = viper.GetString("pdftoppm")
	cfg.Tesseract = viper.GetString("tesseract")
	cfg.TesseractLang = viper.GetString("tesseract-lang")
	cfg.TessdataDir = viper.GetString("tessdata-dir")
	cfg.OCRDPI = viper.GetInt("ocr-dpi")
	cfg.OCRMaxPages = viper.GetInt("ocr-max-pages")

	cfg.MaxAnalysisChars = viper.GetInt("max-analysis-chars")
	cfg.MaxAdvisoryChars = viper.GetInt("max-advisory-chars")
	cfg.ExtractTimeout = viper.GetDuration("extract-timeout")
	cfg.ScanTimeout = viper.GetDuration("scan-timeout")
	cfg.AdvisoryTimeout = viper.GetDuration("advisory-timeout")

	cfg.OpenAIKey = viper.GetString("openai-key")
	cfg.OpenAIBaseURL = viper.GetString("openai-base-url")
	cfg.OpenAIModel = viper.GetString("openai-model")
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Mode != ModeStdio && c.Mode != ModeServer {
		return errors.New("mode must be either 'stdio' or 'server'")
	}

	// Port only matters when listening
	if c.Mode == ModeServer && (c.Port < 1 || c.Port > 65535) {
		return errors.New("port must be between 1 and 65535")
	}

	if c.DocumentDirectory == "" {
		return errors.New("document directory cannot be empty")
	}

	if c.MaxFileSize <= 0 {
		return errors.New("maximum file size must be positive")
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("invalid log level: %s (must be one of: debug, info, warn, error)", c.LogLevel)
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		return fmt.Errorf("invalid log format: %s (must be one of: text, json)", c.LogFormat)
	}

	if c.OCRDPI < 0 || c.OCRMaxPages < 0 {
		return errors.New("OCR DPI and page limit cannot be negative")
	}
	if c.MaxAnalysisChars < 0 || c.MaxAdvisoryChars < 0 {
		return errors.New("character ceilings cannot be negative")
	}
	if c.ExtractTimeout < 0 || c.ScanTimeout < 0 || c.AdvisoryTimeout < 0 {
		return errors.New("timeouts cannot be negative")
	}

	if c.RulesFile != "" {
		if _, err := os.Stat(c.RulesFile); err != nil {
			return fmt.Errorf("cannot access rules file %s: %w", c.RulesFile, err)
		}
	}

	return nil
}

// Address returns the server address as host:port
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// IsDebug returns true if debug logging is enabled
func (c *Config) IsDebug() bool {
	return c.LogLevel == "debug"
}

// IsServerMode returns true if the server is running in HTTP server mode
func (c *Config) IsServerMode() bool {
	return c.Mode == ModeServer
}

// IsStdioMode returns true if the server is running in stdio mode
func (c *Config) IsStdioMode() bool {
	return c.Mode == ModeStdio
}

// ResolvePath makes a relative document path absolute against DocumentDirectory
func (c *Config) ResolvePath(path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(c.DocumentDirectory, path)
}

// CheckPath refuses a resolved path outside DocumentDirectory when
// RestrictToDir is set. Symlinks are followed before comparing.
func (c *Config) CheckPath(path string) error {
	if !c.RestrictToDir {
		return nil
	}
	within, err := isPathWithinDirectory(path, c.DocumentDirectory)
	if err != nil {
		return fmt.Errorf("path validation failed: %w", err)
	}
	if !within {
		return fmt.Errorf("path is outside the document directory: %s", path)
	}
	return nil
}

func isPathWithinDirectory(path, directory string) (bool, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return false, fmt.Errorf("failed to resolve path: %w", err)
	}
	absDir, err := filepath.Abs(directory)
	if err != nil {
		return false, fmt.Errorf("failed to resolve directory: %w", err)
	}

	realPath, err := filepath.EvalSymlinks(absPath)
	if err != nil {
		if !os.IsNotExist(err) {
			return false, fmt.Errorf("failed to evaluate symlinks: %w", err)
		}
		// A missing file is judged by where its parent really lives.
		realPath = absPath
		if parent, perr := filepath.EvalSymlinks(filepath.Dir(absPath)); perr == nil {
			realPath = filepath.Join(parent, filepath.Base(absPath))
		}
	}
	realDir, err := filepath.EvalSymlinks(absDir)
	if err != nil {
		return false, fmt.Errorf("failed to evaluate directory symlinks: %w", err)
	}

	rel, err := filepath.Rel(filepath.Clean(realDir), filepath.Clean(realPath))
	if err != nil {
		return false, nil
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)), nil
}

// LoggerConfig returns the logger settings. In stdio mode stdout carries the
// protocol, so output always goes to stderr and non-debug runs log warnings only.
func (c *Config) LoggerConfig() *logger.Config {
	level := c.LogLevel
	if c.IsStdioMode() && !c.IsDebug() {
		level = "warn"
	}
	return &logger.Config{Level: level, Format: c.LogFormat, Output: os.Stderr}
}

// ExtractConfig returns the extractor settings
func (c *Config) ExtractConfig() extract.Config {
	return extract.Config{
		Pdftotext:     c.Pdftotext,
		Pdftoppm:      c.Pdftoppm,
		Tesseract:     c.Tesseract,
		TesseractLang: c.TesseractLang,
		TessdataDir:   c.TessdataDir,
		DPI:           c.OCRDPI,
		MaxPages:      c.OCRMaxPages,
	}
}

// AnalysisOptions returns the coordinator budgets
func (c *Config) AnalysisOptions() analysis.Options {
	return analysis.Options{
		MaxAnalysisChars: c.MaxAnalysisChars,
		MaxAdvisoryChars: c.MaxAdvisoryChars,
		ExtractTimeout:   c.ExtractTimeout,
		ScanTimeout:      c.ScanTimeout,
		AdvisoryTimeout:  c.AdvisoryTimeout,
	}
}

// AdvisoryConfig returns the advisory client settings
func (c *Config) AdvisoryConfig() openai.Config {
	return openai.Config{
		APIKey:  c.OpenAIKey,
		BaseURL: c.OpenAIBaseURL,
		Model:   c.OpenAIModel,
		Timeout: c.AdvisoryTimeout,
	}
}

// String returns a string representation of the configuration. The API key
// is reported only as set or unset.
func (c *Config) String() string {
	key := "unset"
	if c.OpenAIKey != "" {
		key = "set"
	}
	return fmt.Sprintf("Config{Mode: %s, Host: %s, Port: %d, DocumentDirectory: %s, RestrictToDir: %t, LogLevel: %s, "+
		"MaxFileSize: %d, RulesFile: %s, OCRMaxPages: %d, OpenAIModel: %s, OpenAIKey: %s}",
		c.Mode, c.Host, c.Port, c.DocumentDirectory, c.RestrictToDir, c.LogLevel,
		c.MaxFileSize, c.RulesFile, c.OCRMaxPages, c.OpenAIModel, key)
}
