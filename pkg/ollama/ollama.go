// Package ollama probes and starts the optional local Ollama inference
// service.
package ollama

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os/exec"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/tidwall/gjson"

	"github.com/entrhq/hearth/pkg/config"
	"github.com/entrhq/hearth/pkg/logging"
	"github.com/entrhq/hearth/pkg/platform"
)

// Status messages reported by Check.
const (
	MessageNotInstalled = "Ollama is not installed"
	MessageRunning      = "Ollama service is running"
	MessageNotRunning   = "Ollama is installed but the service is not running"
)

// Status is the outcome of Check.
type Status struct {
	Installed bool   `json:"installed"`
	Running   bool   `json:"running"`
	Message   string `json:"message"`
	Version   string `json:"version,omitempty"`
}

// Config describes the service binary and endpoint.
type Config struct {
	Binary       string
	Endpoint     string // base URL without trailing slash
	ProbeTimeout time.Duration
}

// ConfigFromSection builds a Config from the ollama settings section.
func ConfigFromSection(s *config.OllamaSection) Config {
	return Config{
		Binary:       s.GetBinary(),
		Endpoint:     s.GetEndpoint(),
		ProbeTimeout: s.ProbeTimeout(),
	}
}

// Service checks, starts and queries a local Ollama installation.
type Service struct {
	cfg        Config
	lookPath   platform.LookPathFunc
	spawner    platform.Spawner
	httpClient *http.Client
	logger     *logging.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithLookPath replaces PATH resolution of the binary.
func WithLookPath(fn platform.LookPathFunc) Option {
	return func(s *Service) {
		s.lookPath = fn
	}
}

// WithSpawner replaces the process spawner.
func WithSpawner(sp platform.Spawner) Option {
	return func(s *Service) {
		s.spawner = sp
	}
}

// WithHTTPClient sets the client used for probes and model listing.
func WithHTTPClient(c *http.Client) Option {
	return func(s *Service) {
		s.httpClient = c
	}
}

// WithLogger sets the service's logger.
func WithLogger(l *logging.Logger) Option {
	return func(s *Service) {
		s.logger = l
	}
}

// New creates a Service.
func New(cfg Config, opts ...Option) *Service {
	if cfg.Binary == "" {
		cfg.Binary = config.DefaultOllamaBinary
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = config.DefaultOllamaEndpoint
	}
	cfg.Endpoint = strings.TrimRight(cfg.Endpoint, "/")
	if cfg.ProbeTimeout <= 0 {
		cfg.ProbeTimeout = config.DefaultOllamaProbeTimeout * time.Second
	}

	s := &Service{
		cfg:        cfg,
		lookPath:   exec.LookPath,
		spawner:    platform.DetachedSpawner{},
		httpClient: http.DefaultClient,
		logger:     logging.Discard(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Endpoint returns the service base URL.
func (s *Service) Endpoint() string {
	return s.cfg.Endpoint
}

// Installed reports whether the binary is on PATH.
func (s *Service) Installed() bool {
	_, err := s.lookPath(s.cfg.Binary)
	return err == nil
}

// Check reports whether Ollama is installed and whether its API answers.
// A failed probe is a "not running" status, not an error.
func (s *Service) Check(ctx context.Context) (Status, error) {
	if !s.Installed() {
		return Status{Message: MessageNotInstalled}, nil
	}

	version, running := s.probe(ctx)
	if !running {
		return Status{Installed: true, Message: MessageNotRunning}, nil
	}
	return Status{Installed: true, Running: true, Message: MessageRunning, Version: version}, nil
}

// probe requests /api/version. The service counts as running when it answers
// 200 with a non-empty body.
func (s *Service) probe(ctx context.Context) (string, bool) {
	probeCtx, cancel := context.WithTimeout(ctx, s.cfg.ProbeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(probeCtx, http.MethodGet, s.cfg.Endpoint+"/api/version", nil)
	if err != nil {
		return "", false
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		s.logger.Debugf("ollama probe failed: %v", err)
		return "", false
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err != nil || resp.StatusCode != http.StatusOK || len(strings.TrimSpace(string(body))) == 0 {
		return "", false
	}
	return gjson.GetBytes(body, "version").String(), true
}

// Start launches "ollama serve" detached from the host and returns its pid.
func (s *Service) Start(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	path, err := s.lookPath(s.cfg.Binary)
	if err != nil {
		return 0, fmt.Errorf("Ollama is not installed, cannot start the service")
	}

	proc, err := s.spawner.Spawn(path, []string{"serve"}, "")
	if err != nil {
		return 0, fmt.Errorf("failed to start Ollama service: %w", err)
	}

	s.logger.Infof("ollama service started: %s serve (pid %d)", path, proc.PID)
	return proc.PID, nil
}

// StartedMessage is the confirmation shown after Start succeeds.
func StartedMessage(pid int) string {
	return fmt.Sprintf("Ollama service started, pid %d", pid)
}

// Models lists installed models through the OpenAI-compatible endpoint.
func (s *Service) Models(ctx context.Context) ([]string, error) {
	client := openai.NewClient(
		option.WithBaseURL(s.cfg.Endpoint+"/v1/"),
		option.WithAPIKey("ollama"),
		option.WithHTTPClient(s.httpClient),
		option.WithMaxRetries(0),
		option.WithRequestTimeout(s.cfg.ProbeTimeout),
	)

	page, err := client.Models.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list Ollama models: %w", err)
	}

	models := make([]string, 0, len(page.Data))
	for _, m := range page.Data {
		models = append(models, m.ID)
	}
	return models, nil
}
