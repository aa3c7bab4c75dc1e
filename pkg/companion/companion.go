// Package companion locates and launches the bundled Python server that backs
// the desktop UI's retrieval features.
package companion

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/entrhq/hearth/pkg/config"
	"github.com/entrhq/hearth/pkg/logging"
	"github.com/entrhq/hearth/pkg/platform"
)

const defaultHealthTimeout = 3 * time.Second

// defaultInterpreters are tried on PATH, in order, when none is configured.
var defaultInterpreters = []string{"python", "python3"}

// Config describes where the companion script lives and how to reach it.
type Config struct {
	Candidates    []string // directory templates, see config.Paths
	ScriptName    string
	Interpreter   string // empty means search PATH
	HealthURL     string
	HealthTimeout time.Duration
}

// ConfigFromSection builds a Config from the companion settings section.
func ConfigFromSection(s *config.CompanionSection) Config {
	return Config{
		Candidates:  s.CandidateDirs(),
		ScriptName:  s.GetScriptName(),
		Interpreter: s.GetInterpreter(),
		HealthURL:   s.GetHealthURL(),
	}
}

// Launch describes a started companion server.
type Launch struct {
	PID         int    `json:"pid"`
	Script      string `json:"script"`
	Interpreter string `json:"interpreter"`
}

// Message is the confirmation shown to the user.
func (l *Launch) Message() string {
	return fmt.Sprintf("companion server started, pid %d", l.PID)
}

// Health is the result of a single health probe.
type Health struct {
	URL     string `json:"url"`
	Running bool   `json:"running"`
	Status  string `json:"status,omitempty"`
	Message string `json:"message"`
}

// Launcher finds and starts the companion server.
type Launcher struct {
	cfg        Config
	paths      *config.Paths
	lookPath   platform.LookPathFunc
	spawner    platform.Spawner
	httpClient *http.Client
	logger     *logging.Logger
}

// Option configures a Launcher.
type Option func(*Launcher)

// WithPaths fixes the executable and working directories used to expand
// candidate templates instead of querying the process.
func WithPaths(p config.Paths) Option {
	return func(l *Launcher) {
		l.paths = &p
	}
}

// WithLookPath replaces PATH resolution of the interpreter.
func WithLookPath(fn platform.LookPathFunc) Option {
	return func(l *Launcher) {
		l.lookPath = fn
	}
}

// WithSpawner replaces the process spawner.
func WithSpawner(s platform.Spawner) Option {
	return func(l *Launcher) {
		l.spawner = s
	}
}

// WithHTTPClient sets the client used for health probes.
func WithHTTPClient(c *http.Client) Option {
	return func(l *Launcher) {
		l.httpClient = c
	}
}

// WithLogger sets the launcher's logger.
func WithLogger(logger *logging.Logger) Option {
	return func(l *Launcher) {
		l.logger = logger
	}
}

// New creates a Launcher.
func New(cfg Config, opts ...Option) *Launcher {
	if cfg.ScriptName == "" {
		cfg.ScriptName = config.DefaultCompanionScript
	}
	if len(cfg.Candidates) == 0 {
		cfg.Candidates = config.DefaultCompanionCandidates()
	}
	if cfg.HealthURL == "" {
		cfg.HealthURL = config.DefaultCompanionHealthURL
	}
	if cfg.HealthTimeout <= 0 {
		cfg.HealthTimeout = defaultHealthTimeout
	}

	l := &Launcher{
		cfg:      cfg,
		lookPath: exec.LookPath,
		spawner:  platform.DetachedSpawner{},
		logger:   logging.Discard(),
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.httpClient == nil {
		l.httpClient = &http.Client{Timeout: cfg.HealthTimeout}
	}
	return l
}

func (l *Launcher) resolvePaths() (config.Paths, error) {
	if l.paths != nil {
		return *l.paths, nil
	}

	exeDir, err := platform.ExecutableDir()
	if err != nil {
		return config.Paths{}, err
	}
	cwd, err := os.Getwd()
	if err != nil {
		return config.Paths{}, fmt.Errorf("cannot get current directory: %w", err)
	}
	return config.Paths{ExeDir: exeDir, Cwd: cwd}, nil
}

// Candidates returns the script paths Locate checks, in search order.
func (l *Launcher) Candidates() ([]string, error) {
	paths, err := l.resolvePaths()
	if err != nil {
		return nil, err
	}

	out := make([]string, 0, len(l.cfg.Candidates))
	for _, dir := range l.cfg.Candidates {
		out = append(out, filepath.Join(paths.ExpandPath(dir), l.cfg.ScriptName))
	}
	return out, nil
}

// Locate returns the first candidate script that exists as a regular file.
func (l *Launcher) Locate() (string, error) {
	candidates, err := l.Candidates()
	if err != nil {
		return "", err
	}

	for _, candidate := range candidates {
		info, err := os.Stat(candidate)
		if err == nil && !info.IsDir() {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("companion script not found (searched: %s)", strings.Join(candidates, ", "))
}

// interpreter resolves the configured interpreter, or the first default one
// found on PATH.
func (l *Launcher) interpreter() (string, error) {
	if l.cfg.Interpreter != "" {
		path, err := l.lookPath(l.cfg.Interpreter)
		if err != nil {
			return "", fmt.Errorf("interpreter '%s' not found: %w", l.cfg.Interpreter, err)
		}
		return path, nil
	}

	for _, name := range defaultInterpreters {
		if path, err := l.lookPath(name); err == nil {
			return path, nil
		}
	}
	return "", fmt.Errorf("no Python interpreter found on PATH (tried: %s)", strings.Join(defaultInterpreters, ", "))
}

// Start launches the companion script detached from the host. The server runs
// from the script's directory so it finds its relative resources.
func (l *Launcher) Start(ctx context.Context) (*Launch, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("failed to start companion server: %w", err)
	}

	script, err := l.Locate()
	if err != nil {
		return nil, fmt.Errorf("failed to start companion server: %w", err)
	}

	interp, err := l.interpreter()
	if err != nil {
		return nil, fmt.Errorf("failed to start companion server: %w", err)
	}

	proc, err := l.spawner.Spawn(interp, []string{script}, filepath.Dir(script))
	if err != nil {
		return nil, fmt.Errorf("failed to start companion server: %w", err)
	}

	l.logger.Infof("companion server started: %s %s (pid %d)", interp, script, proc.PID)
	return &Launch{PID: proc.PID, Script: script, Interpreter: interp}, nil
}

// Health probes the companion's health endpoint once.
func (l *Launcher) Health(ctx context.Context) Health {
	h := Health{URL: l.cfg.HealthURL}

	probeCtx, cancel := context.WithTimeout(ctx, l.cfg.HealthTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(probeCtx, http.MethodGet, l.cfg.HealthURL, nil)
	if err != nil {
		h.Message = fmt.Sprintf("invalid health URL: %v", err)
		return h
	}

	resp, err := l.httpClient.Do(req)
	if err != nil {
		h.Message = fmt.Sprintf("companion server is not reachable at %s", l.cfg.HealthURL)
		l.logger.Debugf("companion health probe failed: %v", err)
		return h
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if resp.StatusCode != http.StatusOK {
		h.Message = fmt.Sprintf("companion server answered with status %d", resp.StatusCode)
		return h
	}

	h.Running = true
	h.Status = gjson.GetBytes(body, "status").String()
	if h.Status != "" {
		h.Message = fmt.Sprintf("companion server is running (status: %s)", h.Status)
	} else {
		h.Message = "companion server is running"
	}
	return h
}
