package config

import (
	"fmt"
	"net/url"
	"strings"
	"sync"
)

const (
	// SectionIDCompanion is the identifier for the companion server section
	SectionIDCompanion = "companion"

	// DefaultCompanionScript is the entry script of the companion server.
	DefaultCompanionScript = "main.py"

	// DefaultCompanionHealthURL is the health endpoint the companion server exposes.
	DefaultCompanionHealthURL = "http://127.0.0.1:5000/api/health"
)

// DefaultCompanionCandidates lists the install layouts searched for the
// companion script, in order: next to the binary, packaged resources, the
// application data dir, then the development checkout.
func DefaultCompanionCandidates() []string {
	return []string{
		"{exe}/python",
		"{exe}/resources/python",
		"{exe}/data/python",
		"{cwd}/src-tauri/python",
	}
}

// CompanionSection configures how the companion Python server is found and launched.
type CompanionSection struct {
	Interpreter string   // empty means search PATH for python, then python3
	ScriptName  string
	Candidates  []string // directory templates, see Paths.ExpandPath
	HealthURL   string
	AutoStart   bool
	mu          sync.RWMutex
}

// NewCompanionSection creates a companion section with default settings.
func NewCompanionSection() *CompanionSection {
	s := &CompanionSection{}
	s.Reset()
	return s
}

// ID returns the section identifier.
func (s *CompanionSection) ID() string {
	return SectionIDCompanion
}

// Title returns the section title.
func (s *CompanionSection) Title() string {
	return "Companion Server"
}

// Description returns the section description.
func (s *CompanionSection) Description() string {
	return "Where to find the bundled Python server, which interpreter runs it, and whether it starts with the host."
}

// Data returns the current configuration data.
func (s *CompanionSection) Data() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	candidates := make([]interface{}, len(s.Candidates))
	for i, c := range s.Candidates {
		candidates[i] = c
	}

	return map[string]interface{}{
		"interpreter": s.Interpreter,
		"script_name": s.ScriptName,
		"candidates":  candidates,
		"health_url":  s.HealthURL,
		"auto_start":  s.AutoStart,
	}
}

// SetData updates the configuration from the provided data.
func (s *CompanionSection) SetData(data map[string]interface{}) error {
	if data == nil {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if v, ok := data["interpreter"].(string); ok {
		s.Interpreter = v
	}
	if v, ok := data["script_name"].(string); ok && v != "" {
		s.ScriptName = v
	}
	if raw, ok := data["candidates"]; ok {
		candidates, err := stringSlice("candidates", raw)
		if err != nil {
			return err
		}
		s.Candidates = candidates
	}
	if v, ok := data["health_url"].(string); ok {
		s.HealthURL = v
	}
	if v, ok := data["auto_start"].(bool); ok {
		s.AutoStart = v
	}
	return nil
}

// Validate validates the current configuration.
func (s *CompanionSection) Validate() error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if strings.TrimSpace(s.ScriptName) == "" {
		return fmt.Errorf("script_name cannot be empty")
	}
	if len(s.Candidates) == 0 {
		return fmt.Errorf("at least one candidate directory is required")
	}
	for i, c := range s.Candidates {
		if strings.TrimSpace(c) == "" {
			return fmt.Errorf("candidate at index %d is empty", i)
		}
	}
	if s.HealthURL != "" {
		if _, err := url.ParseRequestURI(s.HealthURL); err != nil {
			return fmt.Errorf("invalid health_url: %w", err)
		}
	}
	return nil
}

// Reset resets the section to default configuration.
func (s *CompanionSection) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Interpreter = ""
	s.ScriptName = DefaultCompanionScript
	s.Candidates = DefaultCompanionCandidates()
	s.HealthURL = DefaultCompanionHealthURL
	s.AutoStart = true
}

// CandidateDirs returns the candidate directory templates.
func (s *CompanionSection) CandidateDirs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, len(s.Candidates))
	copy(out, s.Candidates)
	return out
}

// GetInterpreter returns the configured interpreter, empty for PATH search.
func (s *CompanionSection) GetInterpreter() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Interpreter
}

// GetScriptName returns the entry script file name.
func (s *CompanionSection) GetScriptName() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ScriptName
}

// GetHealthURL returns the companion health endpoint.
func (s *CompanionSection) GetHealthURL() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.HealthURL
}

// ShouldAutoStart reports whether the host starts the companion at launch.
func (s *CompanionSection) ShouldAutoStart() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.AutoStart
}
