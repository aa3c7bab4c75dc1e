package config

import (
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"
)

const (
	// SectionIDOllama is the identifier for the Ollama section
	SectionIDOllama = "ollama"

	DefaultOllamaBinary       = "ollama"
	DefaultOllamaEndpoint     = "http://localhost:11434"
	DefaultOllamaProbeTimeout = 3 // seconds
)

// OllamaSection configures the local inference service probe and launch.
type OllamaSection struct {
	Binary              string
	Endpoint            string
	ProbeTimeoutSeconds int
	mu                  sync.RWMutex
}

// NewOllamaSection creates an Ollama section with default settings.
func NewOllamaSection() *OllamaSection {
	s := &OllamaSection{}
	s.Reset()
	return s
}

// ID returns the section identifier.
func (s *OllamaSection) ID() string {
	return SectionIDOllama
}

// Title returns the section title.
func (s *OllamaSection) Title() string {
	return "Ollama"
}

// Description returns the section description.
func (s *OllamaSection) Description() string {
	return "Binary name and HTTP endpoint of the local Ollama inference service."
}

// Data returns the current configuration data.
func (s *OllamaSection) Data() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return map[string]interface{}{
		"binary":                s.Binary,
		"endpoint":              s.Endpoint,
		"probe_timeout_seconds": s.ProbeTimeoutSeconds,
	}
}

// SetData updates the configuration from the provided data.
func (s *OllamaSection) SetData(data map[string]interface{}) error {
	if data == nil {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if v, ok := data["binary"].(string); ok && v != "" {
		s.Binary = v
	}
	if v, ok := data["endpoint"].(string); ok && v != "" {
		s.Endpoint = strings.TrimRight(v, "/")
	}
	if raw, ok := data["probe_timeout_seconds"]; ok {
		n, err := intValue("probe_timeout_seconds", raw)
		if err != nil {
			return err
		}
		s.ProbeTimeoutSeconds = n
	}
	return nil
}

// Validate validates the current configuration.
func (s *OllamaSection) Validate() error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if strings.TrimSpace(s.Binary) == "" {
		return fmt.Errorf("binary cannot be empty")
	}
	u, err := url.Parse(s.Endpoint)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid endpoint %q", s.Endpoint)
	}
	if s.ProbeTimeoutSeconds <= 0 {
		return fmt.Errorf("probe_timeout_seconds must be positive")
	}
	return nil
}

// Reset resets the section to default configuration.
func (s *OllamaSection) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Binary = DefaultOllamaBinary
	s.Endpoint = DefaultOllamaEndpoint
	s.ProbeTimeoutSeconds = DefaultOllamaProbeTimeout
}

// GetBinary returns the executable name or path.
func (s *OllamaSection) GetBinary() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Binary
}

// GetEndpoint returns the service base URL without a trailing slash.
func (s *OllamaSection) GetEndpoint() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Endpoint
}

// ProbeTimeout returns the HTTP probe timeout.
func (s *OllamaSection) ProbeTimeout() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return time.Duration(s.ProbeTimeoutSeconds) * time.Second
}
