package config

import (
	"fmt"
	"strings"
	"sync"
)

const (
	// SectionIDKnowledgeBase is the identifier for the knowledge base section
	SectionIDKnowledgeBase = "knowledge_base"

	// DefaultKnowledgeBaseRoot is where the companion server looks for KB folders.
	DefaultKnowledgeBaseRoot = "{exe}/resources/python/userData/rag/ragFiles"
)

// KnowledgeBaseSection configures where knowledge base folders live.
type KnowledgeBaseSection struct {
	Root string
	mu   sync.RWMutex
}

// NewKnowledgeBaseSection creates a knowledge base section with default settings.
func NewKnowledgeBaseSection() *KnowledgeBaseSection {
	return &KnowledgeBaseSection{Root: DefaultKnowledgeBaseRoot}
}

// ID returns the section identifier.
func (s *KnowledgeBaseSection) ID() string {
	return SectionIDKnowledgeBase
}

// Title returns the section title.
func (s *KnowledgeBaseSection) Title() string {
	return "Knowledge Bases"
}

// Description returns the section description.
func (s *KnowledgeBaseSection) Description() string {
	return "Root directory holding one folder per knowledge base. Supports {exe}, {cwd} and ~."
}

// Data returns the current configuration data.
func (s *KnowledgeBaseSection) Data() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return map[string]interface{}{
		"root": s.Root,
	}
}

// SetData updates the configuration from the provided data.
func (s *KnowledgeBaseSection) SetData(data map[string]interface{}) error {
	if data == nil {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if v, ok := data["root"].(string); ok && v != "" {
		s.Root = v
	}
	return nil
}

// Validate validates the current configuration.
func (s *KnowledgeBaseSection) Validate() error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if strings.TrimSpace(s.Root) == "" {
		return fmt.Errorf("root cannot be empty")
	}
	return nil
}

// Reset resets the section to default configuration.
func (s *KnowledgeBaseSection) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Root = DefaultKnowledgeBaseRoot
}

// GetRoot returns the root directory template.
func (s *KnowledgeBaseSection) GetRoot() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Root
}
