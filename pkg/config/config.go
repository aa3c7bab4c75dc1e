package config

import (
	"sync"
)

var (
	// globalManager is the singleton configuration manager instance
	globalManager *Manager
	globalMu      sync.Mutex
)

// NewDefaultManager builds a manager over store with every host section registered.
func NewDefaultManager(store Store) (*Manager, error) {
	manager := NewManager(store)

	sections := []Section{
		NewCompanionSection(),
		NewOllamaSection(),
		NewKnowledgeBaseSection(),
		NewCommandPolicySection(),
	}
	for _, section := range sections {
		if err := manager.RegisterSection(section); err != nil {
			return nil, err
		}
	}
	return manager, nil
}

// Initialize creates and initializes the global configuration manager.
// This should be called once at application startup. An empty path uses DefaultPath.
func Initialize(configPath string) error {
	globalMu.Lock()
	defer globalMu.Unlock()

	store, err := NewFileStore(configPath)
	if err != nil {
		return err
	}

	manager, err := NewDefaultManager(store)
	if err != nil {
		return err
	}

	if err := manager.LoadAll(); err != nil {
		return err
	}

	globalManager = manager
	return nil
}

// Global returns the global configuration manager.
// Panics if Initialize has not been called.
func Global() *Manager {
	globalMu.Lock()
	defer globalMu.Unlock()

	if globalManager == nil {
		panic("config not initialized: call config.Initialize first")
	}

	return globalManager
}

// IsInitialized returns true if the global configuration has been initialized.
func IsInitialized() bool {
	globalMu.Lock()
	defer globalMu.Unlock()
	return globalManager != nil
}

// reset clears the global manager. Tests only.
func reset() {
	globalMu.Lock()
	defer globalMu.Unlock()
	globalManager = nil
}

func globalSection[T Section](id string) T {
	var zero T
	if !IsInitialized() {
		return zero
	}
	section, ok := Global().GetSection(id)
	if !ok {
		return zero
	}
	typed, ok := section.(T)
	if !ok {
		return zero
	}
	return typed
}

// GetCompanion returns the companion section from global config.
// Returns nil if config is not initialized.
func GetCompanion() *CompanionSection {
	return globalSection[*CompanionSection](SectionIDCompanion)
}

// GetOllama returns the Ollama section from global config.
// Returns nil if config is not initialized.
func GetOllama() *OllamaSection {
	return globalSection[*OllamaSection](SectionIDOllama)
}

// GetKnowledgeBase returns the knowledge base section from global config.
// Returns nil if config is not initialized.
func GetKnowledgeBase() *KnowledgeBaseSection {
	return globalSection[*KnowledgeBaseSection](SectionIDKnowledgeBase)
}

// GetCommandPolicy returns the command policy section from global config.
// Returns nil if config is not initialized.
func GetCommandPolicy() *CommandPolicySection {
	return globalSection[*CommandPolicySection](SectionIDCommandPolicy)
}
