package config

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gobwas/glob"
)

const (
	// MatchTypePrefix indicates a prefix-based pattern match
	MatchTypePrefix = "prefix"
	// MatchTypeExact indicates an exact pattern match
	MatchTypeExact = "exact"
	// MatchTypeGlob indicates a glob pattern match (*, ?, [..], {a,b})
	MatchTypeGlob = "glob"
	// SectionIDCommandPolicy is the identifier for the command policy section
	SectionIDCommandPolicy = "command_policy"
)

// PolicyPattern is a command pattern the shell runner refuses to execute.
type PolicyPattern struct {
	Pattern     string `json:"pattern"`
	Description string `json:"description"`
	Type        string `json:"type"` // "prefix", "exact" or "glob"
}

// Matches reports whether command is covered by the pattern.
// Matching is case-insensitive and ignores surrounding whitespace.
func (p PolicyPattern) Matches(command string) bool {
	cmd := strings.ToLower(strings.TrimSpace(command))
	pat := strings.ToLower(strings.TrimSpace(p.Pattern))

	switch p.Type {
	case MatchTypeExact:
		return cmd == pat
	case MatchTypeGlob:
		g, err := glob.Compile(pat)
		if err != nil {
			return false
		}
		return g.Match(cmd)
	default:
		if cmd == pat {
			return true
		}
		return strings.HasPrefix(cmd, pat+" ")
	}
}

// CommandPolicySection manages blocked command patterns and the execution timeout.
type CommandPolicySection struct {
	patterns       []PolicyPattern
	timeoutSeconds int
	mu             sync.RWMutex
}

// NewCommandPolicySection creates a new command policy section.
func NewCommandPolicySection() *CommandPolicySection {
	s := &CommandPolicySection{}
	s.Reset()
	return s
}

func defaultPolicyPatterns() []PolicyPattern {
	return []PolicyPattern{
		{
			Pattern:     "*rm -rf /",
			Description: "Delete the root filesystem",
			Type:        MatchTypeGlob,
		},
		{
			Pattern:     "*rm -rf /[* ;&|]*",
			Description: "Delete the root filesystem or everything under it",
			Type:        MatchTypeGlob,
		},
		{
			Pattern:     "mkfs*",
			Description: "Create a filesystem on a device",
			Type:        MatchTypeGlob,
		},
		{
			Pattern:     "format ?:*",
			Description: "Format a Windows drive",
			Type:        MatchTypeGlob,
		},
	}
}

// ID returns the section identifier.
func (s *CommandPolicySection) ID() string {
	return SectionIDCommandPolicy
}

// Title returns the section title.
func (s *CommandPolicySection) Title() string {
	return "Command Policy"
}

// Description returns the section description.
func (s *CommandPolicySection) Description() string {
	return "Commands matching these patterns are refused by execute_command. " +
		"The deny-list is best effort and does not see through quoting, variables or scripts. " +
		"timeout_seconds of 0 disables the timeout."
}

// Data returns the current configuration data.
func (s *CommandPolicySection) Data() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	patternsData := make([]interface{}, len(s.patterns))
	for i, p := range s.patterns {
		patternsData[i] = map[string]interface{}{
			"pattern":     p.Pattern,
			"description": p.Description,
			"type":        p.Type,
		}
	}

	return map[string]interface{}{
		"patterns":        patternsData,
		"timeout_seconds": s.timeoutSeconds,
	}
}

// SetData updates the configuration from the provided data.
func (s *CommandPolicySection) SetData(data map[string]interface{}) error {
	if data == nil {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if raw, ok := data["timeout_seconds"]; ok {
		n, err := intValue("timeout_seconds", raw)
		if err != nil {
			return err
		}
		s.timeoutSeconds = n
	}

	patternsData, ok := data["patterns"]
	if !ok {
		return nil // No patterns key, keep defaults
	}

	patternsSlice, ok := patternsData.([]interface{})
	if !ok {
		return fmt.Errorf("invalid patterns type: expected []interface{}, got %T", patternsData)
	}

	patterns := make([]PolicyPattern, 0, len(patternsSlice))
	for i, item := range patternsSlice {
		patternMap, ok := item.(map[string]interface{})
		if !ok {
			return fmt.Errorf("invalid pattern at index %d: expected map, got %T", i, item)
		}

		pattern, ok := patternMap["pattern"].(string)
		if !ok {
			return fmt.Errorf("invalid pattern at index %d: missing or invalid pattern field", i)
		}

		description, _ := patternMap["description"].(string)

		patternType := MatchTypePrefix
		if typeStr, ok := patternMap["type"].(string); ok {
			switch typeStr {
			case MatchTypeExact, MatchTypePrefix, MatchTypeGlob:
				patternType = typeStr
			}
		}

		patterns = append(patterns, PolicyPattern{
			Pattern:     pattern,
			Description: description,
			Type:        patternType,
		})
	}

	s.patterns = patterns
	return nil
}

// Validate validates the current configuration.
func (s *CommandPolicySection) Validate() error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for i, p := range s.patterns {
		if strings.TrimSpace(p.Pattern) == "" {
			return fmt.Errorf("pattern at index %d is empty", i)
		}
		if p.Type == MatchTypeGlob {
			if _, err := glob.Compile(strings.ToLower(p.Pattern)); err != nil {
				return fmt.Errorf("pattern at index %d is not a valid glob: %w", i, err)
			}
		}
	}
	if s.timeoutSeconds < 0 {
		return fmt.Errorf("timeout_seconds cannot be negative")
	}
	return nil
}

// Reset resets the section to default configuration.
func (s *CommandPolicySection) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.patterns = defaultPolicyPatterns()
	s.timeoutSeconds = 0
}

// Patterns returns a copy of the blocked patterns.
func (s *CommandPolicySection) Patterns() []PolicyPattern {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]PolicyPattern, len(s.patterns))
	copy(out, s.patterns)
	return out
}

// AddPattern appends a blocked pattern.
func (s *CommandPolicySection) AddPattern(p PolicyPattern) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.Type == "" {
		p.Type = MatchTypePrefix
	}
	s.patterns = append(s.patterns, p)
}

// Blocked returns the first pattern that blocks command.
func (s *CommandPolicySection) Blocked(command string) (PolicyPattern, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.patterns {
		if p.Matches(command) {
			return p, true
		}
	}
	return PolicyPattern{}, false
}

// Timeout returns the execution timeout; zero means none.
func (s *CommandPolicySection) Timeout() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return time.Duration(s.timeoutSeconds) * time.Second
}

// SetTimeout sets the execution timeout, rounded down to whole seconds.
func (s *CommandPolicySection) SetTimeout(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.timeoutSeconds = int(d / time.Second)
}
