package shell

import (
	"fmt"

	"github.com/entrhq/hearth/pkg/config"
)

// Policy decides whether a command line may run.
type Policy interface {
	Blocked(command string) (config.PolicyPattern, bool)
}

// PolicyError is returned when a command matches a blocked pattern.
type PolicyError struct {
	Command string
	Pattern config.PolicyPattern
}

func (e *PolicyError) Error() string {
	return fmt.Sprintf("command blocked by policy: %s", e.Pattern.Pattern)
}
