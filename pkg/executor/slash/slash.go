// Package slash turns a line typed in a terminal front-end into a host
// command invocation. Lines starting with "/" are front-end commands; any
// other line is a shell command relayed to execute_command.
package slash

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/entrhq/hearth/pkg/host"
)

// Command is a parsed slash command.
type Command struct {
	Name string
	Arg  string
}

// Parse splits "/name rest" into its name and argument.
// It returns false when input is not a slash command.
func Parse(input string) (*Command, bool) {
	input = strings.TrimSpace(input)
	if !strings.HasPrefix(input, "/") {
		return nil, false
	}

	parts := strings.SplitN(input[1:], " ", 2)
	cmd := &Command{Name: parts[0]}
	if len(parts) > 1 {
		cmd.Arg = strings.TrimSpace(parts[1])
	}
	return cmd, true
}

// Request is what a typed line resolves to: either local help or a host
// command with its arguments.
type Request struct {
	Help    bool
	Command string
	Args    map[string]interface{}
}

// ArgsJSON encodes the request arguments for host.Registry.Invoke.
func (r Request) ArgsJSON() json.RawMessage {
	if len(r.Args) == 0 {
		return nil
	}
	data, err := json.Marshal(r.Args)
	if err != nil {
		return nil
	}
	return data
}

// usage strings double as the help listing.
var usage = []struct {
	syntax      string
	description string
}{
	{"/help", "Show this help"},
	{"/server start", "Start the companion Python server"},
	{"/server status", "Probe the companion server's health endpoint"},
	{"/ollama [status]", "Check whether Ollama is installed and running"},
	{"/ollama start", "Start the Ollama service"},
	{"/ollama models", "List installed Ollama models"},
	{"/kb new <name>", "Create a knowledge base"},
	{"/kb list", "List knowledge bases"},
	{"/kb files <id|name>", "List documents in a knowledge base"},
	{"/kb rm <id>", "Delete a knowledge base"},
	{"/kb import <id|name> <path>", "Copy a document into a knowledge base"},
	{"<anything else>", "Run it as a shell command (cd changes the session directory)"},
}

// HelpText returns the command listing.
func HelpText() string {
	width := 0
	for _, u := range usage {
		if len(u.syntax) > width {
			width = len(u.syntax)
		}
	}

	var b strings.Builder
	for _, u := range usage {
		fmt.Fprintf(&b, "  %-*s  %s\n", width, u.syntax, u.description)
	}
	return strings.TrimRight(b.String(), "\n")
}

// Resolve maps a typed line to a Request.
func Resolve(input string) (Request, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return Request{}, fmt.Errorf("nothing to run")
	}

	cmd, ok := Parse(input)
	if !ok {
		return Request{
			Command: host.CmdExecuteCommand,
			Args:    map[string]interface{}{"command": input},
		}, nil
	}

	sub, rest := splitWord(cmd.Arg)
	switch cmd.Name {
	case "help":
		return Request{Help: true}, nil

	case "server":
		switch sub {
		case "start":
			return Request{Command: host.CmdStartPythonServer}, nil
		case "status":
			return Request{Command: host.CmdCheckPythonServer}, nil
		}
		return Request{}, fmt.Errorf("usage: /server start|status")

	case "ollama":
		switch sub {
		case "", "status":
			return Request{Command: host.CmdCheckOllamaService}, nil
		case "start":
			return Request{Command: host.CmdStartOllamaService}, nil
		case "models":
			return Request{Command: host.CmdListOllamaModels}, nil
		}
		return Request{}, fmt.Errorf("usage: /ollama [status|start|models]")

	case "kb":
		return resolveKB(sub, rest)
	}

	return Request{}, fmt.Errorf("unknown command '/%s' (type /help)", cmd.Name)
}

func resolveKB(sub, rest string) (Request, error) {
	switch sub {
	case "new":
		if rest == "" {
			return Request{}, fmt.Errorf("usage: /kb new <name>")
		}
		return Request{Command: host.CmdCreateKnowledgeBase, Args: map[string]interface{}{"name": rest}}, nil
	case "list", "":
		return Request{Command: host.CmdListKnowledgeBases}, nil
	case "files":
		if rest == "" {
			return Request{}, fmt.Errorf("usage: /kb files <id|name>")
		}
		return Request{Command: host.CmdListKnowledgeBaseFiles, Args: map[string]interface{}{"ref": rest}}, nil
	case "rm":
		if rest == "" {
			return Request{}, fmt.Errorf("usage: /kb rm <id>")
		}
		return Request{Command: host.CmdDeleteKnowledgeBase, Args: map[string]interface{}{"id": rest}}, nil
	case "import":
		ref, path := splitWord(rest)
		if ref == "" || path == "" {
			return Request{}, fmt.Errorf("usage: /kb import <id|name> <path>")
		}
		return Request{Command: host.CmdImportDocument, Args: map[string]interface{}{"ref": ref, "path": path}}, nil
	}
	return Request{}, fmt.Errorf("usage: /kb new|list|files|rm|import")
}

// splitWord returns the first space-separated word of s and the trimmed rest.
func splitWord(s string) (string, string) {
	s = strings.TrimSpace(s)
	word, rest, _ := strings.Cut(s, " ")
	return word, strings.TrimSpace(rest)
}

// StreamedError shortens a shell failure whose output was already streamed
// to the terminal down to its summary.
func StreamedError(msg string) string {
	if !strings.HasPrefix(msg, "command failed") && !strings.HasPrefix(msg, "command timed out after ") {
		return msg
	}
	if i := strings.Index(msg, ": "); i >= 0 {
		return msg[:i]
	}
	return strings.TrimSuffix(msg, ":")
}

// Format renders a response value for display. Strings are shown as is;
// anything else is pretty-printed JSON, reported through isJSON.
func Format(resp host.Response) (text string, isJSON bool) {
	if !resp.OK {
		return resp.Error, false
	}
	switch v := resp.Value.(type) {
	case nil:
		return "", false
	case string:
		return v, false
	}

	data, err := json.MarshalIndent(resp.Value, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", resp.Value), false
	}
	return string(data), true
}
