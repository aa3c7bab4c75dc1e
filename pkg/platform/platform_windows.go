//go:build windows

package platform

import (
	"context"
	"os/exec"
	"syscall"
)

const shellName = "cmd"

// createNoWindow is CREATE_NO_WINDOW; syscall does not export it.
const createNoWindow = 0x08000000

func shellCommand(ctx context.Context, line string) *exec.Cmd {
	cmd := exec.CommandContext(ctx, shellName)
	// cmd.exe does its own parsing; pass the line verbatim instead of
	// letting exec quote it as a single argument.
	cmd.SysProcAttr = &syscall.SysProcAttr{
		CmdLine:       shellName + " /c " + line,
		HideWindow:    true,
		CreationFlags: createNoWindow,
	}
	return cmd
}

// setDetached starts the child without a console window and in a new
// process group so Ctrl+C in the host's console does not reach it.
func setDetached(cmd *exec.Cmd) {
	if cmd.SysProcAttr == nil {
		cmd.SysProcAttr = &syscall.SysProcAttr{}
	}
	cmd.SysProcAttr.HideWindow = true
	cmd.SysProcAttr.CreationFlags |= createNoWindow | syscall.CREATE_NEW_PROCESS_GROUP
}
