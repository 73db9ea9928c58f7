package platform

import (
	"context"
	"os/exec"
	"runtime"
)

// ScriptCommand builds a command that runs script through the platform
// shell with dir as its working directory.
func ScriptCommand(ctx context.Context, dir, script string) *exec.Cmd {
	var cmd *exec.Cmd
	if runtime.GOOS == "windows" {
		cmd = exec.CommandContext(ctx, "cmd", "/C", script)
	} else {
		cmd = exec.CommandContext(ctx, "sh", "-c", script)
	}
	cmd.Dir = dir
	return cmd
}
