//go:build unix

package render

import (
	"os/exec"
	"syscall"
)

// configureProcess runs the tool in its own process group so cancellation
// also kills children it spawned, e.g. the headless browser behind mmdc.
func configureProcess(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
}
