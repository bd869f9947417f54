package process

import (
	"os/exec"
	"syscall"
)

// setProcAttr makes the kernel kill the worker when the owner dies.
func setProcAttr(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Pdeathsig: syscall.SIGKILL}
}
