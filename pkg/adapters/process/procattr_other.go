//go:build !linux

package process

import "os/exec"

// setProcAttr is a no-op: without a parent-death signal the owner's Close
// is what stops workers.
func setProcAttr(*exec.Cmd) {}
