//go:build !windows

package engine

import "syscall"

// sysProcAttr returns nil: on Unix there is no window to hide, and the child
// stays in our process group.
func sysProcAttr() *syscall.SysProcAttr {
	return nil
}
