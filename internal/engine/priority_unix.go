//go:build unix

package engine

import "golang.org/x/sys/unix"

// setPriority renices the child. Raising priority needs privileges.
func setPriority(pid int, p Priority) error {
	if p == PriorityNormal {
		return nil
	}
	return unix.Setpriority(unix.PRIO_PROCESS, pid, p.nice())
}
