//go:build !unix && !windows

package engine

import "errors"

func setPriority(pid int, p Priority) error {
	if p == PriorityNormal {
		return nil
	}
	return errors.New("process priority not supported on this platform")
}
