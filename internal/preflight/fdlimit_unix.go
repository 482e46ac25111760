//go:build unix

package preflight

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// checkFileDescriptors verifies the soft RLIMIT_NOFILE is at least required.
func checkFileDescriptors(required int) Check {
	var limit unix.Rlimit
	if err := unix.Getrlimit(unix.RLIMIT_NOFILE, &limit); err != nil {
		return Check{
			Name:    "file_descriptors",
			Passed:  true,
			Warning: true,
			Message: fmt.Sprintf("unable to check: %v", err),
		}
	}

	// RLIM_INFINITY and other huge limits are clamped.
	actual := 1 << 30
	if limit.Cur < 1<<30 {
		actual = int(limit.Cur)
	}

	return Check{
		Name:     "file_descriptors",
		Required: required,
		Actual:   actual,
		Passed:   actual >= required,
		Message:  fmt.Sprintf("ulimit -n %d (need %d)", actual, required),
	}
}
