//go:build !unix

package preflight

func checkFileDescriptors(int) Check {
	return Check{
		Name:    "file_descriptors",
		Passed:  true,
		Warning: true,
		Message: "unable to check on this platform",
	}
}
