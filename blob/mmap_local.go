package blob

import "os"

// openLocal opens path directly through the local filesystem, bypassing
// the file package's scheme abstraction, for the sole benefit of mmap-go
// which requires a concrete *os.File. It returns ok=false for any path
// os.Open can't resolve (e.g. a non-local scheme like s3://), letting the
// caller fall back to pooled file.Open handles.
func openLocal(path string) (*os.File, bool) {
	f, err := os.Open(path)
	if err != nil {
		return nil, false
	}
	return f, true
}
