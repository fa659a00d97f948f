//go:build cgo

package mallocinfo

/*
#include <stdio.h>
#include <malloc.h>
*/
import "C"

import (
	"syscall"

	"github.com/genc-murat/mallocinfo/internal/memstream"
	"github.com/genc-murat/mallocinfo/pkg/report"
)

// Supported reports whether malloc_info is available in this build.
func Supported() bool { return true }

// MallocInfo calls glibc's malloc_info and returns the decoded report.
// It is stateless and safe to call from multiple goroutines; every call
// uses its own freshly opened stream. No retries are attempted: each
// failure kind indicates a condition that will not succeed on an
// immediate retry.
func MallocInfo() (*report.Malloc, error) {
	ms, err := memstream.Open()
	if err != nil {
		return nil, classify("open", err)
	}
	defer ms.Close()

	// The handle is exclusively ours for the duration of the call, so
	// handing it to glibc is sound.
	ret, errno := C.malloc_info(0, (*C.FILE)(ms.File()))
	if ret != 0 {
		if errno == nil {
			errno = syscall.EINVAL
		}
		return nil, classify("malloc_info", errno)
	}

	if err := ms.Flush(); err != nil {
		return nil, classify("flush", err)
	}

	m, err := report.Decode(ms.Bytes())
	if err != nil {
		return nil, classify("decode", err)
	}
	return m, nil
}
