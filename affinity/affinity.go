// File: affinity/affinity.go
// Author: momentics <momentics@gmail.com>
//
// Platform-neutral API for CPU affinity. Platform-specific implementations are
// in affinity_linux.go and affinity_stub.go.

package affinity

import "github.com/momentics/hioload-sctp/api"

// SetAffinity pins the calling OS thread to one logical CPU. The caller must
// hold runtime.LockOSThread for the pin to stay with its goroutine.
func SetAffinity(cpuID int) error {
	if cpuID < 0 {
		return api.ErrInvalidArgument.WithContext("cpu", cpuID)
	}
	return setAffinityPlatform(cpuID)
}
