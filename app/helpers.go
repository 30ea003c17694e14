package app

import (
	"fmt"
	"hash/maphash"
	"strings"
	"sync"
	"unsafe"

	"github.com/fiatjaf/generic-ristretto/z"
)

// PointerHasher hashes map keys that are pointers by their address.
func PointerHasher[V any](_ maphash.Seed, k *V) uint64 {
	return uint64(uintptr(unsafe.Pointer(k)))
}

const maxLocks = 50

var namedMutexPool [maxLocks]sync.Mutex

// namedLock serializes work keyed by an arbitrary string, striped over a
// fixed pool so unrelated keys rarely contend.
func namedLock(name string) (unlock func()) {
	idx := z.MemHashString(name) % maxLocks
	namedMutexPool[idx].Lock()
	return namedMutexPool[idx].Unlock
}

// normalizeReason guarantees rejection reasons carry a machine readable
// prefix as required for OK and CLOSED messages.
func normalizeReason(reason, prefix string) string {
	if reason == "" {
		return prefix + ": failed"
	}
	if idx := strings.Index(reason, ": "); idx > 0 && !strings.Contains(reason[:idx], " ") {
		return reason
	}
	return fmt.Sprintf("%s: %s", prefix, reason)
}
