package audit

import (
	"golang.org/x/crypto/blake2b"

	ksys "github.com/zeroos-kernel/zeroos/internal/syscall"
)

// advance computes H <- hash(H || encode(commit)) per spec §4.F. A fresh
// 256-bit hasher is used per commit rather than a running state object so
// advance stays a pure function of (prev, commit) — replay depends on that.
func advance(prev [32]byte, c ksys.Commit) [32]byte {
	h, err := blake2b.New256(nil)
	if err != nil {
		// blake2b.New256 only fails for an oversized key, and we pass none.
		panic("audit: blake2b.New256: " + err.Error())
	}
	h.Write(prev[:])
	h.Write(encodeCommit(c))
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}
