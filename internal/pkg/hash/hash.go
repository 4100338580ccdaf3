// Package hash provides hashing utilities.
package hash

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"strconv"

	"github.com/zeebo/xxh3"
)

// SHA256 computes the SHA256 hash of data and returns it as a hex string.
func SHA256(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// SHA256String computes the SHA256 hash of a string.
func SHA256String(s string) string {
	return SHA256([]byte(s))
}

// SHA256Short returns the first n characters of a SHA256 hash.
func SHA256Short(data []byte, n int) string {
	h := SHA256(data)
	if n > len(h) {
		return h
	}
	return h[:n]
}

// RevisionID generates a deterministic revision ID from path and content hash.
func RevisionID(path, contentHash string) string {
	return SHA256Short([]byte(path+":"+contentHash), 16)
}

// DiffKey identifies the diff of two nodes under one set of matcher options.
func DiffKey(src, dst uint32, variant string) string {
	var b [8]byte
	binary.LittleEndian.PutUint32(b[:4], src)
	binary.LittleEndian.PutUint32(b[4:], dst)
	h := xxh3.New()
	h.Write(b[:])
	h.WriteString(variant)
	return strconv.FormatUint(h.Sum64(), 16)
}
