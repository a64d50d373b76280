// Environment fingerprint: a compact record of compiler, word size,
// endianness and layout versions written into the segment at create time
// and verified byte-for-byte on every open.
//
// The segment stores absolute offsets relative to the mapping's base
// address and platform-sized fields (Ref is a uint64, but the slab
// allocator's bookkeeping assumes the host's int/pointer width when
// reasoning about alignment). Re-attaching from a process with a
// different fingerprint is unsafe, so a mismatch fails closed rather than
// attempting to interpret the bytes anyway.
package chainbase

import (
	"bytes"
	"encoding/binary"
	"runtime"

	json "github.com/goccy/go-json"
	"github.com/zeebo/xxh3"
	"golang.org/x/crypto/blake2b"
)

// FingerprintSize is the fixed size of the fingerprint block in bytes,
// padded with spaces and newline-terminated like the teacher's header
// encoding, so a human inspecting the raw file with `head -c` sees a
// readable JSON line.
const FingerprintSize = 128

// LayoutVersion increases whenever the segment's on-disk layout changes
// in a way that breaks compatibility with previously written segments.
const LayoutVersion = 1

// ChecksumAlgorithm selects how Fingerprint.Checksum is computed,
// mirroring the teacher's multi-algorithm hash.go. ChecksumXXH3 is the
// default (fast, non-cryptographic, fine for a local corruption check);
// ChecksumBlake2b trades speed for a cryptographic hash, for callers who
// want the fingerprint to double as a tamper check rather than just a
// transport-corruption check.
type ChecksumAlgorithm int

const (
	ChecksumXXH3 ChecksumAlgorithm = iota + 1
	ChecksumBlake2b
)

// Fingerprint captures everything needed to refuse an incompatible
// reattach. Endianness, PointerSize and WordSize describe the writing
// process's memory model; BuildTag captures the toolchain; LayoutVersion
// captures the segment's structural layout; Checksum guards against a
// single corrupted byte that happens not to change any decoded field.
type Fingerprint struct {
	Endianness    byte              `json:"end"`
	PointerSize   uint8             `json:"ptr"`
	WordSize      uint8             `json:"wsz"`
	BuildTag      string            `json:"build"`
	LayoutVersion uint32            `json:"layout"`
	Algorithm     ChecksumAlgorithm `json:"alg"`
	Checksum      uint64            `json:"sum"`
}

// littleEndianMarker is written as Endianness on every platform Go
// currently targets with this store (amd64, arm64); a big-endian build
// would write a different marker and any cross-attach would correctly
// fail the fingerprint comparison.
const littleEndianMarker byte = 1

// currentFingerprint builds the fingerprint for the running process,
// computing Checksum under alg.
func currentFingerprint(alg ChecksumAlgorithm) Fingerprint {
	fp := Fingerprint{
		Endianness:    littleEndianMarker,
		PointerSize:   8,
		WordSize:      uint8(32 << (^uint(0) >> 63)),
		BuildTag:      runtime.Version() + "/" + runtime.GOARCH,
		LayoutVersion: LayoutVersion,
		Algorithm:     alg,
	}
	fp.Checksum = fp.checksum()
	return fp
}

// checksum hashes every field except Checksum itself so tampering with
// any byte of the encoded block is detectable even when the decoded
// struct's other fields happen to remain parseable. The algorithm used
// is read from the fingerprint itself, so decodeFingerprint can verify a
// block written under either algorithm without being told which one in
// advance.
func (f Fingerprint) checksum() uint64 {
	unsummed := f
	unsummed.Checksum = 0
	buf, _ := json.Marshal(unsummed)
	if f.Algorithm == ChecksumBlake2b {
		sum := blake2b.Sum256(buf)
		return binary.LittleEndian.Uint64(sum[:8])
	}
	return xxh3.Hash(buf)
}

// Equal reports whether two fingerprints are byte-for-byte identical,
// per spec: any mismatch anywhere is treated as an incompatible build.
func (f Fingerprint) Equal(other Fingerprint) bool {
	return f == other
}

// encode serialises the fingerprint to exactly FingerprintSize bytes,
// space-padded and newline-terminated (mirrors the teacher's
// Header.encode padding strategy).
func (f Fingerprint) encode() ([]byte, error) {
	data, err := json.Marshal(f)
	if err != nil {
		return nil, err
	}
	padLen := FingerprintSize - len(data) - 1
	if padLen < 0 {
		return nil, ErrCorruptFingerprint
	}
	buf := make([]byte, FingerprintSize)
	copy(buf, data)
	for i := len(data); i < FingerprintSize-1; i++ {
		buf[i] = ' '
	}
	buf[FingerprintSize-1] = '\n'
	return buf, nil
}

// decodeFingerprint parses a fingerprint block and verifies its checksum.
// The dirty-flag trailer (dirtyOffset onward) is not part of the JSON.
func decodeFingerprint(buf []byte) (Fingerprint, error) {
	if len(buf) > dirtyOffset {
		buf = buf[:dirtyOffset]
	}
	var fp Fingerprint
	if err := json.Unmarshal(bytes.TrimSpace(buf), &fp); err != nil {
		return Fingerprint{}, ErrCorruptFingerprint
	}
	if fp.checksum() != fp.Checksum {
		return Fingerprint{}, ErrCorruptFingerprint
	}
	return fp, nil
}

// dirtyOffset is the fixed byte position of the dirty flag within the
// fingerprint block, analogous to the teacher's Header.Error byte patch
// in dirty(). Placed immediately after the fixed `{"end":N,"ptr":N,`
// prefix is NOT assumed; instead the flag lives in a dedicated trailer
// word so it can be flipped with a single atomic byte write regardless
// of how the rest of the JSON is laid out.
const dirtyOffset = FingerprintSize - 2

func isDirty(block []byte) bool {
	return block[dirtyOffset] == '1'
}

func encodeDirty(v bool) byte {
	if v {
		return '1'
	}
	return '0'
}

// little-endian helper retained for Ref/offset encoding used by slab.go;
// kept alongside the fingerprint file since both describe the segment's
// binary layout assumptions.
func putUint64(b []byte, v uint64) { binary.LittleEndian.PutUint64(b, v) }
func getUint64(b []byte) uint64    { return binary.LittleEndian.Uint64(b) }
