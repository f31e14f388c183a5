// Package idhash computes deterministic identifiers.
package idhash

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"hash"
	"math"
	"strings"

	"github.com/mr-tron/base58"

	"eb-evaluation-lab/internal/domain"
)

// RunIDBytes is the number of hash bytes kept in a run id.
const RunIDBytes = 16

// ComputeRunID computes a deterministic run_id using SHA256.
// Formula: SHA256(run_fingerprint|series_id,...|data_digest)
// Returns the first RunIDBytes of the hash, base58-encoded (at most 22 characters).
// seriesIDs must already be sorted. The fingerprint covers everything that changes
// results besides the data: config, gate enforcement and hierarchy rule.
func ComputeRunID(
	runFingerprint string,
	seriesIDs []string,
	dataDigest string,
) string {
	data := fmt.Sprintf("%s|%s|%s",
		runFingerprint,
		strings.Join(seriesIDs, ","),
		dataDigest,
	)

	hash := sha256.Sum256([]byte(data))
	return base58.Encode(hash[:RunIDBytes])
}

// Digest hashes point data. Keys and points must be added in a fixed order.
type Digest struct {
	h   hash.Hash
	buf [8]byte
}

// NewDigest creates an empty digest.
func NewDigest() *Digest {
	return &Digest{h: sha256.New()}
}

// Add hashes one keyed point sequence.
func (d *Digest) Add(key string, points []domain.Point) {
	d.h.Write([]byte(key))
	d.h.Write([]byte{0})
	d.putUint(uint64(len(points)))
	for _, p := range points {
		d.putUint(uint64(p.TimestampMs))
		// NaN payloads vary; all unknown values hash alike
		if math.IsNaN(p.Value) {
			d.putUint(0x7FF8000000000001)
			continue
		}
		d.putUint(math.Float64bits(p.Value))
	}
}

func (d *Digest) putUint(v uint64) {
	binary.BigEndian.PutUint64(d.buf[:], v)
	d.h.Write(d.buf[:])
}

// Sum returns the hex digest of everything added so far.
func (d *Digest) Sum() string {
	return hex.EncodeToString(d.h.Sum(nil))
}
