package idhash

import (
	"math"
	"testing"

	"github.com/mr-tron/base58"

	"eb-evaluation-lab/internal/domain"
)

func TestComputeRunID(t *testing.T) {
	tests := []struct {
		name        string
		fingerprint string
		seriesIDs   []string
		digest      string
	}{
		{
			name:        "demo panel",
			fingerprint: "name: eb-demo\nreduction: mean\n|enforce=false|rule=cost_weighted",
			seriesIDs:   []string{"0001::100", "0001::200"},
			digest:      "ab12",
		},
		{
			name:        "empty panel",
			fingerprint: "name: empty\n",
			seriesIDs:   nil,
			digest:      "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputeRunID(tt.fingerprint, tt.seriesIDs, tt.digest)

			if len(got) == 0 || len(got) > 22 {
				t.Errorf("ComputeRunID() length = %d, want 1..22", len(got))
			}

			raw, err := base58.Decode(got)
			if err != nil {
				t.Fatalf("ComputeRunID() is not base58: %v", err)
			}
			if len(raw) != RunIDBytes {
				t.Errorf("decoded length = %d, want %d", len(raw), RunIDBytes)
			}

			// Verify determinism: same inputs should produce same output
			got2 := ComputeRunID(tt.fingerprint, tt.seriesIDs, tt.digest)
			if got != got2 {
				t.Errorf("ComputeRunID() not deterministic: %s != %s", got, got2)
			}
		})
	}
}

func TestComputeRunID_DifferentInputs(t *testing.T) {
	ids := []string{"0001::100", "0002::100"}
	base := ComputeRunID("cfg", ids, "d1")

	// Different config should produce different id
	if base == ComputeRunID("cfg2", ids, "d1") {
		t.Error("Different fingerprint should produce different id")
	}

	// Different series set should produce different id
	if base == ComputeRunID("cfg", ids[:1], "d1") {
		t.Error("Different series should produce different id")
	}

	// Changed data should produce different id
	if base == ComputeRunID("cfg", ids, "d2") {
		t.Error("Different data digest should produce different id")
	}
}

func digestOf(entries map[string][]domain.Point, order ...string) string {
	d := NewDigest()
	for _, k := range order {
		d.Add(k, entries[k])
	}
	return d.Sum()
}

func TestDigest(t *testing.T) {
	points := []domain.Point{{TimestampMs: 1000, Value: 3}, {TimestampMs: 2000, Value: math.NaN()}}
	entries := map[string][]domain.Point{"s1": points}
	base := digestOf(entries, "s1")

	if base != digestOf(entries, "s1") {
		t.Error("digest not deterministic")
	}

	// Any NaN encodes unknown truth
	otherNaN := []domain.Point{{TimestampMs: 1000, Value: 3}, {TimestampMs: 2000, Value: math.Float64frombits(0x7FF8000000000042)}}
	if base != digestOf(map[string][]domain.Point{"s1": otherNaN}, "s1") {
		t.Error("NaN payload should not change the digest")
	}

	changed := []domain.Point{{TimestampMs: 1000, Value: 4}, {TimestampMs: 2000, Value: math.NaN()}}
	if base == digestOf(map[string][]domain.Point{"s1": changed}, "s1") {
		t.Error("changed value should change the digest")
	}

	shifted := []domain.Point{{TimestampMs: 1001, Value: 3}, {TimestampMs: 2000, Value: math.NaN()}}
	if base == digestOf(map[string][]domain.Point{"s1": shifted}, "s1") {
		t.Error("changed timestamp should change the digest")
	}

	if base == digestOf(map[string][]domain.Point{"s2": points}, "s2") {
		t.Error("changed key should change the digest")
	}
}
