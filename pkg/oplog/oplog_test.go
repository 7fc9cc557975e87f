package oplog

import (
	"reflect"
	"testing"
)

// ============================================================================
// TableOpLog
// ============================================================================

func TestTableOpLog_ApplyUpdate_Accumulates(t *testing.T) {
	l := New()
	l.ApplyUpdate(1, 0, 1.5)
	l.ApplyUpdate(1, 0, 2.5)
	l.ApplyUpdate(1, 1, -1.0)

	deltas := l.RowDeltas(1)
	if deltas[0] != 4.0 {
		t.Fatalf("deltas[0] = %v, want 4.0", deltas[0])
	}
	if deltas[1] != -1.0 {
		t.Fatalf("deltas[1] = %v, want -1.0", deltas[1])
	}
}

func TestTableOpLog_ApplyBatchUpdate_LengthMismatchPanics(t *testing.T) {
	l := New()
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on mismatched lengths")
		}
	}()
	l.ApplyBatchUpdate(1, []int32{0, 1}, []float64{1})
}

func TestTableOpLog_RowDeltas_MissingRowReturnsNil(t *testing.T) {
	l := New()
	if got := l.RowDeltas(99); got != nil {
		t.Fatalf("RowDeltas(99) = %v, want nil", got)
	}
}

func TestTableOpLog_RowDeltas_ReturnsIndependentCopy(t *testing.T) {
	l := New()
	l.ApplyUpdate(1, 0, 1.0)

	snap := l.RowDeltas(1)
	snap[0] = 999

	if got := l.RowDeltas(1)[0]; got != 1.0 {
		t.Fatalf("mutating RowDeltas() snapshot affected internal state: got %v, want 1.0", got)
	}
}

func TestTableOpLog_Seal_ResetsAndReturnsAccumulated(t *testing.T) {
	l := New()
	l.ApplyUpdate(1, 0, 5.0)

	sealed := l.Seal()
	if sealed[1][0] != 5.0 {
		t.Fatalf("sealed[1][0] = %v, want 5.0", sealed[1][0])
	}

	if got := l.RowDeltas(1); got != nil {
		t.Fatalf("RowDeltas(1) after Seal() = %v, want nil", got)
	}

	l.ApplyUpdate(1, 0, 1.0)
	if got := l.RowDeltas(1)[0]; got != 1.0 {
		t.Fatalf("post-seal update got mixed with sealed snapshot: got %v, want 1.0", got)
	}
}

// ============================================================================
// PendingOpLogs
// ============================================================================

func TestPendingOpLogs_AddGetDelete(t *testing.T) {
	p := NewPending()
	log := RowOpLog{1: {0: 3.0}}

	p.Add(5, log)
	got, ok := p.Get(5)
	if !ok || got[1][0] != 3.0 {
		t.Fatalf("Get(5) = (%v, %v), want ({1:{0:3.0}}, true)", got, ok)
	}

	p.Delete(5)
	if _, ok := p.Get(5); ok {
		t.Fatal("Get(5) found an entry after Delete(5)")
	}
}

func TestPendingOpLogs_Versions(t *testing.T) {
	p := NewPending()
	p.Add(1, RowOpLog{})
	p.Add(2, RowOpLog{})

	versions := p.Versions()
	if len(versions) != 2 {
		t.Fatalf("len(Versions()) = %d, want 2", len(versions))
	}
}

// ============================================================================
// VersionLess — wrap-around comparator
// ============================================================================

func TestVersionLess_Ordinary(t *testing.T) {
	if !VersionLess(5, 10, 5) {
		t.Fatal("VersionLess(5, 10, anchor=5) = false, want true")
	}
	if VersionLess(10, 5, 5) {
		t.Fatal("VersionLess(10, 5, anchor=5) = true, want false")
	}
	if VersionLess(5, 5, 5) {
		t.Fatal("VersionLess(5, 5, anchor=5) = true, want false (not strictly less)")
	}
}

func TestVersionLess_WrapBoundary(t *testing.T) {
	// Anchored near the top of the range, 0xFFFFFFFF is "older" than a
	// small version that has wrapped around past it.
	anchor := uint32(0xFFFFFFF0)
	wrapped := uint32(0x00000005)

	if !VersionLess(0xFFFFFFFF, wrapped, anchor) {
		t.Fatal("VersionLess(0xFFFFFFFF, wrapped, anchor) = false, want true across the wrap")
	}
	if VersionLess(wrapped, 0xFFFFFFFF, anchor) {
		t.Fatal("VersionLess(wrapped, 0xFFFFFFFF, anchor) = true, want false across the wrap")
	}
}

func TestVersionLess_ExactWrapPoint(t *testing.T) {
	anchor := uint32(0xFFFFFFFF)
	if !VersionLess(0xFFFFFFFF, 0x00000000, anchor) {
		t.Fatal("VersionLess(0xFFFFFFFF, 0x00000000, anchor=0xFFFFFFFF) = false, want true")
	}
}

// ============================================================================
// RowOpLog wire format
// ============================================================================

func TestRowOpLog_SerializeDeserialize_RoundTrip(t *testing.T) {
	original := RowOpLog{
		1: {0: 1.5, 1: -2.5},
		7: {3: 0},
	}

	data, err := original.Serialize()
	if err != nil {
		t.Fatalf("Serialize() error = %v", err)
	}

	got, err := DeserializeRowOpLog(data)
	if err != nil {
		t.Fatalf("DeserializeRowOpLog() error = %v", err)
	}

	if !reflect.DeepEqual(got, original) {
		t.Fatalf("round trip = %v, want %v", got, original)
	}
}

func TestRowOpLog_SerializeDeserialize_Empty(t *testing.T) {
	original := RowOpLog{}

	data, err := original.Serialize()
	if err != nil {
		t.Fatalf("Serialize() error = %v", err)
	}

	got, err := DeserializeRowOpLog(data)
	if err != nil {
		t.Fatalf("DeserializeRowOpLog() error = %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("round trip of empty oplog = %v, want empty", got)
	}
}

func TestDeserializeRowOpLog_TruncatedPayloadErrors(t *testing.T) {
	original := RowOpLog{1: {0: 1.5}}
	data, _ := original.Serialize()

	if _, err := DeserializeRowOpLog(data[:len(data)-4]); err == nil {
		t.Fatal("expected error decoding a truncated payload")
	}
	if _, err := DeserializeRowOpLog(nil); err == nil {
		t.Fatal("expected error decoding an empty payload")
	}
}

func TestDeserializeRowOpLog_TrailingBytesErrors(t *testing.T) {
	original := RowOpLog{1: {0: 1.5}}
	data, _ := original.Serialize()
	data = append(data, 0xFF)

	if _, err := DeserializeRowOpLog(data); err == nil {
		t.Fatal("expected error decoding a payload with trailing bytes")
	}
}
