package transcript

import (
	"testing"

	"github.com/saligia28/meetstream/internal/protocol"
)

func f64(v float64) *float64 { return &v }
func str(s string) *string   { return &s }

func push(segments []protocol.RawSegment, offset, duration *float64) *protocol.ServerMessage {
	return &protocol.ServerMessage{
		Type:     protocol.TypeTranscription,
		Segments: segments,
		Offset:   offset,
		Duration: duration,
	}
}

func TestIngestAssignsIDs(t *testing.T) {
	asm := NewAssembler("m1")

	batch := asm.Ingest(push([]protocol.RawSegment{
		{Start: 0.0, End: f64(1.0), Text: "hello", Speaker: str("Alice")},
		{Start: 1.0, End: f64(2.0), Text: "world"},
	}, f64(0), f64(2)))

	if len(batch) != 2 {
		t.Fatalf("Expected 2 segments, got %d", len(batch))
	}
	if batch[0].ID != "m1-0.00-0" {
		t.Errorf("Expected id m1-0.00-0, got %s", batch[0].ID)
	}
	if batch[1].ID != "m1-0.00-1" {
		t.Errorf("Expected id m1-0.00-1, got %s", batch[1].ID)
	}
}

func TestIngestIDUniquenessAcrossBatches(t *testing.T) {
	asm := NewAssembler("m1")

	// Distinct (offset, batch-index) pairs must always generate distinct ids.
	seen := make(map[string]bool)
	for _, off := range []float64{0, 2.5, 5} {
		batch := asm.Ingest(push([]protocol.RawSegment{
			{Start: off, Text: "a"},
			{Start: off + 1, Text: "b"},
		}, f64(off), f64(2)))

		for _, seg := range batch {
			if seen[seg.ID] {
				t.Errorf("Duplicate id %s", seg.ID)
			}
			seen[seg.ID] = true
		}
	}

	if len(seen) != 6 {
		t.Errorf("Expected 6 distinct ids, got %d", len(seen))
	}
}

func TestIngestDefaults(t *testing.T) {
	asm := NewAssembler("m1")

	batch := asm.Ingest(push([]protocol.RawSegment{
		{Start: 1.5, Text: "no speaker, no end"},
		{Start: 2.0, Text: "second", Speaker: str("")},
	}, f64(0), f64(3)))

	if batch[0].Speaker != "Speaker 1" {
		t.Errorf("Expected default speaker 'Speaker 1', got %q", batch[0].Speaker)
	}
	if batch[1].Speaker != "Speaker 2" {
		t.Errorf("Expected empty speaker to default to 'Speaker 2', got %q", batch[1].Speaker)
	}
	if batch[0].End != batch[0].Start {
		t.Errorf("Expected missing end to default to start %f, got %f", batch[0].Start, batch[0].End)
	}
}

func TestAccumulatedListSorted(t *testing.T) {
	asm := NewAssembler("m1")

	// Batches arrive with interleaved start times.
	asm.Ingest(push([]protocol.RawSegment{
		{Start: 5.0, Text: "late"},
		{Start: 7.0, Text: "later"},
	}, f64(5), f64(4)))
	asm.Ingest(push([]protocol.RawSegment{
		{Start: 1.0, Text: "early"},
		{Start: 6.0, Text: "mid"},
	}, f64(0), f64(7)))

	segments := asm.Segments()
	if len(segments) != 4 {
		t.Fatalf("Expected 4 accumulated segments, got %d", len(segments))
	}
	for i := 1; i < len(segments); i++ {
		if segments[i].Start < segments[i-1].Start {
			t.Errorf("Accumulated list not sorted at %d: %f after %f",
				i, segments[i].Start, segments[i-1].Start)
		}
	}
}

func TestIngestReturnsBatchInReceiptOrder(t *testing.T) {
	asm := NewAssembler("m1")

	// Batch itself is out of order; the callback batch must preserve
	// receipt order even though the accumulated list re-sorts.
	batch := asm.Ingest(push([]protocol.RawSegment{
		{Start: 3.0, Text: "second"},
		{Start: 1.0, Text: "first"},
	}, f64(0), f64(4)))

	if batch[0].Text != "second" || batch[1].Text != "first" {
		t.Errorf("Batch order changed: got %q, %q", batch[0].Text, batch[1].Text)
	}
}

func TestWatermark(t *testing.T) {
	asm := NewAssembler("m1")

	asm.Ingest(push([]protocol.RawSegment{{Start: 0, Text: "a"}}, f64(0), f64(3)))
	if asm.Watermark() != 3 {
		t.Errorf("Expected watermark 3, got %f", asm.Watermark())
	}

	asm.Ingest(push([]protocol.RawSegment{{Start: 3, Text: "b"}}, f64(3), f64(2.5)))
	if asm.Watermark() != 5.5 {
		t.Errorf("Expected watermark 5.5, got %f", asm.Watermark())
	}

	// A replayed older batch must never move the watermark backwards.
	asm.Ingest(push([]protocol.RawSegment{{Start: 1, Text: "c"}}, f64(1), f64(1)))
	if asm.Watermark() != 5.5 {
		t.Errorf("Expected watermark to stay at 5.5, got %f", asm.Watermark())
	}

	// Batches without offset/duration leave the watermark untouched.
	asm.Ingest(push([]protocol.RawSegment{{Start: 9, Text: "d"}}, nil, nil))
	if asm.Watermark() != 5.5 {
		t.Errorf("Expected watermark unchanged without offset, got %f", asm.Watermark())
	}
}

func TestIngestEmptyBatch(t *testing.T) {
	asm := NewAssembler("m1")

	if batch := asm.Ingest(push(nil, f64(0), f64(1))); batch != nil {
		t.Errorf("Expected nil batch for empty push, got %v", batch)
	}
	if len(asm.Segments()) != 0 {
		t.Error("Empty push must not touch the accumulated list")
	}
}

func TestGetStats(t *testing.T) {
	asm := NewAssembler("m1")
	asm.Ingest(push([]protocol.RawSegment{{Start: 0, Text: "a"}, {Start: 1, Text: "b"}}, f64(0), f64(2)))
	asm.Ingest(push([]protocol.RawSegment{{Start: 2, Text: "c"}}, f64(2), f64(1)))

	stats := asm.GetStats()
	if stats.SegmentsTotal != 3 {
		t.Errorf("Expected 3 segments total, got %d", stats.SegmentsTotal)
	}
	if stats.BatchesIngested != 2 {
		t.Errorf("Expected 2 batches, got %d", stats.BatchesIngested)
	}
	if stats.Watermark != 3 {
		t.Errorf("Expected watermark 3, got %f", stats.Watermark)
	}
}
