package transcript

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/saligia28/meetstream/internal/protocol"
)

// Segment is one contiguous span of recognized speech. Segments are never
// mutated after creation.
type Segment struct {
	ID        string    `json:"id"`
	Start     float64   `json:"start"`
	End       float64   `json:"end"`
	Text      string    `json:"text"`
	Speaker   string    `json:"speaker,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// AssemblerStats is a snapshot of assembler counters for monitoring.
type AssemblerStats struct {
	SegmentsTotal   int     `json:"segments_total"`
	BatchesIngested uint64  `json:"batches_ingested"`
	Watermark       float64 `json:"watermark_seconds"`
}

// Assembler accumulates segments for one session. It is created fresh per
// recording attempt and discarded on stop; the accumulated list is kept
// sorted by start time at all times.
type Assembler struct {
	scope string

	mu        sync.RWMutex
	segments  []Segment
	watermark float64
	batches   uint64

	now func() time.Time
}

// NewAssembler creates an assembler scoped to one meeting session. The scope
// participates in segment ids, so segments from different sessions never
// collide.
func NewAssembler(scope string) *Assembler {
	return &Assembler{
		scope: scope,
		now:   time.Now,
	}
}

// Ingest processes one transcription push. It assigns ids, fills speaker and
// end-time defaults, appends the batch to the accumulated list, re-sorts the
// list by start time, and advances the watermark. The returned slice holds
// exactly the newly appended segments in receipt order; callers deliver it to
// their segment callback.
func (a *Assembler) Ingest(msg *protocol.ServerMessage) []Segment {
	if len(msg.Segments) == 0 {
		return nil
	}

	var offset float64
	if msg.Offset != nil {
		offset = *msg.Offset
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	now := a.now()
	batch := make([]Segment, 0, len(msg.Segments))
	for i, raw := range msg.Segments {
		seg := Segment{
			// Composite key: repeated offsets stay unique through the
			// intra-batch index.
			ID:        fmt.Sprintf("%s-%.2f-%d", a.scope, offset, i),
			Start:     raw.Start,
			End:       raw.Start,
			Text:      raw.Text,
			Speaker:   fmt.Sprintf("Speaker %d", i+1),
			CreatedAt: now,
		}
		if raw.End != nil {
			seg.End = *raw.End
		}
		if raw.Speaker != nil && *raw.Speaker != "" {
			seg.Speaker = *raw.Speaker
		}
		batch = append(batch, seg)
	}

	a.segments = append(a.segments, batch...)
	sort.SliceStable(a.segments, func(i, j int) bool {
		return a.segments[i].Start < a.segments[j].Start
	})

	if msg.Offset != nil && msg.Duration != nil {
		if end := *msg.Offset + *msg.Duration; end > a.watermark {
			a.watermark = end
		}
	}
	a.batches++

	return batch
}

// Segments returns a copy of the accumulated, start-time-ordered list.
func (a *Assembler) Segments() []Segment {
	a.mu.RLock()
	defer a.mu.RUnlock()

	out := make([]Segment, len(a.segments))
	copy(out, a.segments)
	return out
}

// Watermark returns the highest end-of-audio timestamp confirmed processed
// by the backend so far.
func (a *Assembler) Watermark() float64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.watermark
}

// GetStats returns a snapshot of the assembler counters.
func (a *Assembler) GetStats() AssemblerStats {
	a.mu.RLock()
	defer a.mu.RUnlock()

	return AssemblerStats{
		SegmentsTotal:   len(a.segments),
		BatchesIngested: a.batches,
		Watermark:       a.watermark,
	}
}
