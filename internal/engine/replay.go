package engine

import (
	"context"
	"time"

	"github.com/brightpath/pulse/internal/domain"
	"github.com/brightpath/pulse/internal/gateway"
	"github.com/brightpath/pulse/internal/logger"
)

// ReplayRecorder batches low-level pointer, click, and scroll samples into
// chunks for later visual playback. Pointer moves are sampled at a bounded
// rate; a chunk is flushed when the sample-count threshold or the time
// threshold is reached, whichever first. Chunks are write-once and
// append-only: the replay viewer reconstructs the timeline by concatenating
// them in arrival order.
type ReplayRecorder struct {
	gw   gateway.Gateway
	disp *dispatcher
	log  logger.Logger
	now  Clock

	chunkSize   int
	flushEvery  time.Duration
	sampleEvery time.Duration

	journeyID string
	startedAt time.Time
	lastMove  time.Time
	lastFlush time.Time
	samples   []domain.ReplaySample
}

// NewReplayRecorder creates a recorder. It stays inert until Bind attaches
// it to a journey.
func NewReplayRecorder(gw gateway.Gateway, disp *dispatcher, chunkSize int, flushEvery, sampleEvery time.Duration, now Clock, log logger.Logger) *ReplayRecorder {
	return &ReplayRecorder{
		gw:          gw,
		disp:        disp,
		log:         log,
		now:         now,
		chunkSize:   chunkSize,
		flushEvery:  flushEvery,
		sampleEvery: sampleEvery,
		samples:     make([]domain.ReplaySample, 0, chunkSize),
	}
}

// Bind attaches the recorder to the journey that owns its chunks.
func (r *ReplayRecorder) Bind(journeyID string) {
	r.journeyID = journeyID
}

// Observe records one sample. Offsets are milliseconds since the first
// observed sample, so concatenated chunks always carry non-decreasing
// timestamps.
func (r *ReplayRecorder) Observe(kind domain.SampleKind, x, y int) {
	if r.journeyID == "" {
		return
	}

	now := r.now()

	if kind == domain.SampleMove {
		if !r.lastMove.IsZero() && now.Sub(r.lastMove) < r.sampleEvery {
			return
		}
		r.lastMove = now
	}

	if r.startedAt.IsZero() {
		r.startedAt = now
		r.lastFlush = now
	}

	r.samples = append(r.samples, domain.ReplaySample{
		Offset: now.Sub(r.startedAt).Milliseconds(),
		Kind:   kind,
		X:      x,
		Y:      y,
	})

	if len(r.samples) >= r.chunkSize || now.Sub(r.lastFlush) >= r.flushEvery {
		r.Flush()
	}
}

// Flush sends the buffered samples as one chunk. A no-op when the buffer is
// empty.
func (r *ReplayRecorder) Flush() {
	if len(r.samples) == 0 {
		return
	}

	chunk := make([]domain.ReplaySample, len(r.samples))
	copy(chunk, r.samples)
	r.samples = r.samples[:0]
	r.lastFlush = r.now()

	journeyID := r.journeyID
	r.disp.enqueue("append_replay_chunk", func(ctx context.Context) error {
		return r.gw.AppendReplayChunk(ctx, journeyID, domain.ReplayChunkRequest{
			Samples: chunk,
		})
	})
}

// Pending returns the number of buffered, unflushed samples.
func (r *ReplayRecorder) Pending() int {
	return len(r.samples)
}
