package session

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/verbatimhq/verbatim/internal/blob"
	"github.com/verbatimhq/verbatim/internal/observe"
	"github.com/verbatimhq/verbatim/internal/segment"
	"github.com/verbatimhq/verbatim/internal/store"
)

// endFlushConcurrency bounds the parallel re-uploads during session teardown.
const endFlushConcurrency = 4

// finalize closes the segment for fragmentID and runs the finalization
// pipeline: extract padded audio from the rolling buffer, attach it to the
// message, upload it, and persist the message.
//
// The decision to finalize is a check-then-set on the mapping's finalized
// flag under the mutex, with no blocking work in between. Whichever trigger
// wins, the rest lose by seeing the flag already set, so the pipeline runs
// exactly once per segment. Pipeline failures are logged and leave partial
// progress in place; they never reopen the segment.
func (c *Coordinator) finalize(ctx context.Context, fragmentID, trigger string) {
	start := time.Now()

	c.mu.Lock()
	m, ok := c.mappings[fragmentID]
	if !ok || m.finalized {
		c.mu.Unlock()
		return
	}
	m.finalized = true
	frag := c.fragments[fragmentID]
	transcriptID := m.transcriptID
	speaker := m.speaker
	c.mu.Unlock()

	c.met.OpenSegments.Add(ctx, -1)

	ctx, span := observe.StartSpan(ctx, "session.finalize",
		trace.WithAttributes(
			attribute.String("participant", string(speaker)),
			attribute.String("trigger", trigger),
		),
	)
	defer span.End()

	log := c.log.With(
		slog.String("fragment_id", fragmentID),
		slog.String("transcript_id", transcriptID),
		slog.String("participant", string(speaker)),
		slog.String("trigger", trigger),
	)

	if frag.FirstObservedAt <= 0 || frag.LastObservedAt <= 0 {
		// Timestamps never arrived for this id. The segment stays closed
		// but nothing is persisted.
		log.Error("malformed segment timestamps, dropping unpersisted")
		return
	}

	startPad, endPad := c.pads(speaker)
	winStart := frag.FirstObservedAt - startPad
	winDur := (frag.LastObservedAt - frag.FirstObservedAt) + startPad + endPad

	encoded, extracted := c.extractors[speaker].ExtractEncoded(winStart, winDur)
	if extracted {
		c.led.FinalizeAudio(transcriptID, encoded)
	} else {
		// Buffer reset or the window predates capture. The transcript is
		// still worth keeping.
		c.met.ExtractionMisses.Add(ctx, 1)
		log.Warn("no audio recovered for segment, persisting transcript only")
	}

	if extracted {
		if err := c.upload(ctx, transcriptID, encoded); err != nil {
			c.met.UploadFailures.Add(ctx, 1,
				metric.WithAttributes(attribute.String("participant", string(speaker))))
			log.Error("audio upload failed, will retry at session end", slog.Any("error", err))
		}
	}

	c.persist(ctx, transcriptID, log)

	c.met.RecordFinalized(ctx, string(speaker), trigger)
	c.met.FinalizeDuration.Record(ctx, time.Since(start).Seconds())
	log.Info("segment finalized", slog.Duration("took", time.Since(start)))
}

// pads returns the extraction window padding in milliseconds for speaker.
func (c *Coordinator) pads(s segment.Speaker) (startPad, endPad int64) {
	if s == segment.SpeakerAgent {
		return int64(c.fin.AgentStartPadMs), int64(c.fin.AgentEndPadMs)
	}
	return int64(c.fin.UserStartPadMs), int64(c.fin.UserEndPadMs)
}

// upload writes the clip to blob storage and swaps the message's inline
// audio for the durable URL.
func (c *Coordinator) upload(ctx context.Context, transcriptID, encoded string) error {
	start := time.Now()

	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return fmt.Errorf("session: decode clip: %w", err)
	}

	url, err := c.blob.Put(ctx, blob.ObjectPath(c.interviewID, transcriptID), data, "audio/wav")
	if err != nil {
		return fmt.Errorf("session: upload clip: %w", err)
	}

	c.led.SetAudioURL(transcriptID, url)
	c.met.UploadDuration.Record(ctx, time.Since(start).Seconds())
	return nil
}

// persist appends the message to the interview transcript in the store.
// Duplicate content is a successful no-op.
func (c *Coordinator) persist(ctx context.Context, transcriptID string, log *slog.Logger) {
	msg, ok := c.led.Get(transcriptID)
	if !ok {
		return
	}

	start := time.Now()
	res, err := c.store.AppendMessage(ctx, c.interviewID, msg)
	if err != nil {
		c.met.PersistFailures.Add(ctx, 1)
		log.Error("persist failed", slog.Any("error", err))
		return
	}
	c.met.PersistDuration.Record(ctx, time.Since(start).Seconds())
	if res.Duplicate {
		c.met.PersistDuplicates.Add(ctx, 1)
		log.Debug("duplicate message content, skipped")
	}
}

// End tears the session down: it stops the sweep and settle timers,
// finalizes every still-open segment, retries any upload that failed during
// the session, and marks the interview completed with the full message list.
//
// The returned error aggregates upload retry and store failures; the
// teardown itself always runs to completion.
func (c *Coordinator) End(ctx context.Context) error {
	c.Stop()

	c.mu.Lock()
	if c.ended {
		c.mu.Unlock()
		return nil
	}
	c.ended = true
	var open []string
	for id, m := range c.mappings {
		if !m.finalized {
			open = append(open, id)
		}
	}
	c.mu.Unlock()

	for _, id := range open {
		c.finalize(ctx, id, TriggerSessionEnd)
	}

	// Best-effort retry for clips that never made it to blob storage.
	var g errgroup.Group
	g.SetLimit(endFlushConcurrency)
	for _, msg := range c.led.PendingUpload() {
		g.Go(func() error {
			if err := c.upload(ctx, msg.TranscriptID, msg.AudioBase64); err != nil {
				c.met.UploadFailures.Add(ctx, 1,
					metric.WithAttributes(attribute.String("participant", string(msg.Participant))))
				return err
			}
			// Refresh the stored record with the URL.
			if m, ok := c.led.Get(msg.TranscriptID); ok {
				if _, err := c.store.AppendMessage(ctx, c.interviewID, m); err != nil {
					return err
				}
			}
			return nil
		})
	}
	flushErr := g.Wait()

	status := store.StatusCompleted
	updateErr := c.store.Update(ctx, c.interviewID, store.UpdateParams{
		Status:   &status,
		Messages: c.led.Messages(),
	})
	if updateErr != nil {
		c.log.Error("marking interview completed failed", slog.Any("error", updateErr))
	}

	c.met.ActiveInterviews.Add(ctx, -1)
	c.log.Info("session ended",
		slog.Int("messages", c.led.Len()),
		slog.Int("flushed_open", len(open)),
	)

	if flushErr != nil {
		return fmt.Errorf("session: end flush: %w", flushErr)
	}
	return updateErr
}
