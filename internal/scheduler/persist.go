package scheduler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jfenske/recollect/internal/card"
)

// BlobVersion is the snapshot format version written by Save and
// required by ImportData.
const BlobVersion = "1"

// ErrInvalidImport is returned when an import blob is missing its
// version, cards, or global stats. Current state is left untouched.
var ErrInvalidImport = errors.New("recollect: invalid import blob")

// PersistenceGateway stores and retrieves full-state snapshots. Load
// returns (nil, nil) when no snapshot exists yet. Retry policy is the
// gateway's concern; the scheduler never retries.
type PersistenceGateway interface {
	Load(ctx context.Context) (*card.StorageBlob, error)
	Save(ctx context.Context, blob *card.StorageBlob) error
}

// EventSink receives a "cards changed" notification after every card
// or group mutation. Consumers re-query through the read operations.
type EventSink interface {
	CardsChanged()
}

// NopSink discards notifications.
type NopSink struct{}

func (NopSink) CardsChanged() {}

// Load hydrates the scheduler from the gateway. A missing snapshot
// leaves the scheduler empty.
func (s *Scheduler) Load(ctx context.Context) error {
	blob, err := s.gateway.Load(ctx)
	if err != nil {
		return fmt.Errorf("load snapshot: %w", err)
	}
	if blob == nil {
		return nil
	}

	s.mu.Lock()
	s.restoreLocked(blob)
	s.dirty = false
	s.mu.Unlock()
	return nil
}

func (s *Scheduler) restoreLocked(blob *card.StorageBlob) {
	s.cards.Replace(blob.Cards)
	s.groups.Replace(blob.CardGroups)
	s.quota.Replace(blob.DailyStats)
	if blob.GlobalStats != nil {
		s.stats = *blob.GlobalStats
	} else {
		s.stats = card.GlobalStats{}
	}
	s.uiState = append(json.RawMessage(nil), blob.UIState...)
}

// snapshotLocked builds a deep-copy blob of all owned state.
func (s *Scheduler) snapshotLocked() *card.StorageBlob {
	stats := s.stats
	return &card.StorageBlob{
		Version:     BlobVersion,
		Cards:       s.cards.Snapshot(),
		GlobalStats: &stats,
		CardGroups:  s.groups.Snapshot(),
		DailyStats:  s.quota.Snapshot(),
		UIState:     append(json.RawMessage(nil), s.uiState...),
	}
}

// markDirtyLocked flags unsaved state and (re)arms the trailing-edge
// save timer, coalescing bursts of mutations into one write.
func (s *Scheduler) markDirtyLocked() {
	s.dirty = true
	s.gen++
	if s.timer == nil {
		s.timer = time.AfterFunc(s.saveDelay, s.flushDebounced)
		return
	}
	s.timer.Reset(s.saveDelay)
}

// flushDebounced runs on the timer goroutine. Save failures on this
// path are not observable by the mutating caller; they are logged and
// the state stays dirty for the next flush.
func (s *Scheduler) flushDebounced() {
	if err := s.Flush(context.Background()); err != nil {
		slog.Error("debounced save failed", "error", err)
	}
}

// Flush writes the current state to the gateway if anything changed
// since the last save. The lock is released during the write, so a
// mutation can land while a save is in flight; the generation counter
// detects that and the loop saves again rather than marking the newer
// state clean.
func (s *Scheduler) Flush(ctx context.Context) error {
	for {
		s.mu.Lock()
		if !s.dirty {
			s.mu.Unlock()
			return nil
		}
		gen := s.gen
		blob := s.snapshotLocked()
		s.mu.Unlock()

		if err := s.gateway.Save(ctx, blob); err != nil {
			return fmt.Errorf("save snapshot: %w", err)
		}

		s.mu.Lock()
		if s.gen == gen {
			s.dirty = false
			s.mu.Unlock()
			return nil
		}
		s.mu.Unlock()
	}
}

// saveNowLocked persists synchronously, bypassing the debounce. Used
// by group CRUD so rollback on failure is deterministic. The caller
// holds the lock.
func (s *Scheduler) saveNowLocked(ctx context.Context) error {
	if err := s.gateway.Save(ctx, s.snapshotLocked()); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	// The snapshot covered every pending change.
	s.dirty = false
	if s.timer != nil {
		s.timer.Stop()
	}
	return nil
}

// Close stops the save timer and flushes pending changes.
func (s *Scheduler) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.timer != nil {
		s.timer.Stop()
	}
	s.mu.Unlock()
	return s.Flush(ctx)
}

// Dirty reports whether unsaved changes are pending.
func (s *Scheduler) Dirty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dirty
}

// ExportData returns a deep-copy snapshot of all state.
func (s *Scheduler) ExportData() *card.StorageBlob {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// ImportData replaces all state with the given snapshot. Blobs missing
// a version, card map, or global stats are rejected without mutating
// anything.
func (s *Scheduler) ImportData(blob *card.StorageBlob) error {
	switch {
	case blob == nil:
		return fmt.Errorf("%w: nil blob", ErrInvalidImport)
	case blob.Version == "":
		return fmt.Errorf("%w: missing version", ErrInvalidImport)
	case blob.Cards == nil:
		return fmt.Errorf("%w: missing cards", ErrInvalidImport)
	case blob.GlobalStats == nil:
		return fmt.Errorf("%w: missing global stats", ErrInvalidImport)
	}

	s.mu.Lock()
	s.restoreLocked(blob)
	s.markDirtyLocked()
	s.mu.Unlock()

	s.sink.CardsChanged()
	return nil
}

// UIState returns the opaque host-UI blob carried in snapshots.
func (s *Scheduler) UIState() json.RawMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append(json.RawMessage(nil), s.uiState...)
}

// SetUIState stores the opaque host-UI blob for the next snapshot.
func (s *Scheduler) SetUIState(state json.RawMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.uiState = append(json.RawMessage(nil), state...)
	s.markDirtyLocked()
}

// SyncFileCards reconciles the cards for one file against the pairs an
// upstream highlight source currently reports: cards whose pair is
// gone are deleted, unseen pairs become fresh cards, and matching
// pairs keep their scheduling state. Pair identity is the normalized
// content key, so cosmetic whitespace or case drift does not reset a
// card's history.
func (s *Scheduler) SyncFileCards(filePath string, pairs []card.Content) (created, deleted int) {
	s.mu.Lock()

	want := make(map[string]card.Content, len(pairs))
	for _, p := range pairs {
		want[card.ContentKey(p.Text, p.Answer)] = p
	}

	have := make(map[string]bool)
	for _, c := range s.cards.ByFile(filePath) {
		key := card.ContentKey(c.Text, c.Answer)
		if _, ok := want[key]; !ok {
			s.cards.Delete(c.ID)
			deleted++
			continue
		}
		have[key] = true
	}

	for key, p := range want {
		if !have[key] {
			s.cards.Add(p.Text, p.Answer, filePath)
			created++
		}
	}

	changed := created+deleted > 0
	if changed {
		s.markDirtyLocked()
	}
	s.mu.Unlock()

	if changed {
		s.sink.CardsChanged()
	}
	return created, deleted
}
