package outbox

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/pildhora/pildhora-sync/internal/domain"
)

const (
	segmentPrefix = "journal-"
	filePerm      = 0644

	opEnqueue = "enqueue"
	opAck     = "ack"
)

type journalRecord struct {
	Op      string                  `json:"op"`
	Event   *domain.MedicationEvent `json:"event,omitempty"`
	EventID string                  `json:"event_id,omitempty"`
}

// OutboxRepository implements domain.EventQueue as a file-backed journal.
// Enqueue and ack operations are appended as JSON lines; the pending set is
// rebuilt by replaying the journal on open, so queued events survive process
// restarts. Acked events are dropped from disk at the next compaction.
type OutboxRepository struct {
	dir            string
	maxSegmentSize int64
	maxDiskSize    int64
	logger         *slog.Logger

	mu             sync.Mutex
	currentSegment *os.File
	currentSize    int64
	order          []string
	events         map[string]domain.MedicationEvent
}

// NewOutboxRepository opens (or creates) the journal under dir and replays it
// to rebuild the pending set.
func NewOutboxRepository(dir string, maxSegmentSize, maxDiskSize int64, logger *slog.Logger) (*OutboxRepository, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create outbox directory %s: %w", dir, err)
	}

	o := &OutboxRepository{
		dir:            dir,
		maxSegmentSize: maxSegmentSize,
		maxDiskSize:    maxDiskSize,
		logger:         logger.With("component", "outbox_repository"),
		events:         make(map[string]domain.MedicationEvent),
	}

	if err := o.replay(); err != nil {
		return nil, err
	}
	if err := o.openLatestSegment(); err != nil {
		return nil, err
	}

	o.logger.Info("outbox opened", "pending", len(o.order))
	return o, nil
}

// Enqueue appends a pending event to the journal. It returns only after the
// record has been flushed to disk.
func (o *OutboxRepository) Enqueue(ctx context.Context, event domain.MedicationEvent) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if _, exists := o.events[event.ID]; exists {
		return fmt.Errorf("event %s already queued", event.ID)
	}

	if err := o.append(journalRecord{Op: opEnqueue, Event: &event}); err != nil {
		return err
	}

	o.order = append(o.order, event.ID)
	o.events[event.ID] = event
	return nil
}

// Ack removes a delivered event. Acking an unknown id is a no-op so that a
// redelivered acknowledgment after a crash cannot fail the sync pass.
func (o *OutboxRepository) Ack(ctx context.Context, eventID string) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if _, exists := o.events[eventID]; !exists {
		return nil
	}

	if err := o.append(journalRecord{Op: opAck, EventID: eventID}); err != nil {
		return err
	}

	delete(o.events, eventID)
	for i, id := range o.order {
		if id == eventID {
			o.order = append(o.order[:i], o.order[i+1:]...)
			break
		}
	}
	return nil
}

// Pending returns the queued events in insertion order.
func (o *OutboxRepository) Pending(ctx context.Context) ([]domain.MedicationEvent, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	events := make([]domain.MedicationEvent, 0, len(o.order))
	for _, id := range o.order {
		events = append(events, o.events[id])
	}
	return events, nil
}

// PendingCount returns the number of queued events.
func (o *OutboxRepository) PendingCount(ctx context.Context) (int, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.order), nil
}

// Close closes the current journal segment.
func (o *OutboxRepository) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.currentSegment != nil {
		return o.currentSegment.Close()
	}
	return nil
}

func (o *OutboxRepository) append(rec journalRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal journal record: %w", err)
	}
	data = append(data, '\n')

	if o.currentSegment == nil {
		if err := o.rotate(); err != nil {
			return err
		}
	}

	totalSize, err := o.calculateTotalSize()
	if err != nil {
		o.logger.Error("failed to calculate total journal size", "error", err)
		return fmt.Errorf("could not verify outbox disk space: %w", err)
	}
	if totalSize+int64(len(data)) > o.maxDiskSize {
		return fmt.Errorf("outbox max disk size exceeded (%d > %d)", totalSize, o.maxDiskSize)
	}

	n, err := o.currentSegment.Write(data)
	if err != nil {
		return fmt.Errorf("failed to write journal record: %w", err)
	}
	if err := o.currentSegment.Sync(); err != nil {
		return fmt.Errorf("failed to sync journal segment: %w", err)
	}
	o.currentSize += int64(n)

	if o.currentSize >= o.maxSegmentSize {
		if err := o.compact(); err != nil {
			o.logger.Error("failed to compact journal", "error", err)
		}
	}
	return nil
}

// replay rebuilds the in-memory pending set from all journal segments.
func (o *OutboxRepository) replay() error {
	segments, err := o.getSortedSegments()
	if err != nil {
		return err
	}

	for _, segmentPath := range segments {
		file, err := os.Open(segmentPath)
		if err != nil {
			return fmt.Errorf("failed to open segment %s for replay: %w", segmentPath, err)
		}

		scanner := bufio.NewScanner(file)
		for scanner.Scan() {
			var rec journalRecord
			if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
				o.logger.Warn("failed to unmarshal journal record, skipping", "error", err)
				continue
			}
			switch rec.Op {
			case opEnqueue:
				if rec.Event == nil {
					o.logger.Warn("enqueue record without event, skipping")
					continue
				}
				if _, exists := o.events[rec.Event.ID]; exists {
					continue
				}
				o.order = append(o.order, rec.Event.ID)
				o.events[rec.Event.ID] = *rec.Event
			case opAck:
				if _, exists := o.events[rec.EventID]; !exists {
					continue
				}
				delete(o.events, rec.EventID)
				for i, id := range o.order {
					if id == rec.EventID {
						o.order = append(o.order[:i], o.order[i+1:]...)
						break
					}
				}
			default:
				o.logger.Warn("unknown journal op, skipping", "op", rec.Op)
			}
		}
		if err := scanner.Err(); err != nil {
			file.Close()
			return fmt.Errorf("error scanning segment %s: %w", segmentPath, err)
		}
		file.Close()
	}
	return nil
}

// compact rewrites the live events into a fresh segment and removes all older
// segments, reclaiming the space held by acked records.
func (o *OutboxRepository) compact() error {
	oldSegments, err := o.getSortedSegments()
	if err != nil {
		return err
	}

	if o.currentSegment != nil {
		if err := o.currentSegment.Close(); err != nil {
			o.logger.Error("failed to close segment before compaction", "error", err)
		}
		o.currentSegment = nil
	}

	if err := o.rotate(); err != nil {
		return err
	}

	for _, id := range o.order {
		event := o.events[id]
		data, err := json.Marshal(journalRecord{Op: opEnqueue, Event: &event})
		if err != nil {
			return fmt.Errorf("failed to marshal event during compaction: %w", err)
		}
		data = append(data, '\n')
		n, err := o.currentSegment.Write(data)
		if err != nil {
			return fmt.Errorf("failed to write compacted segment: %w", err)
		}
		o.currentSize += int64(n)
	}
	if err := o.currentSegment.Sync(); err != nil {
		return fmt.Errorf("failed to sync compacted segment: %w", err)
	}

	for _, segmentPath := range oldSegments {
		if err := os.Remove(segmentPath); err != nil {
			o.logger.Error("failed to remove old journal segment", "path", segmentPath, "error", err)
		}
	}

	o.logger.Info("journal compacted", "pending", len(o.order))
	return nil
}

func (o *OutboxRepository) rotate() error {
	segmentName := fmt.Sprintf("%s%d.log", segmentPrefix, time.Now().UnixNano())
	path := filepath.Join(o.dir, segmentName)

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, filePerm)
	if err != nil {
		return fmt.Errorf("failed to create journal segment %s: %w", path, err)
	}

	o.currentSegment = f
	o.currentSize = 0
	return nil
}

func (o *OutboxRepository) openLatestSegment() error {
	segments, err := o.getSortedSegments()
	if err != nil {
		return err
	}

	if len(segments) == 0 {
		return o.rotate()
	}

	latestSegmentPath := segments[len(segments)-1]
	stat, err := os.Stat(latestSegmentPath)
	if err != nil {
		return fmt.Errorf("failed to stat latest segment %s: %w", latestSegmentPath, err)
	}

	f, err := os.OpenFile(latestSegmentPath, os.O_APPEND|os.O_WRONLY, filePerm)
	if err != nil {
		return fmt.Errorf("failed to open latest segment %s: %w", latestSegmentPath, err)
	}

	o.currentSegment = f
	o.currentSize = stat.Size()

	if o.currentSize >= o.maxSegmentSize {
		return o.compact()
	}
	return nil
}

func (o *OutboxRepository) getSortedSegments() ([]string, error) {
	entries, err := os.ReadDir(o.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read outbox directory: %w", err)
	}

	var segments []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasPrefix(entry.Name(), segmentPrefix) {
			segments = append(segments, filepath.Join(o.dir, entry.Name()))
		}
	}
	sort.Strings(segments)
	return segments, nil
}

func (o *OutboxRepository) calculateTotalSize() (int64, error) {
	var totalSize int64
	entries, err := os.ReadDir(o.dir)
	if err != nil {
		return 0, err
	}
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasPrefix(entry.Name(), segmentPrefix) {
			info, err := entry.Info()
			if err != nil {
				return 0, err
			}
			totalSize += info.Size()
		}
	}
	return totalSize, nil
}
