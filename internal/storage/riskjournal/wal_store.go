package riskjournal

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/vadiminshakov/gowal"

	"github.com/vadiminshakov/riskwatch/internal/entity"
)

const (
	defaultJournalDir   = "./wal/risk"
	journalSegmentLimit = 1000
	journalMaxSegments  = 100
	journalKeyPrefix    = "cycle_summary_"
)

// WALStore journals sync-cycle summaries for the dashboard stream. The live
// risk snapshot itself stays in memory; only these compact summaries are
// persisted.
type WALStore struct {
	wal *gowal.Wal
	mu  sync.RWMutex
}

// NewWALStore initializes a WAL-backed journal under the provided directory.
func NewWALStore(dir string) (*WALStore, error) {
	if dir == "" {
		dir = defaultJournalDir
	}

	cfg := gowal.Config{
		Dir:              dir,
		Prefix:           "cycle_",
		SegmentThreshold: journalSegmentLimit,
		MaxSegments:      journalMaxSegments,
		IsInSyncDiskMode: true,
	}

	wal, err := gowal.NewWAL(cfg)
	if err != nil {
		return nil, errors.Wrap(err, "init risk journal WAL")
	}

	return &WALStore{wal: wal}, nil
}

// Save appends the summary to the journal. Callers must set Summary.Instance.
func (s *WALStore) Save(summary entity.CycleSummary) error {
	if s == nil || s.wal == nil {
		return errors.New("risk journal is not initialized")
	}
	if summary.Instance == "" {
		return fmt.Errorf("cycle summary instance is required")
	}

	payload, err := json.Marshal(summary)
	if err != nil {
		return errors.Wrap(err, "marshal cycle summary")
	}

	key := fmt.Sprintf("%s%s", journalKeyPrefix, summary.Instance)

	s.mu.Lock()
	defer s.mu.Unlock()

	nextIndex := s.wal.CurrentIndex() + 1
	return s.wal.Write(nextIndex, key, payload)
}

// SummariesAfter returns all cycle summaries written after the provided index.
func (s *WALStore) SummariesAfter(index uint64) ([]entity.CycleSummaryRecord, error) {
	if s == nil || s.wal == nil {
		return nil, errors.New("risk journal is not initialized")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	current := s.wal.CurrentIndex()
	if current <= index {
		return nil, nil
	}

	records := make([]entity.CycleSummaryRecord, 0, current-index)
	for idx := index + 1; idx <= current; idx++ {
		key, payload, err := s.wal.Get(idx)
		if err != nil || !strings.HasPrefix(key, journalKeyPrefix) {
			continue
		}
		var summary entity.CycleSummary
		if err := json.Unmarshal(payload, &summary); err != nil {
			return nil, errors.Wrap(err, "decode cycle summary")
		}
		records = append(records, entity.CycleSummaryRecord{
			Index:   idx,
			Summary: summary,
		})
	}

	return records, nil
}

// Close closes the underlying WAL.
func (s *WALStore) Close() error {
	if s == nil || s.wal == nil {
		return errors.New("risk journal is not initialized")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.wal.Close()
}
