package api

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// JournalEntry records one administrative change.
type JournalEntry struct {
	Time      time.Time `json:"time"`
	Principal string    `json:"principal"`
	Action    string    `json:"action"`
	Filter    string    `json:"filter"`
	Version   int       `json:"version,omitempty"`
}

// Journal appends entries to daily JSONL files under dir.
// The journal is a best-effort audit aid; the database is authoritative.
type Journal struct {
	dir       string
	mutexes   map[string]*sync.Mutex
	mutexLock sync.Mutex
	now       func() time.Time
}

// NewJournal creates dir if needed.
func NewJournal(dir string) (*Journal, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create journal dir: %w", err)
	}
	return &Journal{
		dir:     dir,
		mutexes: make(map[string]*sync.Mutex),
		now:     time.Now,
	}, nil
}

// fileMutex returns mutex for given filename, creating if not exists.
// Per-file mutex protects concurrent writes to same daily JSONL file.
// The map grows by one entry per day.
func (j *Journal) fileMutex(filename string) *sync.Mutex {
	j.mutexLock.Lock()
	defer j.mutexLock.Unlock()

	if _, ok := j.mutexes[filename]; !ok {
		j.mutexes[filename] = &sync.Mutex{}
	}
	return j.mutexes[filename]
}

// Record appends e to the file for its day. Time is set when zero.
func (j *Journal) Record(e JournalEntry) error {
	if e.Time.IsZero() {
		e.Time = j.now().UTC()
	}
	filename := filepath.Join(j.dir, e.Time.Format("2006-01-02.jsonl"))
	mu := j.fileMutex(filename)
	mu.Lock()
	defer mu.Unlock()

	f, err := os.OpenFile(filename, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}
	defer f.Close()
	if err := json.NewEncoder(f).Encode(e); err != nil {
		return fmt.Errorf("write journal: %w", err)
	}
	return nil
}
