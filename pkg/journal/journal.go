// Package journal persists a compressed append-only log of game events
// so finished races can be replayed or audited.
package journal

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"

	"github.com/cuberace/cuberace/pkg/events"
)

// Journal is the append surface the gateway writes through. A nil
// Journal disables journaling at the wiring site.
type Journal interface {
	Append(roomID string, e *events.Event) error
	Close() error
}

// Entry is one journaled event.
type Entry struct {
	RoomID string        `json:"room_id"`
	At     time.Time     `json:"at"`
	Event  *events.Event `json:"event"`
}

// Writer appends entries as zstd-compressed JSON lines.
type Writer struct {
	mu  sync.Mutex
	f   *os.File
	enc *zstd.Encoder
	buf *bufio.Writer
}

var _ Journal = (*Writer)(nil)

// Open creates or truncates the journal file at path.
func Open(path string) (*Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal %s: %v", path, err)
	}
	enc, err := zstd.NewWriter(f)
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("failed to create journal encoder: %v", err)
	}
	return &Writer{f: f, enc: enc, buf: bufio.NewWriter(enc)}, nil
}

// Append writes one entry. Safe for concurrent use.
func (w *Writer) Append(roomID string, e *events.Event) error {
	b, err := json.Marshal(&Entry{RoomID: roomID, At: time.Now().UTC(), Event: e})
	if err != nil {
		return fmt.Errorf("failed to marshal journal entry: %v", err)
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, err := w.buf.Write(append(b, '\n')); err != nil {
		return fmt.Errorf("failed to write journal entry: %v", err)
	}
	return nil
}

// Close flushes and closes the journal.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.buf.Flush(); err != nil {
		return err
	}
	if err := w.enc.Close(); err != nil {
		return err
	}
	return w.f.Close()
}

// Read loads every entry from a closed journal file.
func Read(path string) ([]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal %s: %v", path, err)
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("failed to create journal decoder: %v", err)
	}
	defer dec.Close()

	var entries []Entry
	scanner := bufio.NewScanner(dec)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		var e Entry
		if err := json.Unmarshal(scanner.Bytes(), &e); err != nil {
			return nil, fmt.Errorf("failed to unmarshal journal entry: %v", err)
		}
		entries = append(entries, e)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read journal: %v", err)
	}
	return entries, nil
}
