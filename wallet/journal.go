package wallet

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"sync"
	"time"

	"github.com/etnz/delta"
	"github.com/shopspring/decimal"
)

// Outcome is the progress of a wallet operation in the journal.
type Outcome string

const (
	Submitted Outcome = "submitted"
	Succeeded Outcome = "succeeded"
	Failed    Outcome = "failed"
)

// Entry is a line of the journal.
type Entry struct {
	Ref     string          `json:"ref"` // shared by all the entries of an operation, sent as Idempotency-Key.
	Time    time.Time       `json:"time"`
	User    string          `json:"user,omitempty"`
	Kind    delta.Kind      `json:"kind"`
	Amount  decimal.Decimal `json:"amount"`
	Outcome Outcome         `json:"outcome"`
	Message string          `json:"message,omitempty"`
}

// Journal is an append-only JSONL file of wallet operations.
//
// An operation is journaled before it is sent, so that an interrupted
// operation always leaves a record.
type Journal struct {
	mu   sync.Mutex
	path string
}

// NewJournal returns a journal writing to path. The file is created on the first append.
func NewJournal(path string) *Journal { return &Journal{path: path} }

// Path returns the journal file.
func (j *Journal) Path() string { return j.path }

// Append writes e at the end of the journal.
func (j *Journal) Append(e Entry) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	f, err := os.OpenFile(j.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return fmt.Errorf("cannot open journal %q: %w", j.path, err)
	}
	defer f.Close()
	if err := EncodeEntry(f, e); err != nil {
		return fmt.Errorf("cannot append to journal %q: %w", j.path, err)
	}
	return nil
}

// Entries reads the whole journal. A journal that does not exist is empty.
func (j *Journal) Entries() ([]Entry, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	f, err := os.Open(j.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cannot open journal %q: %w", j.path, err)
	}
	defer f.Close()
	return DecodeJournal(f)
}

// EncodeEntry writes e as a single JSON line.
func EncodeEntry(w io.Writer, e Entry) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to marshal journal entry: %w", err)
	}
	if _, err := w.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to write journal entry: %w", err)
	}
	return nil
}

// DecodeJournal reads JSONL entries from r.
func DecodeJournal(r io.Reader) ([]Entry, error) {
	var entries []Entry
	scanner := bufio.NewScanner(r)
	line := 0
	for scanner.Scan() {
		line++
		data := scanner.Bytes()
		if len(data) == 0 {
			continue
		}
		var e Entry
		if err := json.Unmarshal(data, &e); err != nil {
			return nil, fmt.Errorf("invalid journal entry at line %d: %w", line, err)
		}
		entries = append(entries, e)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("cannot read journal: %w", err)
	}
	return entries, nil
}

// Pending returns the submitted operations that have no outcome, in order.
// They were interrupted and their effect on the platform is unknown.
func Pending(entries []Entry) []Entry {
	done := make(map[string]bool)
	for _, e := range entries {
		if e.Outcome != Submitted {
			done[e.Ref] = true
		}
	}
	var pending []Entry
	for _, e := range entries {
		if e.Outcome == Submitted && !done[e.Ref] {
			pending = append(pending, e)
		}
	}
	return pending
}
