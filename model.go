package main

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
)

// Field is one column value carried into a document.
type Field struct {
	Name  string
	Value any
}

// Document is one migrated row. Fields keep the source column order.
type Document []Field

// Get returns the value of the named field.
func (d Document) Get(name string) (any, bool) {
	for _, f := range d {
		if f.Name == name {
			return f.Value, true
		}
	}
	return nil, false
}

func (d Document) Len() int { return len(d) }

// Names returns the field names in column order.
func (d Document) Names() []string {
	names := make([]string, len(d))
	for i, f := range d {
		names[i] = f.Name
	}
	return names
}

// bsonD converts the document for the MongoDB driver, keeping field order.
func (d Document) bsonD() bson.D {
	out := make(bson.D, len(d))
	for i, f := range d {
		out[i] = bson.E{Key: f.Name, Value: f.Value}
	}
	return out
}

// MigrationPayload is the unit handed from the extractor to the loader.
type MigrationPayload struct {
	Namespace   string
	Collections map[string][]Document
}

// Validate checks the loader preconditions without modifying the payload.
func (p *MigrationPayload) Validate() error {
	if p == nil {
		return newError(KindInvalidPayload, "payload is nil")
	}
	if strings.TrimSpace(p.Namespace) == "" {
		return newError(KindInvalidPayload, "database name missing in payload")
	}
	if p.Collections == nil {
		return newError(KindInvalidPayload, "collections missing in payload")
	}
	return nil
}

// Names returns the collection names sorted.
func (p *MigrationPayload) Names() []string {
	names := make([]string, 0, len(p.Collections))
	for name := range p.Collections {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// DocumentCount returns the number of documents across all collections.
func (p *MigrationPayload) DocumentCount() int {
	n := 0
	for _, docs := range p.Collections {
		n += len(docs)
	}
	return n
}

// WriteMode selects what happens to existing documents before a collection is written.
type WriteMode int

const (
	// ModeReplace drops the collection before inserting.
	ModeReplace WriteMode = iota
	// ModeAppend inserts alongside existing documents.
	ModeAppend
)

func (m WriteMode) String() string {
	switch m {
	case ModeReplace:
		return "replace"
	case ModeAppend:
		return "append"
	default:
		return fmt.Sprintf("WriteMode(%d)", int(m))
	}
}

// ParseWriteMode parses "replace" or "append". An empty string means replace.
func ParseWriteMode(s string) (WriteMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "replace":
		return ModeReplace, nil
	case "append":
		return ModeAppend, nil
	default:
		return ModeReplace, fmt.Errorf("mode must be one of: replace, append (got %q)", s)
	}
}

func (m WriteMode) MarshalText() ([]byte, error) {
	switch m {
	case ModeReplace, ModeAppend:
		return []byte(m.String()), nil
	default:
		return nil, fmt.Errorf("unknown write mode %d", int(m))
	}
}

func (m *WriteMode) UnmarshalText(text []byte) error {
	parsed, err := ParseWriteMode(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// CollectionState tracks one collection through the load:
// Pending -> Cleared (replace only) -> Writing -> Verifying -> Succeeded|Failed.
type CollectionState int

const (
	StatePending CollectionState = iota
	StateCleared
	StateWriting
	StateVerifying
	StateSucceeded
	StateFailed
)

func (s CollectionState) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateCleared:
		return "cleared"
	case StateWriting:
		return "writing"
	case StateVerifying:
		return "verifying"
	case StateSucceeded:
		return "succeeded"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("CollectionState(%d)", int(s))
	}
}

func (s CollectionState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// LoadResult is the outcome for a single collection.
type LoadResult struct {
	Collection    string
	Namespace     string
	ExpectedCount int
	ActualCount   int
	StoredCount   int64
	Mode          WriteMode
	State         CollectionState
	Err           error
	Duration      time.Duration
}

func (r LoadResult) Succeeded() bool { return r.State == StateSucceeded }
