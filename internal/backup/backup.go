// Package backup exports every durable study key into one versioned
// document and merges such a document back into a store.
package backup

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/xeipuuv/gojsonschema"

	"github.com/p-n-ai/pai-study/internal/state"
)

const (
	// Version tags every exported document.
	Version = "pai-study/1"

	VersionField = "_version"
	DateField    = "_exportDate"
)

var (
	// ErrInvalidDocument is returned for input that is not a recognised
	// export document. Nothing is written.
	ErrInvalidDocument = errors.New("backup: not a valid export document")
	// ErrNothingToImport is returned when no key in the document could be
	// parsed. Nothing is written.
	ErrNothingToImport = errors.New("backup: document contains no importable keys")
)

// documentSchema requires the version tag and a string for every property.
// Each value is the raw stored text of one key.
var documentSchema = gojsonschema.NewStringLoader(`{
	"type": "object",
	"required": ["` + VersionField + `"],
	"properties": {
		"` + VersionField + `": {"type": "string", "enum": ["` + Version + `"]},
		"` + DateField + `": {"type": "string"}
	},
	"additionalProperties": {"type": "string"}
}`)

// Document maps durable keys to their raw stored text, plus the
// VersionField and DateField entries.
type Document map[string]string

// ExportDate returns the parsed export timestamp, if present.
func (d Document) ExportDate() (time.Time, bool) {
	t, err := time.Parse(time.RFC3339, d[DateField])
	return t, err == nil
}

// Export snapshots every durable key currently present in the store's
// backend.
func Export(s *state.Store) (Document, error) {
	doc := Document{
		VersionField: Version,
		DateField:    s.Now().UTC().Format(time.RFC3339),
	}
	backend := s.Backend()
	for _, key := range state.StorageKeys() {
		text, ok, err := backend.Read(key)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", key, err)
		}
		if ok {
			doc[key] = text
		}
	}
	return doc, nil
}

// Skipped is a document key that was not imported.
type Skipped struct {
	Key    string `json:"key"`
	Reason string `json:"reason"`
}

// Result reports what Import did.
type Result struct {
	Imported []string  `json:"imported"`
	Skipped  []Skipped `json:"skipped,omitempty"`
}

// Import validates data as an export document, writes every key whose text
// parses with its slot's decoder, and reloads the store. Keys absent from
// the document are left untouched. Unknown keys and keys that fail to parse
// are skipped and reported.
func Import(s *state.Store, data []byte) (Result, error) {
	doc, err := Parse(data)
	if err != nil {
		return Result{}, err
	}

	var res Result
	valid := make(map[string]string)
	for _, key := range sortedKeys(doc) {
		if key == VersionField || key == DateField {
			continue
		}
		if _, err := state.ParseStored(key, doc[key]); err != nil {
			reason := err.Error()
			if errors.Is(err, state.ErrUnknownKey) {
				reason = "unknown key"
			}
			res.Skipped = append(res.Skipped, Skipped{Key: key, Reason: reason})
			continue
		}
		valid[key] = doc[key]
	}
	if len(valid) == 0 {
		return res, ErrNothingToImport
	}

	backend := s.Backend()
	for _, key := range sortedKeys(valid) {
		if err := backend.Write(key, valid[key]); err != nil {
			// Keys already written stay written; the reload below makes the
			// store reflect them.
			s.Reload()
			return res, fmt.Errorf("writing %s: %w", key, err)
		}
		res.Imported = append(res.Imported, key)
	}
	s.Reload()

	slog.Info("backup imported", "imported", len(res.Imported), "skipped", len(res.Skipped))
	return res, nil
}

// Parse decodes and validates an export document without touching any
// store.
func Parse(data []byte) (Document, error) {
	result, err := gojsonschema.Validate(documentSchema, gojsonschema.NewBytesLoader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return nil, fmt.Errorf("%w: %s", ErrInvalidDocument, strings.Join(msgs, "; "))
	}

	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	return doc, nil
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
