// Package docstore persists every author's submitted levels as one JSON
// document, keyed by username.
package docstore

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
)

// Document maps username → that user's entry.
type Document map[string]*UserEntry

type UserEntry struct {
	Avatar string       `json:"avatar"`
	Levels []LevelEntry `json:"levels"`
}

// LevelEntry is one stored level: {id, ...author fields, publishAt, updatedAt}.
type LevelEntry map[string]any

// Reserved LevelEntry keys.
const (
	FieldID        = "id"
	FieldPublishAt = "publishAt"
	FieldUpdatedAt = "updatedAt"

	// FieldUnpublishedAt marks an entry hidden through the API. A new
	// submission for the same id replaces the entry and drops the mark.
	FieldUnpublishedAt = "unpublishedAt"
)

// ID returns the entry id as a string. Older documents stored numeric ids.
func (e LevelEntry) ID() string {
	switch v := e[FieldID].(type) {
	case string:
		return v
	case json.Number:
		return v.String()
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int64:
		return strconv.FormatInt(v, 10)
	case int:
		return strconv.Itoa(v)
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

// Data returns the entry without its bookkeeping keys.
func (e LevelEntry) Data() map[string]any {
	out := make(map[string]any, len(e))
	for k, v := range e {
		switch k {
		case FieldID, FieldPublishAt, FieldUpdatedAt, FieldUnpublishedAt:
			continue
		}
		out[k] = v
	}
	return out
}

// Unpublished reports whether the entry carries the unpublish mark.
func (e LevelEntry) Unpublished() bool {
	_, ok := e[FieldUnpublishedAt]
	return ok
}

// EnsureUser returns the entry for name, creating an empty one if needed.
func (d Document) EnsureUser(name string) *UserEntry {
	u, ok := d[name]
	if !ok || u == nil {
		u = &UserEntry{Levels: []LevelEntry{}}
		d[name] = u
	}
	return u
}

// Usernames returns the document's users in sorted order.
func (d Document) Usernames() []string {
	names := make([]string, 0, len(d))
	for name := range d {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Find returns the entry with the given id.
func (u *UserEntry) Find(id string) (LevelEntry, bool) {
	for _, l := range u.Levels {
		if l.ID() == id {
			return l, true
		}
	}
	return nil, false
}

// Upsert replaces the entry with the same id in place, or appends it.
func (u *UserEntry) Upsert(entry LevelEntry) (replaced bool) {
	id := entry.ID()
	for i, l := range u.Levels {
		if l.ID() == id {
			u.Levels[i] = entry
			return true
		}
	}
	u.Levels = append(u.Levels, entry)
	return false
}

// Remove deletes every entry with the given id and reports how many went.
func (u *UserEntry) Remove(id string) int {
	kept := u.Levels[:0]
	removed := 0
	for _, l := range u.Levels {
		if l.ID() == id {
			removed++
			continue
		}
		kept = append(kept, l)
	}
	u.Levels = kept
	return removed
}

// Decode parses a serialized document. Empty input is an empty document.
// Numbers are kept as json.Number so opaque level data round-trips exactly.
func Decode(data []byte) (Document, error) {
	doc := Document{}
	if len(bytes.TrimSpace(data)) == 0 {
		return doc, nil
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	for name, u := range doc {
		if u == nil {
			doc[name] = &UserEntry{Levels: []LevelEntry{}}
			continue
		}
		if u.Levels == nil {
			u.Levels = []LevelEntry{}
		}
	}
	return doc, nil
}

// Encode serializes the document the way it is stored.
func Encode(doc Document) ([]byte, error) {
	if doc == nil {
		doc = Document{}
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	return append(data, '\n'), nil
}
