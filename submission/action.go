package submission

import (
	"bytes"
	"encoding/json"
)

type Kind string

const (
	KindPublishLevel Kind = "publish_level"
	KindDeleteLevel  Kind = "delete_level"
)

// Action is the tagged envelope produced by Validator.Decode. The concrete
// type is *PublishLevel or *DeleteLevel.
type Action interface {
	Kind() Kind
}

type PublishLevel struct {
	// ID is whatever the submitter sent; the pipeline keys levels by the
	// submission number instead.
	ID   json.RawMessage `json:"id,omitempty"`
	Data json.RawMessage `json:"data"`
}

func (*PublishLevel) Kind() Kind { return KindPublishLevel }

// Fields returns Data as an object when it is one. Numbers stay json.Number.
func (p *PublishLevel) Fields() (map[string]any, bool) {
	dec := json.NewDecoder(bytes.NewReader(p.Data))
	dec.UseNumber()
	var fields map[string]any
	if err := dec.Decode(&fields); err != nil || fields == nil {
		return nil, false
	}
	return fields, true
}

type DeleteLevel struct {
	ID string `json:"id"`
}

func (*DeleteLevel) Kind() Kind { return KindDeleteLevel }
