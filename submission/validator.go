package submission

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
)

// actionSchemas is the registry of recognized action kinds. Each definition
// name is the Action Type value that selects it.
const actionSchemas = `
#publish_level: {
	id?:   _
	data!: _
	...
}

#delete_level: {
	id!: string & !=""
	...
}
`

// Validator decodes parsed sections into typed actions. A cue.Context is not
// safe for concurrent use, so Decode serializes on mu.
type Validator struct {
	mu      sync.Mutex
	ctx     *cue.Context
	schemas map[Kind]cue.Value
}

func NewValidator() (*Validator, error) {
	ctx := cuecontext.New()
	registry := ctx.CompileString(actionSchemas, cue.Filename("actions.cue"))
	if err := registry.Err(); err != nil {
		return nil, fmt.Errorf("compile action schemas: %w", err)
	}

	v := &Validator{ctx: ctx, schemas: make(map[Kind]cue.Value)}
	for _, kind := range []Kind{KindPublishLevel, KindDeleteLevel} {
		schema := registry.LookupPath(cue.ParsePath("#" + string(kind)))
		if !schema.Exists() {
			return nil, fmt.Errorf("schema for %s missing from registry", kind)
		}
		v.schemas[kind] = schema
	}
	return v, nil
}

// Decode validates the "Action Type" and "Payload" sections and returns the
// matching action. Every failure matches ErrInvalidSubmission.
func (v *Validator) Decode(sections *Sections) (Action, error) {
	rawKind, ok := sections.Get(SectionActionType)
	if !ok {
		return nil, &MissingFieldError{Field: SectionActionType}
	}
	rawPayload, ok := sections.Get(SectionPayload)
	if !ok {
		return nil, &MissingFieldError{Field: SectionPayload}
	}

	payload, err := normalizeJSON([]byte(stripCodeFence(rawPayload)))
	if err != nil {
		return nil, &MalformedPayloadError{Err: err}
	}

	kind := Kind(strings.TrimSpace(rawKind))
	schema, ok := v.schemas[kind]
	if !ok {
		return nil, &UnknownActionError{Kind: string(kind)}
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(payload, &obj); err != nil || obj == nil {
		return nil, &ValidationError{Kind: kind, Reason: "payload must be a JSON object"}
	}

	if err := v.checkSchema(schema, payload); err != nil {
		return nil, &ValidationError{Kind: kind, Reason: err.Error()}
	}

	switch kind {
	case KindPublishLevel:
		if _, ok := obj["data"]; !ok {
			return nil, &ValidationError{Kind: kind, Reason: "data: field is required"}
		}
		return &PublishLevel{ID: obj["id"], Data: obj["data"]}, nil
	case KindDeleteLevel:
		var p DeleteLevel
		if err := json.Unmarshal(payload, &p); err != nil {
			return nil, &ValidationError{Kind: kind, Reason: err.Error()}
		}
		if p.ID == "" {
			return nil, &ValidationError{Kind: kind, Reason: "id: field is required"}
		}
		return &p, nil
	}
	return nil, &UnknownActionError{Kind: string(kind)}
}

func (v *Validator) checkSchema(schema cue.Value, payload []byte) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	value := v.ctx.CompileBytes(payload, cue.Filename("payload.json"))
	if err := value.Err(); err != nil {
		return err
	}
	if err := schema.Unify(value).Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("%s", strings.Join(errorLines(err), "; "))
	}
	return nil
}

// normalizeJSON re-encodes payload so duplicate keys collapse the way
// encoding/json reads them (last one wins). Numbers keep their literal text.
func normalizeJSON(payload []byte) ([]byte, error) {
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	if dec.More() {
		return nil, fmt.Errorf("unexpected data after top-level value")
	}
	return json.Marshal(v)
}

func errorLines(err error) []string {
	var lines []string
	for _, e := range cueerrors.Errors(err) {
		lines = append(lines, e.Error())
	}
	if len(lines) == 0 {
		lines = append(lines, err.Error())
	}
	return lines
}

// stripCodeFence removes a surrounding ``` / ```json fence, which issue
// forms add around rendered JSON fields.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	lines := strings.Split(s, "\n")
	if len(lines) < 2 || strings.TrimSpace(lines[len(lines)-1]) != "```" {
		return s
	}
	return strings.TrimSpace(strings.Join(lines[1:len(lines)-1], "\n"))
}
