package main

import (
	"encoding/json"
	"fmt"

	"github.com/ieql/engine/pkg/ieql"
)

// wirePattern is the JSON encoding of an ieql.Pattern.
type wirePattern struct {
	Content string `json:"content"`
	Kind    string `json:"kind"`
}

func (p wirePattern) toPattern() (ieql.Pattern, error) {
	switch p.Kind {
	case "literal":
		return ieql.Pattern{Content: p.Content, Kind: ieql.Literal}, nil
	case "regex":
		return ieql.Pattern{Content: p.Content, Kind: ieql.Regex}, nil
	default:
		return ieql.Pattern{}, fmt.Errorf("unknown pattern kind %q", p.Kind)
	}
}

type wireTrigger struct {
	ID      string      `json:"id"`
	Pattern wirePattern `json:"pattern"`
}

type wireScope struct {
	Pattern wirePattern `json:"pattern"`
	Content string      `json:"content"`
}

func (s wireScope) toScope() (ieql.Scope, error) {
	pattern, err := s.Pattern.toPattern()
	if err != nil {
		return ieql.Scope{}, err
	}
	kind, err := contentKindFromWire(s.Content)
	if err != nil {
		return ieql.Scope{}, err
	}
	return ieql.Scope{Pattern: pattern, Content: kind}, nil
}

func contentKindFromWire(s string) (ieql.ContentKind, error) {
	switch s {
	case "raw":
		return ieql.Raw, nil
	case "text":
		return ieql.Text, nil
	default:
		return 0, fmt.Errorf("unknown content kind %q", s)
	}
}

// ThresholdSource is the JSON shape for a threshold tree. It accepts
// both "requires" and the deprecated "required" key; the alias is
// resolved here at the loading boundary so the engine's Threshold type
// only ever sees Requires.
type ThresholdSource struct {
	Ref       string            `json:"ref,omitempty"`
	Considers []ThresholdSource `json:"considers,omitempty"`
	Requires  uint32            `json:"requires,omitempty"`
	Inverse   bool              `json:"inverse,omitempty"`
}

func (t *ThresholdSource) UnmarshalJSON(data []byte) error {
	type alias struct {
		Ref       string            `json:"ref,omitempty"`
		Considers []ThresholdSource `json:"considers,omitempty"`
		Requires  *uint32           `json:"requires,omitempty"`
		Required  *uint32           `json:"required,omitempty"`
		Inverse   bool              `json:"inverse,omitempty"`
	}
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}

	t.Ref = a.Ref
	t.Considers = a.Considers
	t.Inverse = a.Inverse

	switch {
	case a.Requires != nil:
		t.Requires = *a.Requires
	case a.Required != nil:
		t.Requires = *a.Required
	}
	return nil
}

func (t ThresholdSource) toThreshold() ieql.Threshold {
	if t.Ref != "" {
		return ieql.TriggerRef(t.Ref)
	}
	considers := make([]ieql.Threshold, len(t.Considers))
	for i, c := range t.Considers {
		considers[i] = c.toThreshold()
	}
	return ieql.Group(considers, t.Requires, t.Inverse)
}

var wireIncludeFields = map[string]ieql.IncludeField{
	"url":          ieql.IncludeURL,
	"domain":       ieql.IncludeDomain,
	"mime":         ieql.IncludeMime,
	"excerpt":      ieql.IncludeExcerpt,
	"full_content": ieql.IncludeFullContent,
}

type wireResponse struct {
	Kind    string   `json:"kind"`
	Include []string `json:"include"`
}

func (r wireResponse) toResponseDescriptor() (ieql.ResponseDescriptor, error) {
	var kind ieql.ResponseKind
	switch r.Kind {
	case "full":
		kind = ieql.Full
	case "partial":
		kind = ieql.Partial
	default:
		return ieql.ResponseDescriptor{}, fmt.Errorf("unknown response kind %q", r.Kind)
	}

	fields := make([]ieql.IncludeField, 0, len(r.Include))
	for _, name := range r.Include {
		f, ok := wireIncludeFields[name]
		if !ok {
			return ieql.ResponseDescriptor{}, fmt.Errorf("unknown include field %q", name)
		}
		fields = append(fields, f)
	}
	return ieql.NewResponseDescriptor(kind, fields...), nil
}

// wireQuery is the engine's own wire-neutral JSON encoding of a Query.
// The bracketed .ieql text format and its parser live outside this
// module; this is cmd/ieql-scan's own loader format, not that format.
type wireQuery struct {
	ID        string          `json:"id"`
	Triggers  []wireTrigger   `json:"triggers"`
	Scope     wireScope       `json:"scope"`
	Threshold ThresholdSource `json:"threshold"`
	Response  wireResponse    `json:"response"`
}

func (w wireQuery) toQuery() (ieql.Query, error) {
	triggers := make([]ieql.Trigger, len(w.Triggers))
	for i, t := range w.Triggers {
		pattern, err := t.Pattern.toPattern()
		if err != nil {
			return ieql.Query{}, fmt.Errorf("trigger %q: %w", t.ID, err)
		}
		triggers[i] = ieql.Trigger{ID: t.ID, Pattern: pattern}
	}

	scope, err := w.Scope.toScope()
	if err != nil {
		return ieql.Query{}, fmt.Errorf("query %q scope: %w", w.ID, err)
	}

	responseDescriptor, err := w.Response.toResponseDescriptor()
	if err != nil {
		return ieql.Query{}, fmt.Errorf("query %q response: %w", w.ID, err)
	}

	return ieql.Query{
		ID:        w.ID,
		Triggers:  triggers,
		Scope:     scope,
		Threshold: w.Threshold.toThreshold(),
		Response:  responseDescriptor,
	}, nil
}

// LoadQueries decodes a JSON array of wireQuery values and validates
// each one.
func LoadQueries(data []byte) ([]ieql.Query, error) {
	var wireQueries []wireQuery
	if err := json.Unmarshal(data, &wireQueries); err != nil {
		return nil, fmt.Errorf("decoding queries: %w", err)
	}

	queries := make([]ieql.Query, len(wireQueries))
	for i, wq := range wireQueries {
		q, err := wq.toQuery()
		if err != nil {
			return nil, err
		}
		if err := q.Validate(); err != nil {
			return nil, fmt.Errorf("query %q failed validation: %w", q.ID, err)
		}
		queries[i] = q
	}
	return queries, nil
}
