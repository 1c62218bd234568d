// Package extract turns free-text prompts into validated event drafts by way
// of a language-model completion. The model reply is treated as untrusted
// input: the JSON object is located, schema-checked, defaulted, and its
// timestamps re-resolved before anything reaches persistence.
package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/andre-gcosta/App-Gestao-de-Eventos/llm"
)

// Defaults applied when the model omits or empties a field.
const (
	DefaultTitle    = "Untitled"
	DefaultLocation = "No location set"
	DefaultStatus   = "scheduled"
)

const DefaultTimeout = 15 * time.Second

// sourceOffsetSeconds is the fixed UTC-3 offset the model is instructed to
// emit and in which offset-less timestamps are interpreted.
const sourceOffsetSeconds = -3 * 60 * 60

// Draft is a fully-defaulted event payload ready for storage. Start and End
// are absolute UTC instants; the caller attaches the owning user.
type Draft struct {
	Title       string
	Description string
	Location    string
	Status      string
	Start       time.Time
	End         time.Time
}

type Options struct {
	// Location overrides the fixed UTC-3 source zone. Used in tests.
	Location *time.Location
	// Timeout bounds the provider round-trip. Defaults to DefaultTimeout.
	Timeout time.Duration
	// Now overrides the clock. Used in tests.
	Now func() time.Time
}

type Extractor struct {
	client  *llm.Client
	loc     *time.Location
	timeout time.Duration
	now     func() time.Time
}

func New(client *llm.Client, opts Options) *Extractor {
	x := &Extractor{
		client:  client,
		loc:     opts.Location,
		timeout: opts.Timeout,
		now:     opts.Now,
	}
	if x.loc == nil {
		x.loc = time.FixedZone("UTC-03:00", sourceOffsetSeconds)
	}
	if x.timeout <= 0 {
		x.timeout = DefaultTimeout
	}
	if x.now == nil {
		x.now = time.Now
	}
	return x
}

// draftSchema is the contract the model reply must satisfy. Shapes that do
// not match are rejected, never coerced.
var draftSchema = mustCompileSchema(`{
	"type": "object",
	"properties": {
		"title":       {"type": ["string", "null"]},
		"description": {"type": ["string", "null"]},
		"location":    {"type": ["string", "null"]},
		"status":      {"type": ["string", "null"]},
		"startDate":   {"type": "string"},
		"endDate":     {"type": "string"}
	},
	"required": ["startDate", "endDate"],
	"additionalProperties": false
}`)

func mustCompileSchema(src string) *jsonschema.Schema {
	var doc any
	if err := json.Unmarshal([]byte(src), &doc); err != nil {
		panic(fmt.Sprintf("invalid draft schema: %v", err))
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("event-draft.json", doc); err != nil {
		panic(fmt.Sprintf("invalid draft schema: %v", err))
	}
	schema, err := compiler.Compile("event-draft.json")
	if err != nil {
		panic(fmt.Sprintf("compile draft schema: %v", err))
	}
	return schema
}

type draftReply struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	Location    *string `json:"location"`
	Status      *string `json:"status"`
	StartDate   string  `json:"startDate"`
	EndDate     string  `json:"endDate"`
}

// Extract runs the full pipeline: completion, JSON extraction, schema
// validation, defaulting, and date resolution. Any step failing aborts the
// whole extraction; there are no partial drafts.
func (x *Extractor) Extract(ctx context.Context, prompt string) (Draft, error) {
	ctx, cancel := context.WithTimeout(ctx, x.timeout)
	defer cancel()

	today := x.now().In(x.loc)
	resp, err := x.client.Complete(ctx, llm.Request{
		System: systemPrompt(today),
		User:   prompt,
	})
	if err != nil {
		return Draft{}, fmt.Errorf("completion: %w", err)
	}

	raw, err := firstJSONObject(resp.Text)
	if err != nil {
		return Draft{}, err
	}

	var doc any
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return Draft{}, &ParseError{Reason: "reply is not valid JSON"}
	}
	if err := draftSchema.Validate(doc); err != nil {
		return Draft{}, &ParseError{Reason: "reply does not match the event shape"}
	}

	var reply draftReply
	if err := json.Unmarshal([]byte(raw), &reply); err != nil {
		return Draft{}, &ParseError{Reason: "reply does not match the event shape"}
	}

	d := Draft{
		Title:       stringOr(reply.Title, DefaultTitle),
		Description: stringOr(reply.Description, ""),
		Location:    stringOr(reply.Location, DefaultLocation),
		Status:      stringOr(reply.Status, DefaultStatus),
	}

	if d.Start, err = x.resolveDate("startDate", reply.StartDate); err != nil {
		return Draft{}, err
	}
	if d.End, err = x.resolveDate("endDate", reply.EndDate); err != nil {
		return Draft{}, err
	}
	return d, nil
}

func stringOr(s *string, def string) string {
	if s == nil || *s == "" {
		return def
	}
	return *s
}

// firstJSONObject returns the first balanced {...} substring of s. Models
// often wrap the object in prose or markdown fences; everything around the
// object is ignored.
func firstJSONObject(s string) (string, error) {
	depth := 0
	start := -1
	inString := false
	escaped := false
	for i, r := range s {
		if inString {
			switch {
			case escaped:
				escaped = false
			case r == '\\':
				escaped = true
			case r == '"':
				inString = false
			}
			continue
		}
		switch r {
		case '"':
			if depth > 0 {
				inString = true
			}
		case '{':
			if depth == 0 {
				start = i
			}
			depth++
		case '}':
			if depth > 0 {
				depth--
				if depth == 0 {
					return s[start : i+1], nil
				}
			}
		}
	}
	return "", &ParseError{Reason: "no JSON object in reply"}
}
