package manifest

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"go.yaml.in/yaml/v3"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

//go:embed schema/resource_list.schema.json
var schemaBytes []byte

const schemaURL = "resource_list.schema.json"

// listSchema compiles the embedded resource list schema on first use.
var listSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(schemaBytes))
	if err != nil {
		return nil, fmt.Errorf("unmarshaling schema JSON: %w", err)
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource(schemaURL, doc); err != nil {
		return nil, fmt.Errorf("adding schema resource: %w", err)
	}
	s, err := c.Compile(schemaURL)
	if err != nil {
		return nil, fmt.Errorf("compiling schema: %w", err)
	}
	return s, nil
})

var englishPrinter = message.NewPrinter(language.English)

// ValidationResult is the outcome of checking a resource list.
type ValidationResult struct {
	Valid  bool
	Issues []ValidationIssue
}

// ValidationIssue is one schema violation.
type ValidationIssue struct {
	Path    string // JSON pointer into the list, e.g. "/ocrd-x/0/name"
	Message string
	Keyword string // failing schema keyword, e.g. "required"
}

func (i ValidationIssue) String() string {
	if i.Path == "" {
		return i.Message
	}
	return i.Path + ": " + i.Message
}

// Messages flattens the issues for logging.
func (r *ValidationResult) Messages() []string {
	out := make([]string, len(r.Issues))
	for n, issue := range r.Issues {
		out[n] = issue.String()
	}
	return out
}

// ValidateList checks a YAML resource list against the embedded schema.
// A returned error means the document could not be checked at all.
func ValidateList(data []byte) (*ValidationResult, error) {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing YAML: %w", err)
	}
	if doc == nil {
		doc = map[string]any{}
	}
	return ValidateValue(doc)
}

// ValidateListFile reads path and checks it with ValidateList.
func ValidateListFile(path string) (*ValidationResult, error) {
	data, err := readFile(path)
	if err != nil {
		return nil, err
	}
	return ValidateList(data)
}

// ValidateValue checks an already decoded resource list.
func ValidateValue(doc any) (*ValidationResult, error) {
	schema, err := listSchema()
	if err != nil {
		return nil, fmt.Errorf("loading schema: %w", err)
	}

	// Round-trip through JSON so numbers arrive as json.Number.
	encoded, err := json.Marshal(jsonCompatible(doc))
	if err != nil {
		return nil, fmt.Errorf("converting to JSON: %w", err)
	}
	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(encoded))
	if err != nil {
		return nil, fmt.Errorf("preparing JSON for validation: %w", err)
	}

	err = schema.Validate(inst)
	if err == nil {
		return &ValidationResult{Valid: true}, nil
	}
	var verr *jsonschema.ValidationError
	if !errors.As(err, &verr) {
		return nil, fmt.Errorf("validating resource list: %w", err)
	}
	return &ValidationResult{Issues: leafIssues(verr)}, nil
}

// leafIssues flattens the cause tree into distinct issues sorted by path.
func leafIssues(root *jsonschema.ValidationError) []ValidationIssue {
	var issues []ValidationIssue
	seen := map[ValidationIssue]struct{}{}

	pending := []*jsonschema.ValidationError{root}
	for len(pending) > 0 {
		ve := pending[len(pending)-1]
		pending = pending[:len(pending)-1]
		if len(ve.Causes) > 0 {
			pending = append(pending, ve.Causes...)
			continue
		}
		issue, ok := toIssue(ve)
		if !ok {
			continue
		}
		if _, dup := seen[issue]; dup {
			continue
		}
		seen[issue] = struct{}{}
		issues = append(issues, issue)
	}

	if len(issues) == 0 {
		return []ValidationIssue{{Message: root.Error()}}
	}
	slices.SortStableFunc(issues, func(a, b ValidationIssue) int {
		if c := strings.Compare(a.Path, b.Path); c != 0 {
			return c
		}
		return strings.Compare(a.Message, b.Message)
	})
	return issues
}

func toIssue(ve *jsonschema.ValidationError) (ValidationIssue, bool) {
	if ve.ErrorKind == nil {
		return ValidationIssue{}, false
	}
	kw := ve.ErrorKind.KeywordPath()
	if len(kw) == 0 {
		return ValidationIssue{}, false
	}
	switch last := kw[len(kw)-1]; last {
	case "allOf", "$ref":
		return ValidationIssue{}, false
	default:
		issue := ValidationIssue{
			Message: ve.ErrorKind.LocalizedString(englishPrinter),
			Keyword: last,
		}
		if len(ve.InstanceLocation) > 0 {
			issue.Path = "/" + strings.Join(ve.InstanceLocation, "/")
		}
		return issue, true
	}
}

// jsonCompatible rewrites decoded YAML so encoding/json accepts it.
// Unquoted timestamps are kept as RFC 3339 strings.
func jsonCompatible(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, e := range val {
			out[k] = jsonCompatible(e)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(val))
		for k, e := range val {
			out[fmt.Sprint(k)] = jsonCompatible(e)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, e := range val {
			out[i] = jsonCompatible(e)
		}
		return out
	case time.Time:
		return val.Format(time.RFC3339)
	}
	return v
}
