// ABOUTME: Embedded endpoint catalogue mapping tool names to Bioclin REST routes
// ABOUTME: Compiles each tool's JSON schema at load time for argument validation

package tools

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

//go:embed catalogue.yaml
var catalogueYAML []byte

// Argument placements a route can declare.
const (
	EncodingJSON  = "json"
	EncodingForm  = "form"
	EncodingQuery = "query"
	EncodingNone  = "none"
)

// Route describes one tool: the REST endpoint it maps to and where its
// arguments go. Names listed in Query are forced onto the query string even
// when the route's body encoding is json; the login flow uses FormDefaults to
// inject fixed fields like grant_type.
type Route struct {
	Name         string            `yaml:"name"`
	Description  string            `yaml:"description"`
	Method       string            `yaml:"method"`
	Path         string            `yaml:"path"`
	Encoding     string            `yaml:"encoding"`
	Query        []string          `yaml:"query"`
	FormDefaults map[string]string `yaml:"form_defaults"`
	Schema       map[string]any    `yaml:"schema"`

	schemaJSON json.RawMessage
	compiled   *jsonschema.Schema
}

// SchemaJSON returns the route's input schema as JSON, for tool listings.
func (r *Route) SchemaJSON() json.RawMessage {
	return r.schemaJSON
}

// ValidateArgs checks args against the route's schema. Arguments are
// round-tripped through JSON first so callers can pass native Go values.
func (r *Route) ValidateArgs(args map[string]any) error {
	if args == nil {
		args = map[string]any{}
	}
	data, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("encoding arguments: %w", err)
	}
	var decoded any
	if err := json.Unmarshal(data, &decoded); err != nil {
		return fmt.Errorf("decoding arguments: %w", err)
	}
	if err := r.compiled.Validate(decoded); err != nil {
		return fmt.Errorf("arguments do not match the %s schema: %w", r.Name, err)
	}
	return nil
}

// Catalogue is the loaded tool set, in declaration order.
type Catalogue struct {
	routes []*Route
	byName map[string]*Route
}

var validEncodings = map[string]bool{
	EncodingJSON:  true,
	EncodingForm:  true,
	EncodingQuery: true,
	EncodingNone:  true,
}

// Load parses the embedded catalogue and compiles every route's schema.
// A malformed catalogue is a programming error, so Load fails loudly rather
// than skipping bad entries.
func Load() (*Catalogue, error) {
	var doc struct {
		Tools []*Route `yaml:"tools"`
	}
	if err := yaml.Unmarshal(catalogueYAML, &doc); err != nil {
		return nil, fmt.Errorf("parsing catalogue: %w", err)
	}
	if len(doc.Tools) == 0 {
		return nil, fmt.Errorf("catalogue is empty")
	}

	cat := &Catalogue{
		routes: doc.Tools,
		byName: make(map[string]*Route, len(doc.Tools)),
	}
	compiler := jsonschema.NewCompiler()

	for _, route := range doc.Tools {
		if route.Name == "" || route.Method == "" || route.Path == "" {
			return nil, fmt.Errorf("catalogue entry %q: name, method, and path are required", route.Name)
		}
		if _, dup := cat.byName[route.Name]; dup {
			return nil, fmt.Errorf("catalogue entry %q: duplicate name", route.Name)
		}
		if !validEncodings[route.Encoding] {
			return nil, fmt.Errorf("catalogue entry %q: unknown encoding %q", route.Name, route.Encoding)
		}
		if route.Schema == nil {
			return nil, fmt.Errorf("catalogue entry %q: missing schema", route.Name)
		}

		schemaJSON, err := json.Marshal(route.Schema)
		if err != nil {
			return nil, fmt.Errorf("catalogue entry %q: encoding schema: %w", route.Name, err)
		}
		route.schemaJSON = schemaJSON

		resource := route.Name + ".json"
		if err := compiler.AddResource(resource, strings.NewReader(string(schemaJSON))); err != nil {
			return nil, fmt.Errorf("catalogue entry %q: registering schema: %w", route.Name, err)
		}
		schema, err := compiler.Compile(resource)
		if err != nil {
			return nil, fmt.Errorf("catalogue entry %q: compiling schema: %w", route.Name, err)
		}
		route.compiled = schema

		cat.byName[route.Name] = route
	}

	return cat, nil
}

// Routes returns the tool routes in declaration order.
func (c *Catalogue) Routes() []*Route {
	return c.routes
}

// Get returns the named route, or nil when unknown.
func (c *Catalogue) Get(name string) *Route {
	return c.byName[name]
}

// Len returns the number of routes.
func (c *Catalogue) Len() int {
	return len(c.routes)
}
