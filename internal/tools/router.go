// ABOUTME: Routes validated tool calls to the Bioclin API client
// ABOUTME: Substitutes path placeholders and splits arguments across path, query, and body

package tools

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"regexp"
	"strconv"

	"github.com/vindhyads/bioclin-gateway/internal/api"
)

// ErrUnknownTool is returned for a tool name absent from the catalogue.
var ErrUnknownTool = errors.New("unknown tool")

var pathPlaceholder = regexp.MustCompile(`\{([^{}]+)\}`)

// Router executes tool calls by translating them into API requests. It holds
// no per-call state; one Router serves the whole process.
type Router struct {
	catalogue *Catalogue
	client    *api.Client
	logger    *slog.Logger
}

// NewRouter creates a router over the given catalogue and client.
func NewRouter(catalogue *Catalogue, client *api.Client, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{catalogue: catalogue, client: client, logger: logger}
}

// Catalogue returns the routed tool set.
func (r *Router) Catalogue() *Catalogue {
	return r.catalogue
}

// Call validates args against the tool's schema and performs the request.
// Arguments are placed per the route: path placeholders first, then any names
// the route forces onto the query string, then the remainder per the route's
// encoding.
func (r *Router) Call(ctx context.Context, name string, args map[string]any) (*api.Result, error) {
	route := r.catalogue.Get(name)
	if route == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTool, name)
	}
	if err := route.ValidateArgs(args); err != nil {
		return nil, err
	}

	// Copy so placement can consume arguments without mutating the caller's map.
	remaining := make(map[string]any, len(args))
	for k, v := range args {
		remaining[k] = v
	}

	path, err := substitutePath(route.Path, remaining)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}

	var opts api.CallOptions
	query := url.Values{}
	for _, key := range route.Query {
		if v, ok := remaining[key]; ok {
			query.Set(key, formatValue(v))
			delete(remaining, key)
		}
	}

	switch route.Encoding {
	case EncodingQuery:
		for k, v := range remaining {
			query.Set(k, formatValue(v))
		}
	case EncodingJSON:
		if len(remaining) > 0 {
			opts.Body = remaining
		}
	case EncodingForm:
		form := url.Values{}
		for k, v := range route.FormDefaults {
			form.Set(k, v)
		}
		for k, v := range remaining {
			form.Set(k, formatValue(v))
		}
		opts.Form = form
	case EncodingNone:
		// Path-only routes; the schema admits nothing else.
	}
	if len(query) > 0 {
		opts.Query = query
	}

	r.logger.Debug("tool call", "tool", name, "method", route.Method, "path", path)
	return r.client.Do(ctx, route.Method, path, opts)
}

// substitutePath fills {placeholder} segments from args, consuming the used
// arguments. Every placeholder must be supplied.
func substitutePath(path string, args map[string]any) (string, error) {
	var missing string
	out := pathPlaceholder.ReplaceAllStringFunc(path, func(m string) string {
		key := m[1 : len(m)-1]
		v, ok := args[key]
		if !ok {
			if missing == "" {
				missing = key
			}
			return m
		}
		delete(args, key)
		return url.PathEscape(formatValue(v))
	})
	if missing != "" {
		return "", fmt.Errorf("missing path argument %q", missing)
	}
	return out, nil
}

// formatValue renders an argument for a URL path, query, or form field.
// JSON numbers arrive as float64; integral values must not grow a ".0".
func formatValue(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case float64:
		if t == float64(int64(t)) {
			return strconv.FormatInt(int64(t), 10)
		}
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	default:
		return fmt.Sprintf("%v", t)
	}
}
