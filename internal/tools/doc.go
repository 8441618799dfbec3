// Package tools maps the MCP tool surface onto the Bioclin REST API.
//
// # Catalogue
//
// The tool set is declared in an embedded YAML catalogue rather than in code:
// each entry names the tool, the endpoint it calls, the argument placement
// (path, query string, JSON body, or form body), and a JSON schema for its
// arguments. Schemas are compiled once at load time; a malformed catalogue
// fails Load rather than surfacing per-call.
//
// # Routing
//
// The Router validates call arguments against the tool's schema, substitutes
// {placeholder} path segments, splits the remaining arguments across the
// query string and request body per the route's encoding, and dispatches to
// the API client. The router itself is stateless; credential handling lives
// in the client.
package tools
