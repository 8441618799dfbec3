// Package mcp serves the Bioclin tool surface over the MCP stdio transport.
//
// # Transport
//
// Messages are newline-delimited JSON-RPC 2.0: one request per line on stdin,
// one response per line on stdout. EOF on stdin is the normal shutdown
// signal. Nothing but protocol frames is ever written to stdout; logs go to
// the configured logger.
//
// # Tool surface
//
// tools/list exposes every route from the embedded catalogue plus two local
// tools: bioclin_check_session inspects the stored session and verifies it
// against the identity endpoint, and bioclin_browser_login runs the
// interactive browser capture without leaving the MCP session.
//
// # Error policy
//
// Malformed frames and unknown methods get JSON-RPC errors. Failures inside
// a tool call come back as isError tool results with actionable text, so the
// calling agent can read them and decide to log in, retry, or give up.
// Authentication failures are classified against the local store to
// distinguish "never logged in", "login expired", and "server rejected the
// session".
package mcp
