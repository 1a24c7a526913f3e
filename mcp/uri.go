package mcp

import (
	"errors"
	"fmt"
	"strings"
)

// Scheme is the URI scheme of remote tool references.
const Scheme = "mcp"

// Wildcard selects every tool of a server's catalog.
const Wildcard = "*"

// ErrInvalidToolURI reports a malformed remote tool reference. It is always
// returned before any connection attempt.
var ErrInvalidToolURI = errors.New("invalid remote tool reference")

// ParseToolURI splits an "mcp://server/tool" reference into its server and
// tool parts. The tool part may be the wildcard "*". Both parts must be
// non-empty.
func ParseToolURI(uri string) (server, toolName string, err error) {
	prefix := Scheme + "://"
	if !strings.HasPrefix(uri, prefix) {
		return "", "", fmt.Errorf("%w: %q must start with %q", ErrInvalidToolURI, uri, prefix)
	}
	rest := strings.TrimPrefix(uri, prefix)
	idx := strings.Index(rest, "/")
	if idx < 0 {
		return "", "", fmt.Errorf("%w: %q must look like %s://{server}/{tool}", ErrInvalidToolURI, uri, Scheme)
	}
	server = strings.TrimSpace(rest[:idx])
	toolName = strings.TrimSpace(rest[idx+1:])
	if server == "" {
		return "", "", fmt.Errorf("%w: %q has an empty server part", ErrInvalidToolURI, uri)
	}
	if toolName == "" {
		return "", "", fmt.Errorf("%w: %q has an empty tool part", ErrInvalidToolURI, uri)
	}
	return server, toolName, nil
}

// IsToolURI reports whether s looks like a remote tool reference (has the
// scheme prefix). It does not validate the rest of the shape.
func IsToolURI(s string) bool {
	return strings.HasPrefix(s, Scheme+"://")
}
