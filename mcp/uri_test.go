package mcp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseToolURI(t *testing.T) {
	tests := []struct {
		name     string
		uri      string
		server   string
		toolName string
		wantErr  bool
	}{
		{name: "simple", uri: "mcp://search/web_search", server: "search", toolName: "web_search"},
		{name: "wildcard", uri: "mcp://search/*", server: "search", toolName: "*"},
		{name: "tool with slash", uri: "mcp://files/read/deep", server: "files", toolName: "read/deep"},
		{name: "empty", uri: "", wantErr: true},
		{name: "wrong scheme", uri: "http://x", wantErr: true},
		{name: "no tool part", uri: "mcp://onlyserver", wantErr: true},
		{name: "empty server", uri: "mcp:///tool", wantErr: true},
		{name: "empty tool", uri: "mcp://server/", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server, toolName, err := ParseToolURI(tt.uri)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidToolURI)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.server, server)
			assert.Equal(t, tt.toolName, toolName)
		})
	}
}

func TestIsToolURI(t *testing.T) {
	assert.True(t, IsToolURI("mcp://search/web_search"))
	assert.True(t, IsToolURI("mcp://broken"))
	assert.False(t, IsToolURI("web_search"))
	assert.False(t, IsToolURI("https://example.com"))
}
