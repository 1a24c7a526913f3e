package mcp

import (
	"context"
	"net/http"
	"os"
	"os/exec"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"
)

const clientName = "promptwire"

// dialServer establishes a session to a server, choosing the transport from
// the configuration: streamable HTTP for URL servers, a spawned subprocess
// speaking stdio for command servers.
func dialServer(ctx context.Context, cfg ServerConfig) (session, error) {
	client := sdk.NewClient(&sdk.Implementation{Name: clientName, Version: "1.0.0"}, nil)

	var transport sdk.Transport
	if cfg.URL != "" {
		httpClient := http.DefaultClient
		if len(cfg.Headers) > 0 {
			httpClient = &http.Client{
				Transport: &headerRoundTripper{headers: cfg.Headers, next: http.DefaultTransport},
			}
		}
		transport = &sdk.StreamableClientTransport{Endpoint: cfg.URL, HTTPClient: httpClient}
	} else {
		cmd := exec.Command(cfg.Command, cfg.Args...)
		cmd.Dir = cfg.Cwd
		if len(cfg.Env) > 0 {
			cmd.Env = os.Environ()
			for k, v := range cfg.Env {
				cmd.Env = append(cmd.Env, k+"="+v)
			}
		}
		transport = &sdk.CommandTransport{Command: cmd}
	}

	return client.Connect(ctx, transport, nil)
}

// headerRoundTripper attaches static headers to every outgoing request.
type headerRoundTripper struct {
	headers map[string]string
	next    http.RoundTripper
}

func (h *headerRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	clone := req.Clone(req.Context())
	for k, v := range h.headers {
		clone.Header.Set(k, v)
	}
	return h.next.RoundTrip(clone)
}
