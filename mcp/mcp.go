// Package mcp manages connections to Model Context Protocol tool servers and
// exposes their tools under namespaced names. Each registered server
// contributes tools as "server:toolname", so identically named tools on
// different servers never collide. Invocations are proxied to the owning
// server's session.
package mcp

import (
	"fmt"
	"strings"
)

// Namespace separator between a server name and a tool name.
const nameSeparator = ":"

// TransportKind selects how a server is reached.
type TransportKind string

const (
	// TransportStdio launches the server as a subprocess and speaks over
	// stdin/stdout.
	TransportStdio TransportKind = "stdio"
	// TransportSSE connects to an HTTP server-sent-events endpoint.
	TransportSSE TransportKind = "sse"
	// TransportStreamableHTTP connects to a streamable HTTP endpoint.
	TransportStreamableHTTP TransportKind = "streamable-http"
)

// ServerSpec describes one MCP server to register. Name becomes the tool
// namespace prefix and must be unique within a Registry. Command/Args/Env
// apply to stdio transports; URL applies to the HTTP-family transports.
type ServerSpec struct {
	Name      string        `json:"name"`
	Transport TransportKind `json:"transport"`
	Command   string        `json:"command,omitempty"`
	Args      []string      `json:"args,omitempty"`
	Env       []string      `json:"env,omitempty"`
	URL       string        `json:"url,omitempty"`
}

// ToolInfo describes one remote tool under its qualified name.
type ToolInfo struct {
	// Name is the namespaced "server:tool" identifier.
	Name string `json:"name"`
	// Server is the registry name of the owning server.
	Server string `json:"server"`
	// RemoteName is the tool's bare name on the server.
	RemoteName  string         `json:"remote_name"`
	Description string         `json:"description,omitempty"`
	InputSchema map[string]any `json:"input_schema,omitempty"`
}

// ServerInfo is a snapshot of a registered server's state.
type ServerInfo struct {
	Name string `json:"name"`
	// ReportedName and ReportedVersion come from the server's handshake
	// metadata and may be empty.
	ReportedName    string        `json:"reported_name,omitempty"`
	ReportedVersion string        `json:"reported_version,omitempty"`
	Transport       TransportKind `json:"transport"`
	Connected       bool          `json:"connected"`
	ToolCount       int           `json:"tool_count"`
}

// ConnectionError reports a failure to establish or use a server connection.
type ConnectionError struct {
	Server string
	Err    error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("mcp server %q: %v", e.Server, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// SplitName splits a qualified "server:tool" name. ok is false when the name
// carries no namespace prefix.
func SplitName(qualified string) (server, tool string, ok bool) {
	server, tool, ok = strings.Cut(qualified, nameSeparator)
	if !ok || server == "" || tool == "" {
		return "", "", false
	}
	return server, tool, true
}

// QualifyName joins a server name and a bare tool name.
func QualifyName(server, tool string) string {
	return server + nameSeparator + tool
}
