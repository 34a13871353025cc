package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"sort"
	"strings"
	"sync"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/lovekaizen/agentsea/logging"
	"github.com/lovekaizen/agentsea/tool"
)

// RegistryOptions configure a Registry.
type RegistryOptions struct {
	// ClientName and ClientVersion identify this process in the MCP
	// handshake.
	ClientName    string
	ClientVersion string
	Logger        logging.Logger
}

type serverConn struct {
	spec    ServerSpec
	session *mcpsdk.ClientSession
	tools   []ToolInfo // namespaced, sorted by Name
}

// Registry holds live sessions to MCP servers and proxies tool listing and
// invocation. Safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	servers map[string]*serverConn
	order   []string // registration order

	clientName    string
	clientVersion string
	logger        logging.Logger
}

// NewRegistry constructs an empty Registry.
func NewRegistry(optFns ...func(o *RegistryOptions)) *Registry {
	opts := RegistryOptions{
		ClientName:    "agentsea",
		ClientVersion: "dev",
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Registry{
		servers:       make(map[string]*serverConn),
		clientName:    opts.ClientName,
		clientVersion: opts.ClientVersion,
		logger:        logging.OrNoOp(opts.Logger),
	}
}

// AddServer connects to the server described by spec, performs the MCP
// handshake, fetches its initial tool list, and registers it under
// spec.Name. A handshake or listing failure is returned as a
// *ConnectionError and leaves the registry unchanged.
func (r *Registry) AddServer(ctx context.Context, spec ServerSpec) error {
	transport, err := buildTransport(ctx, spec)
	if err != nil {
		return &ConnectionError{Server: spec.Name, Err: err}
	}
	return r.AddServerTransport(ctx, spec, transport)
}

// AddServerTransport is AddServer with a caller-supplied transport. It is the
// hook for in-memory transports in tests and for transports the spec syntax
// cannot express.
func (r *Registry) AddServerTransport(ctx context.Context, spec ServerSpec, transport mcpsdk.Transport) error {
	if err := validateName(spec.Name); err != nil {
		return err
	}

	r.mu.RLock()
	_, exists := r.servers[spec.Name]
	r.mu.RUnlock()
	if exists {
		return fmt.Errorf("mcp server %q already registered", spec.Name)
	}

	client := mcpsdk.NewClient(&mcpsdk.Implementation{Name: r.clientName, Version: r.clientVersion}, nil)
	session, err := client.Connect(ctx, transport, nil)
	if err != nil {
		return &ConnectionError{Server: spec.Name, Err: fmt.Errorf("connect: %w", err)}
	}

	tools, err := r.fetchTools(ctx, spec.Name, session)
	if err != nil {
		_ = session.Close()
		return &ConnectionError{Server: spec.Name, Err: fmt.Errorf("list tools: %w", err)}
	}

	r.mu.Lock()
	if _, exists := r.servers[spec.Name]; exists {
		r.mu.Unlock()
		_ = session.Close()
		return fmt.Errorf("mcp server %q already registered", spec.Name)
	}
	r.servers[spec.Name] = &serverConn{spec: spec, session: session, tools: tools}
	r.order = append(r.order, spec.Name)
	r.mu.Unlock()

	r.logger.Info("mcp.server.connected", "server", spec.Name, "transport", string(spec.Transport), "tools", len(tools))
	return nil
}

// Tools returns the merged namespaced tool list across all servers, ordered
// by server registration then tool name. The per-server lists are the ones
// cached at connect or reload time; no network round trip happens here.
func (r *Registry) Tools() []ToolInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []ToolInfo
	for _, name := range r.order {
		out = append(out, r.servers[name].tools...)
	}
	return out
}

// ServerTools returns the cached tool list of a single server.
func (r *Registry) ServerTools(name string) ([]ToolInfo, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	conn, ok := r.servers[name]
	if !ok {
		return nil, fmt.Errorf("mcp server %q not registered", name)
	}
	return append([]ToolInfo(nil), conn.tools...), nil
}

// ReloadServerTools refetches one server's tool list and atomically replaces
// the cached entries. On failure the previous list stays in place.
func (r *Registry) ReloadServerTools(ctx context.Context, name string) error {
	r.mu.RLock()
	conn, ok := r.servers[name]
	r.mu.RUnlock()
	if !ok {
		return fmt.Errorf("mcp server %q not registered", name)
	}

	tools, err := r.fetchTools(ctx, name, conn.session)
	if err != nil {
		return &ConnectionError{Server: name, Err: fmt.Errorf("list tools: %w", err)}
	}

	r.mu.Lock()
	if current, ok := r.servers[name]; ok {
		current.tools = tools
	}
	r.mu.Unlock()

	r.logger.Debug("mcp.server.reloaded", "server", name, "tools", len(tools))
	return nil
}

// ServerInfo reports the state of one registered server.
func (r *Registry) ServerInfo(name string) (*ServerInfo, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conn, ok := r.servers[name]
	if !ok {
		return nil, fmt.Errorf("mcp server %q not registered", name)
	}

	info := &ServerInfo{
		Name:      name,
		Transport: conn.spec.Transport,
		Connected: conn.session != nil,
		ToolCount: len(conn.tools),
	}
	if conn.session != nil {
		if init := conn.session.InitializeResult(); init != nil && init.ServerInfo != nil {
			info.ReportedName = init.ServerInfo.Name
			info.ReportedVersion = init.ServerInfo.Version
		}
	}
	return info, nil
}

// ServerNames returns the registered server names in registration order.
func (r *Registry) ServerNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

// Invoke calls the tool identified by its qualified "server:tool" name. The
// namespace prefix is stripped before the remote call; the server only ever
// sees bare tool names. Tool-reported failures and transport failures both
// surface as *tool.ToolError.
func (r *Registry) Invoke(ctx context.Context, qualified string, args map[string]any) (string, error) {
	serverName, remote, ok := SplitName(qualified)
	if !ok {
		return "", tool.NewToolError(qualified, "tool name is not namespaced as server:tool", tool.CodeNotFound, nil)
	}

	r.mu.RLock()
	conn, found := r.servers[serverName]
	r.mu.RUnlock()
	if !found {
		return "", tool.NewToolError(qualified, fmt.Sprintf("mcp server %q not registered", serverName), tool.CodeNotFound, nil)
	}

	result, err := conn.session.CallTool(ctx, &mcpsdk.CallToolParams{Name: remote, Arguments: args})
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return "", tool.NewToolError(qualified, "call timed out", tool.CodeTimeout, map[string]any{"server": serverName})
		}
		return "", tool.NewToolError(qualified, fmt.Sprintf("call failed: %v", err), tool.CodeExecution, map[string]any{"server": serverName})
	}

	content := contentText(result.Content)
	if result.IsError {
		return "", tool.NewToolError(qualified, content, tool.CodeExecution, map[string]any{"server": serverName})
	}
	return content, nil
}

// RemoveServer disconnects and unregisters one server. Its tools disappear
// from Tools immediately.
func (r *Registry) RemoveServer(name string) error {
	r.mu.Lock()
	conn, ok := r.servers[name]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("mcp server %q not registered", name)
	}
	delete(r.servers, name)
	for i, n := range r.order {
		if n == name {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	r.mu.Unlock()

	if conn.session != nil {
		if err := conn.session.Close(); err != nil {
			r.logger.Warn("mcp.server.close_failed", "server", name, "error", err)
		}
	}
	r.logger.Info("mcp.server.removed", "server", name)
	return nil
}

// DisconnectAll closes every session and empties the registry. Close errors
// are logged, not returned; calling it twice is harmless.
func (r *Registry) DisconnectAll() {
	r.mu.Lock()
	conns := make([]*serverConn, 0, len(r.servers))
	for _, conn := range r.servers {
		conns = append(conns, conn)
	}
	r.servers = make(map[string]*serverConn)
	r.order = nil
	r.mu.Unlock()

	for _, conn := range conns {
		if conn.session == nil {
			continue
		}
		if err := conn.session.Close(); err != nil {
			r.logger.Warn("mcp.server.close_failed", "server", conn.spec.Name, "error", err)
		}
	}
}

func (r *Registry) fetchTools(ctx context.Context, serverName string, session *mcpsdk.ClientSession) ([]ToolInfo, error) {
	var tools []ToolInfo
	for t, err := range session.Tools(ctx, nil) {
		if err != nil {
			return nil, err
		}
		tools = append(tools, ToolInfo{
			Name:        QualifyName(serverName, t.Name),
			Server:      serverName,
			RemoteName:  t.Name,
			Description: t.Description,
			InputSchema: schemaToMap(t.InputSchema),
		})
	}
	sort.Slice(tools, func(i, j int) bool { return tools[i].Name < tools[j].Name })
	return tools, nil
}

func validateName(name string) error {
	if name == "" {
		return fmt.Errorf("mcp server name is empty")
	}
	if strings.Contains(name, nameSeparator) {
		return fmt.Errorf("mcp server name %q must not contain %q", name, nameSeparator)
	}
	return nil
}

// buildTransport maps a ServerSpec to an SDK transport.
func buildTransport(ctx context.Context, spec ServerSpec) (mcpsdk.Transport, error) {
	switch spec.Transport {
	case TransportStdio:
		if strings.TrimSpace(spec.Command) == "" {
			return nil, fmt.Errorf("stdio transport requires a command")
		}
		cmd := exec.CommandContext(ctx, spec.Command, spec.Args...)
		if len(spec.Env) > 0 {
			cmd.Env = append(os.Environ(), spec.Env...)
		}
		return &mcpsdk.CommandTransport{Command: cmd}, nil
	case TransportSSE:
		if spec.URL == "" {
			return nil, fmt.Errorf("sse transport requires a url")
		}
		return &mcpsdk.SSEClientTransport{Endpoint: spec.URL}, nil
	case TransportStreamableHTTP:
		if spec.URL == "" {
			return nil, fmt.Errorf("streamable-http transport requires a url")
		}
		return &mcpsdk.StreamableClientTransport{Endpoint: spec.URL}, nil
	default:
		return nil, fmt.Errorf("unsupported transport %q", spec.Transport)
	}
}

// schemaToMap normalizes the SDK's schema representation to a plain map.
func schemaToMap(schema any) map[string]any {
	if schema == nil {
		return nil
	}
	if m, ok := schema.(map[string]any); ok {
		return m
	}
	raw, err := json.Marshal(schema)
	if err != nil {
		return nil
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil
	}
	return m
}

// contentText flattens a tool result's content blocks to text. Non-text
// blocks are JSON-encoded so structured payloads survive.
func contentText(blocks []mcpsdk.Content) string {
	var parts []string
	for _, block := range blocks {
		switch b := block.(type) {
		case *mcpsdk.TextContent:
			parts = append(parts, b.Text)
		default:
			if raw, err := json.Marshal(block); err == nil {
				parts = append(parts, string(raw))
			}
		}
	}
	return strings.Join(parts, "\n")
}
