package tools

import (
	"context"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"

	logx "github.com/fastflow/nexus/pkg/logger"
)

// Entry pairs a tool's declared schema with its executable implementation.
// Registration order is significant: the selector uses it as the tie-breaker.
type Entry struct {
	Info *schema.ToolInfo
	Tool tool.InvokableTool
}

// Registry holds the tool set available to one conversation turn.
type Registry struct {
	entries []Entry
	byName  map[string]Entry
}

// NewRegistry builds a registry from the given entries, keeping order.
func NewRegistry(entries ...Entry) *Registry {
	r := &Registry{
		entries: entries,
		byName:  make(map[string]Entry, len(entries)),
	}
	for _, e := range entries {
		r.byName[e.Info.Name] = e
	}
	return r
}

// Entries returns all registered tools in registration order.
func (r *Registry) Entries() []Entry {
	return r.entries
}

// Resolve looks a tool up by name.
func (r *Registry) Resolve(name string) (Entry, bool) {
	e, ok := r.byName[name]
	return e, ok
}

// Infos returns the schemas of the given entries, preserving order.
func Infos(entries []Entry) []*schema.ToolInfo {
	infos := make([]*schema.ToolInfo, 0, len(entries))
	for _, e := range entries {
		infos = append(infos, e.Info)
	}
	return infos
}

// Execute runs the named tool with the given JSON arguments. A failed lookup
// or execution is returned as an error-shaped JSON payload rather than a Go
// error so the loop can record it as a failed tool result and continue.
func (r *Registry) Execute(ctx context.Context, name, argumentsJSON string) string {
	entry, ok := r.Resolve(name)
	if !ok {
		logx.Warn().Str("tool", name).Msg("Tool not registered")
		return `{"error": "unknown tool: ` + name + `"}`
	}
	out, err := entry.Tool.InvokableRun(ctx, argumentsJSON)
	if err != nil {
		logx.Error().Err(err).Str("tool", name).Msg("Tool execution failed")
		return "error: " + err.Error()
	}
	return out
}
