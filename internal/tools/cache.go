package tools

import (
	"sync"

	"github.com/fastflow/nexus/internal/agent/model"
)

// sessionContext is the cached workflow context of one session: the last
// reported graph plus the workflow name/description.
type sessionContext struct {
	graph map[string]any
	meta  *model.WorkflowMeta
}

// ContextCache remembers the last workflow graph and meta each session
// reported, so follow-up requests may omit them. It is best-effort only and
// never a source of truth; the request body always wins when present.
type ContextCache struct {
	mu       sync.RWMutex
	sessions map[string]*sessionContext
}

// NewContextCache creates an empty cache. One instance is shared by all
// requests; it is injected, never reached through package state.
func NewContextCache() *ContextCache {
	return &ContextCache{sessions: make(map[string]*sessionContext)}
}

// Remember merges the request's workflow graph and meta into the session
// entry. Fields absent from the request keep their cached value.
func (c *ContextCache) Remember(reqCtx *model.ChatRequestContext) {
	if reqCtx.SessionID == "" {
		return
	}
	if reqCtx.WorkflowGraph == nil && reqCtx.WorkflowMeta == nil {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	entry := c.sessions[reqCtx.SessionID]
	if entry == nil {
		entry = &sessionContext{}
		c.sessions[reqCtx.SessionID] = entry
	}
	if reqCtx.WorkflowGraph != nil {
		entry.graph = reqCtx.WorkflowGraph
	}
	if reqCtx.WorkflowMeta != nil {
		meta := *reqCtx.WorkflowMeta
		entry.meta = &meta
	}
}

// Graph resolves the full workflow graph for a request: request body first,
// then the session cache, then an empty skeleton.
func (c *ContextCache) Graph(reqCtx *model.ChatRequestContext) map[string]any {
	if reqCtx.WorkflowGraph != nil {
		return reqCtx.WorkflowGraph
	}

	if reqCtx.SessionID != "" {
		c.mu.RLock()
		entry := c.sessions[reqCtx.SessionID]
		c.mu.RUnlock()
		if entry != nil && entry.graph != nil {
			return entry.graph
		}
	}
	return emptyGraph()
}

// Meta resolves the workflow meta with the same request-first precedence.
func (c *ContextCache) Meta(reqCtx *model.ChatRequestContext) model.WorkflowMeta {
	if reqCtx.WorkflowMeta != nil {
		return *reqCtx.WorkflowMeta
	}

	if reqCtx.SessionID != "" {
		c.mu.RLock()
		entry := c.sessions[reqCtx.SessionID]
		c.mu.RUnlock()
		if entry != nil && entry.meta != nil {
			return *entry.meta
		}
	}
	return model.WorkflowMeta{}
}

func emptyGraph() map[string]any {
	return map[string]any{"nodes": []any{}, "edges": []any{}, "chatConfig": map[string]any{}}
}
