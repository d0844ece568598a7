// Package agent defines the contract every conversational backend implements and the
// Agent wrapper the session kernel manipulates.
//
// Invariants:
// - An Agent's name is its case-insensitive identity; descriptions and names are read once at load.
// - The orchestrator role, once disabled for an Agent, stays disabled for the process lifetime.
// - Only SessionFatalError with Terminate set may end a session loop.
//
// Usage:
//
//	a := agent.New(backend, nil)
//	if orch, ok := a.Orchestrator(); ok {
//		idx, err := orch.SelectAgent(ctx, query, descriptions)
//		_, _ = idx, err
//	}
package agent
