// Package session runs the interactive dispatch loop of the kernel.
//
// Invariants:
// - The loop runs on a single goroutine; only the terminal reader and feedback delivery run elsewhere.
// - Only an agent.SessionFatalError with Terminate set can end the loop early.
// - Every suspendable step captures the interrupt token at its own start.
// - A clipboard string is offered at most once per session.
//
// Usage:
//
//	loop, _ := session.New(session.Options{Registry: reg, Stack: st, Router: router, Terminal: term})
//	loop.SelectInitial(ctx, session.Selection{Default: "shell"})
//	_ = loop.Run(ctx)
package session
