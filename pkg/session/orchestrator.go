package session

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"

	"github.com/harun/agentdesk/internal/observability"
	"github.com/harun/agentdesk/internal/tracing"
	"github.com/harun/agentdesk/pkg/agent"
)

// gateOpen reports whether the active agent may pick another agent for the next query
func (l *Loop) gateOpen(active *agent.Agent) (agent.Orchestrator, bool) {
	orch, ok := active.Orchestrator()
	if !ok {
		return nil, false
	}
	if l.opts.Stack.Depth() != 1 || l.opts.Registry.Len() <= 1 {
		return nil, false
	}
	return orch, true
}

// delegate runs the orchestrator protocol for query. Failures never leave this
// function: the stack is either unchanged or one agent deeper. The returned
// context continues the selection's trace.
func (l *Loop) delegate(ctx context.Context, active *agent.Agent, query string) context.Context {
	orch, ok := l.gateOpen(active)
	if !ok {
		return ctx
	}

	confirmCtx, cancel := l.opContext(ctx)
	yes, err := l.term.Confirm(confirmCtx, fmt.Sprintf("Let '%s' pick the best agent for this query?", active.Name()), true)
	cancel()
	if err != nil || !yes {
		observability.RecordDelegation("declined")
		return ctx
	}

	agents := l.opts.Registry.All()
	descriptions := l.opts.Registry.Descriptions()

	selectCtx, cancel := l.opContext(ctx)
	defer cancel()
	selectCtx = tracing.NewTurnContext(selectCtx, l.state.ID, active.Name())
	spanCtx, span := tracing.StartSpan(selectCtx, "orchestrator.select",
		attribute.String("agent", active.Name()),
		attribute.Int("candidates", len(descriptions)),
	)
	idx, err := orch.SelectAgent(spanCtx, query, descriptions)
	tracing.EndSpan(span, err)
	traced := tracing.CarryTrace(ctx, spanCtx)
	log := tracing.Logger(spanCtx, l.logger)

	switch {
	case err != nil && agent.IsCancellation(err):
		observability.RecordDelegation("cancelled")
		return traced
	case err == nil && idx >= len(agents):
		err = fmt.Errorf("selected index %d out of range", idx)
	case err == nil && idx < 0 && idx != agent.NoSuitableAgent:
		err = fmt.Errorf("selected index %d out of range", idx)
	}
	if err != nil {
		active.DisableOrchestrator()
		observability.RecordDelegation("failed")
		log.Warn().Err(err).Msg("Orchestrator selection failed, role disabled")
		l.report(&agent.OrchestratorError{Agent: active.Name(), Err: err})
		l.term.Warn(fmt.Sprintf("The orchestrator role of '%s' is disabled for this session.", active.Name()))
		return traced
	}

	target := active
	if idx != agent.NoSuitableAgent {
		target = agents[idx]
	}
	if err := l.opts.Stack.Push(target); err != nil {
		l.report(err)
		return traced
	}
	observability.RecordDelegation("delegated")
	log.Info().Str("delegate", target.Name()).Msg("Query delegated")

	if target == active {
		l.term.Info(fmt.Sprintf("No better agent found, '%s' will handle the query.", active.Name()))
		return traced
	}
	l.term.Info(fmt.Sprintf("Delegated to '%s'. Use /return to go back to '%s'.", target.Name(), active.Name()))
	return traced
}
