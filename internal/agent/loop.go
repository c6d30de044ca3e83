// Package agent drives one conversational turn: it asks the model for the
// next step, dispatches tool calls and feeds their results back until the
// model produces an output.
package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ashish13377/Intellido/internal/conversation"
	"github.com/ashish13377/Intellido/internal/format"
	"github.com/ashish13377/Intellido/internal/logger"
	"github.com/ashish13377/Intellido/internal/services/ai"
	"github.com/ashish13377/Intellido/internal/tools"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const (
	// DefaultMaxSteps bounds the completion calls of one turn
	DefaultMaxSteps = 10
	// DefaultAITimeout bounds a single completion call
	DefaultAITimeout = 60 * time.Second
)

// ErrTurnBudgetExceeded is returned when the model keeps planning or acting
// past the step budget without producing an output
var ErrTurnBudgetExceeded = errors.New("turn exceeded step budget")

var tracer = otel.Tracer("github.com/ashish13377/Intellido/internal/agent")

// Dispatcher runs a named tool with raw JSON input
type Dispatcher interface {
	Dispatch(ctx context.Context, name string, input json.RawMessage) (any, error)
}

var _ Dispatcher = (*tools.Registry)(nil)

// Config wires a Loop
type Config struct {
	Completer ai.Completer
	Tools     Dispatcher
	MaxSteps  int
	AITimeout time.Duration
	Logger    *zap.Logger
}

// Loop runs turns against a conversation history
type Loop struct {
	completer ai.Completer
	tools     Dispatcher
	maxSteps  int
	aiTimeout time.Duration
	logger    *zap.Logger
}

// NewLoop creates a Loop, applying defaults for unset limits
func NewLoop(cfg Config) *Loop {
	if cfg.MaxSteps <= 0 {
		cfg.MaxSteps = DefaultMaxSteps
	}
	if cfg.AITimeout <= 0 {
		cfg.AITimeout = DefaultAITimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Loop{
		completer: cfg.Completer,
		tools:     cfg.Tools,
		maxSteps:  cfg.MaxSteps,
		aiTimeout: cfg.AITimeout,
		logger:    cfg.Logger,
	}
}

// TurnResult is what one turn produced
type TurnResult struct {
	// Reply is the formatted output shown to the user
	Reply string
	// Raw is the unformatted output text
	Raw string
	// Notices are user-visible messages raised while dispatching
	Notices []string
	// Steps is the number of completion calls made
	Steps int
}

type userEnvelope struct {
	Type string `json:"type"`
	User string `json:"user"`
}

type observation struct {
	Type        string `json:"type"`
	Observation any    `json:"observation"`
}

type toolError struct {
	Error string `json:"error"`
}

// UnknownToolNotice is the notice raised for a tool name the registry lacks
func UnknownToolNotice(name string) string {
	return fmt.Sprintf("Function %s not recognized.", name)
}

// RunTurn appends input to state and runs the model until it produces an
// output. The history keeps everything appended before a failure.
func (l *Loop) RunTurn(ctx context.Context, state *conversation.State, input string) (*TurnResult, error) {
	ctx, span := tracer.Start(ctx, "agent.turn")
	defer span.End()
	span.SetAttributes(attribute.String("session.id", state.ID()))

	envelope, err := json.Marshal(userEnvelope{Type: "user", User: input})
	if err != nil {
		return nil, fmt.Errorf("failed to encode user message: %w", err)
	}
	state.AppendUser(string(envelope))

	result := &TurnResult{}
	for result.Steps < l.maxSteps {
		result.Steps++

		raw, err := l.complete(ctx, state)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "completion failed")
			return result, err
		}
		state.AppendAssistant(raw)

		decision, err := ParseDecision(raw)
		if err != nil {
			l.logger.Warn("failed_to_parse_decision",
				zap.String("session_id", state.ID()),
				zap.Int("step", result.Steps),
				zap.String("reply", logger.SanitizeDebugContent(raw)),
				zap.Error(err),
			)
			span.RecordError(err)
			span.SetStatus(codes.Error, "parse failure")
			return result, err
		}

		l.logger.Debug("agent_step",
			zap.String("session_id", state.ID()),
			zap.Int("step", result.Steps),
			zap.String("decision", string(decision.Type)),
			zap.String("function", decision.Function),
		)

		switch decision.Type {
		case DecisionOutput:
			result.Raw = decision.Output
			result.Reply = format.Output(decision.Output)
			span.SetAttributes(attribute.Int("agent.steps", result.Steps))
			return result, nil
		case DecisionAction:
			if notice := l.dispatch(ctx, state, decision); notice != "" {
				result.Notices = append(result.Notices, notice)
			}
		default:
			// plan, echoed user/observation or any other kind
			continue
		}
	}

	l.logger.Warn("turn_budget_exceeded",
		zap.String("session_id", state.ID()),
		zap.Int("max_steps", l.maxSteps),
	)
	span.SetStatus(codes.Error, "budget exceeded")
	return result, fmt.Errorf("%w: %d steps", ErrTurnBudgetExceeded, l.maxSteps)
}

func (l *Loop) complete(ctx context.Context, state *conversation.State) (string, error) {
	ctx, span := tracer.Start(ctx, "agent.complete", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	callCtx, cancel := context.WithTimeout(ctx, l.aiTimeout)
	defer cancel()

	raw, err := l.completer.Complete(callCtx, state.Snapshot())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "completion failed")
		return "", err
	}
	return raw, nil
}

// dispatch runs one action and appends its observation. It returns a notice
// when the user should be told about the call.
func (l *Loop) dispatch(ctx context.Context, state *conversation.State, d Decision) string {
	value, err := l.tools.Dispatch(ctx, d.Function, d.Input)
	switch {
	case err == nil:
		l.observe(state, value)
		return ""
	case errors.Is(err, tools.ErrUnknownTool):
		l.logger.Warn("unknown_tool",
			zap.String("session_id", state.ID()),
			zap.String("tool", d.Function),
		)
		return UnknownToolNotice(d.Function)
	case errors.Is(err, tools.ErrInvalidToolInput):
		l.observe(state, toolError{Error: err.Error()})
		return fmt.Sprintf("Invalid input for %s: %s", d.Function, logger.SanitizeError(err))
	default:
		l.observe(state, toolError{Error: err.Error()})
		return ""
	}
}

func (l *Loop) observe(state *conversation.State, value any) {
	data, err := json.Marshal(observation{Type: "observation", Observation: value})
	if err != nil {
		l.logger.Error("failed_to_encode_observation",
			zap.String("session_id", state.ID()),
			zap.Error(err),
		)
		data, _ = json.Marshal(observation{Type: "observation", Observation: toolError{Error: "result could not be encoded"}})
	}
	state.AppendToolResult(string(data))
}
