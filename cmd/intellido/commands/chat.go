package commands

import (
	"context"
	"errors"
	"io"
	"os"

	"github.com/ashish13377/Intellido/internal/agent"
	"github.com/ashish13377/Intellido/internal/app"
	"github.com/ashish13377/Intellido/internal/console"
	"github.com/ashish13377/Intellido/internal/conversation"
	"github.com/ashish13377/Intellido/internal/logger"
	"github.com/ashish13377/Intellido/internal/services/ai"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const inputPrompt = "You: "

// turnRunner runs one conversational turn
type turnRunner interface {
	RunTurn(ctx context.Context, state *conversation.State, input string) (*agent.TurnResult, error)
}

var _ turnRunner = (*agent.Loop)(nil)

// NewChatCmd creates the chat command
func NewChatCmd(flags *globalFlags, version string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive conversation",
		Long:  "Read requests line by line and answer them, calling task tools as the model decides. Type exit, quit, q, bye, stop or end to leave.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := flags.loadConfig()
			if err != nil {
				return err
			}
			log, err := fileLogger(cfg)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync(log) }()

			a, err := app.New(cmd.Context(), cfg, log, app.Options{WithAgent: true})
			if err != nil {
				log.Error("failed_to_start_chat", zap.Error(err))
				return err
			}
			defer a.Close()

			state := conversation.NewState(uuid.NewString(), a.SystemPrompt)
			log.Info("chat_started", zap.String("session_id", state.ID()), zap.String("version", version))

			con := console.New(os.Stdin, cmd.OutOrStdout())
			con.Banner(console.SystemInfo(version))
			return runChat(cmd.Context(), con, a.Loop, state, log)
		},
	}
	return cmd
}

// runChat drives the menu and the read-eval loop until an exit token, end of
// input or cancellation. Turn failures are reported and the loop continues
// with the history intact.
func runChat(ctx context.Context, con *console.Console, runner turnRunner, state *conversation.State, log *zap.Logger) error {
	session := &console.Session{}
	choice, err := con.Menu(session)
	if err != nil {
		return err
	}
	if choice == console.ChoiceExit {
		con.Goodbye()
		return nil
	}
	con.Welcome(session)

	ctx = ai.WithSessionID(ctx, state.ID())
	for {
		if ctx.Err() != nil {
			con.Goodbye()
			return nil
		}

		input, err := con.ReadLine(inputPrompt)
		if errors.Is(err, io.EOF) {
			con.Goodbye()
			return nil
		}
		if err != nil {
			return err
		}
		if agent.IsExitToken(input) {
			con.Goodbye()
			return nil
		}

		stop := con.Thinking()
		result, err := runner.RunTurn(ctx, state, input)
		stop()

		if result != nil {
			for _, notice := range result.Notices {
				con.Notice(notice)
			}
		}
		if err != nil {
			log.Warn("turn_failed",
				zap.String("session_id", state.ID()),
				zap.Error(err),
			)
			con.Error(describeTurnError(err))
			continue
		}
		con.Reply(result.Reply)
	}
}

// describeTurnError turns a failed turn into a short diagnostic
func describeTurnError(err error) string {
	switch {
	case ai.IsQuotaError(err):
		return "⚠️  The model quota is exhausted. Check your plan and try again later."
	case ai.IsRateLimitError(err):
		return "⚠️  The model is rate limited. Please wait a moment and try again."
	case errors.Is(err, ai.ErrEndpointUnavailable):
		return "⚠️  Could not reach the model. Check your connection and try again."
	case errors.Is(err, agent.ErrParseFailure):
		return "⚠️  I could not understand the model's reply. Please rephrase your request."
	case errors.Is(err, agent.ErrTurnBudgetExceeded):
		return "⚠️  That request took too many steps. Try breaking it into smaller ones."
	case errors.Is(err, context.DeadlineExceeded):
		return "⚠️  The request timed out. Please try again."
	case errors.Is(err, context.Canceled):
		return "⚠️  Request cancelled."
	default:
		return "⚠️  Something went wrong. Please try again."
	}
}
