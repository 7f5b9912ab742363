// Package console is the interactive terminal front end for a chat session.
package console

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"

	"LocalChat/internal/chatbot"
	"LocalChat/internal/render"
	"LocalChat/internal/sanitize"
	"LocalChat/internal/session"
	"LocalChat/internal/telemetry"
)

// ThinkingIndicator is printed while a reply is pending
const ThinkingIndicator = "Thinking ..."

// EmptyReply stands in for a reply with no visible text
const EmptyReply = "(empty reply)"

// LineReader reads one line of user input. *liner.State satisfies it.
type LineReader interface {
	Prompt(prompt string) (string, error)
}

// Bot is the chat session the console drives
type Bot interface {
	Submit(ctx context.Context, userText string) (*chatbot.Pending, error)
	SetModel(id string)
	Model() string
	Snapshot() session.Snapshot
}

// Catalog lists the models the server offers
type Catalog interface {
	ListModels(ctx context.Context) []string
	Models() (models []string, fetched bool)
}

// Console runs the read-submit-print loop
type Console struct {
	bot      Bot
	catalog  Catalog
	renderer *render.Renderer
	in       LineReader
	out      io.Writer
	logger   *slog.Logger
}

// New creates a Console writing to out
func New(bot Bot, catalog Catalog, renderer *render.Renderer, in LineReader, out io.Writer, logger *slog.Logger) *Console {
	return &Console{
		bot:      bot,
		catalog:  catalog,
		renderer: renderer,
		in:       in,
		out:      out,
		logger:   telemetry.Logger(logger),
	}
}

// Run prints the stored history and reads input until /quit or end of input
func (c *Console) Run(ctx context.Context) error {
	fmt.Fprintln(c.out, "=== LocalChat ===")
	c.printModel()
	fmt.Fprintln(c.out, "Type /help for commands, /quit to exit")
	fmt.Fprintln(c.out)

	c.printHistory()

	for {
		if err := ctx.Err(); err != nil {
			return nil
		}

		input, err := c.in.Prompt("You: ")
		if err != nil {
			// EOF and Ctrl+C both end the session
			if !errors.Is(err, io.EOF) {
				c.logger.Debug("prompt ended", "error", err)
			}
			fmt.Fprintln(c.out)
			break
		}

		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}

		if strings.HasPrefix(input, "/") {
			shouldQuit, err := c.handleCommand(ctx, input)
			if err != nil {
				fmt.Fprintf(c.out, "Error: %v\n", err)
				c.logger.Error("command error", "error", err)
			}
			if shouldQuit {
				break
			}
			continue
		}

		c.send(ctx, input)
	}

	fmt.Fprintln(c.out, "Goodbye!")
	return nil
}

// send submits one message and prints the reply once it arrives
func (c *Console) send(ctx context.Context, text string) {
	p, err := c.bot.Submit(ctx, text)
	if err != nil {
		c.printError(err)
		return
	}

	fmt.Fprintln(c.out, ThinkingIndicator)

	select {
	case <-p.Done():
	case <-ctx.Done():
		// the call keeps running; its turns are still recorded
		fmt.Fprintln(c.out, "Reply abandoned")
		return
	}

	reply, err := p.Wait()
	// a reply that failed to save still comes back with the error
	if err == nil || reply.Turn.Role == session.RoleAssistant {
		c.printReply(reply.Turn.Content, reply.Format)
	}
	if err != nil {
		c.printError(err)
	}
}

func (c *Console) printReply(text string, format session.Format) {
	if text == "" {
		fmt.Fprintf(c.out, "Bot: %s\n\n", EmptyReply)
		return
	}
	out, err := c.renderer.Render(text, format)
	if err != nil {
		c.logger.Warn("failed to render reply", "error", err)
	}
	fmt.Fprintf(c.out, "Bot: %s\n\n", out)
}

func (c *Console) printError(err error) {
	kind, ok := chatbot.KindOf(err)
	if ok && !kind.UserVisible() {
		if kind == chatbot.KindBusy {
			fmt.Fprintln(c.out, "Still waiting for the previous reply")
		}
		return
	}
	fmt.Fprintf(c.out, "Error: %v\n\n", err)
}

func (c *Console) printModel() {
	if model := c.bot.Model(); model != "" {
		fmt.Fprintf(c.out, "Model: %s\n", model)
		return
	}
	fmt.Fprintln(c.out, "Model: (none, use /model <id>)")
}

func (c *Console) printHistory() {
	snap := c.bot.Snapshot()
	if len(snap.Turns) == 0 {
		return
	}
	for _, turn := range snap.Turns {
		switch turn.Role {
		case session.RoleUser:
			fmt.Fprintf(c.out, "You: %s\n", turn.Content)
		default:
			// stored replies are already sanitized
			c.printReply(turn.Content, sanitize.ClassifyFormat(turn.Content))
		}
	}
}

// handleCommand handles slash commands
func (c *Console) handleCommand(ctx context.Context, cmd string) (bool, error) {
	parts := strings.Fields(cmd)
	if len(parts) == 0 {
		return false, nil
	}

	switch parts[0] {
	case "/quit", "/exit":
		return true, nil

	case "/models":
		models := c.catalog.ListModels(ctx)
		if len(models) == 0 {
			fmt.Fprintln(c.out, "No models available. Is Ollama running?")
			return false, nil
		}
		current := c.bot.Model()
		fmt.Fprintln(c.out, "\nAvailable models:")
		for i, model := range models {
			marker := ""
			if model == current {
				marker = " (current)"
			}
			fmt.Fprintf(c.out, "%d. %s%s\n", i+1, model, marker)
		}
		fmt.Fprintln(c.out)
		return false, nil

	case "/model":
		if len(parts) < 2 {
			c.printModel()
			return false, nil
		}
		id := parts[1]
		c.bot.SetModel(id)
		fmt.Fprintf(c.out, "Model set to: %s\n", id)
		if models, fetched := c.catalog.Models(); fetched && !slices.Contains(models, id) {
			fmt.Fprintf(c.out, "Warning: %s is not in the model list\n", id)
		}
		return false, nil

	case "/history":
		snap := c.bot.Snapshot()
		fmt.Fprintf(c.out, "%d turns in history\n", len(snap.Turns))
		c.printHistory()
		return false, nil

	case "/help":
		fmt.Fprintln(c.out, "Available commands:")
		fmt.Fprintln(c.out, "  /models       - List models offered by the server")
		fmt.Fprintln(c.out, "  /model <id>   - Select the model for the next message")
		fmt.Fprintln(c.out, "  /history      - Show the conversation so far")
		fmt.Fprintln(c.out, "  /quit, /exit  - Exit")
		fmt.Fprintln(c.out, "  /help         - Show this help message")
		return false, nil

	default:
		return false, fmt.Errorf("unknown command: %s", parts[0])
	}
}
