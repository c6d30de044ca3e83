// Package console renders the interactive chat surface: banner, start menu,
// prompts, a thinking indicator and styled replies.
package console

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

// MaxMenuAttempts bounds invalid answers to the start menu
const MaxMenuAttempts = 3

// ErrTooManyAttempts is returned when the menu gets no valid answer
var ErrTooManyAttempts = errors.New("too many invalid menu choices")

// MenuChoice is the answer to the start menu
type MenuChoice int

const (
	ChoiceStart MenuChoice = iota + 1
	ChoiceExit
)

// Session tracks what the presentation layer has already shown
type Session struct {
	InfoShown bool
	Started   bool
}

type styles struct {
	header  lipgloss.Style
	panel   lipgloss.Style
	label   lipgloss.Style
	prompt  lipgloss.Style
	reply   lipgloss.Style
	success lipgloss.Style
	notice  lipgloss.Style
	failure lipgloss.Style
}

func newStyles(r *lipgloss.Renderer) styles {
	return styles{
		header: r.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("230")).
			Background(lipgloss.Color("62")).
			Padding(0, 2),
		panel: r.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("42")).
			Padding(0, 1),
		label:   r.NewStyle().Foreground(lipgloss.Color("69")).Bold(true),
		prompt:  r.NewStyle().Foreground(lipgloss.Color("226")),
		reply:   r.NewStyle().Foreground(lipgloss.Color("51")),
		success: r.NewStyle().Foreground(lipgloss.Color("46")),
		notice:  r.NewStyle().Foreground(lipgloss.Color("214")),
		failure: r.NewStyle().Foreground(lipgloss.Color("196")),
	}
}

// Console reads user input and writes styled output
type Console struct {
	in          *bufio.Reader
	out         io.Writer
	interactive bool
	styles      styles
	mu          sync.Mutex
}

// Option configures a Console
type Option func(*Console)

// WithInteractive overrides terminal detection
func WithInteractive(interactive bool) Option {
	return func(c *Console) {
		c.interactive = interactive
	}
}

// New creates a Console over in and out. It is interactive when both are
// terminals.
func New(in io.Reader, out io.Writer, opts ...Option) *Console {
	c := &Console{
		in:          bufio.NewReader(in),
		out:         out,
		interactive: isTerminal(in) && isTerminal(out),
		styles:      newStyles(lipgloss.NewRenderer(out)),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func isTerminal(v any) bool {
	f, ok := v.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// Interactive reports whether the console talks to a terminal
func (c *Console) Interactive() bool {
	return c.interactive
}

func (c *Console) println(s string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintln(c.out, s)
}

// Banner prints the startup banner on interactive terminals
func (c *Console) Banner(info Info) {
	if !c.interactive {
		return
	}
	c.println(renderBanner(c.styles, info))
}

// renderBanner lays out the application header and host info panel
func renderBanner(s styles, info Info) string {
	rows := []struct{ label, value string }{
		{"App Name", info.AppName},
		{"Description", info.Description},
		{"Version", info.Version},
		{"Host", info.Host},
		{"Platform", info.OS + "/" + info.Arch},
		{"CPUs", fmt.Sprintf("%d", info.CPUs)},
		{"Go", info.GoVersion},
	}
	lines := make([]string, 0, len(rows))
	for _, row := range rows {
		lines = append(lines, s.label.Render(fmt.Sprintf("%-12s:", row.label))+" "+row.value)
	}
	return lipgloss.JoinVertical(lipgloss.Left,
		s.header.Render("APPLICATION STARTED"),
		s.panel.Render(strings.Join(lines, "\n")),
	)
}

// ReadLine prints prompt and returns the next line without its terminator.
// io.EOF is returned once input is exhausted.
func (c *Console) ReadLine(prompt string) (string, error) {
	c.mu.Lock()
	fmt.Fprint(c.out, c.styles.prompt.Render(prompt))
	c.mu.Unlock()

	line, err := c.in.ReadString('\n')
	if err != nil && (!errors.Is(err, io.EOF) || line == "") {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// Menu asks to start chatting or exit, once per session. Non-interactive
// consoles start straight away.
func (c *Console) Menu(session *Session) (MenuChoice, error) {
	if session.Started || !c.interactive {
		session.Started = true
		return ChoiceStart, nil
	}

	for attempt := 0; attempt < MaxMenuAttempts; attempt++ {
		c.println(c.styles.prompt.Render("Select an option:") + "\n1️⃣  Start Chat\n2️⃣  Exit")
		choice, err := c.ReadLine("Enter your choice: ")
		if err != nil {
			return 0, fmt.Errorf("failed to read menu choice: %w", err)
		}
		switch strings.TrimSpace(choice) {
		case "1":
			session.Started = true
			return ChoiceStart, nil
		case "2":
			return ChoiceExit, nil
		default:
			c.Error("❌ Invalid choice. Try again.")
		}
	}
	return 0, ErrTooManyAttempts
}

// Welcome greets the user the first time it is called for a session
func (c *Console) Welcome(session *Session) {
	if session.InfoShown {
		return
	}
	session.InfoShown = true
	c.println(c.styles.success.Render("Hey! I am your AI assistant 🤖 Intellido. Ready to assist you with anything related to your Day-to-Day tasks!"))
	c.println(c.styles.prompt.Render("Please enter your task:"))
}

// Reply prints a model answer
func (c *Console) Reply(text string) {
	c.println(c.styles.reply.Render("🤖 >>  "+text) + "\n")
}

// Notice prints a user-visible message raised during a turn
func (c *Console) Notice(text string) {
	c.println(c.styles.notice.Render("❌ " + text))
}

// Error prints a short diagnostic
func (c *Console) Error(text string) {
	c.println(c.styles.failure.Render(text))
}

// Goodbye prints the exit message
func (c *Console) Goodbye() {
	c.println(c.styles.failure.Render("👋 Exiting..."))
}

var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

// Thinking shows an indicator until the returned stop func is called. It
// draws nothing on non-interactive consoles.
func (c *Console) Thinking() (stop func()) {
	if !c.interactive {
		return func() {}
	}

	done := make(chan struct{})
	finished := make(chan struct{})
	go func() {
		defer close(finished)
		ticker := time.NewTicker(80 * time.Millisecond)
		defer ticker.Stop()
		for i := 0; ; i++ {
			c.mu.Lock()
			fmt.Fprintf(c.out, "\r%s 🤖 Thinking...", spinnerFrames[i%len(spinnerFrames)])
			c.mu.Unlock()
			select {
			case <-done:
				c.mu.Lock()
				fmt.Fprint(c.out, "\r\033[K")
				c.mu.Unlock()
				return
			case <-ticker.C:
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			close(done)
			<-finished
		})
	}
}
