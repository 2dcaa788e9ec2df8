// LDS Chatbot terminal client.
// Разговор с /api/chat из терминала.
package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/jessevdk/go-flags"

	"github.com/ronaldyipts/lds-ilo-chatbot/internal/ui"
)

// Options — флаги клиента.
type Options struct {
	Server  string        `short:"s" long:"server" default:"http://localhost:5000" description:"backend base URL"`
	Topic   string        `long:"topic" description:"lesson topic sent with every message"`
	Grade   string        `long:"grade" description:"grade level sent with every message"`
	DP      string        `long:"dp" description:"disciplinary practice sent with every message"`
	PA      string        `long:"pa" description:"performance assessment sent with every message"`
	Timeout time.Duration `long:"timeout" default:"2m" description:"HTTP timeout per message"`
}

func main() {
	var opts Options
	if _, err := flags.Parse(&opts); err != nil {
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(2)
	}

	model := ui.InitialModel(
		ui.NewChatClient(opts.Server, opts.Timeout),
		ui.Session{Topic: opts.Topic, Grade: opts.Grade, DP: opts.DP, PA: opts.PA},
	)

	// Без AltScreen: текст лога можно выделять мышкой
	if _, err := tea.NewProgram(model).Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
