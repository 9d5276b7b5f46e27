package command

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/gatemesh-go/internal/cli/repl"
	"github.com/yndnr/gatemesh-go/internal/core/delivery"
	"github.com/yndnr/gatemesh-go/internal/core/domain"
	"github.com/yndnr/gatemesh-go/internal/core/session"
)

// ShellCommand returns the shell command.
func ShellCommand() *cli.Command {
	return &cli.Command{
		Name:  "shell",
		Usage: "Keep one session open and send interactively",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "no-history",
				Usage: "Do not read or write ~/.gatemesh/history",
			},
		},
		Action: runShell,
	}
}

func runShell(c *cli.Context) error {
	s, stop, err := startSession(c)
	if err != nil {
		return err
	}
	defer stop()

	history := ""
	if !c.Bool("no-history") {
		history = repl.DefaultHistoryFile()
	}
	fmt.Fprintf(c.App.Writer, "client %s, type help for commands\n", s.ClientID())

	sh := &shell{c: c, session: s}
	return repl.New(repl.Config{
		Input:    c.App.Reader,
		Output:   c.App.Writer,
		Executor: sh,
		Commands: []string{"send", "send-local", "send-all", "status"},
		History:  repl.NewHistory(history),
	}).Run(c.Context)
}

type shell struct {
	c       *cli.Context
	session *session.Session
}

// Execute runs one shell line against the open session.
func (sh *shell) Execute(ctx context.Context, args []string) error {
	switch args[0] {
	case "status":
		st, err := sh.session.Status(ctx)
		if err != nil {
			return err
		}
		view := newStatusView(st)
		fmt.Fprintf(sh.c.App.Writer, "client %s %s via %s, %d buffered\n", view.ClientID, view.State, view.Active, view.Buffered)
		return render(sh.c, view.Contacts)
	case "send", "send-local", "send-all":
		if len(args) != 3 {
			return fmt.Errorf("usage: %s PATH PAYLOAD", args[0])
		}
		req := delivery.Request{
			Mode:          domain.ModeUnicast,
			Target:        domain.ServicePath(args[1]),
			Payload:       []byte(args[2]),
			LocalAffinity: args[0] == "send-local",
		}
		if args[0] == "send-all" {
			req.Mode = domain.ModeFanout
		}
		if err := req.Target.Validate(); err != nil {
			return err
		}
		dctx, cancel := context.WithTimeout(ctx, sh.c.Duration("timeout"))
		defer cancel()
		rep, err := sh.session.Dispatch(dctx, req)
		if err != nil {
			return err
		}
		fmt.Fprintf(sh.c.App.Writer, "%s %s: delivered=%d failed=%d\n", rep.Mode, rep.Target, rep.Delivered, len(rep.Failures))
		for _, f := range rep.Failures {
			fmt.Fprintf(sh.c.App.Writer, "  %s: %v\n", f.Contact, f.Err)
		}
		return nil
	}
	return fmt.Errorf("unknown command %q", args[0])
}
