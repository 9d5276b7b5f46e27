package command

import (
	"fmt"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/gatemesh-go/internal/cli/output"
	"github.com/yndnr/gatemesh-go/internal/core/domain"
	"github.com/yndnr/gatemesh-go/internal/core/session"
)

type contactRow struct {
	Address  string    `json:"address" yaml:"address"`
	Active   bool      `json:"active" yaml:"active"`
	Seed     bool      `json:"seed" yaml:"seed"`
	Failures uint      `json:"failures" yaml:"failures"`
	LastSeen time.Time `json:"last_seen" yaml:"last_seen" table:"wide"`
}

type statusView struct {
	ClientID string       `json:"client_id" yaml:"client_id"`
	State    string       `json:"state" yaml:"state"`
	Active   string       `json:"active" yaml:"active"`
	Buffered int          `json:"buffered" yaml:"buffered"`
	Round    uint64       `json:"round" yaml:"round"`
	Contacts []contactRow `json:"contacts" yaml:"contacts"`
}

type registrationRow struct {
	Path  string `json:"path" yaml:"path"`
	Owner string `json:"owner" yaml:"owner"`
	ID    string `json:"id" yaml:"id" table:"wide"`
}

// ContactsCommand returns the contacts command.
func ContactsCommand() *cli.Command {
	return &cli.Command{
		Name:   "contacts",
		Usage:  "Establish a session and show the discovered receptionists",
		Action: runContacts,
	}
}

// ResolveCommand returns the resolve command.
func ResolveCommand() *cli.Command {
	return &cli.Command{
		Name:      "resolve",
		Usage:     "List the registrations of PATH reachable through a receptionist",
		ArgsUsage: "PATH",
		Action:    runResolve,
	}
}

func runContacts(c *cli.Context) error {
	s, stop, err := startSession(c)
	if err != nil {
		return err
	}
	defer stop()

	ctx, cancel := commandContext(c)
	defer cancel()

	spinner := output.NewSpinner(stderr(c), "establishing session")
	spinner.Start()
	st, err := waitEstablished(ctx, s)
	if err != nil {
		spinner.Fail(err.Error())
		return err
	}
	spinner.Stop()

	view := newStatusView(st)
	if format, _ := output.ParseFormat(c.String("output")); format == output.FormatTable {
		fmt.Fprintf(c.App.Writer, "client %s %s via %s\n\n", view.ClientID, view.State, view.Active)
		return render(c, view.Contacts)
	}
	return render(c, view)
}

func newStatusView(st session.Status) statusView {
	view := statusView{
		ClientID: string(st.ClientID),
		State:    st.State.String(),
		Active:   string(st.Active),
		Buffered: st.Buffered,
		Round:    st.Round,
		Contacts: make([]contactRow, 0, len(st.Contacts)),
	}
	for _, cp := range st.Contacts {
		view.Contacts = append(view.Contacts, contactRow{
			Address:  string(cp.Address),
			Active:   cp.Address == st.Active,
			Seed:     cp.Seed,
			Failures: cp.ConsecutiveFailures,
			LastSeen: cp.LastSeenAt,
		})
	}
	return view
}

func runResolve(c *cli.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("expected PATH, got %d arguments", c.NArg())
	}
	path := domain.ServicePath(c.Args().First())
	if err := path.Validate(); err != nil {
		return err
	}
	contacts := configFrom(c).Client.InitialContacts
	if len(contacts) == 0 {
		return domain.ErrInvalidConfiguration.WithDetails("no contact given (use --contact)")
	}
	tr, err := newTransport(c)
	if err != nil {
		return err
	}

	ctx, cancel := commandContext(c)
	defer cancel()

	var lastErr error
	for _, raw := range contacts {
		addr := domain.NormalizeEndpoint(raw)
		regs, err := tr.Resolve(ctx, addr, path)
		if err != nil {
			loggerFrom(c).Debug("resolve failed", "contact", addr, "error", err)
			lastErr = err
			continue
		}
		rows := make([]registrationRow, 0, len(regs))
		for _, r := range regs {
			rows = append(rows, registrationRow{Path: string(r.Path), Owner: string(r.Owner), ID: string(r.ID)})
		}
		return render(c, rows)
	}
	return fmt.Errorf("resolve %s: %w", path, lastErr)
}
