package command

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/gatemesh-go/internal/cli/output"
	"github.com/yndnr/gatemesh-go/internal/core/domain"
	"github.com/yndnr/gatemesh-go/internal/core/event"
)

type clientEventRow struct {
	Version uint64   `json:"version" yaml:"version"`
	Kind    string   `json:"kind" yaml:"kind"`
	Clients []string `json:"clients" yaml:"clients"`
}

// ClientsCommand returns the clients command.
func ClientsCommand() *cli.Command {
	return &cli.Command{
		Name:      "clients",
		Usage:     "Show the clients a receptionist currently serves",
		ArgsUsage: "[RECEPTIONIST]",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "watch",
				Usage: "Keep streaming client up and unreachable events",
			},
		},
		Action: runClients,
	}
}

func runClients(c *cli.Context) error {
	addr := domain.NormalizeEndpoint(c.Args().First())
	if addr == "" {
		contacts := configFrom(c).Client.InitialContacts
		if len(contacts) == 0 {
			return domain.ErrInvalidConfiguration.WithDetails("no receptionist given (use --contact or an argument)")
		}
		addr = domain.NormalizeEndpoint(contacts[0])
	}
	tr, err := newTransport(c)
	if err != nil {
		return err
	}

	watch := c.Bool("watch")
	var ctx context.Context
	var cancel context.CancelFunc
	if watch {
		ctx, cancel = context.WithCancel(c.Context)
	} else {
		ctx, cancel = commandContext(c)
	}
	defer cancel()

	format, err := output.ParseFormat(c.String("output"))
	if err != nil {
		return err
	}
	var snapshot *clientEventRow
	var renderErr error
	err = tr.WatchClusterClients(ctx, addr, func(ev event.Event[domain.ClientID]) {
		row := toEventRow(ev)
		if !watch {
			snapshot = &row
			cancel()
			return
		}
		if renderErr = renderEvent(c, format, row); renderErr != nil {
			cancel()
		}
	})
	if renderErr != nil {
		return renderErr
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	if watch {
		return nil
	}
	if snapshot == nil {
		return fmt.Errorf("no client snapshot from %s", addr)
	}
	if format == output.FormatTable {
		return render(c, snapshot.Clients)
	}
	return render(c, snapshot)
}

func toEventRow(ev event.Event[domain.ClientID]) clientEventRow {
	row := clientEventRow{Version: ev.Version, Kind: clientEventKind(ev.Kind)}
	if ev.Kind == event.KindSnapshot {
		row.Clients = make([]string, 0, len(ev.Items))
		for _, id := range ev.Items {
			row.Clients = append(row.Clients, string(id))
		}
		return row
	}
	row.Clients = []string{string(ev.Item)}
	return row
}

func clientEventKind(k event.Kind) string {
	switch k {
	case event.KindAdded:
		return "up"
	case event.KindRemoved:
		return "unreachable"
	default:
		return k.String()
	}
}

// renderEvent writes one streamed event as a line.
func renderEvent(c *cli.Context, format output.Format, row clientEventRow) error {
	switch format {
	case output.FormatJSON:
		return (&output.JSONFormatter{Compact: true}).Format(c.App.Writer, row)
	case output.FormatYAML:
		fmt.Fprintln(c.App.Writer, "---")
		return (&output.YAMLFormatter{}).Format(c.App.Writer, row)
	default:
		_, err := fmt.Fprintf(c.App.Writer, "%d\t%s\t%s\n", row.Version, row.Kind, strings.Join(row.Clients, ","))
		return err
	}
}
