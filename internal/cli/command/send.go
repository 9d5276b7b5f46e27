package command

import (
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/gatemesh-go/internal/cli/output"
	"github.com/yndnr/gatemesh-go/internal/core/delivery"
	"github.com/yndnr/gatemesh-go/internal/core/domain"
)

// deliveryRow summarizes the reports of one send command.
type deliveryRow struct {
	Target    string   `json:"target" yaml:"target"`
	Mode      string   `json:"mode" yaml:"mode"`
	Messages  int      `json:"messages" yaml:"messages"`
	Delivered int      `json:"delivered" yaml:"delivered"`
	Failed    int      `json:"failed" yaml:"failed"`
	Errors    []string `json:"errors,omitempty" yaml:"errors,omitempty" table:"wide"`
}

// SendCommand returns the send command.
func SendCommand() *cli.Command {
	return &cli.Command{
		Name:      "send",
		Usage:     "Deliver a payload to one service registered at PATH",
		ArgsUsage: "PATH PAYLOAD|-",
		Flags: append(sendFlags(),
			&cli.BoolFlag{
				Name:    "local",
				Aliases: []string{"l"},
				Usage:   "Prefer a service registered on the active receptionist",
			},
		),
		Action: func(c *cli.Context) error {
			return runSend(c, domain.ModeUnicast)
		},
	}
}

// SendAllCommand returns the send-all command.
func SendAllCommand() *cli.Command {
	return &cli.Command{
		Name:      "send-all",
		Usage:     "Deliver a payload to every service registered at PATH",
		ArgsUsage: "PATH PAYLOAD|-",
		Flags:     sendFlags(),
		Action: func(c *cli.Context) error {
			return runSend(c, domain.ModeFanout)
		},
	}
}

func sendFlags() []cli.Flag {
	return []cli.Flag{
		&cli.IntFlag{
			Name:    "repeat",
			Aliases: []string{"n"},
			Usage:   "Send the payload this many times",
			Value:   1,
		},
	}
}

func runSend(c *cli.Context, mode domain.DeliveryMode) error {
	if c.NArg() != 2 {
		return fmt.Errorf("expected PATH and PAYLOAD, got %d arguments", c.NArg())
	}
	target := domain.ServicePath(c.Args().Get(0))
	if err := target.Validate(); err != nil {
		return err
	}
	payload, err := readPayload(c.Args().Get(1), c.App.Reader)
	if err != nil {
		return err
	}
	repeat := c.Int("repeat")
	if repeat < 1 {
		return fmt.Errorf("--repeat must be at least 1, got %d", repeat)
	}

	s, stop, err := startSession(c)
	if err != nil {
		return err
	}
	defer stop()

	ctx, cancel := commandContext(c)
	defer cancel()

	req := delivery.Request{
		Mode:          mode,
		Target:        target,
		Payload:       payload,
		LocalAffinity: c.Bool("local"),
	}
	row := deliveryRow{Target: string(target), Mode: mode.String(), Messages: repeat}

	var progress *output.Progress
	var spinner *output.Spinner
	if repeat > 1 {
		progress = output.NewProgress(stderr(c), "sending", repeat)
	} else {
		spinner = output.NewSpinner(stderr(c), "delivering to "+string(target))
		spinner.Start()
	}

	seen := make(map[string]bool)
	for i := 0; i < repeat; i++ {
		rep, err := s.Dispatch(ctx, req)
		if err != nil {
			if spinner != nil {
				spinner.Fail(err.Error())
			}
			if progress != nil {
				progress.Finish()
			}
			return err
		}
		row.Delivered += rep.Delivered
		row.Failed += len(rep.Failures)
		for _, f := range rep.Failures {
			msg := fmt.Sprintf("%s: %v", f.Contact, f.Err)
			if !seen[msg] {
				seen[msg] = true
				row.Errors = append(row.Errors, msg)
			}
		}
		if progress != nil {
			progress.Done(reportErr(rep))
		}
	}

	if spinner != nil {
		spinner.Stop()
	}
	if progress != nil {
		progress.Finish()
	}

	if err := render(c, []deliveryRow{row}); err != nil {
		return err
	}
	if row.Delivered == 0 {
		return fmt.Errorf("nothing delivered to %s", target)
	}
	return nil
}

func reportErr(rep delivery.Report) error {
	if len(rep.Failures) > 0 {
		return rep.Failures[0].Err
	}
	if rep.Delivered == 0 {
		return domain.ErrUnknownTarget
	}
	return nil
}

// readPayload returns arg, or stdin when arg is "-".
func readPayload(arg string, stdin io.Reader) ([]byte, error) {
	if arg != "-" {
		return []byte(arg), nil
	}
	if stdin == nil {
		stdin = os.Stdin
	}
	data, err := io.ReadAll(stdin)
	if err != nil {
		return nil, fmt.Errorf("read payload: %w", err)
	}
	return data, nil
}
