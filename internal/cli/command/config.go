package command

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/gatemesh-go/internal/cli/output"
	clientconfig "github.com/yndnr/gatemesh-go/internal/client/config"
)

// configView is the effective configuration as shown to the user.
//
// Sources lists the layers merged over the defaults, lowest first.
type configView struct {
	Client  clientSectionView `json:"client" yaml:"client"`
	Log     logSectionView    `json:"log" yaml:"log"`
	Sources []string          `json:"sources,omitempty" yaml:"sources,omitempty"`
}

type clientSectionView struct {
	ClientID                        string   `json:"client_id,omitempty" yaml:"client-id,omitempty"`
	InitialContacts                 []string `json:"initial_contacts" yaml:"initial-contacts"`
	HeartbeatInterval               string   `json:"heartbeat_interval" yaml:"heartbeat-interval"`
	AcceptableHeartbeatPause        string   `json:"acceptable_heartbeat_pause" yaml:"acceptable-heartbeat-pause"`
	HeartbeatProbeTimeout           string   `json:"heartbeat_probe_timeout" yaml:"heartbeat-probe-timeout"`
	EstablishingGetContactsInterval string   `json:"establishing_get_contacts_interval" yaml:"establishing-get-contacts-interval"`
	RefreshContactsInterval         string   `json:"refresh_contacts_interval" yaml:"refresh-contacts-interval"`
	ReconnectBackoffMin             string   `json:"reconnect_backoff_min" yaml:"reconnect-backoff-min"`
	ReconnectBackoffMax             string   `json:"reconnect_backoff_max" yaml:"reconnect-backoff-max"`
	ReconnectTimeout                string   `json:"reconnect_timeout" yaml:"reconnect-timeout"`
	BufferSize                      int      `json:"buffer_size" yaml:"buffer-size"`
	ContactFailureCeiling           uint     `json:"contact_failure_ceiling" yaml:"contact-failure-ceiling"`
	LocalAffinityFallback           bool     `json:"local_affinity_fallback" yaml:"local-affinity-fallback"`
	FlushOnStop                     bool     `json:"flush_on_stop" yaml:"flush-on-stop"`
	RequestTimeout                  string   `json:"request_timeout" yaml:"request-timeout"`
	ContactCacheDir                 string   `json:"contact_cache_dir,omitempty" yaml:"contact-cache-dir,omitempty"`
	TLSCAFile                       string   `json:"tls_ca_file,omitempty" yaml:"tls-ca-file,omitempty"`
}

type logSectionView struct {
	Level  string `json:"level" yaml:"level"`
	Format string `json:"format" yaml:"format"`
}

// ConfigCommand returns the config subcommand group.
func ConfigCommand() *cli.Command {
	return &cli.Command{
		Name:  "config",
		Usage: "Inspect the client configuration",
		Subcommands: []*cli.Command{
			{
				Name:   "show",
				Usage:  "Print the effective configuration (file, environment and flags merged)",
				Action: configShow,
			},
			{
				Name:   "validate",
				Usage:  "Check the effective configuration",
				Action: configValidate,
			},
		},
	}
}

func configShow(c *cli.Context) error {
	view := newConfigView(configFrom(c))
	view.Sources, _ = c.App.Metadata[metaSources].([]string)
	// A nested configuration reads best as YAML.
	if format, _ := output.ParseFormat(c.String("output")); format == output.FormatTable {
		return (&output.YAMLFormatter{}).Format(c.App.Writer, view)
	}
	return render(c, view)
}

func configValidate(c *cli.Context) error {
	if err := clientconfig.Verify(configFrom(c)); err != nil {
		return err
	}
	_, err := fmt.Fprintln(c.App.Writer, "configuration is valid")
	return err
}

func newConfigView(cfg *clientconfig.ClientConfig) configView {
	s := cfg.Client
	return configView{
		Client: clientSectionView{
			ClientID:                        s.ClientID,
			InitialContacts:                 s.InitialContacts,
			HeartbeatInterval:               s.HeartbeatInterval.String(),
			AcceptableHeartbeatPause:        s.AcceptableHeartbeatPause.String(),
			HeartbeatProbeTimeout:           s.HeartbeatProbeTimeout.String(),
			EstablishingGetContactsInterval: s.EstablishingGetContactsInterval.String(),
			RefreshContactsInterval:         s.RefreshContactsInterval.String(),
			ReconnectBackoffMin:             s.ReconnectBackoffMin.String(),
			ReconnectBackoffMax:             s.ReconnectBackoffMax.String(),
			ReconnectTimeout:                s.ReconnectTimeout.String(),
			BufferSize:                      s.BufferSize,
			ContactFailureCeiling:           s.ContactFailureCeiling,
			LocalAffinityFallback:           s.LocalAffinityFallback,
			FlushOnStop:                     s.FlushOnStop,
			RequestTimeout:                  s.RequestTimeout.String(),
			ContactCacheDir:                 s.ContactCacheDir,
			TLSCAFile:                       s.TLSCAFile,
		},
		Log: logSectionView{Level: cfg.Log.Level, Format: cfg.Log.Format},
	}
}
