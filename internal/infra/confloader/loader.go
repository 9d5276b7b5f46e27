package confloader

import (
	"fmt"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// DefaultEnvPrefix prefixes every environment variable the loader reads.
const DefaultEnvPrefix = "GATEMESH_"

// Loader merges a YAML file, the environment and flag values into a
// configuration struct.
type Loader struct {
	k         *koanf.Koanf
	envPrefix string
	filePath  string
	flags     map[string]any
	applied   []string
}

// Option configures a Loader.
type Option func(*Loader)

// WithEnvPrefix replaces DefaultEnvPrefix.
func WithEnvPrefix(prefix string) Option {
	return func(l *Loader) { l.envPrefix = prefix }
}

// WithConfigFile names the YAML file. An empty path skips the file layer.
func WithConfigFile(path string) Option {
	return func(l *Loader) { l.filePath = path }
}

// WithFlags sets the top layer. Keys are dotted paths such as
// "client.buffer-size".
func WithFlags(flags map[string]any) Option {
	return func(l *Loader) { l.flags = flags }
}

// NewLoader creates a Loader.
func NewLoader(opts ...Option) *Loader {
	l := &Loader{k: koanf.New("."), envPrefix: DefaultEnvPrefix}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// FilePath returns the configured file, if any.
func (l *Loader) FilePath() string { return l.filePath }

// Sources lists the layers the last Load applied, lowest priority first.
func (l *Loader) Sources() []string { return l.applied }

// Load unmarshals file, environment and flags, in that order, over
// target. Fields no layer sets keep their value, so target should hold
// the defaults. Every call starts afresh, which makes Load usable for
// reloads.
func (l *Loader) Load(target any) error {
	l.k = koanf.New(".")
	l.applied = l.applied[:0]

	layers := []struct {
		name string
		skip bool
		load func() error
	}{
		{"file:" + l.filePath, l.filePath == "", func() error { return l.LoadFile(l.filePath) }},
		{"env:" + l.envPrefix + "*", false, l.LoadEnv},
		{"flags", len(l.flags) == 0, func() error { return l.LoadMap(l.flags) }},
	}
	for _, layer := range layers {
		if layer.skip {
			continue
		}
		if err := layer.load(); err != nil {
			return err
		}
		l.applied = append(l.applied, layer.name)
	}

	if err := l.Unmarshal(target); err != nil {
		return fmt.Errorf("unmarshal config: %w", err)
	}
	return nil
}

// LoadFile merges a YAML file. An empty path is a no-op.
func (l *Loader) LoadFile(path string) error {
	if path == "" {
		return nil
	}
	if err := l.k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return fmt.Errorf("load config file %s: %w", path, err)
	}
	return nil
}

// LoadEnv merges the prefixed environment variables. Comma separated
// values decode into list fields, so GATEMESH_CLIENT__INITIAL_CONTACTS=a,b
// sets two contacts.
func (l *Loader) LoadEnv() error {
	p := env.Provider(l.envPrefix, ".", func(key string) string {
		return EnvKey(l.envPrefix, key)
	})
	if err := l.k.Load(p, nil); err != nil {
		return fmt.Errorf("load env: %w", err)
	}
	return nil
}

// EnvKey maps GATEMESH_CLIENT__BUFFER_SIZE to client.buffer-size.
func EnvKey(prefix, name string) string {
	sections := strings.Split(strings.ToLower(strings.TrimPrefix(name, prefix)), "__")
	for i := range sections {
		sections[i] = strings.ReplaceAll(sections[i], "_", "-")
	}
	return strings.Join(sections, ".")
}

// LoadMap merges dotted keys.
func (l *Loader) LoadMap(data map[string]any) error {
	if err := l.k.Load(mapProvider(data), nil); err != nil {
		return fmt.Errorf("load flags: %w", err)
	}
	return nil
}

// Unmarshal decodes the merged layers into target using koanf tags. A
// string decoded into a slice field is split on commas, which is how list
// values arrive from the environment.
func (l *Loader) Unmarshal(target any) error {
	return l.k.UnmarshalWithConf("", target, koanf.UnmarshalConf{
		DecoderConfig: &mapstructure.DecoderConfig{
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeDurationHookFunc(),
				mapstructure.StringToSliceHookFunc(","),
				mapstructure.TextUnmarshallerHookFunc(),
			),
			WeaklyTypedInput: true,
		},
	})
}

// Get returns the merged value at key.
func (l *Loader) Get(key string) any { return l.k.Get(key) }

// GetString returns the merged value at key as a string.
func (l *Loader) GetString(key string) string { return l.k.String(key) }

// All returns the merged configuration as dotted keys.
func (l *Loader) All() map[string]any { return l.k.All() }
