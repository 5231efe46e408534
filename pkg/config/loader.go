package config

import (
	"os"
	"regexp"

	"gopkg.in/yaml.v3"

	"github.com/ajitpratap0/pooling/pkg/errors"
)

// envRef matches ${NAME} and ${NAME:-fallback}.
var envRef = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-([^}]*))?\}`)

// Load reads the file at path and validates it. Fields the file leaves out
// keep the values of New.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: the path is chosen by the operator
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "reading config file").
			WithDetail("path", path)
	}
	cfg := New()
	if err := Parse(data, cfg); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, path)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse expands environment references in data and decodes the YAML into
// out. It does not validate.
func Parse(data []byte, out any) error {
	if err := yaml.Unmarshal(expandEnv(data), out); err != nil {
		return errors.Wrap(err, errors.ErrorTypeConfig, "parsing YAML")
	}
	return nil
}

// Save writes cfg to path as YAML.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeConfig, "encoding YAML")
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return errors.Wrap(err, errors.ErrorTypeConfig, "writing config file").
			WithDetail("path", path)
	}
	return nil
}

// expandEnv replaces every environment reference. A fallback applies when
// the variable is unset or empty.
func expandEnv(data []byte) []byte {
	return envRef.ReplaceAllFunc(data, func(ref []byte) []byte {
		m := envRef.FindSubmatch(ref)
		if v := os.Getenv(string(m[1])); v != "" {
			return []byte(v)
		}
		return m[2]
	})
}
