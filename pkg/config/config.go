// config is the package holding the credentials azure-extras reads
// from disk, shared by every command so they all agree on where the
// file lives and how it is interpreted.
package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/imdario/mergo"
	"github.com/pkg/errors"
	"gopkg.in/ini.v1"

	azerr "github.com/tslight/azure-extras/pkg/errors"
)

const (
	ConfigName = ".azure.ini"
	Section    = "azure"

	EnvClientID       = "AZURE_CLIENT_ID"
	EnvClientSecret   = "AZURE_CLIENT_SECRET"
	EnvTenantID       = "AZURE_TENANT_ID"
	EnvSubscriptionID = "AZURE_SUBSCRIPTION_ID"
)

// Config is the service principal used when Azure CLI credentials are
// not available.
type Config struct {
	Client       string `ini:"client" toml:"client"`
	Secret       string `ini:"secret" toml:"secret"`
	Tenant       string `ini:"tenant" toml:"tenant"`
	Subscription string `ini:"sub" toml:"sub"`
}

type tomlFile struct {
	Azure Config `toml:"azure"`
}

// DefaultPath is ~/.azure.ini, or just the file name if there is no
// home directory to speak of.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ConfigName
	}
	return filepath.Join(home, ConfigName)
}

// FromEnv reads whichever of the AZURE_* variables are set.
func FromEnv() Config {
	return Config{
		Client:       os.Getenv(EnvClientID),
		Secret:       os.Getenv(EnvClientSecret),
		Tenant:       os.Getenv(EnvTenantID),
		Subscription: os.Getenv(EnvSubscriptionID),
	}
}

// Load reads the [azure] section of the file at path, then lets the
// environment override individual keys. Files whose name ends in
// .toml are read as TOML, anything else as INI.
func Load(path string) (Config, error) {
	var file Config
	var err error
	if strings.HasSuffix(path, ".toml") {
		file, err = loadTOML(path)
	} else {
		file, err = loadINI(path)
	}
	if err != nil {
		return Config{}, azerr.ConfigInvalid(err)
	}

	conf := FromEnv()
	if err := mergo.Merge(&conf, file); err != nil {
		return Config{}, azerr.ConfigInvalid(errors.Wrap(err, "merging environment into config"))
	}
	if err := conf.Validate(); err != nil {
		return Config{}, azerr.ConfigInvalid(errors.Wrapf(err, "reading %s", path))
	}
	return conf, nil
}

func loadINI(path string) (Config, error) {
	var conf Config
	f, err := ini.Load(path)
	if err != nil {
		return conf, errors.Wrapf(err, "failed to retrieve config from %s", path)
	}
	section, err := f.GetSection(Section)
	if err != nil {
		return conf, errors.Wrapf(err, "no [%s] section in %s", Section, path)
	}
	if err := section.MapTo(&conf); err != nil {
		return conf, errors.Wrapf(err, "parsing [%s] section of %s", Section, path)
	}
	return conf, nil
}

func loadTOML(path string) (Config, error) {
	var f tomlFile
	if _, err := toml.DecodeFile(path, &f); err != nil {
		return Config{}, errors.Wrapf(err, "failed to retrieve config from %s", path)
	}
	return f.Azure, nil
}

// Validate checks that every key needed for a service principal login
// is present.
func (c Config) Validate() error {
	var missing []string
	for _, kv := range []struct {
		key, value string
	}{
		{"client", c.Client},
		{"secret", c.Secret},
		{"tenant", c.Tenant},
		{"sub", c.Subscription},
	} {
		if kv.value == "" {
			missing = append(missing, kv.key)
		}
	}
	if len(missing) > 0 {
		return errors.Errorf("missing keys in [%s]: %s", Section, strings.Join(missing, ", "))
	}
	return nil
}
