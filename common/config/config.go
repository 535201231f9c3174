package config

import (
	"os"
	"path/filepath"

	"github.com/kelseyhightower/envconfig"
	"github.com/pkg/errors"
	"gopkg.in/ini.v1"

	"github.com/t2bot/iadrive/common"
)

// Config is the resolved runtime configuration for a single run. Credentials are
// validated before any network work happens.
type Config struct {
	IA struct {
		AccessKey string
		SecretKey string
	}
	GoogleAPIKey      string
	DefaultCollection string
	DefaultMediatype  string
	SentryDSN         string
	LogDirectory      string
}

type envSettings struct {
	IAAccessKey       string `envconfig:"IA_ACCESS_KEY"`
	IASecretKey       string `envconfig:"IA_SECRET_KEY"`
	GoogleAPIKey      string `envconfig:"GOOGLE_API_KEY"`
	DefaultCollection string `envconfig:"IADRIVE_DEFAULT_COLLECTION" default:"opensource_media"`
	DefaultMediatype  string `envconfig:"IADRIVE_DEFAULT_MEDIATYPE"` // empty means derive from content
	SentryDSN         string `envconfig:"SENTRY_DSN"`
	LogDirectory      string `envconfig:"IADRIVE_LOG_DIR"`
}

// CredentialsPath returns the fixed user-config location of the `ia configure`
// credentials file.
func CredentialsPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.Wrap(err, "config: unable to locate home directory")
	}
	return filepath.Join(home, ".config", "ia.ini"), nil
}

func Load() (*Config, error) {
	env := envSettings{}
	if err := envconfig.Process("", &env); err != nil {
		return nil, errors.Wrap(err, "config: error reading environment")
	}

	c := &Config{
		GoogleAPIKey:      env.GoogleAPIKey,
		DefaultCollection: env.DefaultCollection,
		DefaultMediatype:  env.DefaultMediatype,
		SentryDSN:         env.SentryDSN,
		LogDirectory:      env.LogDirectory,
	}
	c.IA.AccessKey = env.IAAccessKey
	c.IA.SecretKey = env.IASecretKey

	if c.IA.AccessKey != "" && c.IA.SecretKey != "" {
		return c, nil
	}

	path, err := CredentialsPath()
	if err != nil {
		return nil, err
	}
	access, secret, err := ReadCredentialsFile(path)
	if err != nil {
		return nil, err
	}
	c.IA.AccessKey = access
	c.IA.SecretKey = secret
	return c, nil
}

// ReadCredentialsFile parses an `ia configure`-style ini file and returns the s3
// access and secret keys. A missing file or missing keys is a configuration error.
func ReadCredentialsFile(path string) (string, string, error) {
	if _, err := os.Stat(path); err != nil {
		return "", "", errors.Wrap(common.ErrNotConfigured, "run `ia configure` or set IA_ACCESS_KEY and IA_SECRET_KEY")
	}
	f, err := ini.Load(path)
	if err != nil {
		return "", "", errors.Wrapf(common.ErrNotConfigured, "unreadable credentials file at %s", path)
	}
	section := f.Section("s3")
	access := section.Key("access").String()
	secret := section.Key("secret").String()
	if access == "" || secret == "" {
		return "", "", errors.Wrapf(common.ErrNotConfigured, "%s is missing s3 credentials - run `ia configure`", path)
	}
	return access, secret, nil
}
