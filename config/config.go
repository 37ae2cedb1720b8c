// SPDX-License-Identifier: GPL-3.0-or-later
package config

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/CrawX/go-learn-spam/domain"
)

const DefaultConfigFile = "/etc/go-learn-spam.toml"

const (
	BackendRspamc     = "rspamc"
	BackendController = "controller"
	BackendSpamd      = "spamd"
)

type Config struct {
	Imap    ImapConfig    `toml:"imap"`
	Spam    SpamConfig    `toml:"spam"`
	Logging LoggingConfig `toml:"logging"`
	Journal JournalConfig `toml:"journal"`
}

type ImapConfig struct {
	Host     string `toml:"host"`
	User     string `toml:"user"`
	Password string `toml:"password"`

	SpamFolder     string `toml:"SPAMFOLDER"`
	SpamDoneFolder string `toml:"SPAMDONEFOLDER"`
	HamFolder      string `toml:"HAMFOLDER"`
	HamDoneFolder  string `toml:"HAMDONEFOLDER"`

	// Wait is the pause in seconds after every processed message.
	Wait int `toml:"wait"`

	Compress bool `toml:"compress"`
	UseMove  bool `toml:"usemove"`
}

type SpamConfig struct {
	Backend string `toml:"backend"`

	Rspamc  string `toml:"rspamc"`
	Host    string `toml:"host"`
	Port    int    `toml:"port"`
	Timeout int    `toml:"timeout"`

	Controller string `toml:"controller"`
	Password   string `toml:"password"`

	Spamd string `toml:"spamd"`

	UnwrapReports bool `toml:"unwrapreports"`
	AnyLine       bool `toml:"anyline"`
}

type LoggingConfig struct {
	Level string `toml:"level"`
	File  string `toml:"file"`
}

type JournalConfig struct {
	Database string `toml:"database"`
}

func ReadConfig(filename string) (*Config, error) {
	config := defaults()

	_, err := toml.DecodeFile(filename, config)
	if err != nil {
		return nil, fmt.Errorf("could not read config file: %w", err)
	}

	err = config.validate()
	if err != nil {
		return nil, err
	}

	return config, nil
}

func defaults() *Config {
	return &Config{
		Imap: ImapConfig{
			Wait: 5,
		},
		Spam: SpamConfig{
			Backend: BackendRspamc,
			Host:    "127.0.0.1",
			Port:    11334,
			Timeout: 60,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Folders returns the learn folders in processing order, spam first.
func (c *Config) Folders() []domain.FolderSpec {
	return []domain.FolderSpec{
		{Role: domain.LearnSpam, Source: c.Imap.SpamFolder, Done: c.Imap.SpamDoneFolder},
		{Role: domain.LearnHam, Source: c.Imap.HamFolder, Done: c.Imap.HamDoneFolder},
	}
}

// Endpoint is the host:port the classifier is told to connect to.
func (c *Config) Endpoint() string {
	return net.JoinHostPort(c.Spam.Host, strconv.Itoa(c.Spam.Port))
}

func (c *Config) Wait() time.Duration {
	return time.Duration(c.Imap.Wait) * time.Second
}

func (c *Config) ClassifierTimeout() time.Duration {
	return time.Duration(c.Spam.Timeout) * time.Second
}

func (c *Config) validate() error {
	if err := validateNonEmptyStringField(c.Imap.Host, "imap.host must not be empty, set to host[:port] of the imap server"); err != nil {
		return err
	}

	if err := validateNonEmptyStringField(c.Imap.User, "imap.user must not be empty, set to username on the imap server"); err != nil {
		return err
	}

	if err := validateNonEmptyStringField(c.Imap.Password, "imap.password must not be empty, set to password of user on the imap server"); err != nil {
		return err
	}

	for _, f := range []struct {
		value, name string
	}{
		{c.Imap.SpamFolder, "SPAMFOLDER"},
		{c.Imap.SpamDoneFolder, "SPAMDONEFOLDER"},
		{c.Imap.HamFolder, "HAMFOLDER"},
		{c.Imap.HamDoneFolder, "HAMDONEFOLDER"},
	} {
		if err := validateNonEmptyStringField(f.value, fmt.Sprintf("imap.%s must not be empty", f.name)); err != nil {
			return err
		}
	}

	if c.Imap.Wait < 0 {
		return errors.New("imap.wait must not be negative")
	}

	if c.Spam.Timeout <= 0 {
		return errors.New("spam.timeout must be positive")
	}

	switch c.Spam.Backend {
	case BackendRspamc:
		if err := validateNonEmptyStringField(c.Spam.Rspamc, "spam.rspamc must not be empty, set to the path of the rspamc executable"); err != nil {
			return err
		}
		if c.Spam.Port <= 0 || c.Spam.Port > 65535 {
			return fmt.Errorf("spam.port %d is not a valid port", c.Spam.Port)
		}
	case BackendController:
		if err := validateNonEmptyStringField(c.Spam.Controller, "spam.controller must be set to the rspamd controller url for backend controller"); err != nil {
			return err
		}
		if err := validateNonEmptyStringField(c.Spam.Password, "spam.password must be set for backend controller"); err != nil {
			return err
		}
	case BackendSpamd:
		if err := validateNonEmptyStringField(c.Spam.Spamd, "spam.spamd must be set to host:port of spamd for backend spamd"); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unsupported spam.backend %q, use one of %s, %s, %s", c.Spam.Backend, BackendRspamc, BackendController, BackendSpamd)
	}

	return nil
}

func validateNonEmptyStringField(field string, err string) error {
	if len(strings.TrimSpace(field)) == 0 {
		return errors.New(err)
	}

	return nil
}
