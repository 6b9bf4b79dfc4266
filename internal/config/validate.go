package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateTransfers(); err != nil {
		return err
	}
	if err := c.validateSSH(); err != nil {
		return err
	}
	if err := c.validateHosts(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateTransfers() error {
	if c.Transfers.Concurrency <= 0 {
		return errors.New("transfers.concurrency must be greater than zero")
	}
	if c.Transfers.SweepInterval < 0 {
		return errors.New("transfers.sweep_interval must not be negative")
	}
	if c.Transfers.SweepMaxAge <= 0 {
		return errors.New("transfers.sweep_max_age must be greater than zero")
	}
	if c.Transfers.EventBuffer <= 0 {
		return errors.New("transfers.event_buffer must be greater than zero")
	}
	return nil
}

func (c *Config) validateSSH() error {
	if c.SSH.ConnectTimeout <= 0 {
		return errors.New("ssh.connect_timeout must be greater than zero")
	}
	return nil
}

func (c *Config) validateHosts() error {
	seen := make(map[string]struct{}, len(c.Hosts))
	for i := range c.Hosts {
		host := &c.Hosts[i]
		if host.ID == "" {
			return fmt.Errorf("hosts[%d].id must be set", i)
		}
		if _, dup := seen[host.ID]; dup {
			return fmt.Errorf("hosts: duplicate id %q", host.ID)
		}
		seen[host.ID] = struct{}{}
		if host.Address == "" {
			return fmt.Errorf("hosts[%s].address must be set", host.ID)
		}
		if host.User == "" {
			return fmt.Errorf("hosts[%s].user must be set", host.ID)
		}
		if host.Port <= 0 || host.Port > 65535 {
			return fmt.Errorf("hosts[%s].port %d out of range", host.ID, host.Port)
		}
		if host.KeyFile == "" && host.PasswordEnv == "" {
			return fmt.Errorf("hosts[%s]: key_file or password_env must be set", host.ID)
		}
		if len(host.Categories) == 0 {
			return fmt.Errorf("hosts[%s]: at least one category directory must be set", host.ID)
		}
		for name, dir := range host.Categories {
			if strings.TrimSpace(name) == "" {
				return fmt.Errorf("hosts[%s]: category name must not be empty", host.ID)
			}
			if !strings.HasPrefix(dir, "/") {
				return fmt.Errorf("hosts[%s].categories[%s]: %q is not an absolute path", host.ID, name, dir)
			}
		}
		if host.Fallback == "" {
			return fmt.Errorf("hosts[%s].fallback must name a category", host.ID)
		}
		if _, ok := host.Categories[host.Fallback]; !ok {
			return fmt.Errorf("hosts[%s].fallback %q is not a defined category", host.ID, host.Fallback)
		}
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch strings.ToLower(strings.TrimSpace(c.Logging.Format)) {
	case "", "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	return nil
}
