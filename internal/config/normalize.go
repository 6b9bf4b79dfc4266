package config

import (
	"fmt"
	"strings"
)

// normalize expands path fields and fills per-host defaults so the rest of
// the system never sees partial values.
func (c *Config) normalize() error {
	logDir, err := expandPath(c.Paths.LogDir)
	if err != nil {
		return fmt.Errorf("normalize log_dir: %w", err)
	}
	c.Paths.LogDir = logDir

	if strings.TrimSpace(c.Paths.HistoryDB) != "" {
		historyDB, err := expandPath(c.Paths.HistoryDB)
		if err != nil {
			return fmt.Errorf("normalize history_db: %w", err)
		}
		c.Paths.HistoryDB = historyDB
	}

	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	c.Paths.APIToken = strings.TrimSpace(c.Paths.APIToken)
	c.SSH.RsyncBinary = strings.TrimSpace(c.SSH.RsyncBinary)
	if c.SSH.RsyncBinary == "" {
		c.SSH.RsyncBinary = defaultRsyncBinary
	}

	for i := range c.Hosts {
		host := &c.Hosts[i]
		host.ID = strings.TrimSpace(host.ID)
		host.Name = strings.TrimSpace(host.Name)
		host.Address = strings.TrimSpace(host.Address)
		host.User = strings.TrimSpace(host.User)
		host.Fallback = strings.TrimSpace(host.Fallback)
		if host.Name == "" {
			host.Name = host.ID
		}
		if host.Port == 0 {
			host.Port = defaultSSHPort
		}
		if host.KeyFile != "" {
			keyFile, err := expandPath(host.KeyFile)
			if err != nil {
				return fmt.Errorf("normalize hosts[%s].key_file: %w", host.ID, err)
			}
			host.KeyFile = keyFile
		}
	}
	return nil
}
