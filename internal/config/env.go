package config

import (
	"fmt"
	"strconv"
	"strings"
)

// ApplyEnv overrides credentials and locations from the environment.
// Unset or empty variables leave the file value in place.
//
// Variables: IMAP_HOST, IMAP_PORT, IMAP_USERNAME, IMAP_PASSWORD,
// ATLASSIAN_HOST, ATLASSIAN_EMAIL, ATLASSIAN_TOKEN, SYNC_DIR.
func (c *Config) ApplyEnv(getenv func(string) string) error {
	set := func(dst *string, key string) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = v
		}
	}

	set(&c.Mail.IMAPHost, "IMAP_HOST")
	set(&c.Mail.IMAPUsername, "IMAP_USERNAME")
	set(&c.Mail.IMAPPassword, "IMAP_PASSWORD")
	set(&c.Atlassian.Host, "ATLASSIAN_HOST")
	set(&c.Atlassian.Email, "ATLASSIAN_EMAIL")
	set(&c.Atlassian.Token, "ATLASSIAN_TOKEN")
	set(&c.SyncDir, "SYNC_DIR")

	if v := strings.TrimSpace(getenv("IMAP_PORT")); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("IMAP_PORT: %w", err)
		}
		c.Mail.IMAPPort = port
	}
	return nil
}
