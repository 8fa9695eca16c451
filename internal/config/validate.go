package config

import (
	"fmt"
	"io/fs"
	"strconv"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
)

func init() {
	validation.ErrorTag = "toml"
}

// Command names a CLI operation with its own configuration requirements.
type Command string

const (
	CommandKindle     Command = "extract-load-kindle-emails"
	CommandConfluence Command = "extract-load-confluence-pages"
	CommandJournal    Command = "extract-load-journal-emails"
	CommandSync       Command = "sync"
	CommandKeys       Command = "keys"
	CommandHistory    Command = "history"
)

// Validate checks settings every command depends on.
func (c *Config) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.LogDir, validation.Required),
		validation.Field(&c.SyncDir, validation.Required),
		validation.Field(&c.Permissions),
		validation.Field(&c.Database),
		validation.Field(&c.Mirror),
	)
}

// ValidateFor checks the settings cmd needs on top of Validate.
func (c *Config) ValidateFor(cmd Command) error {
	if err := c.Validate(); err != nil {
		return err
	}

	var err error
	switch cmd {
	case CommandKindle:
		err = validation.Errors{
			"mail":   c.Mail.Validate(),
			"kindle": validation.Validate(c.Kindle.Sender, validation.Required),
		}.Filter()
	case CommandJournal:
		err = validation.Errors{
			"mail":    c.Mail.Validate(),
			"journal": validation.Validate(c.Journal.Sender, validation.Required),
		}.Filter()
	case CommandConfluence:
		err = validation.Errors{"atlassian": c.Atlassian.Validate()}.Filter()
	case CommandSync:
		if !c.Mirror.Enabled() {
			err = validation.Errors{"mirror": validation.NewError("config.mirror.disabled", "mirror type is not set")}
		}
	case CommandKeys:
		err = validation.Errors{"encryption": c.Encryption.Validate()}.Filter()
	case CommandHistory:
	default:
		return fmt.Errorf("unknown command: %s", cmd)
	}
	if err != nil {
		return fmt.Errorf("%s: %w", cmd, err)
	}
	return nil
}

func (p PermissionsConfig) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.FileMode, validation.By(octalMode)),
		validation.Field(&p.DirMode, validation.By(octalMode)),
		validation.Field(&p.UID, validation.When(p.GID != nil, validation.NotNil)),
		validation.Field(&p.GID, validation.When(p.UID != nil, validation.NotNil)),
	)
}

// Modes parses the configured file and directory modes, falling back to the
// defaults for empty values.
func (p PermissionsConfig) Modes() (file fs.FileMode, dir fs.FileMode, err error) {
	file, err = parseMode(p.FileMode, DefaultFileMode)
	if err != nil {
		return 0, 0, fmt.Errorf("file_mode: %w", err)
	}
	dir, err = parseMode(p.DirMode, DefaultDirMode)
	if err != nil {
		return 0, 0, fmt.Errorf("dir_mode: %w", err)
	}
	return file, dir, nil
}

func parseMode(s, fallback string) (fs.FileMode, error) {
	if strings.TrimSpace(s) == "" {
		s = fallback
	}
	v, err := strconv.ParseUint(strings.TrimSpace(s), 8, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid octal mode %q", s)
	}
	if v > 0o777 {
		return 0, fmt.Errorf("mode %q out of range", s)
	}
	return fs.FileMode(v), nil
}

func octalMode(value any) error {
	s, _ := value.(string)
	if _, err := parseMode(s, DefaultFileMode); err != nil {
		return validation.NewError("config.permissions.mode_invalid", err.Error())
	}
	return nil
}

func (m MailConfig) Validate() error {
	return validation.ValidateStruct(&m,
		validation.Field(&m.Type, validation.In("", "imap", "mbox")),
		validation.Field(&m.IMAPHost, validation.When(m.Type != "mbox", validation.Required, is.Host)),
		validation.Field(&m.IMAPPort, validation.When(m.Type != "mbox", validation.Required, validation.Min(1), validation.Max(65535))),
		validation.Field(&m.IMAPUsername, validation.When(m.Type != "mbox", validation.Required)),
		validation.Field(&m.IMAPPassword, validation.When(m.Type != "mbox", validation.Required)),
		validation.Field(&m.MboxPath, validation.When(m.Type == "mbox", validation.Required)),
	)
}

func (a AtlassianConfig) Validate() error {
	return validation.ValidateStruct(&a,
		validation.Field(&a.Host, validation.Required, is.URL),
		validation.Field(&a.Email, validation.Required, is.EmailFormat),
		validation.Field(&a.Token, validation.Required),
	)
}

func (m MirrorConfig) Validate() error {
	return validation.ValidateStruct(&m,
		validation.Field(&m.Type, validation.In("", "filesystem", "s3", "memory")),
		validation.Field(&m.FSRoot, validation.When(m.Type == "filesystem", validation.Required)),
		validation.Field(&m.S3Bucket, validation.When(m.Type == "s3", validation.Required)),
		validation.Field(&m.S3Region, validation.When(m.Type == "s3", validation.Required)),
		validation.Field(&m.S3SecretAccessKey, validation.When(m.S3AccessKeyID != "", validation.Required)),
		validation.Field(&m.Ignore, validation.Each(validation.By(nonBlank))),
	)
}

func (e EncryptionConfig) Validate() error {
	return validation.ValidateStruct(&e,
		validation.Field(&e.Type, validation.In("", "age", "test")),
		validation.Field(&e.PublicKeyPath, validation.When(e.Type != "test", validation.Required)),
		validation.Field(&e.PrivateKeyPath, validation.When(e.Type != "test", validation.Required)),
	)
}

func (d DatabaseConfig) Validate() error {
	return validation.ValidateStruct(&d,
		validation.Field(&d.Type, validation.Required, validation.In("sqlite", "memory")),
		validation.Field(&d.DataDir, validation.When(d.Type == "sqlite", validation.Required)),
	)
}

func nonBlank(value any) error {
	s, _ := value.(string)
	if strings.TrimSpace(s) == "" {
		return validation.NewError("config.mirror.ignore_blank", "ignore patterns must not be blank")
	}
	return nil
}
