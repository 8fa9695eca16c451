package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"

	"ingester-go/internal/config"
	"ingester-go/internal/confluence"
	"ingester-go/internal/database"
	"ingester-go/internal/download"
	"ingester-go/internal/encryption"
	"ingester-go/internal/ingest"
	"ingester-go/internal/mail"
	"ingester-go/internal/mirror"
	"ingester-go/internal/notes"
)

// Options carries process-level settings and the seams tests replace.
type Options struct {
	Debug bool

	// PullFirst pulls the mirror into the vault before an ingest command runs.
	PullFirst bool

	Clock      ingest.Clock
	IDs        ingest.IDGenerator
	HTTPClient *http.Client

	// Console receives log lines alongside the log file; nil means stderr.
	Console io.Writer

	// Passphrase returns the key passphrase, asking twice when confirm is set.
	Passphrase func(confirm bool) (string, error)
}

func (o *Options) fill() {
	if o.Clock == nil {
		o.Clock = ingest.RealClock{}
	}
	if o.IDs == nil {
		o.IDs = ingest.UUIDGenerator{}
	}
	if o.Console == nil {
		o.Console = os.Stderr
	}
	if o.Passphrase == nil {
		o.Passphrase = NewPassphraseReader().Read
	}
}

// IngestApp is the application layer between the CLI and the ingest service.
// It constructs all dependencies from config for one command and manages
// the ledger run, the mirror and the log file lifecycle on Close.
type IngestApp struct {
	cfg     *config.Config
	command config.Command
	opts    Options

	logger  *slog.Logger
	logFile *os.File
	ledger  *database.SQLiteLedger
	mirror  *mirror.Mirror
	router  *ingest.Router
	service *ingest.Service
	op      *Operation
}

// NewIngestApp creates an IngestApp wired for command. params are recorded
// with the ledger run. When the command writes to the vault and a mirror is
// configured, the vault is pulled first if opts.PullFirst is set.
// The caller must call Close when done.
func NewIngestApp(ctx context.Context, cfg *config.Config, command config.Command, params []string, opts Options) (*IngestApp, error) {
	if err := cfg.ValidateFor(command); err != nil {
		return nil, err
	}
	opts.fill()

	level := slog.LevelInfo
	if opts.Debug {
		level = slog.LevelDebug
	}
	logger, logFile, err := newLogger(cfg.LogDir, opts.IDs.New(), level, opts.Console)
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}

	a := &IngestApp{
		cfg:     cfg,
		command: command,
		opts:    opts,
		logger:  logger,
		logFile: logFile,
		op:      NewOperation(string(command), params...),
	}

	if err := a.wire(ctx); err != nil {
		a.closeResources()
		return nil, err
	}
	return a, nil
}

func (a *IngestApp) wire(ctx context.Context) error {
	ledger, err := database.NewLedgerFromConfig(a.cfg.Database, a.opts.Clock)
	if err != nil {
		return fmt.Errorf("creating ledger: %w", err)
	}
	a.ledger = ledger
	if err := ledger.CheckMigrations(); err != nil {
		return fmt.Errorf("ledger schema out of date: %w", err)
	}

	if !a.writesVault() && a.command != config.CommandSync {
		return nil
	}

	fileMode, dirMode, err := a.cfg.Permissions.Modes()
	if err != nil {
		return err
	}
	vaultDir := a.cfg.VaultDir()
	if err := os.MkdirAll(vaultDir, dirMode); err != nil {
		return fmt.Errorf("creating vault directory: %w", err)
	}

	if a.cfg.Mirror.Enabled() {
		if err := a.wireMirror(ctx, vaultDir, fileMode, dirMode); err != nil {
			return err
		}
	}
	if !a.writesVault() {
		return nil
	}

	if a.mirror != nil && a.opts.PullFirst {
		report, err := a.mirror.Pull(ctx)
		if err != nil {
			return fmt.Errorf("pulling vault before ingest: %w", err)
		}
		a.logger.Info("vault pulled", "files", report.Transferred, "unchanged", report.Unchanged)
	}

	store, err := notes.NewFileSystemStore(vaultDir, notes.Permissions{
		FileMode: fileMode,
		DirMode:  dirMode,
		UID:      a.cfg.Permissions.UID,
		GID:      a.cfg.Permissions.GID,
	})
	if err != nil {
		return fmt.Errorf("opening vault: %w", err)
	}

	var (
		src  ingest.MailSource
		wiki ingest.WikiClient
	)
	switch a.command {
	case config.CommandKindle, config.CommandJournal:
		src, err = mail.NewSourceFromConfig(a.cfg.Mail, a.logger)
		if err != nil {
			return fmt.Errorf("creating mail source: %w", err)
		}
	case config.CommandConfluence:
		wiki, err = confluence.NewClient(confluence.Options{
			Host:  a.cfg.Atlassian.Host,
			Email: a.cfg.Atlassian.Email,
			Token: a.cfg.Atlassian.Token,
		}, a.opts.HTTPClient, a.logger)
		if err != nil {
			return fmt.Errorf("creating confluence client: %w", err)
		}
	}

	log := &slogAdapter{l: a.logger}
	a.router = ingest.NewRouter(store, download.NewHTTPDownloader(a.opts.HTTPClient), ledger, log, a.opts.Clock, a.opts.IDs)
	a.service = ingest.NewService(src, wiki, store, a.router, log, a.opts.Clock, ingest.Options{
		KindleSender:  a.cfg.Kindle.Sender,
		JournalSender: a.cfg.Journal.Sender,
	})
	return nil
}

func (a *IngestApp) wireMirror(ctx context.Context, vaultDir string, fileMode, dirMode os.FileMode) error {
	remote, err := mirror.NewRemoteFromConfig(ctx, a.cfg.Mirror)
	if err != nil {
		return fmt.Errorf("creating mirror remote: %w", err)
	}
	if err := remote.ValidateSetup(ctx); err != nil {
		return fmt.Errorf("checking mirror remote: %w", err)
	}

	mopts := mirror.Options{
		Ignore:   a.cfg.Mirror.Ignore,
		FileMode: fileMode,
		DirMode:  dirMode,
		Logger:   a.logger,
	}
	if a.cfg.Mirror.Encrypt {
		enc, err := encryption.NewEncryptorFromConfig(a.cfg.Encryption)
		if err != nil {
			return fmt.Errorf("creating encryptor: %w", err)
		}
		if !enc.IsConfigured() {
			return fmt.Errorf("mirror encryption enabled but keys are missing: run `ingester keys init`")
		}
		mopts.Encryptor = enc
		mopts.Unlock = func() (mirror.Decryptor, error) {
			pass, err := a.opts.Passphrase(false)
			if err != nil {
				return nil, err
			}
			dec, err := enc.Unlock(pass)
			if err != nil {
				return nil, err
			}
			return dec, nil
		}
	}

	m, err := mirror.New(vaultDir, remote, mopts)
	if err != nil {
		return fmt.Errorf("creating mirror: %w", err)
	}
	a.mirror = m
	return nil
}

func (a *IngestApp) writesVault() bool {
	switch a.command {
	case config.CommandKindle, config.CommandConfluence, config.CommandJournal:
		return true
	}
	return false
}

// persistOperation saves the operation as a ledger run so artifacts can refer to it.
func (a *IngestApp) persistOperation() error {
	if a.op.Persisted() {
		return nil
	}
	run, err := a.ledger.CreateRun(a.op.Command, a.op.Parameters)
	if err != nil {
		return fmt.Errorf("persisting run: %w", err)
	}
	a.op.ID = run.ID
	if a.router != nil {
		a.router.SetRunID(run.ID)
	}
	return nil
}

func (a *IngestApp) requireService() error {
	if a.service == nil {
		return fmt.Errorf("%s: app not wired for ingest", a.command)
	}
	return a.persistOperation()
}

// IngestKindle routes today's Kindle export links. filetype is "", "pdf" or "txt".
func (a *IngestApp) IngestKindle(ctx context.Context, filetype string) (*ingest.KindleReport, error) {
	if err := a.requireService(); err != nil {
		return nil, err
	}
	report, err := a.service.IngestKindleEmails(ctx, filetype)
	return report, a.op.Fail(err)
}

// IngestConfluence writes pages updated in the last days days. Returns the number written.
func (a *IngestApp) IngestConfluence(ctx context.Context, days int) (int, error) {
	if err := a.requireService(); err != nil {
		return 0, err
	}
	n, err := a.service.IngestConfluencePages(ctx, days)
	return n, a.op.Fail(err)
}

// IngestJournal appends today's journal mails. Returns the number of blocks written.
func (a *IngestApp) IngestJournal(ctx context.Context) (int, error) {
	if err := a.requireService(); err != nil {
		return 0, err
	}
	n, err := a.service.IngestJournalEmails(ctx)
	return n, a.op.Fail(err)
}

// SyncPull copies changed remote objects into the vault.
func (a *IngestApp) SyncPull(ctx context.Context) (mirror.Report, error) {
	if a.mirror == nil {
		return mirror.Report{}, fmt.Errorf("mirror is not configured")
	}
	if err := a.persistOperation(); err != nil {
		return mirror.Report{}, err
	}
	report, err := a.mirror.Pull(ctx)
	return report, a.op.Fail(err)
}

// SyncPush copies changed vault files to the remote.
func (a *IngestApp) SyncPush(ctx context.Context) (mirror.Report, error) {
	if a.mirror == nil {
		return mirror.Report{}, fmt.Errorf("mirror is not configured")
	}
	if err := a.persistOperation(); err != nil {
		return mirror.Report{}, err
	}
	report, err := a.mirror.Push(ctx)
	return report, a.op.Fail(err)
}

// History returns the most recent ledger runs, newest first.
func (a *IngestApp) History(limit int) ([]*database.Run, error) {
	return a.ledger.ListRuns(limit)
}

// Artifacts returns what the given run wrote.
func (a *IngestApp) Artifacts(runID int64) ([]*ingest.ArtifactRecord, error) {
	return a.ledger.ListArtifacts(runID)
}

// Close finalizes the run and releases resources. After an ingest command the
// vault is pushed to the mirror even when the command failed; a push failure
// marks the run as failed and is returned.
func (a *IngestApp) Close(ctx context.Context) error {
	var errs []error

	if a.op.Persisted() && a.writesVault() && a.mirror != nil {
		report, err := a.mirror.Push(ctx)
		if err != nil {
			a.op.Status = database.RunStatusError
			errs = append(errs, fmt.Errorf("pushing vault: %w", err))
		} else {
			a.logger.Info("vault pushed", "files", report.Transferred, "unchanged", report.Unchanged)
		}
	}

	if a.op.Persisted() {
		if err := a.ledger.FinishRun(a.op.ID, a.op.Status); err != nil {
			errs = append(errs, fmt.Errorf("finishing run: %w", err))
		}
	}

	if err := a.closeResources(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (a *IngestApp) closeResources() error {
	var err error
	if a.ledger != nil {
		if cerr := a.ledger.Close(); cerr != nil {
			err = fmt.Errorf("closing ledger: %w", cerr)
		}
		a.ledger = nil
	}
	if a.logFile != nil {
		a.logFile.Close()
		a.logFile = nil
	}
	return err
}

// InitKeys generates the encryption key pair protected by a new passphrase.
func InitKeys(cfg *config.Config, passphrase func(confirm bool) (string, error)) error {
	if err := cfg.ValidateFor(config.CommandKeys); err != nil {
		return err
	}
	enc, err := encryption.NewEncryptorFromConfig(cfg.Encryption)
	if err != nil {
		return fmt.Errorf("creating encryptor: %w", err)
	}
	if enc.IsConfigured() {
		return encryption.ErrKeysExist
	}

	if passphrase == nil {
		passphrase = NewPassphraseReader().Read
	}
	pass, err := passphrase(true)
	if err != nil {
		return err
	}
	return enc.Setup(pass)
}
