// SPDX-License-Identifier: GPL-3.0-or-later
package main

import (
	"fmt"
	"os"

	"github.com/CrawX/go-learn-spam/classifier/rspamc"
	"github.com/CrawX/go-learn-spam/classifier/rspamd"
	"github.com/CrawX/go-learn-spam/classifier/spamassassin"
	"github.com/CrawX/go-learn-spam/config"
	"github.com/CrawX/go-learn-spam/domain"
	"github.com/CrawX/go-learn-spam/imapconnection"
	"github.com/CrawX/go-learn-spam/learner"
	"github.com/CrawX/go-learn-spam/log"
	"github.com/CrawX/go-learn-spam/mail"
	"github.com/CrawX/go-learn-spam/persistence"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

type options struct {
	configFile string
	logLevel   string
	dryRun     bool
	limit      int
}

func main() {
	opts := &options{}

	rootCmd := &cobra.Command{
		Use:   "go-learn-spam",
		Short: "Train the spam classifier with the mails of the learn folders and move them to their done folders",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			err := runLearn(opts)
			if err != nil {
				log.Logger(log.LOG_MAIN).WithField("error", err).Fatal("Learning failed")
			}
		},
	}
	rootCmd.PersistentFlags().StringVarP(&opts.configFile, "config", "c", config.DefaultConfigFile, "path of the configuration file")
	rootCmd.PersistentFlags().StringVar(&opts.logLevel, "loglevel", "", "overrides logging.level of the configuration file")
	rootCmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "only list and fetch mails, neither learn nor move them")

	journalCmd := &cobra.Command{
		Use:   "journal",
		Short: "Show the most recently recorded mail outcomes",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			err := showJournal(opts)
			if err != nil {
				log.Logger(log.LOG_MAIN).WithField("error", err).Fatal("Could not show journal")
			}
		},
	}
	journalCmd.Flags().IntVarP(&opts.limit, "limit", "n", 20, "number of outcomes to show")
	rootCmd.AddCommand(journalCmd)

	log.InitLogging("info")
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// setup reads the configuration and applies its logging settings. The returned
// cleanup closes the log file if one was opened.
func setup(opts *options) (*config.Config, func(), error) {
	logger := log.Logger(log.LOG_MAIN)

	conf, err := config.ReadConfig(opts.configFile)
	if err != nil {
		return nil, nil, fmt.Errorf("could not load config: %w", err)
	}

	log.SetLogLevel(conf.Logging.Level)
	if len(opts.logLevel) > 0 {
		log.SetLogLevel(opts.logLevel)
	}

	cleanup := func() {}
	if len(conf.Logging.File) > 0 {
		f, err := log.SetLogFile(conf.Logging.File)
		if err != nil {
			return nil, nil, err
		}
		cleanup = func() {
			if err := f.Close(); err != nil {
				fmt.Fprintf(os.Stderr, "could not close log file: %v\n", err)
			}
		}
	}

	logger.WithField("config", opts.configFile).Debug("Loaded config")
	return conf, cleanup, nil
}

func runLearn(opts *options) error {
	logger := log.Logger(log.LOG_MAIN)

	conf, cleanup, err := setup(opts)
	if err != nil {
		return err
	}
	defer cleanup()

	var journal domain.Journal
	if len(conf.Journal.Database) > 0 {
		p, err := persistence.NewPersistence(conf.Journal.Database)
		if err != nil {
			return fmt.Errorf("could not open journal: %w", err)
		}
		defer p.Close()
		journal = p
	}

	spamClassifier, err := newClassifier(conf)
	if err != nil {
		return fmt.Errorf("could not start classifier: %w", err)
	}

	dialer := imapconnection.NewDialer(conf.Imap.Host, conf.Imap.User, conf.Imap.Password, conf.Imap.Compress)

	configs := []learner.ConfigFunc{learner.Wait(conf.Wait())}
	if opts.dryRun {
		configs = append(configs, learner.DryRun())
	}
	if conf.Spam.UnwrapReports {
		configs = append(configs, learner.UnwrapReports())
	}
	if conf.Imap.UseMove {
		configs = append(configs, learner.UseMove())
	}
	if conf.Spam.AnyLine {
		configs = append(configs, learner.AnyLine())
	}

	l, err := learner.NewLearner(dialer, spamClassifier, journal, configs...)
	if err != nil {
		return fmt.Errorf("could not start learner: %w", err)
	}

	logger.WithFields(logrus.Fields{
		"server":  conf.Imap.Host,
		"backend": conf.Spam.Backend,
		"wait":    conf.Wait(),
		"dryrun":  opts.dryRun,
		"run":     l.RunId(),
	}).Info("Learning mails")
	if opts.dryRun {
		logger.Warn("Skipping learning and moving of mails due to dry-run")
	}

	return l.Run(conf.Folders())
}

func newClassifier(conf *config.Config) (domain.Classifier, error) {
	switch conf.Spam.Backend {
	case config.BackendController:
		rs, err := rspamd.NewRspamd(conf.Spam.Controller, conf.Spam.Password, conf.ClassifierTimeout())
		if err != nil {
			return nil, err
		}
		return rs, nil
	case config.BackendSpamd:
		sa, err := spamassassin.NewSpamassassin(conf.Spam.Spamd)
		if err != nil {
			return nil, err
		}
		return sa, nil
	default:
		return rspamc.NewRspamc(conf.Spam.Rspamc, conf.Endpoint(), conf.ClassifierTimeout()), nil
	}
}

func showJournal(opts *options) error {
	conf, cleanup, err := setup(opts)
	if err != nil {
		return err
	}
	defer cleanup()

	if len(conf.Journal.Database) == 0 {
		return fmt.Errorf("journal.database is not configured")
	}

	p, err := persistence.NewPersistence(conf.Journal.Database)
	if err != nil {
		return fmt.Errorf("could not open journal: %w", err)
	}
	defer p.Close()

	entries, err := p.Recent(opts.limit)
	if err != nil {
		return err
	}

	for _, e := range entries {
		fmt.Printf("%s\t%s\t%s\t%s\t%d\t%s\t%s\t%s\n",
			e.CreatedAt.Local().Format("2006-01-02 15:04:05"),
			e.RunId,
			e.LearnType,
			e.FolderName,
			e.Uid,
			e.Outcome,
			mail.ShortSubject(e.Subject),
			e.Detail,
		)
	}

	return nil
}
