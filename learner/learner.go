// SPDX-License-Identifier: GPL-3.0-or-later
package learner

import (
	"errors"
	"fmt"
	"time"

	"github.com/CrawX/go-learn-spam/classifier"
	"github.com/CrawX/go-learn-spam/domain"
	"github.com/CrawX/go-learn-spam/log"
	"github.com/CrawX/go-learn-spam/mail"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// PassResult counts the terminal states of all mails handled in one pass.
type PassResult struct {
	Folder domain.FolderSpec
	Listed int

	Moved          int
	LeftInPlace    int
	PartiallyMoved int
}

func (p *PassResult) add(outcome domain.MoveOutcome) {
	switch outcome {
	case domain.Moved:
		p.Moved++
	case domain.LeftInPlace:
		p.LeftInPlace++
	case domain.PartiallyMoved:
		p.PartiallyMoved++
	}
}

type Learner struct {
	dialer         domain.ImapDialer
	spamClassifier domain.Classifier
	journal        domain.Journal
	interpreter    *classifier.Interpreter

	configuration *configuration

	runId string
	sleep func(time.Duration)
	now   func() time.Time

	l *logrus.Logger
}

// NewLearner creates a Learner. journal may be nil, outcomes are then only
// logged.
func NewLearner(dialer domain.ImapDialer, spamClassifier domain.Classifier, journal domain.Journal, configFunc ...ConfigFunc) (*Learner, error) {
	config := &configuration{}
	for _, f := range configFunc {
		err := f(config)
		if err != nil {
			return nil, fmt.Errorf("error applying configuration: %w", err)
		}
	}

	return &Learner{
		dialer:         dialer,
		spamClassifier: spamClassifier,
		journal:        journal,
		interpreter:    classifier.NewInterpreter(config.AnyLine),
		configuration:  config,
		runId:          uuid.NewString(),
		sleep:          time.Sleep,
		now:            time.Now,
		l:              log.Logger(log.LOG_LEARNER),
	}, nil
}

func (le *Learner) RunId() string {
	return le.runId
}

// Run executes one pass per folder, strictly in the given order. A failed pass
// does not prevent the following ones; all pass errors are returned joined.
func (le *Learner) Run(folders []domain.FolderSpec) error {
	var errs []error
	for _, f := range folders {
		result, err := le.Pass(f)
		if err != nil {
			le.l.WithFields(logrus.Fields{"folder": f.Source, "learntype": f.Role, "error": err}).Error("Pass aborted")
			errs = append(errs, fmt.Errorf("%s pass on %s failed: %w", f.Role, f.Source, err))
			continue
		}

		le.l.WithFields(logrus.Fields{
			"folder":         f.Source,
			"learntype":      f.Role,
			"listed":         result.Listed,
			"moved":          result.Moved,
			"leftinplace":    result.LeftInPlace,
			"partiallymoved": result.PartiallyMoved,
		}).Info("Pass finished")
	}

	return errors.Join(errs...)
}

// Pass opens a fresh session, processes every mail of folder.Source once and
// always logs out again. Only session or selection failures are returned,
// failures of single mails end up in the PassResult.
func (le *Learner) Pass(folder domain.FolderSpec) (*PassResult, error) {
	baseLogger := le.l.WithFields(logrus.Fields{"folder": folder.Source, "learntype": folder.Role, "run": le.runId})

	conn, err := le.dialer.Dial()
	if err != nil {
		return nil, fmt.Errorf("could not open imap session: %w", err)
	}
	defer func() {
		if err := conn.Close(); err != nil {
			baseLogger.WithField("error", err).Warn("Could not log out")
		}
	}()

	messages, err := conn.Select(folder.Source)
	if err != nil {
		return nil, fmt.Errorf("could not select folder %s: %w", folder.Source, err)
	}

	useMove := le.prepareMove(conn, baseLogger)

	uids, err := conn.ListUids()
	if err != nil {
		baseLogger.WithField("error", err).Error("Could not search folder, continuing without mails")
		uids = nil
	}

	result := &PassResult{Folder: folder, Listed: len(uids)}
	if len(uids) == 0 {
		baseLogger.WithField("messages", messages).Info("Folder contains no mails to learn")
		return result, nil
	}

	baseLogger.WithFields(logrus.Fields{"messages": messages, "mails": len(uids), "dryrun": le.configuration.DryRun}).Info("Found mails to learn")

	start := time.Now()
	for _, uid := range uids {
		result.add(le.processMessage(conn, folder, uid, useMove))
		le.sleep(le.configuration.Wait)
	}

	baseLogger.WithFields(logrus.Fields{"duration": time.Since(start), "mails": len(uids)}).Info("Learned mails")
	return result, nil
}

// prepareMove decides between an atomic MOVE and copy+delete for this session.
func (le *Learner) prepareMove(conn domain.ImapConnector, baseLogger *logrus.Entry) bool {
	if le.configuration.DryRun {
		return false
	}

	if le.configuration.UseMove {
		if conn.MoveSupported() {
			return true
		}
		baseLogger.Warn("MOVE not supported on server, falling back to copy and delete")
	}

	notDeleteReadyReason, err := conn.DeleteReady()
	if err != nil {
		baseLogger.WithField("error", err).Warn("Could not check folder for mails flagged as deleted")
	} else if notDeleteReadyReason != nil {
		baseLogger.WithField("error", notDeleteReadyReason).Warn("Mails already flagged as deleted will be expunged together with learned mails")
	}

	return false
}

func (le *Learner) processMessage(conn domain.ImapConnector, folder domain.FolderSpec, uid uint32, useMove bool) domain.MoveOutcome {
	entry := &domain.JournalEntry{
		RunId:      le.runId,
		FolderName: folder.Source,
		LearnType:  folder.Role,
		Uid:        uid,
	}

	entry.Outcome, entry.Detail = le.learnMessage(conn, folder, uid, useMove, entry)
	entry.CreatedAt = le.now()

	le.l.WithFields(logrus.Fields{
		"folder":  folder.Source,
		"uid":     uid,
		"subject": mail.ShortSubject(entry.Subject),
		"outcome": entry.Outcome,
	}).Info("Processed mail")

	if le.journal != nil {
		err := le.journal.Record(entry)
		if err != nil {
			le.l.WithFields(logrus.Fields{"uid": uid, "error": err}).Error("Could not record outcome in journal")
		}
	}

	return entry.Outcome
}

// learnMessage fetches, classifies and moves one mail. It fills the subject
// and hash of entry and returns the outcome and its detail.
func (le *Learner) learnMessage(conn domain.ImapConnector, folder domain.FolderSpec, uid uint32, useMove bool, entry *domain.JournalEntry) (domain.MoveOutcome, string) {
	mailLogger := le.l.WithFields(logrus.Fields{"folder": folder.Source, "uid": uid})

	text, err := le.assemble(conn, uid)
	if err != nil {
		mailLogger.WithField("error", err).Error("Could not fetch mail")
		return domain.LeftInPlace, err.Error()
	}

	info, err := mail.ReadHeaderInfo([]byte(text))
	if err != nil {
		mailLogger.WithField("error", err).Debug("Could not read header infos")
	} else {
		entry.Subject = info.Subject
		entry.MailIdHash = info.MailIdHash
		mailLogger = mailLogger.WithField("subject", mail.ShortSubject(info.Subject))
	}

	if le.configuration.DryRun {
		mailLogger.Info("Not learning mail due to dry-run")
		return domain.LeftInPlace, "dry-run"
	}

	report, err := le.spamClassifier.Learn(folder.Role, text)
	if err != nil {
		mailLogger.WithField("error", err).Error("Could not invoke classifier")
		return domain.LeftInPlace, fmt.Sprintf("classifier invocation failed: %v", err)
	}

	result := le.interpreter.Interpret(report)
	if !result.MoveEligible() {
		mailLogger.WithFields(logrus.Fields{"report": report, "line": result.Line}).Warn("Classifier did not report success, leaving mail in place")
		return domain.LeftInPlace, fmt.Sprintf("%s: %s", result.Detail, result.Line)
	}

	if result.Class != "" && result.Class != string(folder.Role) {
		mailLogger.WithField("class", result.Class).Info("Mail is already learned as the other class")
	}
	mailLogger.WithField("result", result.Outcome).Debug("Learned mail")

	return le.move(conn, folder, uid, useMove, mailLogger, result.Outcome.String())
}

// move relocates a learned mail into folder.Done. The source copy is only
// deleted after the done folder acknowledged the copy.
func (le *Learner) move(conn domain.ImapConnector, folder domain.FolderSpec, uid uint32, useMove bool, mailLogger *logrus.Entry, detail string) (domain.MoveOutcome, string) {
	if useMove {
		err := conn.Move(uid, folder.Done)
		if err != nil {
			mailLogger.WithFields(logrus.Fields{"destination": folder.Done, "error": err}).Warn("Could not move learned mail, leaving it in place")
			return domain.PartiallyMoved, err.Error()
		}
		return domain.Moved, detail
	}

	err := conn.Copy(uid, folder.Done)
	if err != nil {
		mailLogger.WithFields(logrus.Fields{"destination": folder.Done, "error": err}).Warn("Could not copy learned mail, leaving it in place")
		return domain.PartiallyMoved, err.Error()
	}

	err = conn.Delete(uid)
	if err != nil {
		mailLogger.WithFields(logrus.Fields{"destination": folder.Done, "error": err}).Warn("Copied learned mail but could not delete it from source")
		return domain.PartiallyMoved, err.Error()
	}

	return domain.Moved, detail
}
