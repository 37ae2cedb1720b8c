// SPDX-License-Identifier: GPL-3.0-or-later
package persistence

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"time"

	"github.com/CrawX/go-learn-spam/domain"
	"github.com/CrawX/go-learn-spam/log"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/rubenv/sql-migrate"
	"github.com/sirupsen/logrus"
)

//go:embed sql/*.sql
var migrationFiles embed.FS

// Persistence is the sqlite backed journal of per mail outcomes.
type Persistence struct {
	db *sqlx.DB
	l  *logrus.Logger
}

func NewPersistence(datasource string) (*Persistence, error) {
	db, err := sqlx.Connect("sqlite3", datasource)
	if err != nil {
		return nil, fmt.Errorf("could not open db: %w", err)
	}
	db.SetMaxOpenConns(1)

	l := log.Logger(log.LOG_PERSISTENCE)
	l.WithField("file", datasource).Info("Connected")

	appliedMigrations, err := prepare(db)
	if err != nil {
		return nil, closeOnError(db, err)
	}

	l.WithField("migrations", appliedMigrations).Debug("Executed migrations")

	return &Persistence{
		db: db,
		l:  l,
	}, nil
}

// prepare switches db to WAL and migrates it to the newest schema.
func prepare(db *sqlx.DB) (int, error) {
	sqlDir, err := fs.Sub(migrationFiles, "sql")
	if err != nil {
		return 0, fmt.Errorf("could not open migrations: %w", err)
	}
	migrationSource := &migrate.HttpFileSystemMigrationSource{
		FileSystem: http.FS(sqlDir),
	}

	_, err = db.Exec(`PRAGMA journal_mode=WAL`)
	if err != nil {
		return 0, fmt.Errorf("could not set journal mode: %w", err)
	}
	_, err = db.Exec(`PRAGMA synchronous=normal`)
	if err != nil {
		return 0, fmt.Errorf("could not set synchronous mode: %w", err)
	}

	appliedMigrations, err := migrate.Exec(db.DB, "sqlite3", migrationSource, migrate.Up)
	if err != nil {
		return 0, fmt.Errorf("could not migrate to newest version: %w", err)
	}

	return appliedMigrations, nil
}

// closeOnError closes db after a failed setup and returns err, joined with
// the close error if there is one.
func closeOnError(db *sqlx.DB, err error) error {
	if closeErr := db.Close(); closeErr != nil {
		return errors.Join(err, fmt.Errorf("could not close db: %w", closeErr))
	}
	return err
}

func (p *Persistence) Close() error {
	err := p.db.Close()
	if err != nil {
		return fmt.Errorf("could not close db: %w", err)
	}
	p.l.Info("Disconnected")
	return nil
}

func (p *Persistence) Record(entry *domain.JournalEntry) error {
	_, err := p.db.Exec(
		`INSERT INTO outcomes (runid, foldername, learntype, uid, mailidhash, subject, outcome, detail, createdat)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.RunId,
		entry.FolderName,
		string(entry.LearnType),
		entry.Uid,
		entry.MailIdHash,
		entry.Subject,
		string(entry.Outcome),
		entry.Detail,
		entry.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("could not save outcome: %w", err)
	}

	p.l.WithFields(logrus.Fields{"uid": entry.Uid, "folder": entry.FolderName, "outcome": entry.Outcome}).Debug("Persisted outcome")
	return nil
}

// Recent returns up to limit outcomes, newest first.
func (p *Persistence) Recent(limit int) ([]*domain.JournalEntry, error) {
	dbOutcomes := []struct {
		RunId      string
		FolderName string
		LearnType  string
		Uid        uint32
		MailIdHash string
		Subject    string
		Outcome    string
		Detail     string
		CreatedAt  time.Time
	}{}

	err := p.db.Select(
		&dbOutcomes,
		`SELECT runid, foldername, learntype, uid, mailidhash, subject, outcome, detail, createdat FROM outcomes ORDER BY id DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("could not query db: %w", err)
	}

	entries := []*domain.JournalEntry{}
	for _, o := range dbOutcomes {
		entries = append(
			entries,
			&domain.JournalEntry{
				RunId:      o.RunId,
				FolderName: o.FolderName,
				LearnType:  domain.LearnType(o.LearnType),
				Uid:        o.Uid,
				MailIdHash: o.MailIdHash,
				Subject:    o.Subject,
				Outcome:    domain.MoveOutcome(o.Outcome),
				Detail:     o.Detail,
				CreatedAt:  o.CreatedAt,
			},
		)
	}

	return entries, nil
}
