// SPDX-License-Identifier: GPL-3.0-or-later
package domain

//go:generate mockgen -destination=mocks/journal.go -package=mocks . Journal
import "time"

type MoveOutcome string

const (
	Moved          = MoveOutcome("moved")
	LeftInPlace    = MoveOutcome("left-in-place")
	PartiallyMoved = MoveOutcome("partially-moved")
)

type JournalEntry struct {
	RunId      string
	FolderName string
	LearnType  LearnType
	Uid        uint32
	MailIdHash string
	Subject    string
	Outcome    MoveOutcome
	Detail     string
	CreatedAt  time.Time
}

// Journal records per message outcomes for the operator. It is never read back
// to decide which messages to process.
type Journal interface {
	Record(entry *JournalEntry) error
	Recent(limit int) ([]*JournalEntry, error)
	Close() error
}
