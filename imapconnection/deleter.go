// SPDX-License-Identifier: GPL-3.0-or-later
package imapconnection

//go:generate mockgen -destination=deleter_mocks_test.go -package=imapconnection -source deleter.go
import (
	"fmt"

	"github.com/emersion/go-imap"
)

type deletedFlagger interface {
	flagDeleted(uid uint32) (*imap.SeqSet, error)
}

type deletedFlaggerAndUidExpunger interface {
	deletedFlagger
	UidExpunge(seqSet *imap.SeqSet, ch chan uint32) error
}

type uidPlusDeleter struct {
	imapConn deletedFlaggerAndUidExpunger
}

func (u *uidPlusDeleter) delete(uid uint32) error {
	seqset, err := u.imapConn.flagDeleted(uid)
	if err != nil {
		return fmt.Errorf("could not flag item as deleted: %w", err)
	}

	out := make(chan uint32)
	done := make(chan error, 1)
	go func() {
		done <- u.imapConn.UidExpunge(seqset, out)
	}()

	expunged := []uint32{}
	for seqNum := range out {
		expunged = append(expunged, seqNum)
	}

	err = <-done
	if err != nil {
		return fmt.Errorf("could not expunge mail: %w", err)
	}

	if len(expunged) != 1 {
		return fmt.Errorf("unexpected number of expunges, expected 1 got %d", len(expunged))
	}

	return nil
}

func (u *uidPlusDeleter) deleteReady() (error, error) {
	// UIDPLUS can expunge by uid and never touches other flagged mails
	return nil, nil
}

type deleteFlaggerAndExpunger interface {
	deletedFlagger
	Expunge(ch chan uint32) error
	UidSearch(criteria *imap.SearchCriteria) (uids []uint32, err error)
}

// compatibilityDeleter uses a plain EXPUNGE which removes every message
// flagged \Deleted in the selected folder, not only the given one.
type compatibilityDeleter struct {
	imapConn deleteFlaggerAndExpunger
}

func (c *compatibilityDeleter) delete(uid uint32) error {
	_, err := c.imapConn.flagDeleted(uid)
	if err != nil {
		return fmt.Errorf("could not set deleted flag: %w", err)
	}

	out := make(chan uint32)
	done := make(chan error, 1)
	go func() {
		done <- c.imapConn.Expunge(out)
	}()

	expunged := []uint32{}
	for seqNum := range out {
		expunged = append(expunged, seqNum)
	}

	err = <-done
	if err != nil {
		return fmt.Errorf("could not expunge mail: %w", err)
	}

	if len(expunged) == 0 {
		return fmt.Errorf("unexpected number of expunges, expected at least 1 got 0")
	}

	return nil
}

var ItemsWithDeletedFlagPresent = fmt.Errorf("folder has previous items with delete flag set")

func (c *compatibilityDeleter) deleteReady() (error, error) {
	// Get all UIDs in folder with DeletedFlag set
	criteria := imap.NewSearchCriteria()
	criteria.WithFlags = []string{imap.DeletedFlag}
	ids, err := c.imapConn.UidSearch(criteria)
	if err != nil {
		return nil, fmt.Errorf("could search for deleted in folder: %w", err)
	}

	if len(ids) == 0 {
		return nil, nil
	}

	return ItemsWithDeletedFlagPresent, nil
}
