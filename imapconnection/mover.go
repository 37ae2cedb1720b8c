// SPDX-License-Identifier: GPL-3.0-or-later
package imapconnection

//go:generate mockgen -destination=mover_mocks_test.go -package=imapconnection -source mover.go
import (
	"fmt"

	"github.com/emersion/go-imap"
)

type moveClient interface {
	UidMove(seqset *imap.SeqSet, dest string) error
}

// moveMover relocates a message with one atomic UID MOVE.
type moveMover struct {
	moveClient moveClient
}

func (m *moveMover) move(uid uint32, folder string) error {
	seqset := &imap.SeqSet{}
	seqset.AddNum(uid)
	err := m.moveClient.UidMove(seqset, folder)
	if err != nil {
		return fmt.Errorf("could not move mail: %w", err)
	}

	return nil
}
