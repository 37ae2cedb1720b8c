// SPDX-License-Identifier: GPL-3.0-or-later
package imapconnection

//go:generate mockgen -destination=delete_move_mocks_test.go -package=imapconnection -source delete_move.go

// Consolidated file for the deleter and mover strategies used by ImapConnection
// so gomock can generate mocks properly. Unexported interfaces do not allow for reflection mode.

type deleter interface {
	delete(uid uint32) error
	deleteReady() (error, error)
}

type mover interface {
	move(uid uint32, folder string) error
}
