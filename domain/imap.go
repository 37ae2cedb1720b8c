// SPDX-License-Identifier: GPL-3.0-or-later
package domain

//go:generate mockgen -destination=mocks/imap.go -package=mocks . ImapDialer,ImapConnector

// ImapDialer opens a fresh, authenticated session for one folder pass.
type ImapDialer interface {
	Dial() (ImapConnector, error)
}

// ImapConnector is one live session to the mail store. All message operations
// apply to the currently selected folder and address messages by UID.
type ImapConnector interface {
	Select(folder string) (uint32, error)
	ListUids() ([]uint32, error)
	FetchHeader(uid uint32) ([]byte, error)
	FetchBody(uid uint32) ([]byte, error)
	Copy(uid uint32, folder string) error
	// Delete flags the message \Deleted and expunges it. Callers must only
	// invoke it after a successful Copy.
	Delete(uid uint32) error
	DeleteReady() (error, error)
	MoveSupported() bool
	Move(uid uint32, folder string) error

	Close() error
}
