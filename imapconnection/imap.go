// SPDX-License-Identifier: GPL-3.0-or-later
package imapconnection

import (
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/CrawX/go-learn-spam/domain"
	"github.com/CrawX/go-learn-spam/log"

	"github.com/emersion/go-imap"
	imapcompress "github.com/emersion/go-imap-compress"
	"github.com/emersion/go-imap-move"
	"github.com/emersion/go-imap-uidplus"
	"github.com/emersion/go-imap/client"
	"github.com/sirupsen/logrus"
)

const (
	DialTimeout = 30 * time.Second
	DefaultPort = "143"

	utf8Accept = "UTF8=ACCEPT"
)

// Dialer opens one authenticated session per call.
type Dialer struct {
	server, user, password string
	compress               bool
}

func NewDialer(server, user, password string, compress bool) *Dialer {
	return &Dialer{
		server:   server,
		user:     user,
		password: password,
		compress: compress,
	}
}

func (d *Dialer) Dial() (domain.ImapConnector, error) {
	conn, err := NewImapConnection(d.server, d.user, d.password, d.compress)
	if err != nil {
		return nil, err
	}

	return conn, nil
}

type ImapConnection struct {
	connection  *client.Client
	mailDeleter deleter
	mailMover   mover

	server string

	selectedFolder string

	l *logrus.Logger
}

// NewImapConnection connects in plaintext, upgrades with STARTTLS and logs in.
func NewImapConnection(server string, user string, password string, useCompress bool) (*ImapConnection, error) {
	address, host := serverAddress(server)

	imapClient, err := client.DialWithDialer(&net.Dialer{Timeout: DialTimeout}, address)
	if err != nil {
		return nil, fmt.Errorf("could not dial to imap: %w", err)
	}

	conn := &ImapConnection{
		connection: imapClient,
		server:     address,
		l:          log.Logger(log.LOG_IMAP),
	}

	err = conn.setup(host, user, password, useCompress)
	if err != nil {
		if logoutErr := imapClient.Logout(); logoutErr != nil {
			conn.l.WithFields(logrus.Fields{"server": address, "error": logoutErr}).Debug("Logout after failed setup failed")
		}
		return nil, err
	}

	return conn, nil
}

func (ic *ImapConnection) setup(host, user, password string, useCompress bool) error {
	err := ic.connection.StartTLS(&tls.Config{ServerName: host})
	if err != nil {
		return fmt.Errorf("could not start tls: %w", err)
	}

	err = ic.connection.Login(user, password)
	if err != nil {
		return fmt.Errorf("could not login to imap: %w", err)
	}

	baseLogger := ic.l.WithFields(logrus.Fields{"server": ic.server})
	baseLogger.Debug("Logged in to server")

	// ENABLE is only valid once authenticated
	err = ic.enable(utf8Accept)
	if err != nil {
		baseLogger.WithFields(logrus.Fields{"capability": utf8Accept, "error": err}).Warn("Server rejected capability, continuing without")
	}

	if useCompress {
		compressClient := imapcompress.NewClient(ic.connection)
		compressSupported, err := compressClient.SupportCompress(imapcompress.Deflate)
		if err != nil {
			return fmt.Errorf("could not check for COMPRESS support: %w", err)
		}

		if compressSupported {
			err = compressClient.Compress(imapcompress.Deflate)
			if err != nil {
				return fmt.Errorf("could not enable compression: %w", err)
			}
			baseLogger.Debug("COMPRESS=DEFLATE enabled")
		} else {
			baseLogger.Info("COMPRESS=DEFLATE not supported on server, continuing uncompressed")
		}
	}

	uidPlusClient := uidplus.NewClient(ic.connection)
	uidPlusSupported, err := uidPlusClient.SupportUidPlus()
	if err != nil {
		return fmt.Errorf("could not check for UIDPLUS support: %w", err)
	}

	moveClient := move.NewClient(ic.connection)
	moveSupported, err := moveClient.SupportMove()
	if err != nil {
		return fmt.Errorf("could not check for MOVE support: %w", err)
	}

	if uidPlusSupported {
		baseLogger.Debug("UIDPLUS supported on server, using UID EXPUNGE")
		ic.mailDeleter = &uidPlusDeleter{
			imapConn: &uidPlusExpunger{
				imapConn:      ic,
				uidplusClient: uidPlusClient,
			},
		}
	} else {
		baseLogger.Info("UIDPLUS not supported on server, falling back to flag&expunge")
		ic.mailDeleter = &compatibilityDeleter{
			imapConn: &clientExpunger{ic},
		}
	}

	if moveSupported {
		baseLogger.Debug("MOVE supported on server")
		ic.mailMover = &moveMover{
			moveClient: moveClient,
		}
	}

	return nil
}

func (ic *ImapConnection) enable(capability string) error {
	cmd := &imap.Command{
		Name:      "ENABLE",
		Arguments: []interface{}{imap.RawString(capability)},
	}

	status, err := ic.connection.Execute(cmd, nil)
	if err != nil {
		return fmt.Errorf("could not enable %s: %w", capability, err)
	}

	return status.Err()
}

func (ic *ImapConnection) Select(folder string) (uint32, error) {
	m, err := ic.connection.Select(folder, false)
	if err != nil {
		return 0, fmt.Errorf("could not select folder: %w", err)
	}

	ic.selectedFolder = folder
	return m.Messages, nil
}

func (ic *ImapConnection) ListUids() ([]uint32, error) {
	// Get all UIDs in folder (empty search criteria)
	criteria := imap.NewSearchCriteria()
	ids, err := ic.connection.UidSearch(criteria)
	if err != nil {
		return nil, fmt.Errorf("could not list folder: %w", err)
	}

	return ids, nil
}

func (ic *ImapConnection) FetchHeader(uid uint32) ([]byte, error) {
	return ic.fetchSection(uid, imap.HeaderSpecifier)
}

func (ic *ImapConnection) FetchBody(uid uint32) ([]byte, error) {
	return ic.fetchSection(uid, imap.TextSpecifier)
}

// fetchSection fetches one body section with BODY.PEEK so the \Seen flag is
// left untouched.
func (ic *ImapConnection) fetchSection(uid uint32, specifier imap.PartSpecifier) ([]byte, error) {
	seqset := &imap.SeqSet{}
	seqset.AddNum(uid)

	section := &imap.BodySectionName{
		BodyPartName: imap.BodyPartName{
			Specifier: specifier,
		},
		Peek: true,
	}
	fetchItems := []imap.FetchItem{imap.FetchUid, section.FetchItem()}

	messages := make(chan *imap.Message, 1)
	done := make(chan error, 1)
	go func() {
		done <- ic.connection.UidFetch(seqset, fetchItems, messages)
	}()

	var (
		raw     []byte
		found   bool
		readErr error
	)
	for msg := range messages {
		if msg.Uid != uid {
			continue
		}
		found = true

		r := msg.GetBody(section)
		if r == nil {
			// Empty sections may be sent as quoted "" instead of a literal
			continue
		}

		raw, readErr = io.ReadAll(r)
	}

	err := <-done
	if err != nil {
		return nil, fmt.Errorf("could not fetch mail: %w", err)
	}

	if readErr != nil {
		return nil, fmt.Errorf("could not read mail section: %w", readErr)
	}

	if !found {
		return nil, fmt.Errorf("uid %d not found in %s", uid, ic.selectedFolder)
	}

	return raw, nil
}

func (ic *ImapConnection) Copy(uid uint32, folder string) error {
	seqset := &imap.SeqSet{}
	seqset.AddNum(uid)

	err := ic.connection.UidCopy(seqset, folder)
	if err != nil {
		return fmt.Errorf("could not copy mail: %w", err)
	}

	return nil
}

func (ic *ImapConnection) Delete(uid uint32) error {
	return ic.mailDeleter.delete(uid)
}

func (ic *ImapConnection) DeleteReady() (error, error) {
	return ic.mailDeleter.deleteReady()
}

func (ic *ImapConnection) flagDeleted(uid uint32) (*imap.SeqSet, error) {
	seqset := &imap.SeqSet{}
	seqset.AddNum(uid)
	err := ic.connection.UidStore(seqset, imap.FormatFlagsOp(imap.AddFlags, true), []interface{}{imap.DeletedFlag}, nil)
	if err != nil {
		return nil, fmt.Errorf("could set delete flag: %w", err)
	}

	return seqset, nil
}

func (ic *ImapConnection) MoveSupported() bool {
	return ic.mailMover != nil
}

var ErrMoveNotSupported = errors.New("server does not support MOVE")

func (ic *ImapConnection) Move(uid uint32, folder string) error {
	if ic.mailMover == nil {
		return ErrMoveNotSupported
	}

	return ic.mailMover.move(uid, folder)
}

func (ic *ImapConnection) Close() error {
	return ic.connection.Logout()
}

// serverAddress appends the default imap port when server has none and
// returns the host name used for certificate verification.
func serverAddress(server string) (string, string) {
	host, port, err := net.SplitHostPort(server)
	if err != nil {
		host, port = server, DefaultPort
	}

	return net.JoinHostPort(host, port), host
}

// uidPlusExpunger removes single messages by UID using the UIDPLUS extension.
type uidPlusExpunger struct {
	imapConn      *ImapConnection
	uidplusClient *uidplus.Client
}

func (u *uidPlusExpunger) flagDeleted(uid uint32) (*imap.SeqSet, error) {
	return u.imapConn.flagDeleted(uid)
}

func (u *uidPlusExpunger) UidExpunge(seqSet *imap.SeqSet, ch chan uint32) error {
	return u.uidplusClient.UidExpunge(seqSet, ch)
}

type clientExpunger struct {
	imapConn *ImapConnection
}

func (c *clientExpunger) flagDeleted(uid uint32) (*imap.SeqSet, error) {
	return c.imapConn.flagDeleted(uid)
}

func (c *clientExpunger) Expunge(ch chan uint32) error {
	return c.imapConn.connection.Expunge(ch)
}

func (c *clientExpunger) UidSearch(criteria *imap.SearchCriteria) ([]uint32, error) {
	return c.imapConn.connection.UidSearch(criteria)
}
