// SPDX-License-Identifier: GPL-3.0-or-later
package mail

import (
	"bufio"
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"

	"github.com/emersion/go-message"
	_ "github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/textproto"
)

// ErrNoIdentity is returned for mails without any header to recognise them by.
var ErrNoIdentity = errors.New("neither Message-Id nor Received header found")

// identityHeaders are hashed in this order, all values of a header in the
// order they appear in the mail.
var identityHeaders = []string{"Message-Id", "Received"}

// HeaderInfo is what the journal keeps to identify a mail.
type HeaderInfo struct {
	Subject    string
	MailIdHash string
}

// ReadHeaderInfo decodes the subject of rawMail and hashes its identity
// headers. Only the header section of rawMail is read.
func ReadHeaderInfo(rawMail []byte) (*HeaderInfo, error) {
	h, err := textproto.ReadHeader(bufio.NewReader(bytes.NewReader(rawMail)))
	if err != nil {
		return nil, fmt.Errorf("could not parse mail header: %w", err)
	}
	header := message.Header{Header: h}

	mailIdHash, err := identityHash(header)
	if err != nil {
		return nil, err
	}

	subject, err := header.Text("Subject")
	if err != nil {
		return nil, fmt.Errorf("could not decode subject header: %w", err)
	}

	return &HeaderInfo{
		Subject:    subject,
		MailIdHash: mailIdHash,
	}, nil
}

func identityHash(header message.Header) (string, error) {
	sha := sha256.New()
	found := 0
	for _, key := range identityHeaders {
		fields := header.FieldsByKey(key)
		for fields.Next() {
			if _, err := io.WriteString(sha, fields.Value()); err != nil {
				return "", fmt.Errorf("could not hash %s header: %w", key, err)
			}
			found++
		}
	}

	if found == 0 {
		return "", ErrNoIdentity
	}

	return hex.EncodeToString(sha.Sum(nil)), nil
}

// ShortSubject cuts subject to 30 characters for log lines.
func ShortSubject(subject string) string {
	runes := []rune(subject)
	if len(runes) > 30 {
		subject = string(runes[:30]) + "..."
	}
	return subject
}
