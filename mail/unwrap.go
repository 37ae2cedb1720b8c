// SPDX-License-Identifier: GPL-3.0-or-later
package mail

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/emersion/go-message"
)

// minReportHeaders is the number of X-Spam- headers a SpamAssassin report
// carries at least.
const minReportHeaders = 2

// UnwrapSpamassassinReport returns the mail a SpamAssassin report carries in
// its x-spam-type=original part, with the transfer encoding of that part
// removed. Any other mail is returned unchanged.
func UnwrapSpamassassinReport(rawMail []byte) ([]byte, error) {
	entity, err := message.Read(bytes.NewReader(rawMail))
	if entity == nil {
		return nil, fmt.Errorf("could not parse mail: %w", err)
	}

	if !isReport(entity.Header) {
		return rawMail, nil
	}

	mr := entity.MultipartReader()
	if mr == nil {
		return rawMail, nil
	}
	defer mr.Close()

	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			return rawMail, nil
		}
		if part == nil {
			return nil, fmt.Errorf("unexpected error while unwrapping: %w", err)
		}

		if !isOriginal(part.Header) {
			continue
		}

		unwrapped, err := io.ReadAll(part.Body)
		if err != nil {
			return nil, fmt.Errorf("unexpected error while reading wrapped body: %w", err)
		}
		return unwrapped, nil
	}
}

func isReport(header message.Header) bool {
	spamHeaders := 0
	fields := header.Fields()
	for fields.Next() {
		if strings.HasPrefix(fields.Key(), "X-Spam-") {
			spamHeaders++
		}
	}
	return spamHeaders >= minReportHeaders
}

func isOriginal(header message.Header) bool {
	_, params, err := header.ContentType()
	if err != nil {
		return strings.Contains(header.Get("Content-Type"), "x-spam-type=original")
	}
	return params["x-spam-type"] == "original"
}
