// SPDX-License-Identifier: GPL-3.0-or-later
package learner

import (
	"errors"
	"fmt"

	"github.com/CrawX/go-learn-spam/domain"
	"github.com/CrawX/go-learn-spam/mail"

	"github.com/sirupsen/logrus"
)

// assemble fetches header and body of uid in two round trips and joins them
// into the text handed to the classifier. A decode failure is logged, the text
// with replaced characters is still returned.
func (le *Learner) assemble(conn domain.ImapConnector, uid uint32) (string, error) {
	header, err := conn.FetchHeader(uid)
	if err != nil {
		return "", fmt.Errorf("could not fetch header: %w", err)
	}

	body, err := conn.FetchBody(uid)
	if err != nil {
		return "", fmt.Errorf("could not fetch body: %w", err)
	}

	raw := make([]byte, 0, len(header)+len(body))
	raw = append(raw, header...)
	raw = append(raw, body...)

	if le.configuration.UnwrapReports {
		unwrapped, err := mail.UnwrapSpamassassinReport(raw)
		if err != nil {
			le.l.WithFields(logrus.Fields{"uid": uid, "error": err}).Debug("Could not unwrap report, using mail as is")
		} else {
			raw = unwrapped
		}
	}

	text, err := mail.DecodeText(raw)
	if errors.Is(err, mail.ErrInvalidUTF8) {
		le.l.WithFields(logrus.Fields{"uid": uid, "error": err}).Error("Could not decode mail, continuing with replaced characters")
	}

	return text, nil
}
