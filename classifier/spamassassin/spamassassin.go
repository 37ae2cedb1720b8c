// SPDX-License-Identifier: GPL-3.0-or-later
package spamassassin

import (
	"context"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/CrawX/go-learn-spam/domain"

	"github.com/teamwork/spamc"
)

const SpamAssassinTimeout = 20 * time.Second

// SpamAssassin trains spamd's bayes database with TELL. The outcome is
// rendered in rspamc's report format so the same grammar applies.
type SpamAssassin struct {
	client *spamc.Client
	host   string
}

func NewSpamassassin(host string) (*SpamAssassin, error) {
	client := spamc.New(host, &net.Dialer{
		Timeout: SpamAssassinTimeout,
	})
	err := client.Ping(context.TODO())
	if err != nil {
		return nil, fmt.Errorf("could not ping SpamAssassin: %w", err)
	}

	return &SpamAssassin{client: client, host: host}, nil
}

func (sa *SpamAssassin) Learn(learnType domain.LearnType, message string) (string, error) {
	header, err := tellHeader(learnType)
	if err != nil {
		return "", err
	}

	_, err = sa.client.Tell(context.TODO(), strings.NewReader(message), header)
	return report(sa.host, err), nil
}

func tellHeader(learnType domain.LearnType) (spamc.Header, error) {
	class, err := messageClass(learnType)
	if err != nil {
		return spamc.Header{}, err
	}

	return spamc.Header{}.Set("Set", "local").Set("Message-class", class), nil
}

func messageClass(learnType domain.LearnType) (string, error) {
	switch learnType {
	case domain.LearnSpam:
		return "spam", nil
	case domain.LearnHam:
		return "ham", nil
	}

	return "", fmt.Errorf("unsupported learn type %v", learnType)
}

func report(host string, tellErr error) string {
	outcome := "success = true;"
	if tellErr != nil {
		outcome = fmt.Sprintf("error = %q;", fmt.Sprintf("could not learn SpamAssassin: %v", tellErr))
	}

	return fmt.Sprintf("Results for spamd: %s\n%s\n", host, outcome)
}
