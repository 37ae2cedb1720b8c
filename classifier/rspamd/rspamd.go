// SPDX-License-Identifier: GPL-3.0-or-later
package rspamd

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/CrawX/go-learn-spam/domain"
	"github.com/CrawX/go-learn-spam/log"

	"github.com/sirupsen/logrus"
)

const RspamdTimeout = 20 * time.Second

// Rspamd trains rspamd through its controller http interface instead of
// spawning rspamc. Responses are rendered in rspamc's report format.
type Rspamd struct {
	client   *http.Client
	host     string
	password string

	l *logrus.Logger
}

func NewRspamd(host, password string, timeout time.Duration) (*Rspamd, error) {
	if timeout <= 0 {
		timeout = RspamdTimeout
	}

	rspamd := &Rspamd{
		client: &http.Client{
			Timeout: timeout,
		},
		host:     strings.TrimSuffix(host, "/"),
		password: password,
		l:        log.Logger(log.LOG_CLASSIFIER),
	}
	err := rspamd.Ping()
	if err != nil {
		return nil, fmt.Errorf("could not ping rspamd: %w", err)
	}

	return rspamd, nil
}

func (rs *Rspamd) Ping() error {
	resp, err := rs.client.Get(rs.host + "/ping")
	if err != nil {
		return fmt.Errorf("could not ping rspamd: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d from rspamd, expected 200", resp.StatusCode)
	}

	return nil
}

type learnResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

func (rs *Rspamd) Learn(learnType domain.LearnType, message string) (string, error) {
	suffix := ""
	switch learnType {
	case domain.LearnSpam:
		suffix = "learnspam"
	case domain.LearnHam:
		suffix = "learnham"
	default:
		return "", fmt.Errorf("unsupported learn type %v", learnType)
	}

	req, err := http.NewRequest(http.MethodPost, rs.host+"/"+suffix, strings.NewReader(message))
	if err != nil {
		return "", fmt.Errorf("could not create learn request: %w", err)
	}

	resp, err := rs.doAuthenticated(req)
	if err != nil {
		return "", fmt.Errorf("could not perform learn request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("could not read rspamd response: %w", err)
	}

	rs.l.WithFields(logrus.Fields{"status": resp.StatusCode, "endpoint": suffix}).Debug("Learn request done")
	return report(rs.host, resp.StatusCode, body), nil
}

func (rs *Rspamd) doAuthenticated(req *http.Request) (*http.Response, error) {
	req.Header.Set("Password", rs.password)
	resp, err := rs.client.Do(req)

	if err != nil {
		return nil, fmt.Errorf("could not send request to rspamd: %w", err)
	}

	return resp, nil
}

// report renders a controller response the way rspamc prints it.
func report(host string, status int, body []byte) string {
	outcome := ""
	response := &learnResponse{}
	err := json.Unmarshal(body, response)
	switch {
	case err != nil:
		outcome = fmt.Sprintf("error = %q;", fmt.Sprintf("unexpected response with status %d: %s", status, strings.TrimSpace(string(body))))
	case response.Success:
		outcome = "success = true;"
	case len(response.Error) > 0:
		outcome = fmt.Sprintf("error = %q;", response.Error)
	default:
		outcome = fmt.Sprintf("error = %q;", fmt.Sprintf("no outcome in response with status %d", status))
	}

	return fmt.Sprintf("Results for controller: %s (HTTP %d)\n%s\n", host, status, outcome)
}
