// SPDX-License-Identifier: GPL-3.0-or-later
package rspamc

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/CrawX/go-learn-spam/domain"
	"github.com/CrawX/go-learn-spam/log"

	"github.com/sirupsen/logrus"
)

const DefaultTimeout = 60 * time.Second

// waitDelay bounds how long Learn waits for the output pipes after rspamc was
// killed, children inheriting them would block otherwise.
const waitDelay = 2 * time.Second

// Rspamc trains rspamd by running the rspamc command line client once per
// message. The message is written to its stdin, the report read from stdout.
type Rspamc struct {
	command string
	connect string
	timeout time.Duration

	l *logrus.Logger
}

func NewRspamc(command, connect string, timeout time.Duration) *Rspamc {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	return &Rspamc{
		command: command,
		connect: connect,
		timeout: timeout,
		l:       log.Logger(log.LOG_CLASSIFIER),
	}
}

func (r *Rspamc) Learn(learnType domain.LearnType, message string) (string, error) {
	switch learnType {
	case domain.LearnSpam, domain.LearnHam:
	default:
		return "", fmt.Errorf("unsupported learn type %v", learnType)
	}

	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	stdout, stderr := &bytes.Buffer{}, &bytes.Buffer{}
	cmd := exec.CommandContext(ctx, r.command, "--connect", r.connect, learnType.Task())
	cmd.Stdin = strings.NewReader(message)
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	cmd.WaitDelay = waitDelay

	start := time.Now()
	err := cmd.Run()
	if ctx.Err() != nil {
		return "", fmt.Errorf("rspamc did not finish within %v: %w", r.timeout, ctx.Err())
	}

	// The exit code is not inspected, only the report decides
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		r.l.WithFields(logrus.Fields{"exitcode": exitErr.ExitCode(), "stderr": strings.TrimSpace(stderr.String())}).Debug("rspamc exited with non-zero code")
	} else if err != nil {
		return "", fmt.Errorf("could not run rspamc: %w", err)
	}

	r.l.WithFields(logrus.Fields{"task": learnType.Task(), "duration": time.Since(start)}).Debug("Ran rspamc")
	return stdout.String(), nil
}
