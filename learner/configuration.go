// SPDX-License-Identifier: GPL-3.0-or-later
package learner

import (
	"fmt"
	"time"
)

type ConfigFunc func(c *configuration) error

// Wait sets the pause after every processed mail.
func Wait(wait time.Duration) ConfigFunc {
	return func(c *configuration) error {
		if wait < 0 {
			return fmt.Errorf("Wait cannot be negative, got %v", wait)
		}

		c.Wait = wait
		return nil
	}
}

func DryRun() ConfigFunc {
	return func(c *configuration) error {
		c.DryRun = true

		return nil
	}
}

func UnwrapReports() ConfigFunc {
	return func(c *configuration) error {
		c.UnwrapReports = true
		return nil
	}
}

func UseMove() ConfigFunc {
	return func(c *configuration) error {
		c.UseMove = true
		return nil
	}
}

// AnyLine lets the first matching report line decide instead of the fixed
// outcome line.
func AnyLine() ConfigFunc {
	return func(c *configuration) error {
		c.AnyLine = true
		return nil
	}
}

type configuration struct {
	Wait time.Duration

	DryRun        bool
	UnwrapReports bool
	UseMove       bool
	AnyLine       bool
}
