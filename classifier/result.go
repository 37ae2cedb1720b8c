// SPDX-License-Identifier: GPL-3.0-or-later
package classifier

import (
	"regexp"
	"strings"
)

// ReportLine is the line of a classifier report that states the training
// outcome. Line 0 is the "Results for ..." preamble.
const ReportLine = 1

var (
	successPattern        = regexp.MustCompile(`^success = true;$`)
	alreadyLearnedPattern = regexp.MustCompile(`^error.*has been already learned as.*$`)
	bayesSkipPattern      = regexp.MustCompile(`^error = "<.*> is skipped for bayes classifier: already in class ((?:h|sp)am).*";$`)
)

type Outcome int

const (
	Failure = Outcome(iota)
	Success
	AlreadyTrained
)

func (o Outcome) String() string {
	switch o {
	case Success:
		return "success"
	case AlreadyTrained:
		return "already-trained"
	}
	return "failure"
}

type Result struct {
	Outcome Outcome
	// Line is the report line the outcome was decided on.
	Line string
	// Class is the class named by a bayes skip error, empty otherwise.
	Class  string
	Detail string
}

// MoveEligible is true when the message has been trained, now or before.
func (r *Result) MoveEligible() bool {
	return r.Outcome == Success || r.Outcome == AlreadyTrained
}

type Interpreter struct {
	anyLine bool
}

// NewInterpreter creates an Interpreter. With anyLine unset only ReportLine is
// matched, otherwise the first line matching the grammar decides.
func NewInterpreter(anyLine bool) *Interpreter {
	return &Interpreter{anyLine: anyLine}
}

func (i *Interpreter) Interpret(report string) *Result {
	lines := strings.Split(report, "\n")

	if !i.anyLine {
		if len(lines) <= ReportLine {
			return &Result{Outcome: Failure, Detail: "report has no outcome line"}
		}
		return matchLine(lines[ReportLine])
	}

	for _, line := range lines {
		result := matchLine(line)
		if result.MoveEligible() {
			return result
		}
	}
	return &Result{Outcome: Failure, Detail: "no report line matches"}
}

func matchLine(line string) *Result {
	line = strings.TrimRight(line, "\r")

	if successPattern.MatchString(line) {
		return &Result{Outcome: Success, Line: line}
	}
	if alreadyLearnedPattern.MatchString(line) {
		return &Result{Outcome: AlreadyTrained, Line: line}
	}
	if m := bayesSkipPattern.FindStringSubmatch(line); m != nil {
		return &Result{Outcome: AlreadyTrained, Line: line, Class: m[1]}
	}

	return &Result{Outcome: Failure, Line: line, Detail: "unexpected outcome line"}
}
