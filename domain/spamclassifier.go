// SPDX-License-Identifier: GPL-3.0-or-later

//go:generate mockgen -destination=mocks/spamclassifier.go -package=mocks . Classifier
package domain

import "fmt"

type LearnType string

const (
	LearnSpam = LearnType("spam")
	LearnHam  = LearnType("ham")
)

// Task returns the classifier command token, learn_spam or learn_ham.
func (lt LearnType) Task() string {
	return "learn_" + string(lt)
}

func ParseLearnType(s string) (LearnType, error) {
	switch LearnType(s) {
	case LearnSpam, LearnHam:
		return LearnType(s), nil
	}
	return "", fmt.Errorf("unsupported learn type %q", s)
}

// FolderSpec binds a learn folder to its done folder and to the class its
// messages are trained as.
type FolderSpec struct {
	Role   LearnType
	Source string
	Done   string
}

// Classifier trains the statistical classifier with one message and returns
// its line oriented textual report. The report is interpreted by the caller.
type Classifier interface {
	Learn(learnType LearnType, message string) (string, error)
}
