// SPDX-License-Identifier: GPL-3.0-or-later
package mail

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

var ErrInvalidUTF8 = errors.New("message is not valid utf-8")

// InvalidUTF8Error describes where a message stopped being valid utf-8.
// Sequences counts runs of consecutive invalid bytes, each run was replaced by
// a single U+FFFD.
type InvalidUTF8Error struct {
	Offset    int
	Sequences int
}

func (e *InvalidUTF8Error) Error() string {
	return fmt.Sprintf("%s: %d invalid sequences, first at byte %d", ErrInvalidUTF8, e.Sequences, e.Offset)
}

func (e *InvalidUTF8Error) Is(target error) bool {
	return target == ErrInvalidUTF8
}

// DecodeText turns an assembled raw message into text. The text is returned
// even when it contained invalid utf-8, together with an *InvalidUTF8Error.
func DecodeText(rawMail []byte) (string, error) {
	if utf8.Valid(rawMail) {
		return string(rawMail), nil
	}

	var b strings.Builder
	b.Grow(len(rawMail))

	invalid := &InvalidUTF8Error{Offset: -1}
	inRun := false
	for i := 0; i < len(rawMail); {
		r, size := utf8.DecodeRune(rawMail[i:])
		if r == utf8.RuneError && size == 1 {
			if !inRun {
				if invalid.Offset < 0 {
					invalid.Offset = i
				}
				invalid.Sequences++
				b.WriteRune(utf8.RuneError)
				inRun = true
			}
			i++
			continue
		}

		inRun = false
		b.Write(rawMail[i : i+size])
		i += size
	}

	return b.String(), invalid
}
