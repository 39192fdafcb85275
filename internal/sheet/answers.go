package sheet

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// Answer is the resolved choice for one question. Valid is false when the
// question had no mark or more than one.
type Answer struct {
	Choice int
	Valid  bool
}

// None is the answer of a blank or multiply marked question.
var None = Answer{}

// Chosen returns a valid answer for choice c.
func Chosen(c int) Answer {
	return Answer{Choice: c, Valid: true}
}

// String returns the choice index or "none".
func (a Answer) String() string {
	if !a.Valid {
		return "none"
	}
	return strconv.Itoa(a.Choice)
}

// MarshalJSON encodes a valid answer as its index and an invalid one as null.
func (a Answer) MarshalJSON() ([]byte, error) {
	if !a.Valid {
		return []byte("null"), nil
	}
	return []byte(strconv.Itoa(a.Choice)), nil
}

// UnmarshalJSON accepts an integer or null.
func (a *Answer) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*a = None
		return nil
	}
	var c int
	if err := json.Unmarshal(data, &c); err != nil {
		return fmt.Errorf("answer must be an integer or null: %w", err)
	}
	*a = Chosen(c)
	return nil
}

// ValidateAnswers resolves each question independently: exactly one marked
// choice gives that index, zero or several give None.
func ValidateAnswers(marked [][]bool) []Answer {
	answers := make([]Answer, len(marked))
	for q, choices := range marked {
		count, last := 0, -1
		for c, m := range choices {
			if m {
				count++
				last = c
			}
		}
		if count == 1 {
			answers[q] = Chosen(last)
		}
	}
	return answers
}
