// Package feedback scores a Wordle guess against the target word.
package feedback

import (
	"errors"
	"strings"
)

// WordLength is the fixed word length for all games.
const WordLength = 5

// Mark is the per-letter classification of a guess.
type Mark byte

const (
	// Green means the letter is correct and in the correct position.
	Green Mark = 'G'
	// Yellow means the letter occurs elsewhere in the target.
	Yellow Mark = 'Y'
	// Gray means the letter has no unconsumed occurrence in the target.
	Gray Mark = '-'
)

// Validation errors.
var (
	ErrBadLength = errors.New("word must be exactly 5 letters")
	ErrBadLetter = errors.New("word must contain only letters a-z")
)

// Normalize lowercases and trims a word and validates its shape.
func Normalize(word string) (string, error) {
	w := strings.ToLower(strings.TrimSpace(word))
	if len(w) != WordLength {
		return "", ErrBadLength
	}
	for _, r := range w {
		if r < 'a' || r > 'z' {
			return "", ErrBadLetter
		}
	}
	return w, nil
}

// Score classifies every letter of guess against target using the standard
// two-pass algorithm.
//
// Pass 1 marks exact positional matches green and counts the target's
// remaining (non-green) letters. Pass 2 walks the non-green positions and
// marks a letter yellow only while unconsumed occurrences remain, so a
// repeated guess letter never claims more yellows than the target has spare
// occurrences.
func Score(guess, target string) ([]Mark, error) {
	g, err := Normalize(guess)
	if err != nil {
		return nil, err
	}
	t, err := Normalize(target)
	if err != nil {
		return nil, err
	}

	marks := make([]Mark, WordLength)
	var remaining [26]int

	for i := 0; i < WordLength; i++ {
		if g[i] == t[i] {
			marks[i] = Green
		} else {
			remaining[t[i]-'a']++
		}
	}

	for i := 0; i < WordLength; i++ {
		if marks[i] == Green {
			continue
		}
		if remaining[g[i]-'a'] > 0 {
			marks[i] = Yellow
			remaining[g[i]-'a']--
		} else {
			marks[i] = Gray
		}
	}

	return marks, nil
}

// IsCorrect reports whether every position is green.
func IsCorrect(marks []Mark) bool {
	if len(marks) != WordLength {
		return false
	}
	for _, m := range marks {
		if m != Green {
			return false
		}
	}
	return true
}

// Encode packs marks into the compact string stored with each guess.
func Encode(marks []Mark) string {
	b := make([]byte, len(marks))
	for i, m := range marks {
		b[i] = byte(m)
	}
	return string(b)
}

// Decode is the inverse of Encode. Unknown bytes decode as Gray.
func Decode(s string) []Mark {
	marks := make([]Mark, len(s))
	for i := 0; i < len(s); i++ {
		switch Mark(s[i]) {
		case Green, Yellow:
			marks[i] = Mark(s[i])
		default:
			marks[i] = Gray
		}
	}
	return marks
}

// Tiles renders marks as the emoji row shown in chat.
func Tiles(marks []Mark) string {
	var sb strings.Builder
	for _, m := range marks {
		switch m {
		case Green:
			sb.WriteString("🟩")
		case Yellow:
			sb.WriteString("🟨")
		default:
			sb.WriteString("⬜")
		}
	}
	return sb.String()
}
