// Package words supplies the solution set and the guessable-word dictionary.
//
// Lists can be supplied as files via configuration; when absent, embedded
// defaults are used. The guessable set always contains the solution set, so
// a drawn answer can never be rejected as an illegal guess.
package words

import (
	"bufio"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"os"
	"strings"

	_ "embed"

	"telegram-wordle-bot/internal/feedback"
)

//go:embed solutions.txt
var embeddedSolutions string

//go:embed allowed.txt
var embeddedAllowed string

// ErrEmptySolutions is returned when no usable solution word is loaded.
var ErrEmptySolutions = errors.New("words: solution list is empty")

// Source provides random target words and guess legality checks.
type Source struct {
	solutions []string
	allowed   map[string]struct{}
}

// NewSource loads word lists from the given file paths. An empty path falls
// back to the embedded default for that list.
func NewSource(solutionsPath, allowedPath string) (*Source, error) {
	solutions, err := loadList(solutionsPath, embeddedSolutions)
	if err != nil {
		return nil, fmt.Errorf("failed to load solutions: %w", err)
	}
	extra, err := loadList(allowedPath, embeddedAllowed)
	if err != nil {
		return nil, fmt.Errorf("failed to load allowed guesses: %w", err)
	}

	if len(solutions) == 0 {
		return nil, ErrEmptySolutions
	}

	allowed := make(map[string]struct{}, len(solutions)+len(extra))
	for _, w := range solutions {
		allowed[w] = struct{}{}
	}
	for _, w := range extra {
		allowed[w] = struct{}{}
	}

	return &Source{solutions: solutions, allowed: allowed}, nil
}

// RandomSolution returns a uniformly chosen target word.
func (s *Source) RandomSolution() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(int64(len(s.solutions))))
	if err != nil {
		return "", fmt.Errorf("failed to draw random word: %w", err)
	}
	return s.solutions[n.Int64()], nil
}

// IsAllowed reports whether a normalized word is a legal guess.
func (s *Source) IsAllowed(word string) bool {
	w, err := feedback.Normalize(word)
	if err != nil {
		return false
	}
	_, ok := s.allowed[w]
	return ok
}

// Counts returns the sizes of the solution and guessable sets.
func (s *Source) Counts() (solutions, allowed int) {
	return len(s.solutions), len(s.allowed)
}

// loadList reads one word per line from path, or from fallback when path is
// empty. Malformed lines are skipped.
func loadList(path, fallback string) ([]string, error) {
	content := fallback
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		content = string(data)
	}

	var words []string
	sc := bufio.NewScanner(strings.NewReader(content))
	for sc.Scan() {
		w, err := feedback.Normalize(sc.Text())
		if err != nil {
			continue
		}
		words = append(words, w)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return words, nil
}
