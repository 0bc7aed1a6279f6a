// Package parser extracts highlight/note pairs from markdown files.
// A highlight is a blockquote; the plain lines that follow it, up to
// the next blank line, are the reader's note and become the card's
// answer.
package parser

import (
	"bufio"
	"io"
	"os"
	"strings"

	"github.com/jfenske/recollect/internal/card"
)

const quotePrefix = ">"

type state int

const (
	seeking state = iota
	readingHighlight
	readingNote
)

// ParseFile reads the file at path and extracts all highlight pairs.
func ParseFile(path string) ([]card.Content, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return Parse(file)
}

// Parse reads markdown from r and extracts all highlight pairs.
func Parse(r io.Reader) ([]card.Content, error) {
	scanner := bufio.NewScanner(r)

	var (
		pairs     []card.Content
		highlight []string
		note      []string
		current   = seeking
	)

	finish := func() {
		text := strings.TrimSpace(strings.Join(highlight, "\n"))
		if text != "" {
			pairs = append(pairs, card.Content{
				Text:   text,
				Answer: strings.TrimSpace(strings.Join(note, "\n")),
			})
		}
		highlight = nil
		note = nil
		current = seeking
	}

	for scanner.Scan() {
		line := scanner.Text()
		trimmed := strings.TrimSpace(line)

		switch {
		case strings.HasPrefix(trimmed, quotePrefix):
			// A quote line after note text starts a new highlight.
			if current == readingNote {
				finish()
			}
			current = readingHighlight
			highlight = append(highlight, quoteContent(trimmed))

		case trimmed == "":
			if current != seeking {
				finish()
			}

		default:
			if current == seeking {
				continue // prose outside any highlight
			}
			current = readingNote
			note = append(note, line)
		}
	}
	finish()

	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return pairs, nil
}

// quoteContent strips the leading quote marker and one space of
// padding from a blockquote line.
func quoteContent(line string) string {
	content := strings.TrimPrefix(line, quotePrefix)
	return strings.TrimPrefix(content, " ")
}
