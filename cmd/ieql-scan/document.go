package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"

	"github.com/ieql/engine/pkg/ieql"
)

// wireDocument is one line of the JSON-lines document source.
type wireDocument struct {
	URL     string `json:"url"`
	Mime    string `json:"mime"`
	Content string `json:"content"`
}

// DocumentScanner reads newline-delimited JSON documents from r, one
// ieql.Document per call to Next.
type DocumentScanner struct {
	scanner *bufio.Scanner
	lineNum int
}

// NewDocumentScanner wraps r for line-at-a-time document decoding.
func NewDocumentScanner(r io.Reader) *DocumentScanner {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	return &DocumentScanner{scanner: scanner}
}

// Next returns the next document, or io.EOF once the input is
// exhausted. Blank lines are skipped.
func (s *DocumentScanner) Next() (ieql.Document, error) {
	for s.scanner.Scan() {
		s.lineNum++
		line := s.scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var wd wireDocument
		if err := json.Unmarshal(line, &wd); err != nil {
			return ieql.Document{}, fmt.Errorf("line %d: %w", s.lineNum, err)
		}
		return ieql.Document{URL: wd.URL, Mime: wd.Mime, Content: []byte(wd.Content)}, nil
	}
	if err := s.scanner.Err(); err != nil {
		return ieql.Document{}, err
	}
	return ieql.Document{}, io.EOF
}
