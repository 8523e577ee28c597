package pipeline

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// ReadDocumentList reads document URLs from a file, one per line.
// "-" reads standard input.
func ReadDocumentList(path string) ([]string, error) {
	if path == "-" {
		return ParseDocumentList(os.Stdin)
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer func() { _ = file.Close() }()

	return ParseDocumentList(file)
}

// ParseDocumentList reads one URL per line, skipping blanks and # comments.
// Order and repeats are kept: each line is one document in the fold.
func ParseDocumentList(r io.Reader) ([]string, error) {
	var urls []string

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		urls = append(urls, line)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan file: %w", err)
	}
	return urls, nil
}
