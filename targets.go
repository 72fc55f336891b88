package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// readTargets reads addresses one per line. Lines starting with # or ; are
// comments, as are trailing "; note" or "# note" parts. Empty lines are
// skipped. Entries are not validated here so that bad ones show up as
// failed lookups.
func readTargets(r io.Reader) ([]string, error) {
	var targets []string
	scanner := bufio.NewScanner(r)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, ";") {
			continue
		}

		// "1.2.3.4 ; seen on signup form"
		if idx := strings.IndexAny(line, ";#"); idx != -1 {
			line = strings.TrimSpace(line[:idx])
		}

		// Only the first field counts, some exports append a timestamp.
		if fields := strings.Fields(line); len(fields) > 0 {
			targets = append(targets, fields[0])
		}
	}

	return targets, scanner.Err()
}

// readTargetsFile reads targets from path, or from stdin when path is "-".
func readTargetsFile(path string, stdin io.Reader) ([]string, error) {
	if path == "-" {
		return readTargets(stdin)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	targets, err := readTargets(f)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return targets, nil
}
