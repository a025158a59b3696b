package spec

import (
	"bufio"
	"bytes"
	"fmt"
	"regexp"
	"strings"
)

// ManifestEntry is one declared dependency: a package name and an optional
// version constraint, e.g. "torch==1.13.1" or "numpy>=1.23".
type ManifestEntry struct {
	Name       string
	Constraint string
	Version    string
}

func (e ManifestEntry) String() string {
	if e.Constraint == "" {
		return e.Name
	}
	return e.Name + e.Constraint + e.Version
}

// Package names as accepted by the installer: letters, digits, and
// separator runs, with optional extras in brackets.
var namePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*(\[[A-Za-z0-9._,-]+\])?$`)

var constraints = []string{"==", ">=", "<=", "~=", "!=", ">", "<"}

// ParseManifest parses a requirements-style manifest. Comments and blank
// lines are skipped; any malformed entry fails the whole parse, since a
// manifest the installer would reject must never reach the build.
func ParseManifest(content []byte) ([]ManifestEntry, error) {
	var entries []ManifestEntry
	scanner := bufio.NewScanner(bytes.NewReader(content))
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		if i := strings.Index(line, "#"); i >= 0 {
			line = line[:i]
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		entry, err := parseManifestLine(line)
		if err != nil {
			return nil, fmt.Errorf("manifest line %d: %w", lineNo, err)
		}
		entries = append(entries, entry)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}
	return entries, nil
}

func parseManifestLine(line string) (ManifestEntry, error) {
	for _, c := range constraints {
		name, version, found := strings.Cut(line, c)
		if !found {
			continue
		}
		name = strings.TrimSpace(name)
		version = strings.TrimSpace(version)
		if !namePattern.MatchString(name) {
			return ManifestEntry{}, fmt.Errorf("invalid package name %q", name)
		}
		if version == "" {
			return ManifestEntry{}, fmt.Errorf("missing version after %q in %q", c, line)
		}
		if strings.ContainsAny(version, " \t") {
			return ManifestEntry{}, fmt.Errorf("invalid version %q", version)
		}
		return ManifestEntry{Name: name, Constraint: c, Version: version}, nil
	}
	if !namePattern.MatchString(line) {
		return ManifestEntry{}, fmt.Errorf("invalid entry %q", line)
	}
	return ManifestEntry{Name: line}, nil
}
