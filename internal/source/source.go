// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package source resolves text handed to the CLI either literally or as a
// path to a file. Resolution happens once, before generation starts.
package source

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

// Kind tells a literal apart from a file reference.
type Kind int

const (
	KindLiteral Kind = iota
	KindFile
)

// ErrEmpty is returned when a source resolves to blank text.
var ErrEmpty = errors.New("source text is empty")

// Source is either literal text or a file path.
type Source struct {
	kind  Kind
	value string
}

// Literal wraps text used as-is.
func Literal(text string) Source {
	return Source{kind: KindLiteral, value: text}
}

// FilePath wraps a path read at resolution time.
func FilePath(path string) Source {
	return Source{kind: KindFile, value: path}
}

// Detect treats arg as a file when it names an existing regular file and
// as literal text otherwise.
func Detect(arg string) Source {
	if arg != "" && !strings.ContainsAny(arg, "\n\r") {
		if info, err := os.Stat(arg); err == nil && info.Mode().IsRegular() {
			return FilePath(arg)
		}
	}
	return Literal(arg)
}

// Kind returns the variant.
func (s Source) Kind() Kind { return s.kind }

// String describes the source for logs without dumping literal text.
func (s Source) String() string {
	if s.kind == KindFile {
		return "file " + s.value
	}
	return fmt.Sprintf("literal (%d bytes)", len(s.value))
}

// Resolve returns the text. Files are read as UTF-8 and trimmed; blank
// results yield ErrEmpty.
func (s Source) Resolve() (string, error) {
	text := s.value
	if s.kind == KindFile {
		data, err := os.ReadFile(s.value)
		if err != nil {
			return "", fmt.Errorf("reading %s: %w", s.value, err)
		}
		text = string(data)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrEmpty
	}
	return text, nil
}
