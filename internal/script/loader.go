package script

import (
	_ "embed"
	"fmt"
	"io"
	"os"
	"unicode/utf8"

	apperrors "smiactl/internal/errors"
	"smiactl/internal/paths"
)

// MaxScriptSize bounds the scripts accepted by LoadFile and Read.
const MaxScriptSize = 1 << 20

//go:embed sample.smia
var sample string

// Sample returns an example script covering the common commands.
func Sample() string {
	return sample
}

// LoadFile reads a .smia script. It returns the resolved path and content.
func LoadFile(path string) (string, string, error) {
	resolved, err := paths.ResolveScriptPath(path)
	if err != nil {
		return "", "", apperrors.Wrap(apperrors.CodeScript, "invalid script path", err)
	}
	f, err := os.Open(resolved)
	if err != nil {
		return "", "", apperrors.Wrap(apperrors.CodeScript, "open script", err)
	}
	defer f.Close()

	content, err := Read(f)
	if err != nil {
		return "", "", err
	}
	return resolved, content, nil
}

// Read reads a script from r, rejecting oversized or non UTF-8 input.
func Read(r io.Reader) (string, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxScriptSize+1))
	if err != nil {
		return "", apperrors.Wrap(apperrors.CodeScript, "read script", err)
	}
	if len(data) > MaxScriptSize {
		return "", apperrors.New(apperrors.CodeScript, fmt.Sprintf("script exceeds %d bytes", MaxScriptSize))
	}
	if !utf8.Valid(data) {
		return "", apperrors.New(apperrors.CodeScript, "script is not valid UTF-8")
	}
	return string(data), nil
}
