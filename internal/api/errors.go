// Copyright (C) 2025 Dyne.org foundation
// designed, written and maintained by Denis Roio <jaromil@dyne.org>
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package api

import (
	"fmt"
	"strings"
)

// Kind classifies a failed command.
type Kind string

const (
	KindValidation Kind = "validation"
	KindConnection Kind = "connection"
	KindExecution  Kind = "execution"
)

// Error describes a failed command. It is built once where the failure is
// detected and passed around by value.
type Error struct {
	Kind        Kind
	Title       string
	Command     string
	Message     string
	HTTPStatus  int // 0 when no response was received
	Suggestions []string
	Err         error
}

func (e Error) Error() string {
	if e.HTTPStatus != 0 {
		return fmt.Sprintf("%s (HTTP %d)", e.Message, e.HTTPStatus)
	}
	return e.Message
}

// Unwrap returns the underlying cause, if any.
func (e Error) Unwrap() error {
	return e.Err
}

// ValidationError reports a command rejected before any request was made.
func ValidationError(command string, problems []string) Error {
	return Error{
		Kind:        KindValidation,
		Title:       "Invalid command",
		Command:     command,
		Message:     "validation error: " + strings.Join(problems, ", "),
		Suggestions: Suggest(command, strings.Join(problems, " ")),
	}
}

var commandTitles = map[string]string{
	"mkdisk":  "Create disk",
	"rmdisk":  "Remove disk",
	"fdisk":   "Manage partitions",
	"mount":   "Mount partition",
	"mounted": "List mounted partitions",
	"mkfs":    "Format partition",
	"login":   "Log in",
	"logout":  "Log out",
	"mkgrp":   "Create group",
	"rmgrp":   "Remove group",
	"mkusr":   "Create user",
	"rmusr":   "Remove user",
	"chgrp":   "Change group",
	"mkfile":  "Create file",
	"cat":     "Show file",
	"mkdir":   "Create directory",
	"rep":     "Generate report",
}

// Title returns a display name for the first word of command.
func Title(command string) string {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return "Command"
	}
	if title, ok := commandTitles[strings.ToLower(fields[0])]; ok {
		return title
	}
	return strings.ToUpper(fields[0])
}
