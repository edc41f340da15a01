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

package grammar

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	apperrors "smiactl/internal/errors"
)

// ErrUnterminatedQuote indicates a quote was opened and never closed.
var ErrUnterminatedQuote = errors.New("unterminated quote")

// Tokenize splits a command line on un-quoted whitespace. A quote may open
// anywhere inside a token; the quote characters are stripped and the quoted
// text is kept verbatim. Empty tokens are dropped.
func Tokenize(line string) ([]string, error) {
	var (
		tokens  []string
		current strings.Builder
		quote   rune
		opened  int
	)

	flush := func() {
		if current.Len() > 0 {
			tokens = append(tokens, current.String())
			current.Reset()
		}
	}

	for pos, r := range line {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
				continue
			}
			current.WriteRune(r)
		case r == '"' || r == '\'':
			quote = r
			opened = pos
		case unicode.IsSpace(r):
			flush()
		default:
			current.WriteRune(r)
		}
	}

	if quote != 0 {
		return nil, apperrors.Wrap(apperrors.CodeGrammar,
			fmt.Sprintf("quote %c opened at column %d is never closed", quote, opened+1),
			ErrUnterminatedQuote)
	}
	flush()
	return tokens, nil
}
