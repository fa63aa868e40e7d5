package lexer

import (
	"strings"

	"github.com/google/grumpy-sub001/internal/token"
)

// readChar advances to the next character
// Think of it like moving the tape forward one position
func (l *Lexer) readChar() {
	// Crossing a newline moves us to column 1 of the next line. The newline
	// token itself is still reported on the line it terminates.
	if l.ch == '\n' {
		l.line++
		l.column = 0
	}
	// If we've reached the end, set ch to 0 (NUL byte, signifies EOF)
	if l.readPosition >= len(l.input) {
		l.ch = 0
	} else {
		// Otherwise read the next character
		l.ch = l.input[l.readPosition]
	}
	// Move position forward
	l.position = l.readPosition
	l.readPosition++
	l.column++
}

// peekChar looks at the next character without consuming it
// Used for two-character tokens like == and !=
func (l *Lexer) peekChar() byte {
	if l.readPosition >= len(l.input) {
		return 0
	}
	return l.input[l.readPosition]
}

// skipIgnored skips spaces, tabs and comments between tokens on a line.
// Newlines are significant, so they are not skipped here.
func (l *Lexer) skipIgnored() {
	for {
		for l.ch == ' ' || l.ch == '\t' || l.ch == '\r' {
			l.readChar()
		}
		if l.ch == '#' {
			l.skipLineComment()
			continue
		}
		// Explicit line joining: backslash-newline disappears entirely.
		if l.ch == '\\' && l.peekChar() == '\n' {
			l.readChar()
			l.readChar()
			continue
		}
		return
	}
}

func (l *Lexer) skipLineComment() {
	// Skip leading "#"
	l.readChar()
	for l.ch != '\n' && l.ch != 0 {
		l.readChar()
	}
}

// readIdentifier reads an identifier.
// First char is guaranteed to be a letter/underscore by caller.
// Subsequent chars may include digits.
func (l *Lexer) readIdentifier() string {
	position := l.position
	for isLetter(l.ch) || isDigit(l.ch) {
		l.readChar()
	}
	return l.input[position:l.position]
}

// readNumber reads a run of digits, optionally with a fractional part.
func (l *Lexer) readNumber() (token.TokenType, string) {
	position := l.position
	hasDot := false
	for isDigit(l.ch) {
		l.readChar()
	}
	if l.ch == '.' && isDigit(l.peekChar()) {
		hasDot = true
		l.readChar()
		for isDigit(l.ch) {
			l.readChar()
		}
	}
	if hasDot {
		return token.FLOAT, l.input[position:l.position]
	}
	return token.INT, l.input[position:l.position]
}

// readString reads a string delimited by the given quote character,
// resolving the usual backslash escapes.
func (l *Lexer) readString(quote byte) string {
	// current ch is opening quote
	l.readChar()
	var out strings.Builder
	for l.ch != quote && l.ch != 0 && l.ch != '\n' {
		if l.ch == '\\' {
			l.readChar()
			switch l.ch {
			case 'n':
				out.WriteByte('\n')
			case 't':
				out.WriteByte('\t')
			case 'r':
				out.WriteByte('\r')
			case '\\':
				out.WriteByte('\\')
			case '\'':
				out.WriteByte('\'')
			case '"':
				out.WriteByte('"')
			case 0:
				return out.String()
			default:
				// Unknown escape: keep both characters, like CPython does.
				out.WriteByte('\\')
				out.WriteByte(l.ch)
			}
			l.readChar()
			continue
		}
		out.WriteByte(l.ch)
		l.readChar()
	}
	if l.ch == quote {
		l.readChar()
	}
	return out.String()
}

// isLetter checks if ch is a letter or underscore
// We allow underscores in identifiers: foo_bar
func isLetter(ch byte) bool {
	return 'a' <= ch && ch <= 'z' || 'A' <= ch && ch <= 'Z' || ch == '_'
}

// isDigit checks if ch is 0-9
func isDigit(ch byte) bool {
	return '0' <= ch && ch <= '9'
}
