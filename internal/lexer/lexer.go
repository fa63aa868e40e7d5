package lexer

import "github.com/google/grumpy-sub001/internal/token"

// Lexer holds the state while tokenizing input
// It reads character by character, like a tape reader, but it also tracks
// physical line structure: leading whitespace becomes INDENT/DEDENT tokens
// and logical line ends become NEWLINE tokens, the way the parser expects.
type Lexer struct {
	input        string // The source code
	position     int    // Current position in input (points to current char)
	readPosition int    // Current reading position (after current char)
	ch           byte   // Current character under examination

	line   int // 1-based line of the current character
	column int // 1-based column of the current character

	indents    []int         // Stack of active indentation widths, always starts with 0
	pending    []token.Token // Queued tokens (DEDENTs come in bursts)
	atLineHead bool          // True when the next token starts a logical line
	groupDepth int           // Nesting depth of (), [] and {} - newlines inside are ignored
}

// New creates a new Lexer for the given input
func New(input string) *Lexer {
	l := &Lexer{
		input:      input,
		line:       1,
		column:     0,
		indents:    []int{0},
		atLineHead: true,
	}
	l.readChar() // Initialize with first character
	return l
}

// NextToken returns the next token from input
// This is the heart of the lexer - it recognizes patterns
func (l *Lexer) NextToken() token.Token {
	if len(l.pending) > 0 {
		tok := l.pending[0]
		l.pending = l.pending[1:]
		return tok
	}

	if l.atLineHead && l.groupDepth == 0 {
		if tok, ok := l.lineHeadToken(); ok {
			return tok
		}
	}

	l.skipIgnored()

	if l.ch == '\n' {
		line, col := l.line, l.column
		l.readChar()
		if l.groupDepth > 0 {
			// Implicit line joining inside brackets: the newline is just
			// whitespace here.
			return l.NextToken()
		}
		l.atLineHead = true
		return token.Token{Type: token.NEWLINE, Literal: "\n", Line: line, Column: col}
	}

	var tok token.Token
	tok.Line = l.line
	tok.Column = l.column

	switch l.ch {
	case '=':
		if l.peekChar() == '=' {
			l.readChar()
			tok.Type, tok.Literal = token.EQ, "=="
		} else {
			tok.Type, tok.Literal = token.ASSIGN, "="
		}
	case '+':
		tok.Type, tok.Literal = token.PLUS, "+"
	case '-':
		tok.Type, tok.Literal = token.MINUS, "-"
	case '*':
		tok.Type, tok.Literal = token.ASTERISK, "*"
	case '/':
		tok.Type, tok.Literal = token.SLASH, "/"
	case '%':
		tok.Type, tok.Literal = token.PERCENT, "%"
	case '<':
		if l.peekChar() == '=' {
			l.readChar()
			tok.Type, tok.Literal = token.LE, "<="
		} else {
			tok.Type, tok.Literal = token.LT, "<"
		}
	case '>':
		if l.peekChar() == '=' {
			l.readChar()
			tok.Type, tok.Literal = token.GE, ">="
		} else {
			tok.Type, tok.Literal = token.GT, ">"
		}
	case '!':
		if l.peekChar() == '=' {
			l.readChar()
			tok.Type, tok.Literal = token.NOT_EQ, "!="
		} else {
			tok.Type, tok.Literal = token.ILLEGAL, "!"
		}
	case ',':
		tok.Type, tok.Literal = token.COMMA, ","
	case ':':
		tok.Type, tok.Literal = token.COLON, ":"
	case ';':
		tok.Type, tok.Literal = token.SEMI, ";"
	case '.':
		tok.Type, tok.Literal = token.DOT, "."
	case '(':
		l.groupDepth++
		tok.Type, tok.Literal = token.LPAREN, "("
	case ')':
		if l.groupDepth > 0 {
			l.groupDepth--
		}
		tok.Type, tok.Literal = token.RPAREN, ")"
	case '[':
		l.groupDepth++
		tok.Type, tok.Literal = token.LBRACKET, "["
	case ']':
		if l.groupDepth > 0 {
			l.groupDepth--
		}
		tok.Type, tok.Literal = token.RBRACKET, "]"
	case '{':
		l.groupDepth++
		tok.Type, tok.Literal = token.LBRACE, "{"
	case '}':
		if l.groupDepth > 0 {
			l.groupDepth--
		}
		tok.Type, tok.Literal = token.RBRACE, "}"
	case '"', '\'':
		tok.Type = token.STRING
		tok.Literal = l.readString(l.ch)
		return tok // Already advanced past closing quote
	case 0:
		// End of input: close any open suites before reporting EOF.
		return l.endOfInput()
	default:
		if isLetter(l.ch) {
			tok.Literal = l.readIdentifier()
			tok.Type = token.LookupIdent(tok.Literal)
			return tok // Already advanced past identifier
		} else if isDigit(l.ch) {
			tok.Type, tok.Literal = l.readNumber()
			return tok // Already advanced past number
		}
		tok.Type, tok.Literal = token.ILLEGAL, string(l.ch)
	}

	l.readChar() // Advance to next character for next call
	return tok
}

// lineHeadToken measures the indentation of the line about to start and
// queues INDENT/DEDENT tokens as needed. Blank lines and comment-only lines
// produce no layout tokens at all.
func (l *Lexer) lineHeadToken() (token.Token, bool) {
	width := 0
	for {
		switch l.ch {
		case ' ':
			width++
			l.readChar()
			continue
		case '\t':
			// A tab advances to the next multiple of 8, like CPython.
			width += 8 - width%8
			l.readChar()
			continue
		}
		break
	}

	if l.ch == '#' {
		l.skipLineComment()
	}
	if l.ch == '\n' {
		// Blank or comment-only line: swallow it and start over.
		l.readChar()
		return l.NextToken(), true
	}
	if l.ch == 0 {
		return l.endOfInput(), true
	}

	l.atLineHead = false
	current := l.indents[len(l.indents)-1]
	switch {
	case width > current:
		l.indents = append(l.indents, width)
		return token.Token{Type: token.INDENT, Literal: "", Line: l.line, Column: l.column}, true
	case width < current:
		for len(l.indents) > 1 && l.indents[len(l.indents)-1] > width {
			l.indents = l.indents[:len(l.indents)-1]
			l.pending = append(l.pending, token.Token{Type: token.DEDENT, Literal: "", Line: l.line, Column: l.column})
		}
		if l.indents[len(l.indents)-1] != width {
			l.pending = append(l.pending, token.Token{Type: token.ILLEGAL, Literal: "inconsistent indentation", Line: l.line, Column: l.column})
		}
		tok := l.pending[0]
		l.pending = l.pending[1:]
		return tok, true
	}
	return token.Token{}, false
}

// endOfInput emits a final NEWLINE if a line is open, then one DEDENT per
// open suite, then EOF.
func (l *Lexer) endOfInput() token.Token {
	if !l.atLineHead {
		l.atLineHead = true
		return token.Token{Type: token.NEWLINE, Literal: "\n", Line: l.line, Column: l.column}
	}
	if len(l.indents) > 1 {
		l.indents = l.indents[:len(l.indents)-1]
		return token.Token{Type: token.DEDENT, Literal: "", Line: l.line, Column: l.column}
	}
	return token.Token{Type: token.EOF, Literal: "", Line: l.line, Column: l.column}
}
