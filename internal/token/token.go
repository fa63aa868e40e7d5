package token

// TokenType is a string alias for token types
// Using string makes debugging easier (we can print "DEF" instead of a number)
type TokenType string

// Token struct holds the type, literal value, and source position.
// For example: Token{Type: INT, Literal: "5", Line: 3, Column: 7}
type Token struct {
	Type    TokenType
	Literal string
	Line    int
	Column  int
}

// Token constants - these are the vocabulary of our language
const (
	// Special
	ILLEGAL TokenType = "ILLEGAL" // Unknown/invalid character
	EOF     TokenType = "EOF"     // End of file, tells parser we're done

	// Layout tokens. The lexer turns physical line structure into these
	// so the parser never has to count spaces itself.
	NEWLINE TokenType = "NEWLINE" // End of a logical line
	INDENT  TokenType = "INDENT"  // Start of an indented suite
	DEDENT  TokenType = "DEDENT"  // End of an indented suite

	// Identifiers and literals
	IDENT  TokenType = "IDENT"  // Variable names: x, y, foo
	INT    TokenType = "INT"    // Integers: 1, 42, 999
	FLOAT  TokenType = "FLOAT"  // Floating-point: 3.14
	STRING TokenType = "STRING" // Strings: "hello" or 'hello'

	// Operators
	ASSIGN   TokenType = "="
	PLUS     TokenType = "+"
	MINUS    TokenType = "-"
	ASTERISK TokenType = "*"
	SLASH    TokenType = "/"
	PERCENT  TokenType = "%"
	LT       TokenType = "<"
	GT       TokenType = ">"
	LE       TokenType = "<="
	GE       TokenType = ">="
	EQ       TokenType = "=="
	NOT_EQ   TokenType = "!="

	// Delimiters
	COMMA    TokenType = ","
	COLON    TokenType = ":"
	SEMI     TokenType = ";"
	DOT      TokenType = "."
	LPAREN   TokenType = "("
	RPAREN   TokenType = ")"
	LBRACKET TokenType = "["
	RBRACKET TokenType = "]"
	LBRACE   TokenType = "{"
	RBRACE   TokenType = "}"

	// Keywords
	DEF      TokenType = "DEF"
	CLASS    TokenType = "CLASS"
	RETURN   TokenType = "RETURN"
	YIELD    TokenType = "YIELD"
	IF       TokenType = "IF"
	ELIF     TokenType = "ELIF"
	ELSE     TokenType = "ELSE"
	WHILE    TokenType = "WHILE"
	FOR      TokenType = "FOR"
	IN       TokenType = "IN"
	BREAK    TokenType = "BREAK"
	CONTINUE TokenType = "CONTINUE"
	PASS     TokenType = "PASS"
	DEL      TokenType = "DEL"
	GLOBAL   TokenType = "GLOBAL"
	NONLOCAL TokenType = "NONLOCAL"
	TRY      TokenType = "TRY"
	EXCEPT   TokenType = "EXCEPT"
	FINALLY  TokenType = "FINALLY"
	RAISE    TokenType = "RAISE"
	IMPORT   TokenType = "IMPORT"
	WITH     TokenType = "WITH"
	AS       TokenType = "AS"
	AND      TokenType = "AND"
	OR       TokenType = "OR"
	NOT      TokenType = "NOT"
	IS       TokenType = "IS"
	NONE     TokenType = "NONE"
	TRUE     TokenType = "TRUE"
	FALSE    TokenType = "FALSE"
)

// keywords maps string identifiers to their token type
// This lets us distinguish between "def" (keyword) and "x" (identifier)
var keywords = map[string]TokenType{
	"def":      DEF,
	"class":    CLASS,
	"return":   RETURN,
	"yield":    YIELD,
	"if":       IF,
	"elif":     ELIF,
	"else":     ELSE,
	"while":    WHILE,
	"for":      FOR,
	"in":       IN,
	"break":    BREAK,
	"continue": CONTINUE,
	"pass":     PASS,
	"del":      DEL,
	"global":   GLOBAL,
	"nonlocal": NONLOCAL,
	"try":      TRY,
	"except":   EXCEPT,
	"finally":  FINALLY,
	"raise":    RAISE,
	"import":   IMPORT,
	"with":     WITH,
	"as":       AS,
	"and":      AND,
	"or":       OR,
	"not":      NOT,
	"is":       IS,
	"None":     NONE,
	"True":     TRUE,
	"False":    FALSE,
}

// LookupIdent checks if an identifier is a keyword
// If "def" is in keywords map, returns DEF token type
// Otherwise returns IDENT (it's a variable name)
func LookupIdent(ident string) TokenType {
	if tok, ok := keywords[ident]; ok {
		return tok
	}
	return IDENT
}
