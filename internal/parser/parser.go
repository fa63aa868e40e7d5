package parser

import (
	"fmt"

	"github.com/google/grumpy-sub001/internal/ast"
	"github.com/google/grumpy-sub001/internal/diag"
	"github.com/google/grumpy-sub001/internal/lexer"
	"github.com/google/grumpy-sub001/internal/token"
)

// precedence levels (lowest to highest)
// These determine operator binding: 5 + 3 * 2 parses as 5 + (3 * 2) because * has higher precedence
const (
	_ int = iota // Start at 0, ignore this
	LOWEST
	LOGICOR     // or
	LOGICAND    // and
	LOGICNOT    // not x
	COMPARISON  // ==, !=, <, >, <=, >=, is, in
	SUM         // +, -
	PRODUCT     // *, /, %
	PREFIX      // -x
	CALL        // f(x)
	INDEX       // xs[i]
	ATTR        // obj.attr
)

// precedence table maps token types to their precedence level
var precedences = map[token.TokenType]int{
	token.OR:       LOGICOR,
	token.AND:      LOGICAND,
	token.EQ:       COMPARISON,
	token.NOT_EQ:   COMPARISON,
	token.LT:       COMPARISON,
	token.GT:       COMPARISON,
	token.LE:       COMPARISON,
	token.GE:       COMPARISON,
	token.IS:       COMPARISON,
	token.IN:       COMPARISON,
	token.PLUS:     SUM,
	token.MINUS:    SUM,
	token.ASTERISK: PRODUCT,
	token.SLASH:    PRODUCT,
	token.PERCENT:  PRODUCT,
	token.LPAREN:   CALL,
	token.LBRACKET: INDEX,
	token.DOT:      ATTR,
}

type Parser struct {
	l *lexer.Lexer // The lexer feeding us tokens

	curToken  token.Token // Current token under examination
	peekToken token.Token // Next token (for look-ahead)

	errors []string          // Accumulated parse errors
	diags  []diag.Diagnostic // The same errors with structured positions

	// Pratt parser tables
	prefixParseFns map[token.TokenType]prefixParseFn // Functions for tokens that start expressions
	infixParseFns  map[token.TokenType]infixParseFn  // Functions for tokens that appear in the middle
}

// prefixParseFn parses expressions that start with a specific token
// Example: -5, not x, 42, foo
type prefixParseFn func() ast.Expression

// infixParseFn parses expressions where the operator is between operands
// Example: 5 + 3, add(2, 3)
// The ast.Expression is the left side already parsed
type infixParseFn func(ast.Expression) ast.Expression

// New creates a new parser for the given lexer
func New(l *lexer.Lexer) *Parser {
	p := &Parser{
		l:      l,
		errors: []string{},
	}

	// Initialize function tables
	p.prefixParseFns = make(map[token.TokenType]prefixParseFn)
	p.infixParseFns = make(map[token.TokenType]infixParseFn)

	// Register prefix parsers (tokens that can START an expression)
	p.registerPrefix(token.IDENT, p.parseIdentifier)
	p.registerPrefix(token.INT, p.parseIntegerLiteral)
	p.registerPrefix(token.FLOAT, p.parseFloatLiteral)
	p.registerPrefix(token.STRING, p.parseStringLiteral)
	p.registerPrefix(token.NONE, p.parseNoneLiteral)
	p.registerPrefix(token.TRUE, p.parseBooleanLiteral)
	p.registerPrefix(token.FALSE, p.parseBooleanLiteral)
	p.registerPrefix(token.MINUS, p.parsePrefixExpression)
	p.registerPrefix(token.NOT, p.parseNotExpression)
	p.registerPrefix(token.LPAREN, p.parseGroupedOrTuple)
	p.registerPrefix(token.LBRACKET, p.parseListLiteral)
	p.registerPrefix(token.LBRACE, p.parseDictLiteral)
	p.registerPrefix(token.YIELD, p.parseYieldExpression)

	// Register infix parsers (tokens that appear BETWEEN expressions)
	p.registerInfix(token.PLUS, p.parseInfixExpression)
	p.registerInfix(token.MINUS, p.parseInfixExpression)
	p.registerInfix(token.ASTERISK, p.parseInfixExpression)
	p.registerInfix(token.SLASH, p.parseInfixExpression)
	p.registerInfix(token.PERCENT, p.parseInfixExpression)
	p.registerInfix(token.EQ, p.parseInfixExpression)
	p.registerInfix(token.NOT_EQ, p.parseInfixExpression)
	p.registerInfix(token.LT, p.parseInfixExpression)
	p.registerInfix(token.GT, p.parseInfixExpression)
	p.registerInfix(token.LE, p.parseInfixExpression)
	p.registerInfix(token.GE, p.parseInfixExpression)
	p.registerInfix(token.AND, p.parseInfixExpression)
	p.registerInfix(token.OR, p.parseInfixExpression)
	p.registerInfix(token.IS, p.parseInfixExpression)
	p.registerInfix(token.IN, p.parseInfixExpression)
	p.registerInfix(token.LPAREN, p.parseCallExpression)
	p.registerInfix(token.LBRACKET, p.parseIndexExpression)
	p.registerInfix(token.DOT, p.parseAttributeExpression)

	// Read two tokens to set curToken and peekToken
	p.nextToken()
	p.nextToken()

	return p
}

// registerPrefix adds a prefix parser for a token type
func (p *Parser) registerPrefix(tokenType token.TokenType, fn prefixParseFn) {
	p.prefixParseFns[tokenType] = fn
}

// registerInfix adds an infix parser for a token type
func (p *Parser) registerInfix(tokenType token.TokenType, fn infixParseFn) {
	p.infixParseFns[tokenType] = fn
}

// nextToken advances to the next token
func (p *Parser) nextToken() {
	p.curToken = p.peekToken
	p.peekToken = p.l.NextToken()
}

// Errors returns accumulated parse errors
func (p *Parser) Errors() []string {
	return p.errors
}

// DetailedErrors returns the parse errors with structured positions so
// callers can render them against the source. The module name is left
// for the caller to fill in.
func (p *Parser) DetailedErrors() []diag.Diagnostic {
	return p.diags
}

func (p *Parser) addError(tok token.Token, format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	p.errors = append(p.errors, fmt.Sprintf("%d:%d: %s", tok.Line, tok.Column, msg))
	p.diags = append(p.diags, diag.Diagnostic{Line: tok.Line, Column: tok.Column, Message: msg})
}

// peekError adds an error when we expected a different token
func (p *Parser) peekError(t token.TokenType) {
	p.addError(p.peekToken, "expected next token to be %s, got %s instead", t, p.peekToken.Type)
}

// curTokenIs checks if current token matches
func (p *Parser) curTokenIs(t token.TokenType) bool {
	return p.curToken.Type == t
}

// peekTokenIs checks if next token matches
func (p *Parser) peekTokenIs(t token.TokenType) bool {
	return p.peekToken.Type == t
}

// expectPeek checks next token and advances if correct, else errors
// Used for mandatory syntax like "def <ident>("
func (p *Parser) expectPeek(t token.TokenType) bool {
	if p.peekTokenIs(t) {
		p.nextToken()
		return true
	}
	p.peekError(t)
	return false
}

// peekPrecedence returns precedence of next token
func (p *Parser) peekPrecedence() int {
	if prec, ok := precedences[p.peekToken.Type]; ok {
		return prec
	}
	return LOWEST
}

// ParseModule parses a whole source file into its AST
func (p *Parser) ParseModule() *ast.Module {
	module := &ast.Module{}
	module.Statements = []ast.Statement{}

	// Keep parsing statements until EOF
	for !p.curTokenIs(token.EOF) {
		if p.curTokenIs(token.NEWLINE) || p.curTokenIs(token.SEMI) {
			p.nextToken()
			continue
		}
		stmt := p.parseStatement()
		if stmt != nil {
			module.Statements = append(module.Statements, stmt)
		} else {
			p.synchronize()
		}
		p.nextToken()
	}

	return module
}

// synchronize skips ahead to the end of the current logical line so one
// syntax error doesn't cascade into dozens of bogus follow-up errors.
func (p *Parser) synchronize() {
	for !p.curTokenIs(token.EOF) && !p.curTokenIs(token.NEWLINE) && !p.curTokenIs(token.DEDENT) {
		p.nextToken()
	}
}
