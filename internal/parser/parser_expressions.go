package parser

import (
	"strconv"

	"github.com/google/grumpy-sub001/internal/ast"
	"github.com/google/grumpy-sub001/internal/token"
)

func (p *Parser) parseExpression(precedence int) ast.Expression {
	// First, find a prefix parser for current token
	// This handles: literals, identifiers, prefix operators (-, not), grouped expressions
	prefix := p.prefixParseFns[p.curToken.Type]
	if prefix == nil {
		p.noPrefixParseFnError(p.curToken)
		return nil
	}
	leftExp := prefix()

	// While next token is an infix operator with higher precedence than ours,
	// consume it and build the expression tree
	for leftExp != nil && precedence < p.peekPrecedence() {
		infix := p.infixParseFns[p.peekToken.Type]
		if infix == nil {
			return leftExp
		}

		p.nextToken()            // Advance to the operator
		leftExp = infix(leftExp) // Parse with left side already known
	}

	return leftExp
}

// parseExpressionList parses a comma-separated expression list. A single
// expression stays itself; a comma at this level builds a tuple, so
// "return a, b" returns a pair and "x = 1," assigns a one-tuple.
func (p *Parser) parseExpressionList() ast.Expression {
	first := p.parseExpression(LOWEST)
	if first == nil {
		return nil
	}
	if !p.peekTokenIs(token.COMMA) {
		return first
	}
	tuple := &ast.TupleLiteral{Token: p.curToken, Elements: []ast.Expression{first}}
	for p.peekTokenIs(token.COMMA) {
		p.nextToken()
		switch p.peekToken.Type {
		case token.NEWLINE, token.COLON, token.ASSIGN, token.EOF:
			// Trailing comma: list ends here.
			return tuple
		}
		p.nextToken()
		next := p.parseExpression(LOWEST)
		if next == nil {
			return nil
		}
		tuple.Elements = append(tuple.Elements, next)
	}
	return tuple
}

func (p *Parser) noPrefixParseFnError(tok token.Token) {
	p.addError(tok, "unexpected %s at start of expression", tok.Type)
}

// parseIdentifier parses a bare name
func (p *Parser) parseIdentifier() ast.Expression {
	return &ast.Identifier{Token: p.curToken, Value: p.curToken.Literal}
}

// parseIntegerLiteral parses a number
func (p *Parser) parseIntegerLiteral() ast.Expression {
	lit := &ast.IntegerLiteral{Token: p.curToken}

	// Convert string to int64
	value, err := strconv.ParseInt(p.curToken.Literal, 0, 64)
	if err != nil {
		p.addError(p.curToken, "could not parse %q as integer", p.curToken.Literal)
		return nil
	}

	lit.Value = value
	return lit
}

func (p *Parser) parseFloatLiteral() ast.Expression {
	lit := &ast.FloatLiteral{Token: p.curToken}
	value, err := strconv.ParseFloat(p.curToken.Literal, 64)
	if err != nil {
		p.addError(p.curToken, "could not parse %q as float", p.curToken.Literal)
		return nil
	}
	lit.Value = value
	return lit
}

func (p *Parser) parseStringLiteral() ast.Expression {
	return &ast.StringLiteral{Token: p.curToken, Value: p.curToken.Literal}
}

func (p *Parser) parseNoneLiteral() ast.Expression {
	return &ast.NoneLiteral{Token: p.curToken}
}

func (p *Parser) parseBooleanLiteral() ast.Expression {
	return &ast.BooleanLiteral{Token: p.curToken, Value: p.curTokenIs(token.TRUE)}
}

func (p *Parser) parsePrefixExpression() ast.Expression {
	expr := &ast.PrefixExpression{Token: p.curToken, Operator: p.curToken.Literal}
	p.nextToken()
	expr.Right = p.parseExpression(PREFIX)
	if expr.Right == nil {
		return nil
	}
	return expr
}

// parseNotExpression binds looser than comparisons: "not a == b" means
// not (a == b).
func (p *Parser) parseNotExpression() ast.Expression {
	expr := &ast.PrefixExpression{Token: p.curToken, Operator: "not"}
	p.nextToken()
	expr.Right = p.parseExpression(LOGICNOT)
	if expr.Right == nil {
		return nil
	}
	return expr
}

func (p *Parser) parseInfixExpression(left ast.Expression) ast.Expression {
	expr := &ast.InfixExpression{
		Token:    p.curToken,
		Left:     left,
		Operator: p.curToken.Literal,
	}
	precedence := precedences[p.curToken.Type]
	// "is not" is one operator spelled with two keywords.
	if p.curTokenIs(token.IS) && p.peekTokenIs(token.NOT) {
		p.nextToken()
		expr.Operator = "is not"
	}
	p.nextToken()
	expr.Right = p.parseExpression(precedence)
	if expr.Right == nil {
		return nil
	}
	return expr
}

// parseGroupedOrTuple parses (expr), the empty tuple () and tuples like
// (a, b) or (a,).
func (p *Parser) parseGroupedOrTuple() ast.Expression {
	lparen := p.curToken

	if p.peekTokenIs(token.RPAREN) {
		p.nextToken()
		return &ast.TupleLiteral{Token: lparen}
	}

	p.nextToken()
	first := p.parseExpression(LOWEST)
	if first == nil {
		return nil
	}

	if !p.peekTokenIs(token.COMMA) {
		if !p.expectPeek(token.RPAREN) {
			return nil
		}
		return first
	}

	tuple := &ast.TupleLiteral{Token: lparen, Elements: []ast.Expression{first}}
	for p.peekTokenIs(token.COMMA) {
		p.nextToken()
		if p.peekTokenIs(token.RPAREN) {
			break
		}
		p.nextToken()
		next := p.parseExpression(LOWEST)
		if next == nil {
			return nil
		}
		tuple.Elements = append(tuple.Elements, next)
	}
	if !p.expectPeek(token.RPAREN) {
		return nil
	}
	return tuple
}

func (p *Parser) parseListLiteral() ast.Expression {
	list := &ast.ListLiteral{Token: p.curToken}

	for !p.peekTokenIs(token.RBRACKET) {
		p.nextToken()
		elem := p.parseExpression(LOWEST)
		if elem == nil {
			return nil
		}
		list.Elements = append(list.Elements, elem)
		if p.peekTokenIs(token.COMMA) {
			p.nextToken()
		} else {
			break
		}
	}
	if !p.expectPeek(token.RBRACKET) {
		return nil
	}
	return list
}

func (p *Parser) parseDictLiteral() ast.Expression {
	dict := &ast.DictLiteral{Token: p.curToken}

	for !p.peekTokenIs(token.RBRACE) {
		p.nextToken()
		key := p.parseExpression(LOWEST)
		if key == nil {
			return nil
		}
		if !p.expectPeek(token.COLON) {
			return nil
		}
		p.nextToken()
		value := p.parseExpression(LOWEST)
		if value == nil {
			return nil
		}
		dict.Keys = append(dict.Keys, key)
		dict.Values = append(dict.Values, value)
		if p.peekTokenIs(token.COMMA) {
			p.nextToken()
		} else {
			break
		}
	}
	if !p.expectPeek(token.RBRACE) {
		return nil
	}
	return dict
}

func (p *Parser) parseYieldExpression() ast.Expression {
	expr := &ast.YieldExpression{Token: p.curToken}
	switch p.peekToken.Type {
	case token.NEWLINE, token.RPAREN, token.RBRACKET, token.RBRACE, token.COMMA, token.EOF:
		return expr // bare yield
	}
	p.nextToken()
	expr.Value = p.parseExpression(LOWEST)
	if expr.Value == nil {
		return nil
	}
	return expr
}

// parseCallExpression parses f(a, b, k=v). Positional arguments must come
// before keyword arguments; the binding itself happens at runtime, this
// only checks the shape.
func (p *Parser) parseCallExpression(function ast.Expression) ast.Expression {
	call := &ast.CallExpression{Token: p.curToken, Function: function}
	seenKeywords := map[string]bool{}

	for !p.peekTokenIs(token.RPAREN) {
		p.nextToken()

		if p.curTokenIs(token.IDENT) && p.peekTokenIs(token.ASSIGN) {
			kw := &ast.KeywordArgument{Token: p.curToken, Name: p.curToken.Literal}
			if seenKeywords[kw.Name] {
				p.addError(p.curToken, "keyword argument repeated: %s", kw.Name)
				return nil
			}
			seenKeywords[kw.Name] = true
			p.nextToken() // =
			p.nextToken()
			kw.Value = p.parseExpression(LOWEST)
			if kw.Value == nil {
				return nil
			}
			call.Keywords = append(call.Keywords, kw)
		} else {
			if len(call.Keywords) > 0 {
				p.addError(p.curToken, "positional argument follows keyword argument")
				return nil
			}
			arg := p.parseExpression(LOWEST)
			if arg == nil {
				return nil
			}
			call.Arguments = append(call.Arguments, arg)
		}

		if p.peekTokenIs(token.COMMA) {
			p.nextToken()
		} else {
			break
		}
	}
	if !p.expectPeek(token.RPAREN) {
		return nil
	}
	return call
}

func (p *Parser) parseIndexExpression(left ast.Expression) ast.Expression {
	expr := &ast.IndexExpression{Token: p.curToken, Left: left}
	p.nextToken()
	expr.Index = p.parseExpression(LOWEST)
	if expr.Index == nil {
		return nil
	}
	if !p.expectPeek(token.RBRACKET) {
		return nil
	}
	return expr
}

func (p *Parser) parseAttributeExpression(left ast.Expression) ast.Expression {
	expr := &ast.AttributeExpression{Token: p.curToken, Object: left}
	if !p.expectPeek(token.IDENT) {
		return nil
	}
	expr.Name = p.curToken.Literal
	return expr
}
