package parser

import (
	"github.com/google/grumpy-sub001/internal/ast"
	"github.com/google/grumpy-sub001/internal/token"
)

// parseStatement dispatches to specific statement parsers based on token type.
// Every statement parser returns with curToken on the last token it consumed:
// the terminating NEWLINE for simple statements, the closing DEDENT (or the
// inline body's NEWLINE) for compound ones.
func (p *Parser) parseStatement() ast.Statement {
	switch p.curToken.Type {
	case token.DEF:
		return p.parseFunctionStatement()
	case token.CLASS:
		return p.parseClassStatement()
	case token.IF:
		return p.parseIfStatement()
	case token.WHILE:
		return p.parseWhileStatement()
	case token.FOR:
		return p.parseForStatement()
	case token.TRY:
		return p.parseTryStatement()
	case token.WITH:
		return p.parseWithStatement()
	case token.RETURN:
		return p.parseReturnStatement()
	case token.PASS:
		return p.terminated(&ast.PassStatement{Token: p.curToken})
	case token.BREAK:
		return p.terminated(&ast.BreakStatement{Token: p.curToken})
	case token.CONTINUE:
		return p.terminated(&ast.ContinueStatement{Token: p.curToken})
	case token.DEL:
		return p.parseDelStatement()
	case token.GLOBAL:
		return p.parseGlobalStatement()
	case token.NONLOCAL:
		return p.parseNonlocalStatement()
	case token.RAISE:
		return p.parseRaiseStatement()
	case token.IMPORT:
		return p.parseImportStatement()
	default:
		return p.parseExpressionOrAssignStatement()
	}
}

// terminated consumes the NEWLINE that must follow a one-token statement.
func (p *Parser) terminated(stmt ast.Statement) ast.Statement {
	if !p.expectPeek(token.NEWLINE) {
		return nil
	}
	return stmt
}

// parseSuite parses the body of a compound statement. curToken must be the
// colon. Either an indented block follows on the next line, or a single
// simple statement sits on the same line ("if x: pass").
func (p *Parser) parseSuite() *ast.BlockStatement {
	block := &ast.BlockStatement{Token: p.curToken}

	if p.peekTokenIs(token.NEWLINE) {
		p.nextToken() // consume NEWLINE
		if !p.expectPeek(token.INDENT) {
			return nil
		}
		p.nextToken() // first token of the suite
		for !p.curTokenIs(token.DEDENT) && !p.curTokenIs(token.EOF) {
			if p.curTokenIs(token.NEWLINE) || p.curTokenIs(token.SEMI) {
				p.nextToken()
				continue
			}
			stmt := p.parseStatement()
			if stmt != nil {
				block.Statements = append(block.Statements, stmt)
			} else {
				p.synchronize()
			}
			p.nextToken()
		}
		return block
	}

	// Inline suite: one simple statement on the same line.
	p.nextToken()
	stmt := p.parseStatement()
	if stmt == nil {
		return nil
	}
	block.Statements = append(block.Statements, stmt)
	return block
}

func (p *Parser) parseFunctionStatement() ast.Statement {
	stmt := &ast.FunctionStatement{Token: p.curToken}

	if !p.expectPeek(token.IDENT) {
		return nil
	}
	stmt.Name = &ast.Identifier{Token: p.curToken, Value: p.curToken.Literal}

	if !p.expectPeek(token.LPAREN) {
		return nil
	}
	params, ok := p.parseParams()
	if !ok {
		return nil
	}
	stmt.Params = params

	if !p.expectPeek(token.COLON) {
		return nil
	}
	stmt.Body = p.parseSuite()
	if stmt.Body == nil {
		return nil
	}
	return stmt
}

// parseParams parses the parameter list of a def. curToken is the opening
// paren on entry and the closing paren on successful exit.
func (p *Parser) parseParams() ([]*ast.Param, bool) {
	params := []*ast.Param{}
	seen := map[string]bool{}
	sawDefault := false

	if p.peekTokenIs(token.RPAREN) {
		p.nextToken()
		return params, true
	}

	for {
		if !p.expectPeek(token.IDENT) {
			return nil, false
		}
		param := &ast.Param{Name: &ast.Identifier{Token: p.curToken, Value: p.curToken.Literal}}
		if seen[param.Name.Value] {
			p.addError(p.curToken, "duplicate parameter %q", param.Name.Value)
			return nil, false
		}
		seen[param.Name.Value] = true

		if p.peekTokenIs(token.ASSIGN) {
			p.nextToken()
			p.nextToken()
			param.Default = p.parseExpression(LOWEST)
			if param.Default == nil {
				return nil, false
			}
			sawDefault = true
		} else if sawDefault {
			p.addError(p.curToken, "parameter without default follows parameter with default")
			return nil, false
		}
		params = append(params, param)

		if p.peekTokenIs(token.COMMA) {
			p.nextToken()
			continue
		}
		break
	}

	if !p.expectPeek(token.RPAREN) {
		return nil, false
	}
	return params, true
}

func (p *Parser) parseClassStatement() ast.Statement {
	stmt := &ast.ClassStatement{Token: p.curToken}

	if !p.expectPeek(token.IDENT) {
		return nil
	}
	stmt.Name = &ast.Identifier{Token: p.curToken, Value: p.curToken.Literal}

	if p.peekTokenIs(token.LPAREN) {
		p.nextToken()
		for !p.peekTokenIs(token.RPAREN) {
			p.nextToken()
			base := p.parseExpression(LOWEST)
			if base == nil {
				return nil
			}
			stmt.Bases = append(stmt.Bases, base)
			if p.peekTokenIs(token.COMMA) {
				p.nextToken()
			}
		}
		p.nextToken() // consume RPAREN
	}

	if !p.expectPeek(token.COLON) {
		return nil
	}
	stmt.Body = p.parseSuite()
	if stmt.Body == nil {
		return nil
	}
	return stmt
}

func (p *Parser) parseIfStatement() ast.Statement {
	stmt := &ast.IfStatement{Token: p.curToken}

	p.nextToken()
	stmt.Condition = p.parseExpression(LOWEST)
	if stmt.Condition == nil {
		return nil
	}
	if !p.expectPeek(token.COLON) {
		return nil
	}
	stmt.Body = p.parseSuite()
	if stmt.Body == nil {
		return nil
	}

	// elif desugars into an else block holding a nested if.
	if p.peekTokenIs(token.ELIF) {
		p.nextToken()
		elifTok := p.curToken
		nested := p.parseIfStatement()
		if nested == nil {
			return nil
		}
		stmt.Else = &ast.BlockStatement{Token: elifTok, Statements: []ast.Statement{nested}}
		return stmt
	}
	if p.peekTokenIs(token.ELSE) {
		p.nextToken()
		if !p.expectPeek(token.COLON) {
			return nil
		}
		stmt.Else = p.parseSuite()
		if stmt.Else == nil {
			return nil
		}
	}
	return stmt
}

func (p *Parser) parseWhileStatement() ast.Statement {
	stmt := &ast.WhileStatement{Token: p.curToken}

	p.nextToken()
	stmt.Condition = p.parseExpression(LOWEST)
	if stmt.Condition == nil {
		return nil
	}
	if !p.expectPeek(token.COLON) {
		return nil
	}
	stmt.Body = p.parseSuite()
	if stmt.Body == nil {
		return nil
	}
	if p.peekTokenIs(token.ELSE) {
		p.nextToken()
		if !p.expectPeek(token.COLON) {
			return nil
		}
		stmt.Else = p.parseSuite()
		if stmt.Else == nil {
			return nil
		}
	}
	return stmt
}

func (p *Parser) parseForStatement() ast.Statement {
	stmt := &ast.ForStatement{Token: p.curToken}

	p.nextToken()
	stmt.Target = p.parseTargetList()
	if stmt.Target == nil {
		return nil
	}
	if !p.expectPeek(token.IN) {
		return nil
	}
	p.nextToken()
	stmt.Iter = p.parseExpressionList()
	if stmt.Iter == nil {
		return nil
	}
	if !p.expectPeek(token.COLON) {
		return nil
	}
	stmt.Body = p.parseSuite()
	if stmt.Body == nil {
		return nil
	}
	if p.peekTokenIs(token.ELSE) {
		p.nextToken()
		if !p.expectPeek(token.COLON) {
			return nil
		}
		stmt.Else = p.parseSuite()
		if stmt.Else == nil {
			return nil
		}
	}
	return stmt
}

// parseTargetList parses the assignment target(s) of a for statement:
// a bare name, or a comma list that becomes a tuple target. Parsing stops
// below comparison precedence so the IN keyword is left alone.
func (p *Parser) parseTargetList() ast.Expression {
	first := p.parseExpression(COMPARISON)
	if first == nil {
		return nil
	}
	if !p.peekTokenIs(token.COMMA) {
		return first
	}
	tuple := &ast.TupleLiteral{Token: p.curToken, Elements: []ast.Expression{first}}
	for p.peekTokenIs(token.COMMA) {
		p.nextToken()
		if p.peekTokenIs(token.IN) {
			break
		}
		p.nextToken()
		next := p.parseExpression(COMPARISON)
		if next == nil {
			return nil
		}
		tuple.Elements = append(tuple.Elements, next)
	}
	return tuple
}

func (p *Parser) parseTryStatement() ast.Statement {
	stmt := &ast.TryStatement{Token: p.curToken}

	if !p.expectPeek(token.COLON) {
		return nil
	}
	stmt.Body = p.parseSuite()
	if stmt.Body == nil {
		return nil
	}

	sawBare := false
	for p.peekTokenIs(token.EXCEPT) {
		p.nextToken()
		handler := &ast.ExceptHandler{Token: p.curToken}
		if sawBare {
			p.addError(p.curToken, "default 'except:' must be last")
			return nil
		}
		if !p.peekTokenIs(token.COLON) {
			p.nextToken()
			handler.Type = p.parseExpression(LOWEST)
			if handler.Type == nil {
				return nil
			}
			if p.peekTokenIs(token.AS) {
				p.nextToken()
				if !p.expectPeek(token.IDENT) {
					return nil
				}
				handler.Name = &ast.Identifier{Token: p.curToken, Value: p.curToken.Literal}
			}
		} else {
			sawBare = true
		}
		if !p.expectPeek(token.COLON) {
			return nil
		}
		handler.Body = p.parseSuite()
		if handler.Body == nil {
			return nil
		}
		stmt.Handlers = append(stmt.Handlers, handler)
	}

	if p.peekTokenIs(token.FINALLY) {
		p.nextToken()
		if !p.expectPeek(token.COLON) {
			return nil
		}
		stmt.Finally = p.parseSuite()
		if stmt.Finally == nil {
			return nil
		}
	}

	if len(stmt.Handlers) == 0 && stmt.Finally == nil {
		p.addError(stmt.Token, "try statement needs at least one except or finally clause")
		return nil
	}
	return stmt
}

func (p *Parser) parseWithStatement() ast.Statement {
	stmt := &ast.WithStatement{Token: p.curToken}

	p.nextToken()
	stmt.Context = p.parseExpression(LOWEST)
	if stmt.Context == nil {
		return nil
	}
	if p.peekTokenIs(token.AS) {
		p.nextToken()
		if !p.expectPeek(token.IDENT) {
			return nil
		}
		stmt.Name = &ast.Identifier{Token: p.curToken, Value: p.curToken.Literal}
	}
	if !p.expectPeek(token.COLON) {
		return nil
	}
	stmt.Body = p.parseSuite()
	if stmt.Body == nil {
		return nil
	}
	return stmt
}

func (p *Parser) parseReturnStatement() ast.Statement {
	stmt := &ast.ReturnStatement{Token: p.curToken}

	if p.peekTokenIs(token.NEWLINE) {
		p.nextToken()
		return stmt
	}
	p.nextToken()
	stmt.Value = p.parseExpressionList()
	if stmt.Value == nil {
		return nil
	}
	if !p.expectPeek(token.NEWLINE) {
		return nil
	}
	return stmt
}

func (p *Parser) parseDelStatement() ast.Statement {
	stmt := &ast.DelStatement{Token: p.curToken}

	for {
		p.nextToken()
		target := p.parseExpression(LOWEST)
		if target == nil {
			return nil
		}
		switch target.(type) {
		case *ast.Identifier, *ast.AttributeExpression, *ast.IndexExpression:
		default:
			p.addError(stmt.Token, "cannot delete %s", target.String())
			return nil
		}
		stmt.Targets = append(stmt.Targets, target)
		if !p.peekTokenIs(token.COMMA) {
			break
		}
		p.nextToken()
	}
	if !p.expectPeek(token.NEWLINE) {
		return nil
	}
	return stmt
}

func (p *Parser) parseGlobalStatement() ast.Statement {
	stmt := &ast.GlobalStatement{Token: p.curToken}
	names, ok := p.parseNameList()
	if !ok {
		return nil
	}
	stmt.Names = names
	return stmt
}

func (p *Parser) parseNonlocalStatement() ast.Statement {
	stmt := &ast.NonlocalStatement{Token: p.curToken}
	names, ok := p.parseNameList()
	if !ok {
		return nil
	}
	stmt.Names = names
	return stmt
}

// parseNameList parses the comma-separated identifiers of a global or
// nonlocal statement, through the terminating NEWLINE.
func (p *Parser) parseNameList() ([]*ast.Identifier, bool) {
	var names []*ast.Identifier
	for {
		if !p.expectPeek(token.IDENT) {
			return nil, false
		}
		names = append(names, &ast.Identifier{Token: p.curToken, Value: p.curToken.Literal})
		if !p.peekTokenIs(token.COMMA) {
			break
		}
		p.nextToken()
	}
	if !p.expectPeek(token.NEWLINE) {
		return nil, false
	}
	return names, true
}

func (p *Parser) parseRaiseStatement() ast.Statement {
	stmt := &ast.RaiseStatement{Token: p.curToken}

	if p.peekTokenIs(token.NEWLINE) {
		p.nextToken()
		return stmt
	}
	p.nextToken()
	stmt.Exc = p.parseExpression(LOWEST)
	if stmt.Exc == nil {
		return nil
	}
	if !p.expectPeek(token.NEWLINE) {
		return nil
	}
	return stmt
}

func (p *Parser) parseImportStatement() ast.Statement {
	stmt := &ast.ImportStatement{Token: p.curToken}

	if !p.expectPeek(token.IDENT) {
		return nil
	}
	stmt.Path = append(stmt.Path, p.curToken.Literal)
	for p.peekTokenIs(token.DOT) {
		p.nextToken()
		if !p.expectPeek(token.IDENT) {
			return nil
		}
		stmt.Path = append(stmt.Path, p.curToken.Literal)
	}
	if !p.expectPeek(token.NEWLINE) {
		return nil
	}
	return stmt
}

// parseExpressionOrAssignStatement handles the two statements that start
// with an arbitrary expression: a plain expression statement and an
// assignment.
func (p *Parser) parseExpressionOrAssignStatement() ast.Statement {
	first := p.curToken
	expr := p.parseExpressionList()
	if expr == nil {
		return nil
	}

	if p.peekTokenIs(token.ASSIGN) {
		if !validAssignTarget(expr) {
			p.addError(first, "cannot assign to %s", expr.String())
			return nil
		}
		p.nextToken()
		stmt := &ast.AssignStatement{Token: p.curToken, Target: expr}
		p.nextToken()
		stmt.Value = p.parseExpressionList()
		if stmt.Value == nil {
			return nil
		}
		if !p.expectPeek(token.NEWLINE) {
			return nil
		}
		return stmt
	}

	if !p.expectPeek(token.NEWLINE) {
		return nil
	}
	return &ast.ExpressionStatement{Token: first, Expression: expr}
}

// validAssignTarget reports whether an expression may appear on the left of
// an assignment.
func validAssignTarget(expr ast.Expression) bool {
	switch e := expr.(type) {
	case *ast.Identifier, *ast.AttributeExpression, *ast.IndexExpression:
		return true
	case *ast.TupleLiteral:
		for _, el := range e.Elements {
			if !validAssignTarget(el) {
				return false
			}
		}
		return len(e.Elements) > 0
	case *ast.ListLiteral:
		for _, el := range e.Elements {
			if !validAssignTarget(el) {
				return false
			}
		}
		return len(e.Elements) > 0
	default:
		return false
	}
}
