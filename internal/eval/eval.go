// Package eval parses and evaluates rendered driver expressions.
//
// The accepted grammar is the subset the compiler emits:
//
//	expr   = sum [ "if" sum cmp sum "else" expr ]
//	sum    = term { ("+"|"-") term }
//	term   = unary { ("*"|"/") unary }
//	unary  = ("-"|"+") unary | number | ident | "(" expr ")"
//	cmp    = "<" | ">" | "<=" | ">="
//
// It is the evaluation half of the channel store runtime and the oracle for
// round-trip tests of the renderer.
package eval

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// Program is a parsed expression.
type Program struct {
	src  string
	root node
	vars []string
}

// Parse parses src.
func Parse(src string) (*Program, error) {
	toks, err := tokenize(src)
	if err != nil {
		return nil, err
	}
	p := &parser{src: src, toks: toks, seen: make(map[string]bool)}
	root, err := p.expr()
	if err != nil {
		return nil, err
	}
	if p.peek().kind != tokEOF {
		return nil, &SyntaxError{Src: src, Pos: p.peek().pos, Msg: fmt.Sprintf("unexpected %q", p.peek().text)}
	}
	return &Program{src: src, root: root, vars: p.vars}, nil
}

// Evaluate parses and evaluates src in one step.
func Evaluate(src string, vars map[string]float64) (float64, error) {
	prog, err := Parse(src)
	if err != nil {
		return 0, err
	}
	return prog.Eval(vars)
}

// Vars returns the variable names referenced, in order of first use.
func (p *Program) Vars() []string {
	return append([]string(nil), p.vars...)
}

// Eval evaluates the program. Every referenced variable must be bound.
func (p *Program) Eval(vars map[string]float64) (float64, error) {
	for _, name := range p.vars {
		if _, ok := vars[name]; !ok {
			return 0, fmt.Errorf("eval %q: unbound variable %q", p.src, name)
		}
	}
	return p.root.eval(vars), nil
}

// SyntaxError reports a parse failure with its byte offset.
type SyntaxError struct {
	Src string
	Pos int
	Msg string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("syntax error at %d in %q: %s", e.Pos, e.Src, e.Msg)
}

// --- AST ---

type node interface {
	eval(vars map[string]float64) float64
}

type numNode float64

func (n numNode) eval(map[string]float64) float64 { return float64(n) }

type varNode string

func (n varNode) eval(vars map[string]float64) float64 { return vars[string(n)] }

type negNode struct{ x node }

func (n negNode) eval(vars map[string]float64) float64 { return -n.x.eval(vars) }

type binNode struct {
	op   byte
	l, r node
}

func (n binNode) eval(vars map[string]float64) float64 {
	l, r := n.l.eval(vars), n.r.eval(vars)
	switch n.op {
	case '+':
		return l + r
	case '-':
		return l - r
	case '*':
		return l * r
	case '/':
		if r == 0 {
			return 0
		}
		return l / r
	}
	return 0
}

type condNode struct {
	then   node
	l, r   node
	cmp    string
	orElse node
}

func (n condNode) eval(vars map[string]float64) float64 {
	l, r := n.l.eval(vars), n.r.eval(vars)
	var ok bool
	switch n.cmp {
	case "<":
		ok = l < r
	case ">":
		ok = l > r
	case "<=":
		ok = l <= r
	case ">=":
		ok = l >= r
	}
	if ok {
		return n.then.eval(vars)
	}
	return n.orElse.eval(vars)
}

// --- tokens ---

type tokKind int

const (
	tokEOF tokKind = iota
	tokNum
	tokIdent
	tokOp
)

type token struct {
	kind tokKind
	text string
	pos  int
	num  float64
}

func tokenize(src string) ([]token, error) {
	var toks []token
	i := 0
	for i < len(src) {
		c := rune(src[i])
		switch {
		case unicode.IsSpace(c):
			i++
		case c >= '0' && c <= '9' || c == '.':
			start := i
			for i < len(src) && (src[i] >= '0' && src[i] <= '9' || src[i] == '.') {
				i++
			}
			if i < len(src) && (src[i] == 'e' || src[i] == 'E') {
				j := i + 1
				if j < len(src) && (src[j] == '+' || src[j] == '-') {
					j++
				}
				if j < len(src) && src[j] >= '0' && src[j] <= '9' {
					i = j
					for i < len(src) && src[i] >= '0' && src[i] <= '9' {
						i++
					}
				}
			}
			f, err := strconv.ParseFloat(src[start:i], 64)
			if err != nil {
				return nil, &SyntaxError{Src: src, Pos: start, Msg: "bad number"}
			}
			toks = append(toks, token{kind: tokNum, text: src[start:i], pos: start, num: f})
		case c == '_' || unicode.IsLetter(c):
			start := i
			for i < len(src) && (src[i] == '_' || unicode.IsLetter(rune(src[i])) || src[i] >= '0' && src[i] <= '9') {
				i++
			}
			toks = append(toks, token{kind: tokIdent, text: src[start:i], pos: start})
		case strings.ContainsRune("+-*/()", c):
			toks = append(toks, token{kind: tokOp, text: string(c), pos: i})
			i++
		case c == '<' || c == '>':
			text := string(c)
			if i+1 < len(src) && src[i+1] == '=' {
				text += "="
			}
			toks = append(toks, token{kind: tokOp, text: text, pos: i})
			i += len(text)
		default:
			return nil, &SyntaxError{Src: src, Pos: i, Msg: fmt.Sprintf("unexpected character %q", c)}
		}
	}
	toks = append(toks, token{kind: tokEOF, pos: len(src)})
	return toks, nil
}

// --- parser ---

type parser struct {
	src  string
	toks []token
	i    int
	vars []string
	seen map[string]bool
}

func (p *parser) peek() token { return p.toks[p.i] }

func (p *parser) next() token {
	t := p.toks[p.i]
	if t.kind != tokEOF {
		p.i++
	}
	return t
}

func (p *parser) isOp(text string) bool {
	t := p.peek()
	return t.kind == tokOp && t.text == text
}

func (p *parser) isKeyword(word string) bool {
	t := p.peek()
	return t.kind == tokIdent && t.text == word
}

func (p *parser) fail(msg string) error {
	return &SyntaxError{Src: p.src, Pos: p.peek().pos, Msg: msg}
}

func (p *parser) expr() (node, error) {
	then, err := p.sum()
	if err != nil {
		return nil, err
	}
	if !p.isKeyword("if") {
		return then, nil
	}
	p.next()
	l, err := p.sum()
	if err != nil {
		return nil, err
	}
	t := p.next()
	if t.kind != tokOp || !(t.text == "<" || t.text == ">" || t.text == "<=" || t.text == ">=") {
		return nil, p.fail("expected comparison")
	}
	r, err := p.sum()
	if err != nil {
		return nil, err
	}
	if !p.isKeyword("else") {
		return nil, p.fail("expected else")
	}
	p.next()
	orElse, err := p.expr()
	if err != nil {
		return nil, err
	}
	return condNode{then: then, l: l, r: r, cmp: t.text, orElse: orElse}, nil
}

func (p *parser) sum() (node, error) {
	left, err := p.term()
	if err != nil {
		return nil, err
	}
	for p.isOp("+") || p.isOp("-") {
		op := p.next().text[0]
		right, err := p.term()
		if err != nil {
			return nil, err
		}
		left = binNode{op: op, l: left, r: right}
	}
	return left, nil
}

func (p *parser) term() (node, error) {
	left, err := p.unary()
	if err != nil {
		return nil, err
	}
	for p.isOp("*") || p.isOp("/") {
		op := p.next().text[0]
		right, err := p.unary()
		if err != nil {
			return nil, err
		}
		left = binNode{op: op, l: left, r: right}
	}
	return left, nil
}

func (p *parser) unary() (node, error) {
	switch {
	case p.isOp("-"):
		p.next()
		x, err := p.unary()
		if err != nil {
			return nil, err
		}
		return negNode{x: x}, nil
	case p.isOp("+"):
		p.next()
		return p.unary()
	case p.isOp("("):
		p.next()
		x, err := p.expr()
		if err != nil {
			return nil, err
		}
		if !p.isOp(")") {
			return nil, p.fail("expected )")
		}
		p.next()
		return x, nil
	}
	t := p.next()
	switch t.kind {
	case tokNum:
		return numNode(t.num), nil
	case tokIdent:
		if t.text == "if" || t.text == "else" {
			return nil, p.fail("unexpected keyword " + t.text)
		}
		if !p.seen[t.text] {
			p.seen[t.text] = true
			p.vars = append(p.vars, t.text)
		}
		return varNode(t.text), nil
	}
	return nil, p.fail("unexpected end of expression")
}
