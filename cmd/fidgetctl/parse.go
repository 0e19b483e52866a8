package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/oisee/fidget/dag"
)

// parseExpr reads a small prefix expression language into ctx, e.g.
// "(min (add x y) (square z))". Leaves are x, y, z, a bare float literal,
// or var:NAME for a runtime variable; interior nodes are
// "(op child...)" with op one of neg/abs/recip/sqrt/square (one child) or
// add/sub/mul/div/min/max (two children).
func parseExpr(ctx *dag.Context, src string) (dag.Node, error) {
	toks := tokenize(src)
	if len(toks) == 0 {
		return 0, fmt.Errorf("empty expression")
	}
	p := &parser{ctx: ctx, toks: toks}
	n, err := p.parse()
	if err != nil {
		return 0, err
	}
	if p.pos != len(p.toks) {
		return 0, fmt.Errorf("unexpected trailing input at %q", strings.Join(p.toks[p.pos:], " "))
	}
	return n, nil
}

func tokenize(src string) []string {
	src = strings.ReplaceAll(src, "(", " ( ")
	src = strings.ReplaceAll(src, ")", " ) ")
	return strings.Fields(src)
}

type parser struct {
	ctx  *dag.Context
	toks []string
	pos  int
}

var unaryOps = map[string]dag.Op{
	"neg": dag.OpNeg, "abs": dag.OpAbs, "recip": dag.OpRecip,
	"sqrt": dag.OpSqrt, "square": dag.OpSquare,
}

var binaryOps = map[string]dag.Op{
	"add": dag.OpAdd, "sub": dag.OpSub, "mul": dag.OpMul, "div": dag.OpDiv,
	"min": dag.OpMin, "max": dag.OpMax,
}

func (p *parser) parse() (dag.Node, error) {
	if p.pos >= len(p.toks) {
		return 0, fmt.Errorf("unexpected end of expression")
	}
	tok := p.toks[p.pos]

	if tok == "(" {
		p.pos++
		if p.pos >= len(p.toks) {
			return 0, fmt.Errorf("unexpected end after (")
		}
		op := p.toks[p.pos]
		p.pos++

		if kind, ok := unaryOps[op]; ok {
			a, err := p.parse()
			if err != nil {
				return 0, err
			}
			if err := p.expect(")"); err != nil {
				return 0, err
			}
			return p.ctx.Unary(kind, a)
		}
		if kind, ok := binaryOps[op]; ok {
			a, err := p.parse()
			if err != nil {
				return 0, err
			}
			b, err := p.parse()
			if err != nil {
				return 0, err
			}
			if err := p.expect(")"); err != nil {
				return 0, err
			}
			return p.ctx.Binary(kind, a, b)
		}
		return 0, fmt.Errorf("unknown operator %q", op)
	}

	p.pos++
	switch tok {
	case "x":
		return p.ctx.X(), nil
	case "y":
		return p.ctx.Y(), nil
	case "z":
		return p.ctx.Z(), nil
	}
	if name, ok := strings.CutPrefix(tok, "var:"); ok {
		return p.ctx.Var(name), nil
	}
	v, err := strconv.ParseFloat(tok, 32)
	if err != nil {
		return 0, fmt.Errorf("unexpected token %q", tok)
	}
	return p.ctx.Constant(float32(v)), nil
}

func (p *parser) expect(tok string) error {
	if p.pos >= len(p.toks) || p.toks[p.pos] != tok {
		return fmt.Errorf("expected %q", tok)
	}
	p.pos++
	return nil
}
