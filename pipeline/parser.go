package pipeline

import (
	"fmt"
	"unicode"
	"unicode/utf8"

	"github.com/kbukum/mlkit/ensemble"
	"github.com/kbukum/mlkit/errors"
	"github.com/kbukum/mlkit/logger"
	"github.com/kbukum/mlkit/stage"
)

// Limits applied to parsed expressions unless overridden.
const (
	DefaultMaxDepth  = 64
	DefaultMaxStages = 1024
)

// Option configures Parse.
type Option func(*parseOptions)

type parseOptions struct {
	selectCfg   SelectConfig
	aliases     map[string]string
	maxDepth    int
	maxStages   int
	maxParallel int
	log         *logger.Logger
}

// WithSelect sets the configuration used by "*" selections and by the
// vote, stack and best calls.
func WithSelect(cfg SelectConfig) Option {
	return func(o *parseOptions) { o.selectCfg = cfg }
}

// WithAliases makes each name stand for its sub-expression.
func WithAliases(aliases map[string]string) Option {
	return func(o *parseOptions) { o.aliases = aliases }
}

// WithMaxDepth bounds how deeply composites may nest.
func WithMaxDepth(n int) Option {
	return func(o *parseOptions) { o.maxDepth = n }
}

// WithMaxStages bounds the total number of stages built.
func WithMaxStages(n int) Option {
	return func(o *parseOptions) { o.maxStages = n }
}

// WithMaxParallel lets union children run concurrently.
func WithMaxParallel(n int) Option {
	return func(o *parseOptions) { o.maxParallel = n }
}

// WithLogger attaches log to every ensemble the expression builds.
func WithLogger(log *logger.Logger) Option {
	return func(o *parseOptions) { o.log = log }
}

// Parse builds the stage tree described by expr. Identifiers are aliases
// or registry names; every mention builds a fresh stage. A nil registry
// means DefaultRegistry.
//
// Syntax errors fail with INVALID_INPUT carrying the byte offset. Unknown
// identifiers fail with NOT_FOUND. Exceeding the depth or stage limits, or
// a circular alias, fails with INVALID_CONFIGURATION.
func Parse(expr string, reg *Registry, opts ...Option) (stage.Stage, error) {
	o := parseOptions{maxDepth: DefaultMaxDepth, maxStages: DefaultMaxStages}
	for _, opt := range opts {
		opt(&o)
	}
	if reg == nil {
		reg = DefaultRegistry()
	}
	if o.log != nil {
		o.selectCfg.Logger = o.log
	}
	b := &builder{reg: reg, opts: o, resolving: make(map[string]bool)}
	root, err := b.parse(expr)
	if err != nil {
		return nil, err
	}
	return b.build(root, 1)
}

// --- lexer ---

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokIdent
	tokThen
	tokWith
	tokOr
	tokLParen
	tokRParen
	tokComma
)

type token struct {
	kind tokenKind
	text string
	pos  int
}

func (t token) String() string {
	if t.kind == tokEOF {
		return "end of input"
	}
	return fmt.Sprintf("%q", t.text)
}

var keywords = map[string]tokenKind{"then": tokThen, "with": tokWith, "or": tokOr}

func lex(src string) ([]token, error) {
	var toks []token
	for i := 0; i < len(src); {
		c, size := utf8.DecodeRuneInString(src[i:])
		switch {
		case c == utf8.RuneError && size <= 1:
			return nil, syntaxError(i, fmt.Sprintf("invalid UTF-8 byte %#x", src[i]))
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++
		case c == '|' && i+1 < len(src) && src[i+1] == '>':
			toks = append(toks, token{tokThen, "|>", i})
			i += 2
		case c == '+':
			toks = append(toks, token{tokWith, "+", i})
			i++
		case c == '*':
			toks = append(toks, token{tokOr, "*", i})
			i++
		case c == '(':
			toks = append(toks, token{tokLParen, "(", i})
			i++
		case c == ')':
			toks = append(toks, token{tokRParen, ")", i})
			i++
		case c == ',':
			toks = append(toks, token{tokComma, ",", i})
			i++
		case isIdentStart(c):
			start := i
			for i < len(src) && isIdentPart(rune(src[i])) {
				i++
			}
			word := src[start:i]
			kind, ok := keywords[word]
			if !ok {
				kind = tokIdent
			}
			toks = append(toks, token{kind, word, start})
		default:
			return nil, syntaxError(i, fmt.Sprintf("unexpected character %q", c))
		}
	}
	return append(toks, token{tokEOF, "", len(src)}), nil
}

func isIdentStart(c rune) bool {
	return c == '_' || (c < unicode.MaxASCII && unicode.IsLetter(c))
}

func isIdentPart(c rune) bool {
	return isIdentStart(c) || c == '.' || c == '-' || (c < unicode.MaxASCII && unicode.IsDigit(c))
}

func syntaxError(pos int, msg string) *errors.AppError {
	return errors.InvalidInput("expression", fmt.Sprintf("%s at offset %d", msg, pos)).WithDetail("offset", pos)
}

// --- parser ---

// node is a parsed expression. Operator nodes hold two or more operands;
// identifiers are leaves unless call is set.
type node struct {
	kind tokenKind
	name string
	call bool
	args []*node
	pos  int
}

// precedence lists the binary operators from loosest to tightest.
var precedence = []tokenKind{tokThen, tokWith, tokOr}

type parser struct {
	toks     []token
	i        int
	depth    int
	maxDepth int
}

func (p *parser) peek() token { return p.toks[p.i] }

func (p *parser) next() token {
	t := p.toks[p.i]
	if t.kind != tokEOF {
		p.i++
	}
	return t
}

func (p *parser) expect(kind tokenKind, what string) error {
	if t := p.next(); t.kind != kind {
		return syntaxError(t.pos, fmt.Sprintf("expected %s, found %s", what, t))
	}
	return nil
}

func (p *parser) expr() (*node, error) {
	p.depth++
	defer func() { p.depth-- }()
	if p.depth > p.maxDepth {
		return nil, tooDeep(p.peek().pos, p.maxDepth)
	}
	return p.binary(0)
}

// binary parses a run of the operator at level l into one n-ary node.
func (p *parser) binary(l int) (*node, error) {
	if l == len(precedence) {
		return p.term()
	}
	first, err := p.binary(l + 1)
	if err != nil {
		return nil, err
	}
	n := &node{kind: precedence[l], pos: first.pos, args: []*node{first}}
	for p.peek().kind == precedence[l] {
		p.next()
		rhs, err := p.binary(l + 1)
		if err != nil {
			return nil, err
		}
		n.args = append(n.args, rhs)
	}
	if len(n.args) == 1 {
		return first, nil
	}
	return n, nil
}

func (p *parser) term() (*node, error) {
	t := p.next()
	switch t.kind {
	case tokIdent:
		n := &node{kind: tokIdent, name: t.text, pos: t.pos}
		if p.peek().kind != tokLParen {
			return n, nil
		}
		p.next()
		n.call = true
		for {
			arg, err := p.expr()
			if err != nil {
				return nil, err
			}
			n.args = append(n.args, arg)
			if p.peek().kind != tokComma {
				break
			}
			p.next()
		}
		return n, p.expect(tokRParen, `")"`)
	case tokLParen:
		n, err := p.expr()
		if err != nil {
			return nil, err
		}
		return n, p.expect(tokRParen, `")"`)
	default:
		return nil, syntaxError(t.pos, fmt.Sprintf("expected a stage, found %s", t))
	}
}

// --- builder ---

type builder struct {
	reg       *Registry
	opts      parseOptions
	stages    int
	resolving map[string]bool
}

func (b *builder) parse(src string) (*node, error) {
	toks, err := lex(src)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks, maxDepth: b.opts.maxDepth}
	root, err := p.expr()
	if err != nil {
		return nil, err
	}
	if t := p.peek(); t.kind != tokEOF {
		return nil, syntaxError(t.pos, fmt.Sprintf("unexpected %s", t))
	}
	return root, nil
}

func (b *builder) build(n *node, depth int) (stage.Stage, error) {
	if depth > b.opts.maxDepth {
		return nil, tooDeep(n.pos, b.opts.maxDepth)
	}
	if n.kind == tokIdent && !n.call {
		if src, ok := b.opts.aliases[n.name]; ok {
			return b.alias(n.name, src, depth)
		}
	}

	b.stages++
	if b.stages > b.opts.maxStages {
		return nil, errors.InvalidConfiguration("expression",
			fmt.Sprintf("expression builds more than %d stages", b.opts.maxStages)).WithDetail("offset", n.pos)
	}

	if n.kind == tokIdent && !n.call {
		s, err := b.reg.Build(n.name, nil)
		if err != nil {
			if app, ok := errors.AsAppError(err); ok {
				app.WithDetail("offset", n.pos)
			}
			return nil, err
		}
		return s, nil
	}

	kids := make([]stage.Stage, len(n.args))
	for i, arg := range n.args {
		s, err := b.build(arg, depth+1)
		if err != nil {
			return nil, err
		}
		kids[i] = s
	}

	switch n.kind {
	case tokThen:
		return Chain(kids...), nil
	case tokWith:
		return Union(kids...).WithMaxParallel(b.opts.maxParallel), nil
	case tokOr:
		return Select(b.opts.selectCfg, kids...), nil
	}
	return b.call(n, kids)
}

// call builds vote(...), stack(...) or best(...).
func (b *builder) call(n *node, members []stage.Stage) (stage.Stage, error) {
	cfg := b.opts.selectCfg.Config
	cfg.Name = ""
	if cfg.Meta != nil {
		cfg.Meta = cfg.Meta.Clone()
	}
	switch n.name {
	case ModeVote:
		return ensemble.NewVote(cfg, members...), nil
	case ModeStack:
		return ensemble.NewStack(cfg, members...), nil
	case ModeBest:
		return ensemble.NewBest(cfg, members...), nil
	}
	return nil, syntaxError(n.pos, fmt.Sprintf("unknown combinator %q", n.name))
}

func (b *builder) alias(name, src string, depth int) (stage.Stage, error) {
	if b.resolving[name] {
		return nil, errors.InvalidConfiguration("expression", fmt.Sprintf("circular alias %q", name)).
			WithDetail("alias", name)
	}
	b.resolving[name] = true
	defer delete(b.resolving, name)

	root, err := b.parse(src)
	if err != nil {
		if app, ok := errors.AsAppError(err); ok {
			app.WithDetail("alias", name)
		}
		return nil, err
	}
	return b.build(root, depth)
}

func tooDeep(pos, limit int) *errors.AppError {
	return errors.InvalidConfiguration("expression", fmt.Sprintf("expression nests deeper than %d", limit)).
		WithDetail("offset", pos)
}
