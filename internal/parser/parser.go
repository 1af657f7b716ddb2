// Package parser turns a token stream into a Pipeline.
//
// Grammar (keywords are case-sensitive):
//
//	statement   = SELECT [DISTINCT] projections [FROM word]
//	              [WHERE predicate] [GROUP BY terminal]
//	              [ORDER BY terminal [ASC | DESC]]
//	              [LIMIT integer] [OFFSET integer] EOF
//	projections = "*" | item { "," item }
//	item        = terminal [AS word] | FUNC "(" (terminal | "*") ")" AS word
//	predicate   = factor { (AND | OR) factor }
//	factor      = NOT factor | "(" predicate ")" | terminal BINARY terminal
//	terminal    = word | string | number | boolean
//
// AND and OR share one precedence level and associate to the left.
package parser

import (
	"github.com/roach88/pipeql/internal/ir"
	"github.com/roach88/pipeql/internal/lexer"
)

// Statement is a parsed query: the FROM source and the compiled pipeline.
type Statement struct {
	// Source is the FROM collection, empty when the clause is absent.
	Source string

	// Distinct is set by SELECT DISTINCT.
	Distinct bool

	Pipeline ir.Pipeline
}

// Parse compiles a query into a Pipeline.
func Parse(src string) (ir.Pipeline, error) {
	stmt, err := ParseStatement(src)
	if err != nil {
		return ir.Pipeline{}, err
	}
	return stmt.Pipeline, nil
}

// ParseStatement compiles a query, keeping its FROM source.
// Lexical failures are returned as *lexer.LexicalError, structural ones as
// *GrammarError.
func ParseStatement(src string) (*Statement, error) {
	toks, err := lexer.Tokenize(src)
	if err != nil {
		return nil, err
	}
	return ParseTokens(toks)
}

// ParseTokens parses an already tokenized query. The stream must end with
// EOF; a missing EOF is treated as end of input after the last token.
func ParseTokens(toks []lexer.Positioned) (*Statement, error) {
	p := &parser{toks: toks}
	return p.statement()
}

type parser struct {
	toks []lexer.Positioned
	pos  int
}

// peek returns the current token, or a synthetic EOF past the end.
func (p *parser) peek() lexer.Positioned {
	if p.pos < len(p.toks) {
		return p.toks[p.pos]
	}
	offset := 0
	if n := len(p.toks); n > 0 {
		offset = p.toks[n-1].Offset + len(p.toks[n-1].Token.Text)
	}
	return lexer.Positioned{Offset: offset, Token: lexer.Token{Kind: lexer.EOF}}
}

func (p *parser) advance() lexer.Positioned {
	t := p.peek()
	if t.Token.Kind != lexer.EOF {
		p.pos++
	}
	return t
}

func (p *parser) atKeyword(k lexer.Keyword) bool {
	return p.peek().Token.Is(k)
}

func (p *parser) acceptKeyword(k lexer.Keyword) bool {
	if p.atKeyword(k) {
		p.advance()
		return true
	}
	return false
}

func (p *parser) at(kind lexer.Kind) bool {
	return p.peek().Token.Kind == kind
}

func (p *parser) expect(kind lexer.Kind, format string, args ...any) (lexer.Positioned, error) {
	t := p.peek()
	if t.Token.Kind != kind {
		return t, errorAt(t, format, args...)
	}
	return p.advance(), nil
}

// item is one parsed projection.
type item struct {
	at   lexer.Positioned
	name string

	// term is set for plain projections.
	term ir.Terminal

	// aggregate projections
	isAgg bool
	fn    lexer.Function
	arg   ir.Terminal // nil for FUNC(*)
}

func (p *parser) statement() (*Statement, error) {
	if first := p.peek(); !first.Token.Is(lexer.Select) {
		return nil, errorAt(first, "query must start with SELECT")
	}
	p.advance()

	stmt := &Statement{}
	stmt.Distinct = p.acceptKeyword(lexer.Distinct)

	star, items, err := p.projections()
	if err != nil {
		return nil, err
	}

	if p.acceptKeyword(lexer.From) {
		src, err := p.expect(lexer.Word, "expected a collection name after FROM")
		if err != nil {
			return nil, err
		}
		stmt.Source = src.Token.Text
	}

	var stages []ir.Stage

	if p.acceptKeyword(lexer.Where) {
		pred, err := p.predicate()
		if err != nil {
			return nil, err
		}
		stages = append(stages, ir.MatchStage{Where: pred})
	}

	var groupKey ir.Terminal
	var groupAt lexer.Positioned
	if p.atKeyword(lexer.GroupBy) {
		groupAt = p.advance()
		groupKey, err = p.terminal("expected a group key after GROUP BY")
		if err != nil {
			return nil, err
		}
	}

	projection, err := buildProjection(star, items, groupKey, groupAt)
	if err != nil {
		return nil, err
	}
	if projection != nil {
		stages = append(stages, projection)
	}

	if stmt.Distinct {
		stages = append(stages, ir.DistinctStage{})
	}

	if p.acceptKeyword(lexer.OrderBy) {
		keyAt := p.peek()
		key, err := p.terminal("expected a sort key after ORDER BY")
		if err != nil {
			return nil, err
		}
		if reduce, ok := projection.(ir.ReduceStage); ok {
			if key, err = groupedSortKey(key, keyAt, reduce); err != nil {
				return nil, err
			}
		}
		sort := ir.SortStage{Key: key}
		if p.acceptKeyword(lexer.Desc) {
			sort.Desc = true
		} else {
			p.acceptKeyword(lexer.Asc)
		}
		stages = append(stages, sort)
	}

	var limit *ir.LimitStage
	if p.acceptKeyword(lexer.Limit) {
		n, err := p.count("LIMIT")
		if err != nil {
			return nil, err
		}
		limit = &ir.LimitStage{Count: n}
	}
	if p.acceptKeyword(lexer.Offset) {
		n, err := p.count("OFFSET")
		if err != nil {
			return nil, err
		}
		stages = append(stages, ir.SkipStage{Count: n})
	}
	if limit != nil {
		stages = append(stages, *limit)
	}

	if t := p.peek(); t.Token.Kind != lexer.EOF {
		if t.Token.Kind == lexer.KeywordKind && isClauseKeyword(t.Token.Keyword) {
			return nil, errorAt(t, "%s clause is out of order or repeated", t.Token.Keyword)
		}
		return nil, errorAt(t, "unexpected token after end of statement")
	}

	stmt.Pipeline = ir.NewPipeline(stages...)
	return stmt, nil
}

func isClauseKeyword(k lexer.Keyword) bool {
	switch k {
	case lexer.Select, lexer.Distinct, lexer.From, lexer.Where, lexer.GroupBy,
		lexer.OrderBy, lexer.Limit, lexer.Offset:
		return true
	}
	return false
}

// projections parses "*" or a comma-separated list of items.
func (p *parser) projections() (bool, []item, error) {
	if p.at(lexer.Star) {
		p.advance()
		if p.at(lexer.Comma) {
			return false, nil, errorAt(p.peek(), "* cannot be combined with other projections")
		}
		return true, nil, nil
	}

	if t := p.peek(); t.Token.Kind == lexer.EOF ||
		(t.Token.Kind == lexer.KeywordKind && isClauseKeyword(t.Token.Keyword)) {
		return false, nil, errorAt(t, "empty projection list")
	}

	var items []item
	seen := make(map[string]bool)
	for {
		it, err := p.item()
		if err != nil {
			return false, nil, err
		}
		if seen[it.name] {
			return false, nil, errorAt(it.at, "duplicate output field %q", it.name)
		}
		seen[it.name] = true
		items = append(items, it)
		if !p.at(lexer.Comma) {
			break
		}
		p.advance()
	}
	return false, items, nil
}

func (p *parser) item() (item, error) {
	start := p.peek()
	switch start.Token.Kind {
	case lexer.KeywordKind:
		if start.Token.Keyword != lexer.Null {
			return item{}, errorAt(start, "expected a projection")
		}
	case lexer.Star:
		return item{}, errorAt(start, "* cannot be combined with other projections")
	}

	if start.Token.Kind == lexer.FunctionKind {
		return p.aggregate()
	}

	term, err := p.terminal("expected a projection")
	if err != nil {
		return item{}, err
	}
	it := item{at: start, term: term}
	if p.acceptKeyword(lexer.As) {
		name, err := p.expect(lexer.Word, "expected an output name after AS")
		if err != nil {
			return item{}, err
		}
		it.name = name.Token.Text
		return it, nil
	}
	field, ok := term.(ir.Field)
	if !ok {
		return item{}, errorAt(start, "constant projection requires AS")
	}
	it.name = field.Path
	return it, nil
}

// aggregate parses FUNC "(" (terminal | "*") ")" AS name.
func (p *parser) aggregate() (item, error) {
	fnTok := p.advance()
	fn := fnTok.Token.Func
	if _, err := p.expect(lexer.LParen, "expected ( after function %s", fn); err != nil {
		return item{}, err
	}

	it := item{at: fnTok, isAgg: true, fn: fn}
	if p.at(lexer.Star) {
		star := p.advance()
		if fn != lexer.Count {
			return item{}, errorAt(star, "* is only valid in COUNT(*)")
		}
	} else {
		arg, err := p.terminal("expected an argument for %s", fn)
		if err != nil {
			return item{}, err
		}
		it.arg = arg
	}

	if _, err := p.expect(lexer.RParen, "expected ) to close %s(", fn); err != nil {
		return item{}, err
	}
	if !p.acceptKeyword(lexer.As) {
		return item{}, errorAt(p.peek(), "aggregate %s requires AS", fn)
	}
	name, err := p.expect(lexer.Word, "expected an output name after AS")
	if err != nil {
		return item{}, err
	}
	it.name = name.Token.Text
	return it, nil
}

// terminal parses a field reference or constant.
func (p *parser) terminal(format string, args ...any) (ir.Terminal, error) {
	t := p.peek()
	switch t.Token.Kind {
	case lexer.Word:
		p.advance()
		return ir.Field{Path: t.Token.Text}, nil
	case lexer.String:
		p.advance()
		return ir.StringConst{Value: t.Token.Text}, nil
	case lexer.Number:
		p.advance()
		return ir.NumberConst{Value: t.Token.Number}, nil
	case lexer.Boolean:
		p.advance()
		return ir.BoolConst{Value: t.Token.Bool}, nil
	case lexer.KeywordKind:
		if t.Token.Keyword == lexer.Null {
			return nil, errorAt(t, "NULL is not supported")
		}
	}
	return nil, errorAt(t, format, args...)
}

// predicate parses factors joined by AND/OR, left-associatively.
func (p *parser) predicate() (ir.Predicate, error) {
	left, err := p.factor()
	if err != nil {
		return nil, err
	}
	for {
		switch {
		case p.acceptKeyword(lexer.And):
			right, err := p.factor()
			if err != nil {
				return nil, err
			}
			left = ir.And{Left: left, Right: right}
		case p.acceptKeyword(lexer.Or):
			right, err := p.factor()
			if err != nil {
				return nil, err
			}
			left = ir.Or{Left: left, Right: right}
		default:
			return left, nil
		}
	}
}

func (p *parser) factor() (ir.Predicate, error) {
	if p.at(lexer.Unary) {
		p.advance()
		inner, err := p.factor()
		if err != nil {
			return nil, err
		}
		return ir.Not{Operand: inner}, nil
	}

	if p.at(lexer.LParen) {
		open := p.advance()
		inner, err := p.predicate()
		if err != nil {
			return nil, err
		}
		if !p.at(lexer.RParen) {
			return nil, errorAt(p.peek(), "expected ) to close ( at offset %d", open.Offset)
		}
		p.advance()
		return inner, nil
	}

	left, err := p.terminal("expected a condition")
	if err != nil {
		return nil, err
	}
	op, err := p.expect(lexer.Binary, "expected a comparison operator")
	if err != nil {
		return nil, err
	}
	right, err := p.terminal("expected a value after %s", op.Token.Op.Symbol())
	if err != nil {
		return nil, err
	}
	return ir.Compare{Op: op.Token.Op, Left: left, Right: right}, nil
}

// count parses the non-negative integer argument of LIMIT or OFFSET.
func (p *parser) count(clause string) (int64, error) {
	t, err := p.expect(lexer.Number, "%s requires a non-negative integer", clause)
	if err != nil {
		return 0, err
	}
	n := t.Token.Number
	if n.Sign() < 0 || !n.IsInteger() {
		return 0, errorAt(t, "%s requires a non-negative integer", clause)
	}
	v, err := n.Int64()
	if err != nil {
		return 0, errorAt(t, "%s value out of range", clause)
	}
	return v, nil
}

// buildProjection turns the projection list into a MapStage or, with
// GROUP BY, a ReduceStage. SELECT * without GROUP BY needs no stage.
func buildProjection(star bool, items []item, key ir.Terminal, keyAt lexer.Positioned) (ir.Stage, error) {
	if key != nil {
		if star {
			return nil, errorAt(keyAt, "SELECT * cannot be combined with GROUP BY")
		}
		fields := make([]ir.ReduceField, 0, len(items))
		for _, it := range items {
			if !it.isAgg {
				if !ir.TerminalEqual(it.term, key) {
					return nil, errorAt(it.at, "projection %q must be the GROUP BY key or an aggregate", it.name)
				}
				if f, ok := key.(ir.Field); !ok || f.Path != it.name {
					return nil, errorAt(it.at, "the GROUP BY key cannot be renamed")
				}
				continue
			}
			if it.name == ir.GroupKeyField {
				return nil, errorAt(it.at, "%q is reserved for the GROUP BY key", it.name)
			}
			if f, ok := key.(ir.Field); ok && f.Path == it.name {
				return nil, errorAt(it.at, "aggregate %q has the same name as the GROUP BY key", it.name)
			}
			fields = append(fields, ir.ReduceField{Name: it.name, Op: reduceOf(it.fn, it.arg)})
		}
		stage, err := ir.NewReduceStage(key, fields...)
		if err != nil {
			return nil, errorAt(keyAt, "%v", err)
		}
		return stage, nil
	}

	if star {
		return nil, nil
	}

	fields := make([]ir.MapField, 0, len(items))
	for _, it := range items {
		if !it.isAgg {
			fields = append(fields, ir.MapField{Name: it.name, Entry: ir.Project{Value: it.term}})
			continue
		}
		if it.arg == nil {
			return nil, errorAt(it.at, "COUNT(*) requires GROUP BY")
		}
		fields = append(fields, ir.MapField{
			Name:  it.name,
			Entry: ir.Inject{Source: it.arg, Op: reduceOf(it.fn, it.arg)},
		})
	}
	stage, err := ir.NewMapStage(fields...)
	if err != nil {
		return nil, errorAt(items[0].at, "%v", err)
	}
	return stage, nil
}

// groupedSortKey maps an ORDER BY key onto the fields a ReduceStage emits.
// The group key is emitted as ir.GroupKeyField; aggregates keep their names.
func groupedSortKey(key ir.Terminal, at lexer.Positioned, reduce ir.ReduceStage) (ir.Terminal, error) {
	if ir.TerminalEqual(key, reduce.Key) {
		return ir.Field{Path: ir.GroupKeyField}, nil
	}
	if f, ok := key.(ir.Field); ok {
		if f.Path == ir.GroupKeyField {
			return key, nil
		}
		for _, out := range reduce.Fields {
			if out.Name == f.Path {
				return key, nil
			}
		}
	}
	return nil, errorAt(at, "ORDER BY after GROUP BY must name the group key or an aggregate")
}

// reduceOf maps an aggregate function name onto its Reduce operator.
func reduceOf(fn lexer.Function, arg ir.Terminal) ir.Reduce {
	switch fn {
	case lexer.Avg:
		return ir.Avg{Of: arg}
	case lexer.Min:
		return ir.Min{Of: arg}
	case lexer.Max:
		return ir.Max{Of: arg}
	case lexer.Sum:
		return ir.Sum{Of: arg}
	default:
		return ir.Count{Of: arg}
	}
}
