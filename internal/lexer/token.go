package lexer

import (
	"fmt"

	"github.com/roach88/pipeql/internal/decimal"
	"github.com/roach88/pipeql/internal/ir"
)

// Kind is the lexical class of a Token.
type Kind int

const (
	EOF Kind = iota
	Comma
	FunctionKind
	LParen
	RParen
	KeywordKind
	Binary
	Unary
	Word
	Boolean
	String
	Number
	Star
)

var kindNames = map[Kind]string{
	EOF:          "EOF",
	Comma:        "comma",
	FunctionKind: "function",
	LParen:       "(",
	RParen:       ")",
	KeywordKind:  "keyword",
	Binary:       "operator",
	Unary:        "NOT",
	Word:         "word",
	Boolean:      "boolean",
	String:       "string",
	Number:       "number",
	Star:         "*",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Keyword identifies a reserved word. Multi-word keywords such as GROUP BY
// are a single Keyword.
type Keyword int

const (
	And Keyword = iota
	As
	Asc
	Desc
	Distinct
	From
	GroupBy
	Limit
	Null
	Offset
	Or
	OrderBy
	Select
	Where
)

var keywordSpellings = []string{
	And:      "AND",
	As:       "AS",
	Asc:      "ASC",
	Desc:     "DESC",
	Distinct: "DISTINCT",
	From:     "FROM",
	GroupBy:  "GROUP BY",
	Limit:    "LIMIT",
	Null:     "NULL",
	Offset:   "OFFSET",
	Or:       "OR",
	OrderBy:  "ORDER BY",
	Select:   "SELECT",
	Where:    "WHERE",
}

// String returns the keyword as written in a query ("GROUP BY").
func (k Keyword) String() string {
	if k < 0 || int(k) >= len(keywordSpellings) {
		return fmt.Sprintf("Keyword(%d)", int(k))
	}
	return keywordSpellings[k]
}

func keywordFromSpelling(s string) (Keyword, bool) {
	for i, spelling := range keywordSpellings {
		if spelling == s {
			return Keyword(i), true
		}
	}
	return 0, false
}

// Function identifies an aggregate function name.
type Function int

const (
	Avg Function = iota
	Count
	Max
	Min
	Sum
)

var functionSpellings = []string{
	Avg:   "AVG",
	Count: "COUNT",
	Max:   "MAX",
	Min:   "MIN",
	Sum:   "SUM",
}

func (f Function) String() string {
	if f < 0 || int(f) >= len(functionSpellings) {
		return fmt.Sprintf("Function(%d)", int(f))
	}
	return functionSpellings[f]
}

func functionFromSpelling(s string) (Function, bool) {
	for i, spelling := range functionSpellings {
		if spelling == s {
			return Function(i), true
		}
	}
	return 0, false
}

// Token is one lexical unit. Kind selects which payload field is
// meaningful: Keyword for KeywordKind, Func for FunctionKind, Op for Binary,
// Bool for Boolean, Number for Number. Text holds the source lexeme, or the
// unquoted content for a String.
type Token struct {
	Kind    Kind
	Text    string
	Keyword Keyword
	Func    Function
	Op      ir.BinaryOp
	Bool    bool
	Number  decimal.Decimal
}

// Is reports whether t is the keyword k.
func (t Token) Is(k Keyword) bool {
	return t.Kind == KeywordKind && t.Keyword == k
}

// String renders the token for diagnostics.
func (t Token) String() string {
	switch t.Kind {
	case EOF:
		return "end of input"
	case KeywordKind:
		return fmt.Sprintf("keyword %s", t.Keyword)
	case FunctionKind:
		return fmt.Sprintf("function %s", t.Func)
	case Binary:
		return fmt.Sprintf("operator %s", t.Op.Symbol())
	case String:
		return fmt.Sprintf("string %q", t.Text)
	case Word, Boolean, Number:
		return fmt.Sprintf("%s %s", t.Kind, t.Text)
	default:
		return fmt.Sprintf("%q", t.Text)
	}
}

// Positioned is a token with the byte offset of its first character.
type Positioned struct {
	Offset int
	Token  Token
}
