package lexer

import (
	"errors"
	"fmt"
	"iter"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/roach88/pipeql/internal/decimal"
	"github.com/roach88/pipeql/internal/ir"
)

// LexicalError reports input that no recognizer accepts.
type LexicalError struct {
	Offset int
	Char   rune
	Text   string // offending lexeme for invalid numbers
	Reason string
}

const (
	ReasonInvalidToken  = "invalid token"
	ReasonInvalidNumber = "invalid number"
)

func (e *LexicalError) Error() string {
	if e.Text != "" {
		return fmt.Sprintf("%s %q at offset %d", e.Reason, e.Text, e.Offset)
	}
	return fmt.Sprintf("%s %q at offset %d", e.Reason, e.Char, e.Offset)
}

// IsLexical returns true if err is or wraps a LexicalError.
func IsLexical(err error) bool {
	var le *LexicalError
	return errors.As(err, &le)
}

// recognizer tries to match a token at the start of rest, which has no
// leading whitespace. n is the number of bytes consumed.
type recognizer func(rest string) (tok Token, n int, ok bool, err error)

var (
	keywordRe  = regexp.MustCompile(`\A(?:GROUP\s+BY|ORDER\s+BY|DISTINCT|SELECT|OFFSET|LIMIT|WHERE|FROM|DESC|NULL|ASC|AND|AS|OR)`)
	functionRe = regexp.MustCompile(`\A(?:COUNT|AVG|MAX|MIN|SUM)`)
	unaryRe    = regexp.MustCompile(`\ANOT`)
	binaryRe   = regexp.MustCompile(`\A(?:!=|<=|>=|=|<|>)`)
	booleanRe  = regexp.MustCompile(`\A(?:true|false)`)
	numberRe   = regexp.MustCompile(`\A-?[0-9]*\.?[0-9]+`)
	stringRe   = regexp.MustCompile(`\A"([a-zA-Z0-9_.]+)"`)
	wordRe     = regexp.MustCompile(`\A[a-zA-Z0-9_.]+`)
)

var binarySymbols = map[string]ir.BinaryOp{
	"=":  ir.Eq,
	"!=": ir.Neq,
	"<":  ir.Lt,
	">":  ir.Gt,
	"<=": ir.Lte,
	">=": ir.Gte,
}

// recognizers in priority order. Overlapping classes are resolved by
// position: keywords before functions before bare words, and so on.
var recognizers = []recognizer{
	matchKeyword,
	matchFunction,
	matchUnary,
	matchBinary,
	matchBoolean,
	matchNumber,
	matchString,
	matchWord,
	matchByte('(', LParen),
	matchByte(')', RParen),
	matchByte(',', Comma),
	matchByte('*', Star),
}

// isWordByte reports whether b may continue a bare word.
func isWordByte(b byte) bool {
	return b == '_' || b == '.' ||
		('a' <= b && b <= 'z') || ('A' <= b && b <= 'Z') || ('0' <= b && b <= '9')
}

// atBoundary reports whether a match of length n ends a word in rest.
func atBoundary(rest string, n int) bool {
	return n >= len(rest) || !isWordByte(rest[n])
}

func matchWordLike(re *regexp.Regexp, rest string) (string, bool) {
	m := re.FindString(rest)
	if m == "" || !atBoundary(rest, len(m)) {
		return "", false
	}
	return m, true
}

func matchKeyword(rest string) (Token, int, bool, error) {
	m, ok := matchWordLike(keywordRe, rest)
	if !ok {
		return Token{}, 0, false, nil
	}
	kw, ok := keywordFromSpelling(strings.Join(strings.Fields(m), " "))
	if !ok {
		return Token{}, 0, false, nil
	}
	return Token{Kind: KeywordKind, Text: m, Keyword: kw}, len(m), true, nil
}

func matchFunction(rest string) (Token, int, bool, error) {
	m, ok := matchWordLike(functionRe, rest)
	if !ok {
		return Token{}, 0, false, nil
	}
	fn, _ := functionFromSpelling(m)
	return Token{Kind: FunctionKind, Text: m, Func: fn}, len(m), true, nil
}

func matchUnary(rest string) (Token, int, bool, error) {
	m, ok := matchWordLike(unaryRe, rest)
	if !ok {
		return Token{}, 0, false, nil
	}
	return Token{Kind: Unary, Text: m}, len(m), true, nil
}

func matchBinary(rest string) (Token, int, bool, error) {
	m := binaryRe.FindString(rest)
	if m == "" {
		return Token{}, 0, false, nil
	}
	return Token{Kind: Binary, Text: m, Op: binarySymbols[m]}, len(m), true, nil
}

func matchBoolean(rest string) (Token, int, bool, error) {
	m, ok := matchWordLike(booleanRe, rest)
	if !ok {
		return Token{}, 0, false, nil
	}
	return Token{Kind: Boolean, Text: m, Bool: m == "true"}, len(m), true, nil
}

func matchNumber(rest string) (Token, int, bool, error) {
	m, ok := matchWordLike(numberRe, rest)
	if !ok {
		return Token{}, 0, false, nil
	}
	d, err := decimal.Parse(m)
	if err != nil {
		return Token{}, 0, false, err
	}
	return Token{Kind: Number, Text: m, Number: d}, len(m), true, nil
}

func matchString(rest string) (Token, int, bool, error) {
	sub := stringRe.FindStringSubmatch(rest)
	if sub == nil {
		return Token{}, 0, false, nil
	}
	return Token{Kind: String, Text: sub[1]}, len(sub[0]), true, nil
}

func matchWord(rest string) (Token, int, bool, error) {
	m := wordRe.FindString(rest)
	if m == "" {
		return Token{}, 0, false, nil
	}
	return Token{Kind: Word, Text: m}, len(m), true, nil
}

func matchByte(b byte, kind Kind) recognizer {
	return func(rest string) (Token, int, bool, error) {
		if rest == "" || rest[0] != b {
			return Token{}, 0, false, nil
		}
		return Token{Kind: kind, Text: string(b)}, 1, true, nil
	}
}

// skipSpace returns the offset of the first non-whitespace rune at or
// after offset.
func skipSpace(src string, offset int) int {
	for offset < len(src) {
		r, size := utf8.DecodeRuneInString(src[offset:])
		if !unicode.IsSpace(r) {
			break
		}
		offset += size
	}
	return offset
}

// Next recognizes the token starting at offset. It returns the token with
// the offset of its first character and the offset just past the token's
// trailing whitespace, which is where the following call should start.
// At the end of input it returns EOF at len(src).
func Next(src string, offset int) (Positioned, int, error) {
	start := skipSpace(src, offset)
	rest := src[start:]

	for _, r := range recognizers {
		tok, n, ok, err := r(rest)
		if err != nil {
			return Positioned{}, start, &LexicalError{
				Offset: start,
				Char:   firstRune(rest),
				Text:   numberRe.FindString(rest),
				Reason: ReasonInvalidNumber,
			}
		}
		if ok {
			return Positioned{Offset: start, Token: tok}, skipSpace(src, start+n), nil
		}
	}

	if rest == "" {
		return Positioned{Offset: len(src), Token: Token{Kind: EOF}}, len(src), nil
	}
	return Positioned{}, start, &LexicalError{
		Offset: start,
		Char:   firstRune(rest),
		Reason: ReasonInvalidToken,
	}
}

func firstRune(s string) rune {
	r, _ := utf8.DecodeRuneInString(s)
	return r
}

// Tokens returns the token sequence of src. The sequence ends with exactly
// one EOF, or with a single error after which nothing more is yielded.
// Every range over the result starts again from the beginning of src.
func Tokens(src string) iter.Seq2[Positioned, error] {
	return func(yield func(Positioned, error) bool) {
		offset := 0
		for {
			pos, next, err := Next(src, offset)
			if err != nil {
				yield(Positioned{}, err)
				return
			}
			if !yield(pos, nil) || pos.Token.Kind == EOF {
				return
			}
			offset = next
		}
	}
}

// Tokenize returns every token of src, ending with EOF. On a lexical error
// no tokens are returned.
func Tokenize(src string) ([]Positioned, error) {
	var out []Positioned
	for pos, err := range Tokens(src) {
		if err != nil {
			return nil, err
		}
		out = append(out, pos)
	}
	return out, nil
}
