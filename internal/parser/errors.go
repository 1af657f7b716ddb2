package parser

import (
	"errors"
	"fmt"

	"github.com/roach88/pipeql/internal/lexer"
)

// GrammarError reports the first structural violation in a token stream.
type GrammarError struct {
	// Offset is the byte offset of the offending token.
	Offset int

	// Found describes the offending token ("keyword WHERE", "end of input").
	Found string

	// Message states what was expected or why the token is not allowed.
	Message string
}

// Error implements the error interface.
func (e *GrammarError) Error() string {
	return fmt.Sprintf("%s (found %s at offset %d)", e.Message, e.Found, e.Offset)
}

// IsGrammar returns true if err is or wraps a GrammarError.
func IsGrammar(err error) bool {
	var ge *GrammarError
	return errors.As(err, &ge)
}

func errorAt(p lexer.Positioned, format string, args ...any) *GrammarError {
	return &GrammarError{
		Offset:  p.Offset,
		Found:   p.Token.String(),
		Message: fmt.Sprintf(format, args...),
	}
}
