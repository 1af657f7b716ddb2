package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/pipeql/internal/lexer"
)

// TokenView is the printable form of one token.
type TokenView struct {
	Offset int    `json:"offset"`
	Kind   string `json:"kind"`
	Text   string `json:"text"`
}

// NewTokensCommand creates the tokens command.
func NewTokensCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "tokens <query>",
		Short: "Print the token stream of a query",
		Long: `Tokenize a query and print one token per line with its byte offset.

The stream always ends with EOF. A lexical error reports the offending
offset and prints no tokens.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTokens(rootOpts, args[0], cmd)
		},
	}
}

func runTokens(opts *RootOptions, query string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	toks, err := lexer.Tokenize(query)
	if err != nil {
		return formatter.Fail("tokenize", err)
	}

	views := make([]TokenView, len(toks))
	var b strings.Builder
	for i, pos := range toks {
		views[i] = TokenView{Offset: pos.Offset, Kind: pos.Token.Kind.String(), Text: tokenText(pos.Token)}
		line := fmt.Sprintf("%4d  %-8s  %s", views[i].Offset, views[i].Kind, views[i].Text)
		b.WriteString(strings.TrimRight(line, " "))
		b.WriteByte('\n')
	}
	return formatter.Success(views, strings.TrimSuffix(b.String(), "\n"))
}

func tokenText(t lexer.Token) string {
	switch t.Kind {
	case lexer.EOF:
		return ""
	case lexer.String:
		return strconv.Quote(t.Text)
	default:
		return t.Text
	}
}
