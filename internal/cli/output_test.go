package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/pipeql/internal/compiler"
	"github.com/roach88/pipeql/internal/ir"
	"github.com/roach88/pipeql/internal/store"
	"github.com/roach88/pipeql/internal/typecheck"
)

func TestOutputFormatter_JSONSuccess(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format: "json",
		Writer: buf,
	}

	data := map[string]string{"result": "success"}
	err := formatter.Success(data, "ignored")
	require.NoError(t, err)

	var resp CLIResponse
	err = json.Unmarshal(buf.Bytes(), &resp)
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Status)
	assert.NotNil(t, resp.Data)
	assert.NotContains(t, buf.String(), "ignored")
}

func TestOutputFormatter_JSONDoesNotEscapeOperators(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "json", Writer: buf}

	require.NoError(t, formatter.Success(map[string]string{"query": "SELECT * FROM t WHERE a <= 1"}, ""))
	assert.Contains(t, buf.String(), "a <= 1")
}

func TestOutputFormatter_JSONError(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format: "json",
		Writer: buf,
	}

	err := formatter.Error("E202", "compile failed", nil)
	require.NoError(t, err)

	var resp CLIResponse
	err = json.Unmarshal(buf.Bytes(), &resp)
	require.NoError(t, err)
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "E202", resp.Error.Code)
	assert.Equal(t, "compile failed", resp.Error.Message)
}

func TestOutputFormatter_TextSuccess(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format: "text",
		Writer: buf,
	}

	err := formatter.Success(nil, `[{"@":"limit","=":1}]`)
	require.NoError(t, err)
	assert.Equal(t, "[{\"@\":\"limit\",\"=\":1}]\n", buf.String())
}

func TestOutputFormatter_TextError(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format:  "text",
		Writer:  buf,
		Verbose: false,
	}

	err := formatter.Error("E001", "compile failed", map[string]int{"offset": 3})
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "Error [E001]")
	assert.Contains(t, buf.String(), "compile failed")
	assert.NotContains(t, buf.String(), "Details:")
}

func TestOutputFormatter_TextErrorVerbose(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format:  "text",
		Writer:  buf,
		Verbose: true,
	}

	err := formatter.Error("E001", "compile failed", map[string]int{"offset": 3})
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "Details:")
}

func TestOutputFormatter_Fail(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "json", Writer: buf}

	_, compileErr := compiler.New().Compile("SELECT * FROM t WHERE x @ 1")
	require.Error(t, compileErr)

	err := formatter.Fail("compile", compileErr)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.True(t, Shown(err))
	assert.False(t, Shown(NewExitError(ExitCommandError, "not printed")))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeLexical, resp.Error.Code)
	assert.Equal(t, "compile: invalid token '@' at offset 24", resp.Error.Message)
	assert.Equal(t, map[string]any{"offset": float64(24)}, resp.Error.Details)
}

func TestOutputFormatter_VerboseLog(t *testing.T) {
	tests := []struct {
		name    string
		verbose bool
		wantLog bool
	}{
		{"verbose_enabled", true, true},
		{"verbose_disabled", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			errBuf := &bytes.Buffer{}
			formatter := &OutputFormatter{
				Format:    "json",
				Writer:    buf,
				ErrWriter: errBuf,
				Verbose:   tt.verbose,
			}

			formatter.VerboseLog("Compiled %d stage(s)", 3)

			assert.Empty(t, buf.String())
			if tt.wantLog {
				assert.Contains(t, errBuf.String(), "Compiled 3 stage(s)")
			} else {
				assert.Empty(t, errBuf.String())
			}
		})
	}
}

func TestGetExitCode(t *testing.T) {
	assert.Equal(t, ExitFailure, GetExitCode(errors.New("plain")))
	assert.Equal(t, ExitCommandError, GetExitCode(NewExitError(ExitCommandError, "bad")))
	assert.Equal(t, ExitCommandError, GetExitCode(fmt.Errorf("wrapped: %w", WrapExitError(ExitCommandError, "bad", errors.New("x")))))
}

func TestClassify(t *testing.T) {
	c := compiler.New()
	_, lexErr := c.Compile("SELECT * FROM t WHERE x @ 1")
	_, grammarErr := c.Compile("SELECT FROM t")
	_, decodeErr := c.Decode([]byte(`[{"@":"unwind"}]`))
	_, schemaErr := compiler.LoadSchemaJSON([]byte(`{"a":5}`))

	tests := []struct {
		name string
		err  error
		code string
		exit int
	}{
		{"lexical", lexErr, ErrCodeLexical, ExitCommandError},
		{"grammar", grammarErr, ErrCodeGrammar, ExitCommandError},
		{"decode", decodeErr, ErrCodeDecode, ExitCommandError},
		{"schema decode tagged", &LoadError{Code: ErrCodeSchemaLoad, Message: "schema", Err: schemaErr}, ErrCodeSchemaLoad, ExitCommandError},
		{"schema document", &compiler.CompileError{Field: "file", Message: "bad"}, ErrCodeSchemaLoad, ExitCommandError},
		{"type check", &compiler.CheckError{Problems: []typecheck.Problem{{Message: "x"}}}, ErrCodeTypeCheck, ExitFailure},
		{"not found", fmt.Errorf("pipeline %q: %w", "x", store.ErrNotFound), ErrCodeNotFound, ExitCommandError},
		{"store", &LoadError{Code: ErrCodeStore, Message: "catalog", Err: errors.New("disk")}, ErrCodeStore, ExitCommandError},
		{"generic", errors.New("boom"), ErrCodeGeneric, ExitCommandError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Error(t, tt.err)
			code, exit := classify(tt.err)
			assert.Equal(t, tt.code, code)
			assert.Equal(t, tt.exit, exit)
		})
	}
	assert.True(t, ir.IsDecodeError(decodeErr))
}

func TestCLIError_JSON(t *testing.T) {
	cliErr := CLIError{
		Code:    "E204",
		Message: "1 type problem(s)",
		Details: []string{"stage 0: vip: operator > does not apply to boolean"},
	}

	data, err := json.Marshal(cliErr)
	require.NoError(t, err)

	var decoded CLIError
	err = json.Unmarshal(data, &decoded)
	require.NoError(t, err)
	assert.Equal(t, "E204", decoded.Code)
	assert.Equal(t, "1 type problem(s)", decoded.Message)
}
