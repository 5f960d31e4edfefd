package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatter_JSONSuccess(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &Formatter{Format: "json", Writer: buf}

	err := formatter.Success(PathResult{Path: "/tmp/Database.sqlite", Initialized: true})
	require.NoError(t, err)

	var resp Response
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Nil(t, resp.Error)
	assert.Equal(t, "/tmp/Database.sqlite", resp.Data.(map[string]any)["path"])
}

func TestFormatter_TextSuccess(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &Formatter{Format: "text", Writer: buf}

	err := formatter.Success(PathResult{Path: "/tmp/Database.sqlite"})
	require.NoError(t, err)
	assert.Equal(t, "/tmp/Database.sqlite (not initialized)\n", buf.String())
}

func TestFormatter_FailJSON(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &Formatter{Format: "json", Writer: buf}

	cause := errors.New("file is not a database")
	err := formatter.Fail(ExitStoreUnavailable, ErrCodeStoreUnavailable, "store unavailable", cause)

	var exitErr *ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, ExitStoreUnavailable, exitErr.ExitCode)
	assert.Equal(t, ErrCodeStoreUnavailable, exitErr.Code)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "[E014] store unavailable: file is not a database", err.Error())

	var resp Response
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ResponseError{
		Code:     "E014",
		Message:  "store unavailable",
		ExitCode: 3,
		Details:  "file is not a database",
	}, *resp.Error)
}

func TestFormatter_FailText(t *testing.T) {
	tests := []struct {
		name    string
		verbose bool
		want    string
	}{
		{"quiet", false, "error [E013]: invalid seed file\n"},
		{"verbose", true, "error [E013]: invalid seed file\n  objects[0]: unknown entity\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			formatter := &Formatter{Format: "text", Writer: buf, Verbose: tt.verbose}

			err := formatter.Fail(ExitCommandError, ErrCodeSeedFile, "invalid seed file", errors.New("objects[0]: unknown entity"))
			assert.Equal(t, ExitCommandError, ExitCode(err))
			assert.Equal(t, tt.want, buf.String())
		})
	}
}

func TestFormatter_FailWithoutCause(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &Formatter{Format: "json", Writer: buf, Verbose: true}

	err := formatter.Fail(ExitCommandError, ErrCodeUnknownEntity, "unknown entity Tag", nil)
	assert.Equal(t, "[E011] unknown entity Tag", err.Error())
	assert.NotContains(t, buf.String(), "details")
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitSuccess},
		{"plain error", errors.New("boom"), ExitFailure},
		{"exit error", &ExitError{ExitCode: ExitCommandError, Code: ErrCodeGeneric, Message: "bad flag"}, ExitCommandError},
		{"wrapped exit error", fmt.Errorf("outer: %w", &ExitError{ExitCode: ExitStoreUnavailable, Code: ErrCodeStoreUnavailable, Message: "open"}), ExitStoreUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExitCode(tt.err))
		})
	}
}
