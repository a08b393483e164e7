package cli

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/roach88/liveql/internal/engine"
	"github.com/roach88/liveql/internal/value"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Successful execution
	ExitFailure      = 1 // Statement or replay failure
	ExitCommandError = 2 // Command error (bad paths, schema errors, invalid flags)
)

// ExitError represents an error with a specific exit code.
type ExitError struct {
	Code    int
	Message string
	Err     error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error { return e.Err }

// WrapExitError wraps an existing error with an exit code.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode extracts the exit code from an error.
// Returns ExitFailure if the error is not an ExitError.
func GetExitCode(err error) int {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// OutputFormatter handles JSON vs text output for CLI commands.
type OutputFormatter struct {
	Format  string
	Writer  io.Writer
	Verbose bool
}

// Response is the standard JSON envelope for CLI output.
type Response struct {
	Status string `json:"status"` // "ok" or "error"
	Data   any    `json:"data,omitempty"`
	Error  string `json:"error,omitempty"`
}

// Success outputs a successful result in the configured format.
// For text format, data is printed with fmt verbatim.
func (f *OutputFormatter) Success(data any) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(Response{Status: "ok", Data: data})
	}
	fmt.Fprintln(f.Writer, data)
	return nil
}

// VerboseLog outputs a message only if verbose mode is enabled.
func (f *OutputFormatter) VerboseLog(format string, args ...any) {
	if !f.Verbose {
		return
	}
	fmt.Fprintf(f.Writer, format+"\n", args...)
}

// formatValue renders a cell for display, using SQL literal forms.
func formatValue(v value.Value) string {
	switch x := v.(type) {
	case value.Bool:
		return strconv.FormatBool(bool(x))
	case value.Int:
		return strconv.FormatInt(x.V, 10)
	case value.Uint:
		return strconv.FormatUint(x.V, 10)
	case value.Float:
		return strconv.FormatFloat(x.V, 'g', -1, int(x.Bits))
	case value.String:
		return "'" + strings.ReplaceAll(string(x), "'", "''") + "'"
	case value.Identity:
		return "0x" + hex.EncodeToString(x)
	case value.Address:
		return "0x" + hex.EncodeToString(x)
	case value.Product:
		return "0x" + hex.EncodeToString(x)
	case value.Sum:
		return "0x" + hex.EncodeToString(x)
	default:
		return fmt.Sprintf("%v", v)
	}
}

func formatRow(r value.Row) string {
	cells := make([]string, len(r))
	for i, v := range r {
		cells[i] = formatValue(v)
	}
	return "(" + strings.Join(cells, ", ") + ")"
}

// writeResult prints one statement result: a column header and row list
// for reads, an affected/update summary for writes.
func (f *OutputFormatter) writeResult(res *engine.Result) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(Response{Status: "ok", Data: resultData(res)})
	}

	if len(res.Columns) > 0 {
		names := make([]string, len(res.Columns))
		for i, c := range res.Columns {
			names[i] = c.Name
		}
		fmt.Fprintln(f.Writer, strings.Join(names, " | "))
		for _, r := range res.Rows {
			fmt.Fprintln(f.Writer, formatRow(r))
		}
		fmt.Fprintf(f.Writer, "%d row(s)\n", len(res.Rows))
		return nil
	}

	fmt.Fprintf(f.Writer, "%d row(s) affected\n", res.Affected)
	for _, u := range res.Updates {
		f.writeUpdate(u)
	}
	return nil
}

func (f *OutputFormatter) writeUpdate(u engine.Update) {
	if u.Err != nil {
		fmt.Fprintf(f.Writer, "subscription %s: error: %v\n", u.Subscription, u.Err)
		return
	}
	for _, r := range u.Inserted {
		fmt.Fprintf(f.Writer, "subscription %s: + %s\n", u.Subscription, formatRow(r))
	}
	for _, r := range u.Removed {
		fmt.Fprintf(f.Writer, "subscription %s: - %s\n", u.Subscription, formatRow(r))
	}
}

// resultData shapes a Result for the JSON envelope.
func resultData(res *engine.Result) map[string]any {
	data := map[string]any{}
	if len(res.Columns) > 0 {
		names := make([]string, len(res.Columns))
		for i, c := range res.Columns {
			names[i] = c.Name
		}
		data["columns"] = names
		data["rows"] = renderRows(res.Rows)
	} else {
		data["affected"] = res.Affected
		data["updates"] = renderUpdates(res.Updates)
	}
	return data
}

func renderRows(rows []value.Row) [][]string {
	out := make([][]string, len(rows))
	for i, r := range rows {
		cells := make([]string, len(r))
		for j, v := range r {
			cells[j] = formatValue(v)
		}
		out[i] = cells
	}
	return out
}

func renderUpdates(updates []engine.Update) []map[string]any {
	out := make([]map[string]any, 0, len(updates))
	for _, u := range updates {
		m := map[string]any{
			"subscription": u.Subscription.String(),
			"inserted":     renderRows(u.Inserted),
			"removed":      renderRows(u.Removed),
		}
		if u.Err != nil {
			m["error"] = u.Err.Error()
		}
		out = append(out, m)
	}
	return out
}
