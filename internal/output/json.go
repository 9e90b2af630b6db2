package output

import (
	"encoding/json"
	"io"
)

// JSONFormatter outputs the report as an indented JSON document.
type JSONFormatter struct{}

func (f *JSONFormatter) Format(w io.Writer, report *Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}
