package cli

import (
	"encoding/json"
	"io"
)

// PrintJSON writes v to w as indented JSON followed by a newline. Map keys
// come out sorted.
func PrintJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}
