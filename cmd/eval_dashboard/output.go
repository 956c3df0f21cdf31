package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/eval-hub/eval-dashboard/pkg/api"
)

// printer writes command results either as aligned columns or as indented JSON.
type printer struct {
	out  io.Writer
	json bool
}

// table prints rows under header, v is what the JSON output shows instead.
func (p *printer) table(v any, header []string, rows [][]string) error {
	if p.json {
		return p.object(v)
	}
	if len(rows) == 0 {
		_, err := fmt.Fprintln(p.out, "Nothing found.")
		return err
	}
	w := tabwriter.NewWriter(p.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, strings.Join(header, "\t"))
	for _, row := range rows {
		fmt.Fprintln(w, strings.Join(row, "\t"))
	}
	return w.Flush()
}

// fields prints one entity as name/value lines.
func (p *printer) fields(v any, pairs ...string) error {
	if p.json {
		return p.object(v)
	}
	w := tabwriter.NewWriter(p.out, 0, 4, 2, ' ', 0)
	for i := 0; i+1 < len(pairs); i += 2 {
		fmt.Fprintf(w, "%s:\t%s\n", pairs[i], pairs[i+1])
	}
	return w.Flush()
}

func (p *printer) message(v any, format string, args ...any) error {
	if p.json {
		return p.object(v)
	}
	_, err := fmt.Fprintf(p.out, format+"\n", args...)
	return err
}

func (p *printer) object(v any) error {
	enc := json.NewEncoder(p.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func optional(s *string) string {
	if s == nil || *s == "" {
		return "-"
	}
	return *s
}

func timestamp(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format(time.RFC3339)
}

func list(ids []string) string {
	if len(ids) == 0 {
		return "-"
	}
	return strings.Join(ids, ", ")
}

// nullableText turns an update flag into a patch field, the empty value clears the field.
func nullableText(s string) api.Nullable[string] {
	if s == "" {
		return api.Null[string]()
	}
	return api.Value(s)
}
