// Command starexport converts a deposition load payload into NMR-STAR text.
package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	"nmrdeposit/internal/star/document"
	"nmrdeposit/internal/star/envelope"
	"nmrdeposit/internal/star/schema"
)

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		log.Fatal(err)
	}
}

func run(args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("starexport", flag.ContinueOnError)
	fs.SetOutput(stderr)
	in := fs.String("in", "", "deposition JSON (load payload)")
	schemaPath := fs.String("schema", "", "dictionary JSON, when the payload does not embed one")
	out := fs.String("out", "", "NMR-STAR output path (default stdout)")
	jsonOut := fs.String("json", "", "also write the normalized deposition JSON here")
	strict := fs.Bool("strict", false, "fail when the deposition is not valid")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *in == "" {
		return errors.New("--in is required")
	}

	raw, err := os.ReadFile(*in)
	if err != nil {
		return err
	}
	checker, err := envelope.New()
	if err != nil {
		return err
	}
	if err := checker.Check(raw); err != nil {
		return err
	}

	var e *document.Entry
	if *schemaPath != "" {
		dict, err := os.ReadFile(*schemaPath)
		if err != nil {
			return err
		}
		cat, err := schema.Build(dict)
		if err != nil {
			return err
		}
		e, err = document.DecodeWithCatalog(raw, cat)
		if err != nil {
			return err
		}
	} else if e, err = document.Decode(raw); err != nil {
		return err
	}

	text, err := e.Print()
	if err != nil {
		return err
	}
	if *out == "" {
		if _, err := io.WriteString(stdout, text); err != nil {
			return err
		}
	} else if err := os.WriteFile(*out, []byte(text), 0o644); err != nil {
		return err
	}

	if *jsonOut != "" {
		b, err := e.ExportJSON()
		if err != nil {
			return err
		}
		if err := os.WriteFile(*jsonOut, b, 0o644); err != nil {
			return err
		}
	}

	st := e.Status()
	summary, err := json.Marshal(map[string]any{
		"entry_id":                  st.EntryID,
		"valid":                     st.Valid,
		"first_incomplete_category": st.FirstIncompleteCategory,
	})
	if err != nil {
		return err
	}
	fmt.Fprintln(stderr, string(summary))
	if *strict && !st.Valid {
		return fmt.Errorf("entry %s is incomplete: first incomplete category %s", st.EntryID, st.FirstIncompleteCategory)
	}
	return nil
}
