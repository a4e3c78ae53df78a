// Package startest provides a small but complete dictionary and deposition
// for tests across the star packages.
package startest

import (
	_ "embed"
	"encoding/json"
)

//go:embed testdata/schema.json
var schemaJSON []byte

//go:embed testdata/entry.json
var entryJSON []byte

// Schema returns the dictionary payload.
func Schema() []byte {
	return append([]byte(nil), schemaJSON...)
}

// Entry returns the deposition payload without an embedded schema.
func Entry() []byte {
	return append([]byte(nil), entryJSON...)
}

// EntryWithSchema returns the deposition payload with the dictionary
// embedded under "schema", the shape the load endpoint receives.
func EntryWithSchema() []byte {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(entryJSON, &doc); err != nil {
		panic(err)
	}
	doc["schema"] = json.RawMessage(schemaJSON)
	out, err := json.Marshal(doc)
	if err != nil {
		panic(err)
	}
	return out
}
