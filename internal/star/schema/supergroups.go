package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
)

// decodeSupergroups accepts either [[name, [categories...]], ...] or an
// object keyed by supergroup name. Object member order is kept, since it is
// the navigation order. Malformed groups are skipped with a warning; only a
// payload of the wrong shape altogether is an error.
func decodeSupergroups(raw json.RawMessage) ([]Supergroup, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}
	switch raw[0] {
	case '[':
		var items []json.RawMessage
		if err := json.Unmarshal(raw, &items); err != nil {
			return nil, err
		}
		out := make([]Supergroup, 0, len(items))
		for i, item := range items {
			g, err := decodePair(item)
			if err != nil {
				log.Printf("catalog: supergroup %d skipped: %v", i, err)
				continue
			}
			out = append(out, g)
		}
		return out, nil
	case '{':
		return decodeOrderedObject(raw)
	}
	return nil, fmt.Errorf("unexpected category_supergroups payload")
}

func decodePair(item json.RawMessage) (Supergroup, error) {
	var p []json.RawMessage
	if err := json.Unmarshal(item, &p); err != nil || len(p) != 2 {
		return Supergroup{}, fmt.Errorf("want [name, categories]")
	}
	var g Supergroup
	if err := json.Unmarshal(p[0], &g.Name); err != nil {
		return Supergroup{}, fmt.Errorf("name: %w", err)
	}
	if err := json.Unmarshal(p[1], &g.Categories); err != nil {
		return Supergroup{}, fmt.Errorf("supergroup %s categories: %w", g.Name, err)
	}
	return g, nil
}

func decodeOrderedObject(raw json.RawMessage) ([]Supergroup, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	var out []Supergroup
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return out, err
		}
		name, _ := tok.(string)
		var member json.RawMessage
		if err := dec.Decode(&member); err != nil {
			return out, fmt.Errorf("supergroup %s: %w", name, err)
		}
		var cats []string
		if err := json.Unmarshal(member, &cats); err != nil {
			log.Printf("catalog: supergroup %s skipped: %v", name, err)
			continue
		}
		out = append(out, Supergroup{Name: name, Categories: cats})
	}
	return out, nil
}
