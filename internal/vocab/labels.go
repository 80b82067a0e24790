package vocab

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
)

// #region label-types
// Label mirrors one object of the labels JSON published with the model.
// The index field appears both as a string and as a number in the wild.
type Label struct {
	Index   labelIndex `json:"index"`
	Name    string     `json:"name"`
	Chapter string     `json:"ICD-10 Chapter (short)"`
	Color   string     `json:"color"`
}

type labelIndex int

func (l *labelIndex) UnmarshalJSON(b []byte) error {
	b = bytes.Trim(bytes.TrimSpace(b), `"`)
	n, err := strconv.Atoi(string(b))
	if err != nil {
		return fmt.Errorf("label index %s: %w", b, err)
	}
	*l = labelIndex(n)
	return nil
}

// #endregion label-types

// #region loader
// LoadLabels parses a labels JSON array into a Vocabulary. The start-of-
// sequence token must be present; without it no history can be anchored.
func LoadLabels(r io.Reader) (*Vocabulary, error) {
	var labels []Label
	if err := json.NewDecoder(r).Decode(&labels); err != nil {
		return nil, fmt.Errorf("decode labels: %w", err)
	}

	entries := make([]Entry, len(labels))
	for i, l := range labels {
		entries[i] = Entry{
			Token:   Token(l.Index),
			Name:    l.Name,
			Chapter: l.Chapter,
			Color:   l.Color,
		}
	}

	v, err := New(entries)
	if err != nil {
		return nil, err
	}
	if _, err := v.TokenToName(StartOfSequence); err != nil {
		return nil, fmt.Errorf("labels missing start-of-sequence token: %w", err)
	}
	return v, nil
}

// LoadLabelsFile reads a labels JSON file from disk.
func LoadLabelsFile(path string) (*Vocabulary, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open labels %s: %w", path, err)
	}
	defer f.Close()

	v, err := LoadLabels(f)
	if err != nil {
		return nil, fmt.Errorf("load labels %s: %w", path, err)
	}
	return v, nil
}

// #endregion loader
