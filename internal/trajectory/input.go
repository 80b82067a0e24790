package trajectory

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/epiverse/delphi-trajectories/go-controller/internal/vocab"
)

// #region patients
// PatientEvent is one history entry as written in patient files. Either the
// full event name or a bare ICD-10 code may be given.
type PatientEvent struct {
	EventName string  `json:"event,omitempty"`
	Code      string  `json:"icd,omitempty"`
	AgeYears  float64 `json:"age"`
}

// Patient is one labelled input in a patient file.
type Patient struct {
	Label      string         `json:"label"`
	CurrentAge float64        `json:"current_age"`
	History    []PatientEvent `json:"history"`
}

// LoadPatients decodes either a single patient object or an array of them.
func LoadPatients(r io.Reader) ([]Patient, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read patients: %w", err)
	}
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '[' {
		var ps []Patient
		if err := json.Unmarshal(data, &ps); err != nil {
			return nil, fmt.Errorf("parse patients: %w", err)
		}
		return ps, nil
	}
	var p Patient
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parse patient: %w", err)
	}
	return []Patient{p}, nil
}

// LoadPatientsFile opens path and calls LoadPatients.
func LoadPatientsFile(path string) ([]Patient, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open patients: %w", err)
	}
	defer f.Close()
	return LoadPatients(f)
}

// Resolve maps ICD-10 codes to full event names and returns the Input.
func (p Patient) Resolve(v *vocab.Vocabulary) (Input, error) {
	in := Input{CurrentAge: p.CurrentAge, History: make([]RecordedEvent, 0, len(p.History))}
	for i, e := range p.History {
		name := e.EventName
		if name == "" {
			if e.Code == "" {
				return Input{}, &ValidationError{Field: fmt.Sprintf("history[%d]", i), Msg: "needs an event name or an ICD-10 code"}
			}
			entry, err := v.ResolveCode(e.Code)
			if err != nil {
				return Input{}, fmt.Errorf("history[%d]: %w", i, err)
			}
			name = entry.Name
		}
		in.History = append(in.History, RecordedEvent{EventName: name, AgeYears: e.AgeYears})
	}
	return in, nil
}

// #endregion patients
