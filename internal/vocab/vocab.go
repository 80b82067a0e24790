// Package vocab maps between model token ids and event names, and converts
// ages between years and days.
package vocab

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

// DaysPerYear is the conversion factor used for every age in the system.
const DaysPerYear = 365.25

// #region vocabulary
// Vocabulary is an immutable bidirectional token/name table. Safe for
// concurrent read-only use by any number of simulations.
type Vocabulary struct {
	byToken map[Token]Entry
	byName  map[string]Token
	size    int
}

// New builds a Vocabulary. Negative ids, empty names and duplicate ids or
// names are rejected.
func New(entries []Entry) (*Vocabulary, error) {
	v := &Vocabulary{
		byToken: make(map[Token]Entry, len(entries)),
		byName:  make(map[string]Token, len(entries)),
	}
	for _, e := range entries {
		if e.Token < 0 {
			return nil, fmt.Errorf("entry %q: negative token %d", e.Name, e.Token)
		}
		if e.Name == "" {
			return nil, fmt.Errorf("token %d: empty name", e.Token)
		}
		if prev, ok := v.byToken[e.Token]; ok {
			return nil, fmt.Errorf("token %d: duplicate entry (%q, %q)", e.Token, prev.Name, e.Name)
		}
		if prev, ok := v.byName[e.Name]; ok {
			return nil, fmt.Errorf("name %q: duplicate entry (tokens %d, %d)", e.Name, prev, e.Token)
		}
		v.byToken[e.Token] = e
		v.byName[e.Name] = e.Token
		if int(e.Token)+1 > v.size {
			v.size = int(e.Token) + 1
		}
	}
	return v, nil
}

// NameToToken returns the token for an event name.
func (v *Vocabulary) NameToToken(name string) (Token, error) {
	t, ok := v.byName[name]
	if !ok {
		return 0, &UnknownNameError{Name: name}
	}
	return t, nil
}

// TokenToName returns the event name for a token.
func (v *Vocabulary) TokenToName(t Token) (string, error) {
	e, ok := v.byToken[t]
	if !ok {
		return "", &UnknownTokenError{Token: t}
	}
	return e.Name, nil
}

// Lookup returns the full entry for a token.
func (v *Vocabulary) Lookup(t Token) (Entry, error) {
	e, ok := v.byToken[t]
	if !ok {
		return Entry{}, &UnknownTokenError{Token: t}
	}
	return e, nil
}

// Size is the score vector width the model must produce: highest id + 1.
func (v *Vocabulary) Size() int {
	return v.size
}

// Len is the number of loaded entries.
func (v *Vocabulary) Len() int {
	return len(v.byToken)
}

// Entries returns all entries ordered by token id.
func (v *Vocabulary) Entries() []Entry {
	out := make([]Entry, 0, len(v.byToken))
	for _, e := range v.byToken {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Token < out[j].Token })
	return out
}

// ClinicalEntries returns the "<code> <description>" entries ordered by id.
func (v *Vocabulary) ClinicalEntries() []Entry {
	all := v.Entries()
	out := all[:0]
	for _, e := range all {
		if IsClinical(e.Name) {
			out = append(out, e)
		}
	}
	return out
}

// ResolveCode finds the clinical event whose code prefix equals code,
// e.g. "I10" -> "I10 Essential (primary) hypertension". The lowest id wins
// if more than one entry shares a code.
func (v *Vocabulary) ResolveCode(code string) (Entry, error) {
	for _, e := range v.ClinicalEntries() {
		if c, _, ok := SplitEventName(e.Name); ok && c == code {
			return e, nil
		}
	}
	return Entry{}, &UnknownNameError{Name: code}
}

// #endregion vocabulary

// #region names
// IsClinical reports whether name follows the "<code> <description>" form.
// Covariate tokens such as "Male" or "No event" never contain a space.
func IsClinical(name string) bool {
	return strings.Contains(name, " ")
}

// SplitEventName splits a clinical name at its first space.
func SplitEventName(name string) (code, description string, ok bool) {
	code, description, ok = strings.Cut(name, " ")
	if !ok {
		return name, "", false
	}
	return code, description, true
}

// #endregion names

// #region units
// YearsToDays converts an age in years to days.
func YearsToDays(years float64) float64 {
	return years * DaysPerYear
}

// DaysToYears converts days to years rounded to precision decimal places.
// Negative precision is treated as zero.
func DaysToYears(days float64, precision int) float64 {
	if precision < 0 {
		precision = 0
	}
	scale := math.Pow(10, float64(precision))
	return math.Round(days/DaysPerYear*scale) / scale
}

// #endregion units
