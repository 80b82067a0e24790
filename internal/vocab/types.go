package vocab

import "fmt"

// #region token
// Token identifies one vocabulary entry.
type Token int

const (
	// Padding is the reserved no-event token.
	Padding Token = 0
	// StartOfSequence anchors the history at age zero.
	StartOfSequence Token = 1
)

// Reserved reports whether t is one of the ids never sampled as a new event.
func (t Token) Reserved() bool {
	return t == Padding || t == StartOfSequence
}

// #endregion token

// #region entry
// Entry is one (token, event name) pair plus optional display metadata.
type Entry struct {
	Token   Token
	Name    string
	Chapter string // ICD-10 chapter label, display only
	Color   string
}

// #endregion entry

// #region errors
// UnknownTokenError is returned when a token has no vocabulary entry.
type UnknownTokenError struct {
	Token Token
}

func (e *UnknownTokenError) Error() string {
	return fmt.Sprintf("unknown token %d", e.Token)
}

// UnknownNameError is returned when an event name has no vocabulary entry.
type UnknownNameError struct {
	Name string
}

func (e *UnknownNameError) Error() string {
	return fmt.Sprintf("unknown event name %q", e.Name)
}

// #endregion errors
