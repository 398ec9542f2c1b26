package constants

// SessionState is the canonical processing state for a document session.
type SessionState string

// Stable values (stored verbatim in the session store).
const (
	StateUploaded             SessionState = "UPLOADED"              // document bytes received
	StateExtracted            SessionState = "EXTRACTED"             // OCR collaborator returned usable text
	StateParsed               SessionState = "PARSED"                // fields recovered (possibly low-confidence)
	StateMatched              SessionState = "MATCHED"               // vendor match attached (any outcome)
	StateAwaitingVerification SessionState = "AWAITING_VERIFICATION" // mandatory human checkpoint
	StateStamped              SessionState = "STAMPED"               // stamp composed onto the document
	StateDelivered            SessionState = "DELIVERED"             // output handed to the presentation layer
	StateError                SessionState = "ERROR"                 // terminal failure; reset to reprocess
)

// Terminal reports whether no automatic transition leaves the state.
func (s SessionState) Terminal() bool {
	return s == StateDelivered || s == StateError
}

// Valid reports whether s is one of the canonical states.
func (s SessionState) Valid() bool {
	switch s {
	case StateUploaded, StateExtracted, StateParsed, StateMatched,
		StateAwaitingVerification, StateStamped, StateDelivered, StateError:
		return true
	}
	return false
}
