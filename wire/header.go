package wire

import "time"

// SupportedVersions is the set of protocol versions this library accepts
// on header.Version. Header validation (validate package) rejects anything
// outside this set with a WARNING, not a FATAL — a version mismatch is
// informational, per the error-handling design.
var SupportedVersions = []string{"2.0.0", "2.1.0"}

// Header is embedded in every inbound and outbound topic payload.
type Header struct {
	HeaderID     uint32    `json:"headerId"`
	Timestamp    time.Time `json:"timestamp"`
	Version      string    `json:"version"`
	Manufacturer string    `json:"manufacturer"`
	SerialNumber string    `json:"serialNumber"`
}

// ErrorReference is a key/value pair attached to an Error or Info entry,
// e.g. {"orderId": "order-1"} or {"sequenceId": "4"}.
type ErrorReference struct {
	ReferenceKey   string `json:"referenceKey"`
	ReferenceValue string `json:"referenceValue"`
}

// Error is one entry in State.Errors.
type Error struct {
	ErrorType        string           `json:"errorType"`
	ErrorLevel       ErrorLevel       `json:"errorLevel"`
	ErrorDescription string           `json:"errorDescription,omitempty"`
	ErrorReferences  []ErrorReference `json:"errorReferences,omitempty"`
}

// Info is one entry in State.Informations.
type Info struct {
	InfoType        string     `json:"infoType"`
	InfoLevel       InfoLevel  `json:"infoLevel"`
	InfoDescription string     `json:"infoDescription,omitempty"`
}
