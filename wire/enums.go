// Package wire defines the JSON wire representation of the protocol
// exchanged with the fleet master control: the five topic payloads,
// their shared header, and the enumerations that appear on the wire.
//
// Every enum here round-trips as an uppercase string. Decoding an unknown
// string is always an error — this package never silently substitutes a
// default, since an unrecognized value usually means a version skew
// between vehicle and master control that the caller needs to see.
package wire

import (
	"encoding/json"
	"fmt"
)

// BlockingType is the scheduler's central ordering constraint for an
// action: HARD blocks everything, SOFT blocks further driving, NONE runs
// alongside driving.
type BlockingType string

const (
	BlockingHard BlockingType = "HARD"
	BlockingSoft BlockingType = "SOFT"
	BlockingNone BlockingType = "NONE"
)

// rank orders blocking types from least to most blocking, used by the net
// manager and instant-action interception to compute a "running ceiling".
func (b BlockingType) rank() int {
	switch b {
	case BlockingNone:
		return 0
	case BlockingSoft:
		return 1
	case BlockingHard:
		return 2
	default:
		return -1
	}
}

// MoreBlocking reports whether b is strictly more blocking than other.
func (b BlockingType) MoreBlocking(other BlockingType) bool {
	return b.rank() > other.rank()
}

// Rank exposes rank() to other packages that need to index by blocking
// severity (e.g. netmgr's running-ceiling tracker).
func (b BlockingType) Rank() int { return b.rank() }

func (b BlockingType) MarshalJSON() ([]byte, error) {
	if b != BlockingHard && b != BlockingSoft && b != BlockingNone {
		return nil, fmt.Errorf("wire: invalid BlockingType %q", string(b))
	}
	return json.Marshal(string(b))
}

func (b *BlockingType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	switch BlockingType(s) {
	case BlockingHard, BlockingSoft, BlockingNone:
		*b = BlockingType(s)
		return nil
	default:
		return fmt.Errorf("wire: unknown BlockingType %q", s)
	}
}

// ActionStatus is the lifecycle of a single action as reported on the
// wire, mirroring the task manager's observable places (§4.2).
type ActionStatus string

const (
	ActionWaiting      ActionStatus = "WAITING"
	ActionInitializing ActionStatus = "INITIALIZING"
	ActionRunning      ActionStatus = "RUNNING"
	ActionPaused       ActionStatus = "PAUSED"
	ActionFinished     ActionStatus = "FINISHED"
	ActionFailed       ActionStatus = "FAILED"
)

// legacyInitializingTypo is the misspelling ("INITIALZING") present in the
// original implementation's from_json for ActionStatus. A faithful decode
// must still accept it on input; encoding only ever emits the correct
// spelling.
const legacyInitializingTypo = "INITIALZING"

func (s ActionStatus) MarshalJSON() ([]byte, error) {
	switch s {
	case ActionWaiting, ActionInitializing, ActionRunning, ActionPaused, ActionFinished, ActionFailed:
		return json.Marshal(string(s))
	default:
		return nil, fmt.Errorf("wire: invalid ActionStatus %q", string(s))
	}
}

func (s *ActionStatus) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw == legacyInitializingTypo {
		*s = ActionInitializing
		return nil
	}
	switch ActionStatus(raw) {
	case ActionWaiting, ActionInitializing, ActionRunning, ActionPaused, ActionFinished, ActionFailed:
		*s = ActionStatus(raw)
		return nil
	default:
		return fmt.Errorf("wire: unknown ActionStatus %q", raw)
	}
}

// ConnectionState is the value published on the retained connection topic.
type ConnectionState string

const (
	ConnectionOnline  ConnectionState = "ONLINE"
	ConnectionOffline ConnectionState = "OFFLINE"
	ConnectionBroken  ConnectionState = "CONNECTIONBROKEN"
)

func (c ConnectionState) MarshalJSON() ([]byte, error) {
	switch c {
	case ConnectionOnline, ConnectionOffline, ConnectionBroken:
		return json.Marshal(string(c))
	default:
		return nil, fmt.Errorf("wire: invalid ConnectionState %q", string(c))
	}
}

func (c *ConnectionState) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	switch ConnectionState(s) {
	case ConnectionOnline, ConnectionOffline, ConnectionBroken:
		*c = ConnectionState(s)
		return nil
	default:
		return fmt.Errorf("wire: unknown ConnectionState %q", s)
	}
}

// OperatingMode is the vehicle's current control mode.
type OperatingMode string

const (
	OperatingAutomatic     OperatingMode = "AUTOMATIC"
	OperatingManual        OperatingMode = "MANUAL"
	OperatingSemiAutomatic OperatingMode = "SEMI_AUTOMATIC"
	OperatingService       OperatingMode = "SERVICE"
	OperatingTeachIn       OperatingMode = "TEACHIN"
)

func (m OperatingMode) valid() bool {
	switch m {
	case OperatingAutomatic, OperatingManual, OperatingSemiAutomatic, OperatingService, OperatingTeachIn:
		return true
	}
	return false
}

func (m OperatingMode) MarshalJSON() ([]byte, error) {
	if !m.valid() {
		return nil, fmt.Errorf("wire: invalid OperatingMode %q", string(m))
	}
	return json.Marshal(string(m))
}

func (m *OperatingMode) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if !OperatingMode(s).valid() {
		return fmt.Errorf("wire: unknown OperatingMode %q", s)
	}
	*m = OperatingMode(s)
	return nil
}

// EStop reports the state of the vehicle's emergency stop circuit.
type EStop string

const (
	EStopAutoAck EStop = "AUTO_ACK"
	EStopManual  EStop = "MANUAL"
	EStopRemote  EStop = "REMOTE"
	EStopNone    EStop = "NONE"
)

func (e EStop) valid() bool {
	switch e {
	case EStopAutoAck, EStopManual, EStopRemote, EStopNone:
		return true
	}
	return false
}

func (e EStop) MarshalJSON() ([]byte, error) {
	if !e.valid() {
		return nil, fmt.Errorf("wire: invalid EStop %q", string(e))
	}
	return json.Marshal(string(e))
}

func (e *EStop) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if !EStop(s).valid() {
		return fmt.Errorf("wire: unknown EStop %q", s)
	}
	*e = EStop(s)
	return nil
}

// ErrorLevel is the severity of an entry in State.Errors.
type ErrorLevel string

const (
	ErrorWarning ErrorLevel = "WARNING"
	ErrorFatal   ErrorLevel = "FATAL"
)

func (l ErrorLevel) valid() bool { return l == ErrorWarning || l == ErrorFatal }

func (l ErrorLevel) MarshalJSON() ([]byte, error) {
	if !l.valid() {
		return nil, fmt.Errorf("wire: invalid ErrorLevel %q", string(l))
	}
	return json.Marshal(string(l))
}

func (l *ErrorLevel) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if !ErrorLevel(s).valid() {
		return fmt.Errorf("wire: unknown ErrorLevel %q", s)
	}
	*l = ErrorLevel(s)
	return nil
}

// InfoLevel is the severity of an entry in State.Informations.
type InfoLevel string

const (
	InfoDebug InfoLevel = "DEBUG"
	InfoInfo  InfoLevel = "INFO"
)

func (l InfoLevel) valid() bool { return l == InfoDebug || l == InfoInfo }

func (l InfoLevel) MarshalJSON() ([]byte, error) {
	if !l.valid() {
		return nil, fmt.Errorf("wire: invalid InfoLevel %q", string(l))
	}
	return json.Marshal(string(l))
}

func (l *InfoLevel) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if !InfoLevel(s).valid() {
		return fmt.Errorf("wire: unknown InfoLevel %q", s)
	}
	*l = InfoLevel(s)
	return nil
}
