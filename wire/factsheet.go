package wire

// TypeSpecification is the factsheet's vehicle-type section: kinematic
// model, load class, and which localization/navigation schemes it
// implements.
type TypeSpecification struct {
	SeriesName        string   `json:"seriesName"`
	AGVKinematic      string   `json:"agvKinematic,omitempty"`
	AGVClass          string   `json:"agvClass,omitempty"`
	MaxLoadMass       float64  `json:"maxLoadMass,omitempty"`
	LocalizationTypes []string `json:"localizationTypes,omitempty"`
	NavigationTypes   []string `json:"navigationTypes,omitempty"`
}

// AGVAction mirrors one declared action type for the factsheet's
// protocolFeatures.agvActions list: an action type this vehicle accepts
// and its scopes, the counterpart of validate's
// AGVDescription expressed as a wire document instead of an internal
// lookup table.
type AGVAction struct {
	ActionType        string   `json:"actionType"`
	ActionDescription string   `json:"actionDescription,omitempty"`
	ActionScopes      []string `json:"actionScopes"`
}

// ProtocolFeatures is the factsheet's declared-capability section.
type ProtocolFeatures struct {
	AGVActions []AGVAction `json:"agvActions"`
}

// Factsheet is the document answering a factsheetRequest instant action
// (§4.5's named instant actions). It has no lifecycle of its own — the
// host application builds one on demand directly from configuration and
// canonical state, it never enters the Petri net.
type Factsheet struct {
	Header
	TypeSpecification TypeSpecification `json:"typeSpecification"`
	ProtocolFeatures  ProtocolFeatures  `json:"protocolFeatures"`
}
