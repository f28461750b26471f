package wire

// Action is an order- or instant-action-embedded unit of work. BlockingType
// is the scheduler's central ordering constraint (§4.3 of the design).
type Action struct {
	ActionID          string                 `json:"actionId"`
	ActionType        string                 `json:"actionType"`
	ActionDescription string                 `json:"actionDescription,omitempty"`
	BlockingType      BlockingType           `json:"blockingType"`
	ActionParameters  map[string]interface{} `json:"actionParameters,omitempty"`
}

// NodePosition is an optional target pose attached to a node.
type NodePosition struct {
	X                     float64 `json:"x"`
	Y                     float64 `json:"y"`
	Theta                 float64 `json:"theta,omitempty"`
	MapID                 string  `json:"mapId"`
	AllowedDeviationXY    float64 `json:"allowedDeviationXY,omitempty"`
	AllowedDeviationTheta float64 `json:"allowedDeviationTheta,omitempty"`
}

// Node is a sequence-id-keyed stop in the order graph.
type Node struct {
	NodeID       string       `json:"nodeId"`
	SequenceID   uint32       `json:"sequenceId"`
	NodeDescription string    `json:"nodeDescription,omitempty"`
	Released     bool         `json:"released"`
	NodePosition *NodePosition `json:"nodePosition,omitempty"`
	Actions      []Action     `json:"actions"`
}

// Edge connects two nodes by id and carries its own action list.
type Edge struct {
	EdgeID          string   `json:"edgeId"`
	SequenceID      uint32   `json:"sequenceId"`
	EdgeDescription string   `json:"edgeDescription,omitempty"`
	Released        bool     `json:"released"`
	StartNodeID     string   `json:"startNodeId"`
	EndNodeID       string   `json:"endNodeId"`
	MaxSpeed        float64  `json:"maxSpeed,omitempty"`
	Actions         []Action `json:"actions"`
}

// Order is the inbound order document: a graph of nodes and edges, with a
// stable id and monotonically increasing update id (§3). Header fields are
// flattened into the top-level JSON object, per the wire format.
type Order struct {
	Header
	OrderID       string `json:"orderId"`
	OrderUpdateID uint32 `json:"orderUpdateId"`
	ZoneSetID     string `json:"zoneSetId,omitempty"`
	Nodes         []Node `json:"nodes"`
	Edges         []Edge `json:"edges"`
}

// InstantActions is the out-of-band command document.
type InstantActions struct {
	Header
	InstantActions []Action `json:"instantActions"`
}
