package wire

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/tidwall/gjson"
	"github.com/tidwall/pretty"
	"github.com/tidwall/sjson"
)

// DecodeOrder parses an inbound order payload.
func DecodeOrder(data []byte) (Order, error) {
	var o Order
	if err := json.Unmarshal(data, &o); err != nil {
		return Order{}, fmt.Errorf("wire: decode order: %w", err)
	}
	return o, nil
}

// DecodeInstantActions parses an inbound instant-actions payload.
func DecodeInstantActions(data []byte) (InstantActions, error) {
	var ia InstantActions
	if err := json.Unmarshal(data, &ia); err != nil {
		return InstantActions{}, fmt.Errorf("wire: decode instantActions: %w", err)
	}
	return ia, nil
}

// PeekOrderID extracts orderId from a raw order payload without a full
// decode, using gjson, so it works even when the rest of the payload fails
// to fully unmarshal (e.g. an unknown enum value deep in one action).
func PeekOrderID(data []byte) (string, bool) {
	r := gjson.GetBytes(data, "orderId")
	return r.String(), r.Exists()
}

// PeekOrderUpdateID extracts orderUpdateId without a full decode.
func PeekOrderUpdateID(data []byte) (uint32, bool) {
	r := gjson.GetBytes(data, "orderUpdateId")
	if !r.Exists() {
		return 0, false
	}
	return uint32(r.Uint()), true
}

// EncodeState serializes a State document with the header it already
// carries, pretty-printed when prettyPrint is set and compact otherwise.
func EncodeState(s State, prettyPrint bool) ([]byte, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("wire: encode state: %w", err)
	}
	if prettyPrint {
		return pretty.Pretty(data), nil
	}
	return data, nil
}

// StampHeader fills in a fresh header sequence and the current time on any
// of the outbound message types via an in-place byte patch, avoiding a
// full unmarshal/remarshal round trip for the high-frequency visualization
// topic. seq is the caller-managed per-topic monotonic counter (§4.6).
func StampHeader(data []byte, seq uint32, version, manufacturer, serial string) ([]byte, error) {
	var err error
	data, err = sjson.SetBytes(data, "headerId", seq)
	if err != nil {
		return nil, err
	}
	data, err = sjson.SetBytes(data, "timestamp", time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return nil, err
	}
	data, err = sjson.SetBytes(data, "version", version)
	if err != nil {
		return nil, err
	}
	data, err = sjson.SetBytes(data, "manufacturer", manufacturer)
	if err != nil {
		return nil, err
	}
	data, err = sjson.SetBytes(data, "serialNumber", serial)
	if err != nil {
		return nil, err
	}
	return data, nil
}

// Topic builds the MQTT-style topic string for a given sub-topic, per the
// template <interface>/<version>/<manufacturer>/<serial>/<sub>.
func Topic(interfaceName, version, manufacturer, serial, sub string) string {
	return fmt.Sprintf("%s/%s/%s/%s/%s", interfaceName, version, manufacturer, serial, sub)
}
