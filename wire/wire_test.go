package wire

import (
	"encoding/json"
	"testing"
)

func TestActionStatusAcceptsLegacyTypo(t *testing.T) {
	var s ActionStatus
	if err := json.Unmarshal([]byte(`"INITIALZING"`), &s); err != nil {
		t.Fatalf("unexpected error decoding legacy typo: %v", err)
	}
	if s != ActionInitializing {
		t.Fatalf("expected ActionInitializing, got %v", s)
	}

	out, err := json.Marshal(s)
	if err != nil {
		t.Fatalf("unexpected error encoding: %v", err)
	}
	if string(out) != `"INITIALIZING"` {
		t.Fatalf("expected correct spelling on encode, got %s", out)
	}
}

func TestActionStatusRejectsUnknown(t *testing.T) {
	var s ActionStatus
	if err := json.Unmarshal([]byte(`"BOGUS"`), &s); err == nil {
		t.Fatalf("expected error decoding unknown ActionStatus")
	}
}

func TestBlockingTypeRank(t *testing.T) {
	if !BlockingHard.MoreBlocking(BlockingSoft) {
		t.Fatalf("expected HARD to be more blocking than SOFT")
	}
	if !BlockingSoft.MoreBlocking(BlockingNone) {
		t.Fatalf("expected SOFT to be more blocking than NONE")
	}
	if BlockingNone.MoreBlocking(BlockingHard) {
		t.Fatalf("expected NONE to not be more blocking than HARD")
	}
}

func TestDecodeOrderRoundTrip(t *testing.T) {
	payload := []byte(`{
		"headerId": 1, "timestamp": "2026-01-01T00:00:00Z", "version": "2.0.0",
		"manufacturer": "acme", "serialNumber": "v1",
		"orderId": "order-1", "orderUpdateId": 0,
		"nodes": [{"nodeId":"n1","sequenceId":0,"released":true,"actions":[]}],
		"edges": []
	}`)
	o, err := DecodeOrder(payload)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if o.OrderID != "order-1" || len(o.Nodes) != 1 {
		t.Fatalf("unexpected decode result: %+v", o)
	}
}

func TestPeekOrderID(t *testing.T) {
	payload := []byte(`{"orderId": "order-42", "orderUpdateId": 3}`)
	id, ok := PeekOrderID(payload)
	if !ok || id != "order-42" {
		t.Fatalf("expected order-42, got %q ok=%v", id, ok)
	}
	upd, ok := PeekOrderUpdateID(payload)
	if !ok || upd != 3 {
		t.Fatalf("expected update 3, got %d ok=%v", upd, ok)
	}
}

func TestStampHeader(t *testing.T) {
	data := []byte(`{"connectionState":"ONLINE"}`)
	out, err := StampHeader(data, 7, "2.0.0", "acme", "v1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var c Connection
	if err := json.Unmarshal(out, &c); err != nil {
		t.Fatalf("unexpected error decoding stamped message: %v", err)
	}
	if c.HeaderID != 7 || c.Manufacturer != "acme" || c.SerialNumber != "v1" {
		t.Fatalf("unexpected stamped header: %+v", c.Header)
	}
}
