package protocol

import "testing"

func TestValidate_Samples(t *testing.T) {
	ok := []struct {
		typ string
		msg string
	}{
		{TypeHello, `{"type":"HELLO","protocol_version":"1.0","env":"icemaze","agent_name":"bot1"}`},
		{TypeReset, `{"type":"RESET","protocol_version":"1.0","mode":"generate","seed":42}`},
		{TypeReset, `{"type":"RESET","protocol_version":"1.0","mode":"load","world_id":"w1"}`},
		{TypeStep, `{"type":"STEP","protocol_version":"1.0","action":"move","params":{"direction":"east"}}`},
		{TypeStep, `{"type":"STEP","protocol_version":"1.0","action":"reveal","params":{"first":0,"second":3}}`},
		{TypeState, `{"anything":"goes"}`},
	}
	for _, c := range ok {
		if err := Validate(c.typ, []byte(c.msg)); err != nil {
			t.Fatalf("%s: %v", c.msg, err)
		}
	}

	bad := []struct {
		typ string
		msg string
	}{
		{TypeHello, `{"type":"HELLO","protocol_version":"1.0"}`},
		{TypeReset, `{"type":"RESET","protocol_version":"1.0","mode":"load"}`},
		{TypeReset, `{"type":"RESET","protocol_version":"1.0","mode":"replay"}`},
		{TypeStep, `{"type":"STEP","protocol_version":"1.0","action":""}`},
		{TypeStep, `{"type":"STEP","protocol_version":"1.0","action":"move","params":{"direction":["east"]}}`},
		{TypeStep, `{"type":"STEP","protocol_version":"1.0","action":"move","extra":1}`},
		{TypeStep, `{"type":"STEP","protocol_version":"1.0","action":"jump","params":{"to":1.5}}`},
	}
	for _, c := range bad {
		if err := Validate(c.typ, []byte(c.msg)); err == nil {
			t.Fatalf("expected %s to be rejected", c.msg)
		}
	}
}

func TestDecodeBase(t *testing.T) {
	b, err := DecodeBase([]byte(`{"type":"STEP","protocol_version":"1.0","action":"move"}`))
	if err != nil || b.Type != TypeStep || b.ProtocolVersion != Version {
		t.Fatalf("DecodeBase = %+v, %v", b, err)
	}
	if _, err := DecodeBase([]byte(`not json`)); err == nil {
		t.Fatalf("expected error")
	}
}
