package rpccodec

import "testing"

type sample struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func TestJSONCodecRoundTrip(t *testing.T) {
	c := jsonCodec{}
	data, err := c.Marshal(sample{Name: "hikvision", Count: 3})
	if err != nil {
		t.Fatalf("Marshal returned error: %v", err)
	}

	var out sample
	if err := c.Unmarshal(data, &out); err != nil {
		t.Fatalf("Unmarshal returned error: %v", err)
	}
	if out.Name != "hikvision" || out.Count != 3 {
		t.Errorf("got %+v, want {hikvision 3}", out)
	}
}

func TestJSONCodecName(t *testing.T) {
	c := jsonCodec{}
	if c.Name() != Name {
		t.Errorf("Name() = %q, want %q", c.Name(), Name)
	}
	if Name != "json" {
		t.Errorf("Name = %q, want json", Name)
	}
}

func TestJSONCodecUnmarshalInvalidData(t *testing.T) {
	c := jsonCodec{}
	var out sample
	if err := c.Unmarshal([]byte("not json"), &out); err == nil {
		t.Error("expected an error unmarshalling invalid JSON")
	}
}
