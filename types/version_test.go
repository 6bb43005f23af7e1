package types

import (
	"encoding/json"
	"testing"
)

func TestDetectVersion(t *testing.T) {
	cases := []struct {
		name    string
		data    string
		want    int
		wantErr bool
	}{
		{"v1", `{"x402Version":1,"scheme":"exact"}`, 1, false},
		{"v2", `{"x402Version":2,"accepted":{}}`, 2, false},
		{"missing", `{"scheme":"exact"}`, 0, true},
		{"unsupported", `{"x402Version":9}`, 0, true},
		{"garbage", `not json`, 0, true},
	}
	for _, tc := range cases {
		got, err := DetectVersion([]byte(tc.data))
		if tc.wantErr {
			if err == nil {
				t.Errorf("%s: expected an error", tc.name)
			}
			continue
		}
		if err != nil {
			t.Errorf("%s: unexpected error: %v", tc.name, err)
			continue
		}
		if got != tc.want {
			t.Errorf("%s: expected version %d, got %d", tc.name, tc.want, got)
		}
	}
}

func TestExtractRequirementsInfo(t *testing.T) {
	info, err := ExtractRequirementsInfo([]byte(`{"scheme":"exact","network":"eip155:8453","amount":"1000"}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if info.Scheme != "exact" || info.Network != "eip155:8453" {
		t.Errorf("unexpected info: %+v", info)
	}

	if _, err := ExtractRequirementsInfo([]byte(`{"scheme":"exact"}`)); err == nil {
		t.Error("expected missing network to error")
	}
	if _, err := ExtractRequirementsInfo([]byte(`not json`)); err == nil {
		t.Error("expected garbage to error")
	}
}

func TestMatchPayloadToRequirementsV1(t *testing.T) {
	payload, _ := json.Marshal(PaymentPayloadV1{
		X402Version: 1,
		Scheme:      "exact",
		Network:     "base-sepolia",
		Payload:     map[string]interface{}{"signature": "0x0"},
	})
	requirements, _ := json.Marshal(PaymentRequirementsV1{
		Scheme:            "exact",
		Network:           "base-sepolia",
		MaxAmountRequired: "1000",
		PayTo:             "0x1",
		Asset:             "0x0",
	})

	match, err := MatchPayloadToRequirements(1, payload, requirements)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !match {
		t.Error("expected v1 scheme and network to match")
	}

	otherNetwork, _ := json.Marshal(PaymentRequirementsV1{Scheme: "exact", Network: "base"})
	match, err = MatchPayloadToRequirements(1, payload, otherNetwork)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if match {
		t.Error("expected a different network not to match")
	}
}

func TestMatchPayloadToRequirementsV2(t *testing.T) {
	requirements := map[string]interface{}{
		"scheme":  "exact",
		"network": "eip155:8453",
		"asset":   "0xAsset",
		"amount":  "1000",
		"payTo":   "0xPayTo",
	}
	payload := map[string]interface{}{
		"x402Version": 2,
		"accepted":    requirements,
		"payload":     map[string]interface{}{"signature": "0x0"},
	}

	payloadBytes, _ := json.Marshal(payload)
	requirementsBytes, _ := json.Marshal(requirements)

	match, err := MatchPayloadToRequirements(2, payloadBytes, requirementsBytes)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !match {
		t.Error("expected identical terms to match")
	}

	// payTo comparison is case-insensitive.
	upper := map[string]interface{}{}
	for k, v := range requirements {
		upper[k] = v
	}
	upper["payTo"] = "0XPAYTO"
	upperBytes, _ := json.Marshal(upper)
	match, err = MatchPayloadToRequirements(2, payloadBytes, upperBytes)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !match {
		t.Error("expected payTo match to ignore case")
	}

	// Any economic term mismatch rejects.
	for _, field := range []string{"asset", "amount", "network", "scheme"} {
		changed := map[string]interface{}{}
		for k, v := range requirements {
			changed[k] = v
		}
		changed[field] = "other"
		changedBytes, _ := json.Marshal(changed)
		match, err = MatchPayloadToRequirements(2, payloadBytes, changedBytes)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if match {
			t.Errorf("expected %s mismatch not to match", field)
		}
	}

	if _, err := MatchPayloadToRequirements(3, payloadBytes, requirementsBytes); err == nil {
		t.Error("expected unsupported version to error")
	}
}
