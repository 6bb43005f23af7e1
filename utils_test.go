package x402

import "testing"

func TestRegistryLookupSpecificity(t *testing.T) {
	schemes := make(map[int]map[Network]map[string]string)
	registerScheme(schemes, 2, Network("*:*"), "exact", "universal")
	registerScheme(schemes, 2, Network("eip155:*"), "exact", "family")
	registerScheme(schemes, 2, Network("eip155:8453"), "exact", "exact")

	cases := []struct {
		network Network
		want    string
	}{
		{"eip155:8453", "exact"},
		{"eip155:84532", "family"},
		{"solana:mainnet", "universal"},
	}
	for _, tc := range cases {
		got, ok := findByNetworkAndScheme(schemes, 2, tc.network, "exact")
		if !ok {
			t.Errorf("expected a mechanism for %s", tc.network)
			continue
		}
		if got != tc.want {
			t.Errorf("network %s: expected %s registration to win, got %s", tc.network, tc.want, got)
		}
	}

	if _, ok := findByNetworkAndScheme(schemes, 1, Network("eip155:8453"), "exact"); ok {
		t.Error("expected no mechanism at an unregistered version")
	}
	if _, ok := findByNetworkAndScheme(schemes, 2, Network("eip155:8453"), "permit"); ok {
		t.Error("expected no mechanism for an unregistered scheme")
	}
}

func TestRegistryReplacesSameTriple(t *testing.T) {
	schemes := make(map[int]map[Network]map[string]string)
	registerScheme(schemes, 2, Network("eip155:8453"), "exact", "old")
	registerScheme(schemes, 2, Network("eip155:8453"), "exact", "new")

	got, ok := findByNetworkAndScheme(schemes, 2, Network("eip155:8453"), "exact")
	if !ok || got != "new" {
		t.Errorf("expected re-registration to replace, got %q", got)
	}
}

func TestFindSchemesByNetwork(t *testing.T) {
	schemes := make(map[int]map[Network]map[string]string)
	registerScheme(schemes, 2, Network("*:*"), "exact", "universal")
	registerScheme(schemes, 2, Network("eip155:*"), "exact", "family")
	registerScheme(schemes, 2, Network("eip155:*"), "permit", "family-permit")

	found := findSchemesByNetwork(schemes, 2, Network("eip155:8453"))
	if len(found) != 2 {
		t.Fatalf("expected two schemes, got %d", len(found))
	}
	if found["exact"] != "family" {
		t.Errorf("expected the more specific registration to win, got %s", found["exact"])
	}
	if found["permit"] != "family-permit" {
		t.Errorf("unexpected permit registration: %s", found["permit"])
	}
}

func TestValidatePaymentRequirements(t *testing.T) {
	valid := PaymentRequirements{
		Scheme:  "exact",
		Network: "eip155:8453",
		Asset:   "0x0",
		Amount:  "1000",
		PayTo:   "0x1",
	}
	if err := ValidatePaymentRequirements(valid); err != nil {
		t.Errorf("expected valid requirements, got %v", err)
	}

	cases := []struct {
		name   string
		mutate func(*PaymentRequirements)
	}{
		{"missing scheme", func(r *PaymentRequirements) { r.Scheme = "" }},
		{"missing network", func(r *PaymentRequirements) { r.Network = "" }},
		{"missing payTo", func(r *PaymentRequirements) { r.PayTo = "" }},
		{"missing amount", func(r *PaymentRequirements) { r.Amount = "" }},
		{"negative amount", func(r *PaymentRequirements) { r.Amount = "-5" }},
		{"decimal amount", func(r *PaymentRequirements) { r.Amount = "1.5" }},
	}
	for _, tc := range cases {
		req := valid
		tc.mutate(&req)
		err := ValidatePaymentRequirements(req)
		if err == nil {
			t.Errorf("%s: expected an error", tc.name)
			continue
		}
		perr, ok := err.(*PaymentError)
		if !ok || perr.Code != ErrCodeInvalidRequirements {
			t.Errorf("%s: expected invalid_requirements, got %v", tc.name, err)
		}
	}
}

func TestValidatePaymentPayload(t *testing.T) {
	v2 := PaymentPayload{
		X402Version: 2,
		Accepted:    PaymentRequirements{Scheme: "exact", Network: "eip155:8453"},
		Payload:     map[string]interface{}{"signature": "0x0"},
	}
	if err := ValidatePaymentPayload(v2); err != nil {
		t.Errorf("expected valid v2 payload, got %v", err)
	}

	v1 := PaymentPayload{
		X402Version: 1,
		Scheme:      "exact",
		Network:     "base-sepolia",
		Payload:     map[string]interface{}{"signature": "0x0"},
	}
	if err := ValidatePaymentPayload(v1); err != nil {
		t.Errorf("expected valid v1 payload, got %v", err)
	}

	missingAccepted := v2
	missingAccepted.Accepted = PaymentRequirements{}
	if err := ValidatePaymentPayload(missingAccepted); err == nil {
		t.Error("expected v2 payload without accepted to be invalid")
	}

	missingScheme := v1
	missingScheme.Scheme = ""
	if err := ValidatePaymentPayload(missingScheme); err == nil {
		t.Error("expected v1 payload without scheme to be invalid")
	}

	noPayload := v2
	noPayload.Payload = nil
	if err := ValidatePaymentPayload(noPayload); err == nil {
		t.Error("expected payload-less message to be invalid")
	}

	badVersion := v2
	badVersion.X402Version = 3
	if err := ValidatePaymentPayload(badVersion); err == nil {
		t.Error("expected unknown version to be invalid")
	}
}

func TestNetworkMatch(t *testing.T) {
	cases := []struct {
		network Network
		pattern Network
		want    bool
	}{
		{"eip155:8453", "eip155:8453", true},
		{"eip155:8453", "eip155:*", true},
		{"eip155:8453", "*:*", true},
		{"eip155:8453", "solana:*", false},
		{"eip155:8453", "eip155:1", false},
		// Match is symmetric: either side may be the pattern.
		{"eip155:*", "eip155:8453", true},
	}
	for _, tc := range cases {
		if got := tc.network.Match(tc.pattern); got != tc.want {
			t.Errorf("Match(%s, %s) = %v, want %v", tc.network, tc.pattern, got, tc.want)
		}
	}
}

func TestNetworkFamily(t *testing.T) {
	if got := Network("eip155:8453").Family(); got != "eip155" {
		t.Errorf("expected family eip155, got %s", got)
	}
	if got := Network("base-sepolia").Family(); got != "base-sepolia" {
		t.Errorf("expected alias networks to be their own family, got %s", got)
	}
	if !Network("eip155:*").IsWildcard() {
		t.Error("expected eip155:* to be a wildcard")
	}
	if Network("eip155:8453").IsWildcard() {
		t.Error("expected a concrete network not to be a wildcard")
	}
}
