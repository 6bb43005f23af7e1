package types

import "strings"

// v1NetworkAliases maps legacy v1 network names to their CAIP-2
// identifiers. V1 messages use the alias form; v2 uses CAIP-2.
var v1NetworkAliases = map[string]string{
	"base":              "eip155:8453",
	"base-sepolia":      "eip155:84532",
	"ethereum":          "eip155:1",
	"sepolia":           "eip155:11155111",
	"avalanche":         "eip155:43114",
	"avalanche-fuji":    "eip155:43113",
	"polygon":           "eip155:137",
	"polygon-amoy":      "eip155:80002",
	"solana":            "solana:5eykt4UsFv8P8NJdTREpY1vzqKqZKvdp",
	"solana-devnet":     "solana:EtWTRABZaYq6iMfeYKouRu166VU2xqa1",
	"sei":               "eip155:1329",
	"sei-testnet":       "eip155:1328",
	"iotex":             "eip155:4689",
	"iotex-testnet":     "eip155:4690",
	"peaq":              "eip155:3338",
	"hypercore":         "hypercore:mainnet",
	"hypercore-testnet": "hypercore:testnet",
}

// V1NetworkToCAIP resolves a legacy alias to its CAIP-2 identifier. The
// input is returned unchanged when it is not a known alias.
func V1NetworkToCAIP(network string) string {
	if caip, ok := v1NetworkAliases[network]; ok {
		return caip
	}
	return network
}

// CAIPToV1Network resolves a CAIP-2 identifier back to its legacy alias,
// when one exists.
func CAIPToV1Network(network string) (string, bool) {
	for alias, caip := range v1NetworkAliases {
		if caip == network {
			return alias, true
		}
	}
	return "", false
}

// NormalizeNetwork returns the CAIP-2 form of a network from either wire
// version. Aliases resolve through the table; identifiers that already
// contain a namespace pass through.
func NormalizeNetwork(network string) string {
	if strings.Contains(network, ":") {
		return network
	}
	return V1NetworkToCAIP(network)
}
