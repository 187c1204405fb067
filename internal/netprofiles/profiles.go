package netprofiles

import (
	"sort"
	"strings"
)

// NetworkProfile defines the full node endpoint and chain id of a network
type NetworkProfile struct {
	Name    string `json:"name"`
	BaseURL string `json:"base_url"`
	ChainID uint8  `json:"chain_id"`
	Faucet  string `json:"faucet,omitempty"`
}

// Network names
const (
	Mainnet = "mainnet"
	Testnet = "testnet"
	Devnet  = "devnet"
)

// Profiles contains the predefined network configurations
var Profiles = map[string]NetworkProfile{
	Mainnet: {
		Name:    Mainnet,
		BaseURL: "https://fullnode.mainnet.aptoslabs.com/v1",
		ChainID: 1,
	},
	Testnet: {
		Name:    Testnet,
		BaseURL: "https://fullnode.testnet.aptoslabs.com/v1",
		ChainID: 2,
		Faucet:  "https://faucet.testnet.aptoslabs.com",
	},
	Devnet: {
		Name:    Devnet,
		BaseURL: "https://fullnode.devnet.aptoslabs.com/v1",
		// devnet is reset regularly and its chain id changes; 0 means "ask the node"
		ChainID: 0,
		Faucet:  "https://faucet.devnet.aptoslabs.com",
	},
}

// GetProfile returns the network profile for the given name
func GetProfile(name string) (NetworkProfile, bool) {
	profile, exists := Profiles[strings.ToLower(name)]
	return profile, exists
}

// BaseURL returns the base URL of a named network or an empty string
func BaseURL(name string) string {
	profile, ok := GetProfile(name)
	if !ok {
		return ""
	}
	return profile.BaseURL
}

// GetAvailableNetworks returns a sorted list of available network names
func GetAvailableNetworks() []string {
	networks := make([]string, 0, len(Profiles))
	for name := range Profiles {
		networks = append(networks, name)
	}
	sort.Strings(networks)
	return networks
}

// IsValidNetwork checks if the given network name is valid
func IsValidNetwork(name string) bool {
	_, exists := GetProfile(name)
	return exists
}
