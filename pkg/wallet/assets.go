// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package wallet

import (
	"fmt"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"gopkg.in/yaml.v3"
)

// Asset is a transferable asset on one network. An empty Address denotes the
// native currency.
type Asset struct {
	ID       string `yaml:"id"`
	Address  string `yaml:"address"`
	Decimals uint8  `yaml:"decimals"`
}

// IsNative reports whether the asset is the chain's native currency.
func (a Asset) IsNative() bool {
	return a.Address == ""
}

// AssetRegistry maps asset ids to per-network contract details.
type AssetRegistry struct {
	networks map[Network]map[string]Asset
}

type assetFile struct {
	Networks map[string][]Asset `yaml:"networks"`
}

// DefaultAssets returns the assets known on Base out of the box.
func DefaultAssets() *AssetRegistry {
	r := &AssetRegistry{networks: map[Network]map[string]Asset{}}
	for _, n := range []Network{BaseMainnet, BaseSepolia} {
		r.add(n, Asset{ID: "eth", Decimals: 18})
		r.add(n, Asset{ID: "weth", Address: "0x4200000000000000000000000000000000000006", Decimals: 18})
	}
	r.add(BaseMainnet, Asset{ID: "usdc", Address: "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913", Decimals: 6})
	r.add(BaseSepolia, Asset{ID: "usdc", Address: "0x036CbD53842c5426634e7929541eC2318f3dCF7e", Decimals: 6})
	return r
}

// LoadAssetRegistry reads a YAML asset file and layers it over DefaultAssets.
// An empty path returns the defaults.
//
//	networks:
//	  base-sepolia:
//	    - id: degen
//	      address: "0x..."
//	      decimals: 18
func LoadAssetRegistry(path string) (*AssetRegistry, error) {
	r := DefaultAssets()
	if strings.TrimSpace(path) == "" {
		return r, nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read asset registry: %w", err)
	}
	var file assetFile
	if err := yaml.Unmarshal(content, &file); err != nil {
		return nil, fmt.Errorf("parse asset registry: %w", err)
	}
	for name, assets := range file.Networks {
		n, err := ParseNetwork(name)
		if err != nil {
			return nil, err
		}
		for _, a := range assets {
			if strings.TrimSpace(a.ID) == "" {
				return nil, fmt.Errorf("asset registry: %s has an asset without id", name)
			}
			if a.Address != "" && !common.IsHexAddress(a.Address) {
				return nil, fmt.Errorf("asset registry: %s/%s has invalid address %q", name, a.ID, a.Address)
			}
			r.add(n, a)
		}
	}
	return r, nil
}

func (r *AssetRegistry) add(n Network, a Asset) {
	if r.networks[n] == nil {
		r.networks[n] = map[string]Asset{}
	}
	a.ID = strings.ToLower(strings.TrimSpace(a.ID))
	if a.Address != "" {
		a.Address = common.HexToAddress(a.Address).Hex()
	}
	r.networks[n][a.ID] = a
}

// Resolve looks up assetID on network n. Ids are case-insensitive. A hex
// contract address that is not registered resolves with known=false and
// 18 decimals.
func (r *AssetRegistry) Resolve(n Network, assetID string) (asset Asset, known bool, err error) {
	id := strings.ToLower(strings.TrimSpace(assetID))
	if a, ok := r.networks[n][id]; ok {
		return a, true, nil
	}
	if common.IsHexAddress(id) {
		addr := common.HexToAddress(id).Hex()
		for _, a := range r.networks[n] {
			if a.Address == addr {
				return a, true, nil
			}
		}
		return Asset{ID: addr, Address: addr, Decimals: 18}, false, nil
	}
	return Asset{}, false, fmt.Errorf("unsupported asset %q on %s", assetID, n)
}
