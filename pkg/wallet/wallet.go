// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

// Package wallet defines the boundary between capabilities and the onchain
// wallet that executes them, plus an in-memory implementation.
//
// Every mutating call returns an Operation. Callers Wait on it and then
// treat any Status other than StatusComplete as a failure.
package wallet

import (
	"context"
	"fmt"
	"strings"

	"github.com/jllopis/basedagent/pkg/errors"
)

// Network identifies the chain a wallet operates on.
type Network string

const (
	BaseMainnet Network = "base-mainnet"
	BaseSepolia Network = "base-sepolia"
)

// ParseNetwork accepts the configuration spellings mainnet/testnet as well as
// the network ids.
func ParseNetwork(s string) (Network, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "mainnet", "production", string(BaseMainnet):
		return BaseMainnet, nil
	case "testnet", "development", "", string(BaseSepolia):
		return BaseSepolia, nil
	default:
		return "", errors.New(errors.CodeConfiguration, fmt.Sprintf("unknown network %q", s), nil)
	}
}

// IsMainnet reports whether n is the production network.
func (n Network) IsMainnet() bool {
	return n == BaseMainnet
}

// ChainID returns the EIP-155 chain id of n.
func (n Network) ChainID() int64 {
	if n.IsMainnet() {
		return 8453
	}
	return 84532
}

// TxLink returns the block explorer link for a transaction hash.
func (n Network) TxLink(hash string) string {
	if n.IsMainnet() {
		return "https://basescan.org/tx/" + hash
	}
	return "https://sepolia.basescan.org/tx/" + hash
}

// Status is the completion state of an Operation.
type Status string

const (
	StatusPending  Status = "pending"
	StatusComplete Status = "complete"
	StatusFailed   Status = "failed"
)

// Operation is a submitted wallet action.
type Operation interface {
	// Wait blocks until the action settles or ctx is done.
	Wait(ctx context.Context) error
	// Status is meaningful after Wait returns.
	Status() Status
	// String is a one-line human summary including the transaction reference.
	String() string
}

// Deployment is an Operation that creates a contract.
type Deployment interface {
	Operation
	ContractAddress() string
}

// TokenSpec describes an ERC-20 deployment.
type TokenSpec struct {
	Name          string
	Symbol        string
	InitialSupply string // whole tokens, decimal text
}

// NFTSpec describes an ERC-721 deployment.
type NFTSpec struct {
	Name    string
	Symbol  string
	BaseURI string
}

// TransferRequest moves an asset to a destination address.
type TransferRequest struct {
	Amount      string // decimal text in whole units of the asset
	AssetID     string
	Destination string
	Gasless     bool
}

// TradeRequest swaps one asset for another.
type TradeRequest struct {
	Amount      string
	FromAssetID string
	ToAssetID   string
}

// ContractCall invokes a contract method with named arguments.
type ContractCall struct {
	Contract string
	Method   string
	Args     map[string]string
}

// Provider is the wallet used by the capability facade.
type Provider interface {
	Network() Network
	Address() string
	DeployToken(ctx context.Context, spec TokenSpec) (Deployment, error)
	DeployNFT(ctx context.Context, spec NFTSpec) (Deployment, error)
	Transfer(ctx context.Context, req TransferRequest) (Operation, error)
	Trade(ctx context.Context, req TradeRequest) (Operation, error)
	InvokeContract(ctx context.Context, call ContractCall) (Operation, error)
	// Balance returns the balance of assetID as decimal text in whole units.
	Balance(ctx context.Context, assetID string) (string, error)
	Faucet(ctx context.Context) (Operation, error)
}

// Field is one key/value pair of an Operation summary.
type Field struct {
	Key   string
	Value string
}

// Describe renders an Operation summary such as
// Transfer{asset: eth, amount: 0.1, status: complete}. Empty values are skipped.
func Describe(kind string, fields ...Field) string {
	var sb strings.Builder
	sb.WriteString(kind)
	sb.WriteByte('{')
	first := true
	for _, f := range fields {
		if f.Value == "" {
			continue
		}
		if !first {
			sb.WriteString(", ")
		}
		first = false
		sb.WriteString(f.Key)
		sb.WriteString(": ")
		sb.WriteString(f.Value)
	}
	sb.WriteByte('}')
	return sb.String()
}
