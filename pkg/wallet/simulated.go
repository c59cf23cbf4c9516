// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package wallet

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"slices"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
)

// Simulated is an in-memory Provider. It keeps balances in base units,
// derives contract addresses the way the chain does, and settles every
// operation immediately. Transfers to the zero address settle as failed.
type Simulated struct {
	mu       sync.Mutex
	network  Network
	address  common.Address
	nonce    uint64
	assets   *AssetRegistry
	balances map[string]*big.Int
	tokens   map[string]Asset
	nfts     map[string]*simNFT
	rates    map[string]*big.Rat
	faucet   string
}

type simNFT struct {
	spec   NFTSpec
	owners []string
}

// SimulatedOption configures a Simulated wallet.
type SimulatedOption func(*Simulated)

// WithSimulatedKey derives the wallet address from key.
func WithSimulatedKey(key *ecdsa.PrivateKey) SimulatedOption {
	return func(s *Simulated) {
		s.address = crypto.PubkeyToAddress(key.PublicKey)
	}
}

// WithSimulatedAssets replaces the asset registry.
func WithSimulatedAssets(r *AssetRegistry) SimulatedOption {
	return func(s *Simulated) {
		if r != nil {
			s.assets = r
		}
	}
}

// WithSimulatedBalance seeds the balance of an asset, in whole units.
// It resolves against the registry in place when the option is applied.
func WithSimulatedBalance(assetID, amount string) SimulatedOption {
	return func(s *Simulated) {
		a, _, err := s.assets.Resolve(s.network, assetID)
		if err != nil {
			return
		}
		v, err := ToBaseUnits(amount, a.Decimals)
		if err != nil {
			return
		}
		s.balances[assetKey(a)] = v
	}
}

// WithSimulatedRate sets how many units of to one unit of from buys.
// Pairs without a rate trade 1:1.
func WithSimulatedRate(from, to, rate string) SimulatedOption {
	return func(s *Simulated) {
		if r, ok := new(big.Rat).SetString(rate); ok {
			s.rates[pairKey(from, to)] = r
		}
	}
}

// WithSimulatedFaucet sets the amount of native currency each faucet call credits.
func WithSimulatedFaucet(amount string) SimulatedOption {
	return func(s *Simulated) {
		s.faucet = amount
	}
}

// NewSimulated creates an empty wallet on network with a fresh random address.
func NewSimulated(network Network, opts ...SimulatedOption) *Simulated {
	s := &Simulated{
		network:  network,
		assets:   DefaultAssets(),
		balances: map[string]*big.Int{},
		tokens:   map[string]Asset{},
		nfts:     map[string]*simNFT{},
		rates:    map[string]*big.Rat{},
		faucet:   "0.0001",
	}
	if key, err := crypto.GenerateKey(); err == nil {
		s.address = crypto.PubkeyToAddress(key.PublicKey)
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Network implements Provider.
func (s *Simulated) Network() Network { return s.network }

// Address implements Provider.
func (s *Simulated) Address() string { return s.address.Hex() }

// DeployToken implements Provider. The whole supply is credited to the wallet.
func (s *Simulated) DeployToken(ctx context.Context, spec TokenSpec) (Deployment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	supply, err := ToBaseUnits(spec.InitialSupply, 18)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	addr := s.nextContract()
	token := Asset{ID: strings.ToLower(spec.Symbol), Address: addr.Hex(), Decimals: 18}
	s.tokens[addr.Hex()] = token
	s.balances[assetKey(token)] = supply

	return s.settle("SmartContract", StatusComplete, addr.Hex(),
		Field{"type", "erc20"},
		Field{"name", spec.Name},
		Field{"symbol", spec.Symbol},
	), nil
}

// DeployNFT implements Provider.
func (s *Simulated) DeployNFT(ctx context.Context, spec NFTSpec) (Deployment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	addr := s.nextContract()
	s.nfts[addr.Hex()] = &simNFT{spec: spec}
	return s.settle("SmartContract", StatusComplete, addr.Hex(),
		Field{"type", "erc721"},
		Field{"name", spec.Name},
		Field{"symbol", spec.Symbol},
		Field{"baseURI", spec.BaseURI},
	), nil
}

// Transfer implements Provider.
func (s *Simulated) Transfer(ctx context.Context, req TransferRequest) (Operation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !common.IsHexAddress(req.Destination) {
		return nil, fmt.Errorf("invalid destination address %q", req.Destination)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	asset, err := s.resolve(req.AssetID)
	if err != nil {
		return nil, err
	}
	amount, err := ToBaseUnits(req.Amount, asset.Decimals)
	if err != nil {
		return nil, err
	}
	if amount.Sign() == 0 {
		return nil, fmt.Errorf("transfer amount must be positive")
	}
	if err := s.debit(asset, amount); err != nil {
		return nil, err
	}

	status := StatusComplete
	if common.HexToAddress(req.Destination) == (common.Address{}) {
		s.credit(asset, amount)
		status = StatusFailed
	}
	return s.settle("Transfer", status, "",
		Field{"network", string(s.network)},
		Field{"asset", req.AssetID},
		Field{"amount", req.Amount},
		Field{"destination", common.HexToAddress(req.Destination).Hex()},
	), nil
}

// Trade implements Provider.
func (s *Simulated) Trade(ctx context.Context, req TradeRequest) (Operation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	from, err := s.resolve(req.FromAssetID)
	if err != nil {
		return nil, err
	}
	to, err := s.resolve(req.ToAssetID)
	if err != nil {
		return nil, err
	}
	amount, err := ToBaseUnits(req.Amount, from.Decimals)
	if err != nil {
		return nil, err
	}
	if err := s.debit(from, amount); err != nil {
		return nil, err
	}

	rate, ok := s.rates[pairKey(req.FromAssetID, req.ToAssetID)]
	if !ok {
		rate = big.NewRat(1, 1)
	}
	whole, _ := new(big.Rat).SetString(strings.TrimSpace(req.Amount))
	out := new(big.Rat).Mul(whole, rate)
	received, err := ToBaseUnits(out.FloatString(int(to.Decimals)), to.Decimals)
	if err != nil {
		s.credit(from, amount)
		return nil, err
	}
	s.credit(to, received)

	return s.settle("Trade", StatusComplete, "",
		Field{"network", string(s.network)},
		Field{"from", req.FromAssetID},
		Field{"to", req.ToAssetID},
		Field{"amount", req.Amount},
		Field{"received", FormatUnits(received, to.Decimals)},
	), nil
}

// InvokeContract implements Provider. Only "mint" on NFTs deployed by this
// wallet is understood.
func (s *Simulated) InvokeContract(ctx context.Context, call ContractCall) (Operation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	nft, ok := s.nfts[common.HexToAddress(call.Contract).Hex()]
	if !ok || !common.IsHexAddress(call.Contract) {
		return nil, fmt.Errorf("no contract deployed at %s", call.Contract)
	}
	if call.Method != "mint" {
		return nil, fmt.Errorf("method %s is not supported by %s", call.Method, call.Contract)
	}
	to := call.Args["to"]
	if !common.IsHexAddress(to) {
		return nil, fmt.Errorf("invalid mint recipient %q", to)
	}
	qty, ok := new(big.Int).SetString(call.Args["quantity"], 10)
	if !ok || qty.Sign() <= 0 {
		qty = big.NewInt(1)
	}
	for i := int64(0); i < qty.Int64(); i++ {
		nft.owners = append(nft.owners, common.HexToAddress(to).Hex())
	}
	return s.settle("ContractInvocation", StatusComplete, "",
		Field{"contract", common.HexToAddress(call.Contract).Hex()},
		Field{"method", call.Method},
		Field{"to", common.HexToAddress(to).Hex()},
	), nil
}

// Balance implements Provider.
func (s *Simulated) Balance(ctx context.Context, assetID string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	asset, err := s.resolve(assetID)
	if err != nil {
		return "", err
	}
	return FormatUnits(s.balances[assetKey(asset)], asset.Decimals), nil
}

// Faucet implements Provider.
func (s *Simulated) Faucet(ctx context.Context) (Operation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.network.IsMainnet() {
		return nil, fmt.Errorf("faucet is not available on %s", s.network)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	eth, _, _ := s.assets.Resolve(s.network, "eth")
	amount, err := ToBaseUnits(s.faucet, eth.Decimals)
	if err != nil {
		return nil, err
	}
	s.credit(eth, amount)
	return s.settle("FaucetTransaction", StatusComplete, "",
		Field{"network", string(s.network)},
		Field{"amount", s.faucet},
	), nil
}

// Owners returns the recipients of every token minted on an NFT contract.
func (s *Simulated) Owners(contract string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	nft, ok := s.nfts[common.HexToAddress(contract).Hex()]
	if !ok {
		return nil
	}
	return append([]string(nil), nft.owners...)
}

// resolve must be called with s.mu held.
func (s *Simulated) resolve(assetID string) (Asset, error) {
	if common.IsHexAddress(assetID) {
		if t, ok := s.tokens[common.HexToAddress(assetID).Hex()]; ok {
			return t, nil
		}
	}
	id := strings.ToLower(assetID)
	for _, t := range s.tokens {
		if t.ID == id {
			return t, nil
		}
	}
	a, _, err := s.assets.Resolve(s.network, assetID)
	return a, err
}

func (s *Simulated) debit(a Asset, amount *big.Int) error {
	have := s.balances[assetKey(a)]
	if have == nil || have.Cmp(amount) < 0 {
		return fmt.Errorf("insufficient %s balance: have %s, need %s",
			a.ID, FormatUnits(have, a.Decimals), FormatUnits(amount, a.Decimals))
	}
	s.balances[assetKey(a)] = new(big.Int).Sub(have, amount)
	return nil
}

func (s *Simulated) credit(a Asset, amount *big.Int) {
	have := s.balances[assetKey(a)]
	if have == nil {
		have = new(big.Int)
	}
	s.balances[assetKey(a)] = new(big.Int).Add(have, amount)
}

func (s *Simulated) nextContract() common.Address {
	addr := crypto.CreateAddress(s.address, s.nonce)
	s.nonce++
	return addr
}

func (s *Simulated) settle(kind string, status Status, contract string, fields ...Field) *simOperation {
	hash := crypto.Keccak256Hash([]byte(uuid.NewString())).Hex()
	if contract == "" {
		s.nonce++
	}
	fields = append(fields,
		Field{"transactionHash", hash},
		Field{"transactionLink", s.network.TxLink(hash)},
	)
	return &simOperation{kind: kind, status: status, contract: contract, fields: fields}
}

func assetKey(a Asset) string {
	if a.Address != "" {
		return strings.ToLower(a.Address)
	}
	return a.ID
}

func pairKey(from, to string) string {
	return strings.ToLower(from) + "/" + strings.ToLower(to)
}

type simOperation struct {
	kind     string
	status   Status
	contract string
	fields   []Field
}

func (o *simOperation) Wait(ctx context.Context) error { return ctx.Err() }

func (o *simOperation) Status() Status { return o.status }

func (o *simOperation) ContractAddress() string { return o.contract }

func (o *simOperation) String() string {
	var head []Field
	if o.contract != "" {
		head = []Field{{"contractAddress", o.contract}}
	}
	return Describe(o.kind, slices.Concat(head, o.fields, []Field{{"status", string(o.status)}})...)
}

var _ Provider = (*Simulated)(nil)
