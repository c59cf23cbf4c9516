// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

// Package evm implements wallet.Provider on top of a go-ethereum backend:
// a JSON-RPC client in production or a simulated chain in tests.
package evm

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"log/slog"
	"math/big"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	coretypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/jllopis/basedagent/pkg/errors"
	"github.com/jllopis/basedagent/pkg/wallet"
)

// Backend is the chain access the wallet needs. Both *ethclient.Client and
// the simulated backend satisfy it.
type Backend interface {
	bind.ContractBackend
	bind.DeployBackend
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
}

// Wallet signs with a single key and submits transactions through a Backend.
type Wallet struct {
	backend   Backend
	network   wallet.Network
	key       *ecdsa.PrivateKey
	from      common.Address
	chainID   *big.Int
	assets    *wallet.AssetRegistry
	token     *Artifact
	nft       *Artifact
	erc20     abi.ABI
	faucetURL string
	http      *http.Client
	poll      time.Duration
	attempts  int
	afterSend func()
	closer    func()
	logger    *slog.Logger

	// mu serialises nonce assignment across concurrent submissions.
	mu sync.Mutex
}

// Option configures a Wallet.
type Option func(*Wallet)

// WithChainID overrides the chain id derived from the network.
func WithChainID(id *big.Int) Option {
	return func(w *Wallet) {
		if id != nil {
			w.chainID = new(big.Int).Set(id)
		}
	}
}

// WithAssets sets the registry used to resolve asset ids.
func WithAssets(r *wallet.AssetRegistry) Option {
	return func(w *Wallet) {
		if r != nil {
			w.assets = r
		}
	}
}

// WithTokenArtifact sets the ERC-20 contract deployed by DeployToken. Its
// constructor receives name, symbol and the initial supply in base units.
func WithTokenArtifact(a *Artifact) Option {
	return func(w *Wallet) { w.token = a }
}

// WithNFTArtifact sets the ERC-721 contract deployed by DeployNFT. Its
// constructor receives name, symbol and base URI.
func WithNFTArtifact(a *Artifact) Option {
	return func(w *Wallet) { w.nft = a }
}

// WithFaucet sets the testnet faucet endpoint.
func WithFaucet(url string, client *http.Client) Option {
	return func(w *Wallet) {
		w.faucetURL = url
		if client != nil {
			w.http = client
		}
	}
}

// WithReceiptPolling sets how often and how many times a receipt is polled.
func WithReceiptPolling(interval time.Duration, attempts int) Option {
	return func(w *Wallet) {
		if interval > 0 {
			w.poll = interval
		}
		if attempts > 0 {
			w.attempts = attempts
		}
	}
}

// WithAfterSend registers a hook run after every submitted transaction.
// Simulated chains use it to mine a block.
func WithAfterSend(fn func()) Option {
	return func(w *Wallet) { w.afterSend = fn }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(w *Wallet) {
		if l != nil {
			w.logger = l
		}
	}
}

// New creates a wallet that signs with hexKey on network through backend.
func New(backend Backend, network wallet.Network, hexKey string, opts ...Option) (*Wallet, error) {
	if backend == nil {
		return nil, errors.New(errors.CodeConfiguration, "evm wallet requires a backend", nil)
	}
	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(hexKey), "0x"))
	if err != nil {
		return nil, errors.New(errors.CodeConfiguration, "invalid wallet private key", err)
	}
	parsed, err := abi.JSON(strings.NewReader(erc20ABI))
	if err != nil {
		return nil, errors.New(errors.CodeInternal, "parse erc20 abi", err)
	}

	w := &Wallet{
		backend:  backend,
		network:  network,
		key:      key,
		from:     crypto.PubkeyToAddress(key.PublicKey),
		chainID:  big.NewInt(network.ChainID()),
		assets:   wallet.DefaultAssets(),
		erc20:    parsed,
		http:     &http.Client{Timeout: 30 * time.Second},
		poll:     2 * time.Second,
		attempts: 90,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Dial connects to a JSON-RPC endpoint and returns a wallet using it.
func Dial(ctx context.Context, rpcURL string, network wallet.Network, hexKey string, opts ...Option) (*Wallet, error) {
	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, errors.New(errors.CodeConfiguration, "connect to rpc endpoint", err).
			WithContext("rpc_url", rpcURL)
	}
	w, err := New(client, network, hexKey, opts...)
	if err != nil {
		client.Close()
		return nil, err
	}
	w.closer = client.Close
	return w, nil
}

// Close releases the RPC connection opened by Dial.
func (w *Wallet) Close() {
	if w.closer != nil {
		w.closer()
		w.closer = nil
	}
}

// Network implements wallet.Provider.
func (w *Wallet) Network() wallet.Network { return w.network }

// Address implements wallet.Provider.
func (w *Wallet) Address() string { return w.from.Hex() }

// DeployToken implements wallet.Provider.
func (w *Wallet) DeployToken(ctx context.Context, spec wallet.TokenSpec) (wallet.Deployment, error) {
	if w.token == nil {
		return nil, errors.New(errors.CodeWalletError, "no token contract artifact configured", nil)
	}
	supply, err := wallet.ToBaseUnits(spec.InitialSupply, 18)
	if err != nil {
		return nil, err
	}
	return w.deploy(ctx, w.token, []string{spec.Name, spec.Symbol, supply.String()},
		wallet.Field{Key: "type", Value: "erc20"},
		wallet.Field{Key: "name", Value: spec.Name},
		wallet.Field{Key: "symbol", Value: spec.Symbol},
	)
}

// DeployNFT implements wallet.Provider.
func (w *Wallet) DeployNFT(ctx context.Context, spec wallet.NFTSpec) (wallet.Deployment, error) {
	if w.nft == nil {
		return nil, errors.New(errors.CodeWalletError, "no nft contract artifact configured", nil)
	}
	return w.deploy(ctx, w.nft, []string{spec.Name, spec.Symbol, spec.BaseURI},
		wallet.Field{Key: "type", Value: "erc721"},
		wallet.Field{Key: "name", Value: spec.Name},
		wallet.Field{Key: "symbol", Value: spec.Symbol},
		wallet.Field{Key: "baseURI", Value: spec.BaseURI},
	)
}

func (w *Wallet) deploy(ctx context.Context, art *Artifact, values []string, fields ...wallet.Field) (wallet.Deployment, error) {
	params, err := positionalArgs(art.ABI.Constructor.Inputs, values)
	if err != nil {
		return nil, err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	opts, err := w.transactor(ctx)
	if err != nil {
		return nil, err
	}
	addr, tx, _, err := bind.DeployContract(opts, art.ABI, art.Bytecode, w.backend, params...)
	if err != nil {
		return nil, errors.New(errors.CodeWalletError, "deploy contract", err)
	}
	w.sent("wallet.deploy.submitted", tx)
	return w.operation("SmartContract", tx.Hash(), addr.Hex(), fields...), nil
}

// Transfer implements wallet.Provider. Gasless transfers are not available
// and are sent as regular transactions.
func (w *Wallet) Transfer(ctx context.Context, req wallet.TransferRequest) (wallet.Operation, error) {
	if !common.IsHexAddress(req.Destination) {
		return nil, errors.New(errors.CodeInvalidInput, fmt.Sprintf("invalid destination address %q", req.Destination), nil)
	}
	asset, _, err := w.assets.Resolve(w.network, req.AssetID)
	if err != nil {
		return nil, errors.New(errors.CodeInvalidInput, err.Error(), nil)
	}
	amount, err := wallet.ToBaseUnits(req.Amount, asset.Decimals)
	if err != nil {
		return nil, err
	}
	if req.Gasless {
		w.logger.Warn("wallet.transfer.gasless_unsupported", slog.String("asset", asset.ID))
	}
	to := common.HexToAddress(req.Destination)

	w.mu.Lock()
	defer w.mu.Unlock()

	var tx *coretypes.Transaction
	if asset.IsNative() {
		tx, err = w.sendNative(ctx, to, amount)
	} else {
		var opts *bind.TransactOpts
		if opts, err = w.transactor(ctx); err == nil {
			tx, err = w.bound(common.HexToAddress(asset.Address), w.erc20).Transact(opts, "transfer", to, amount)
		}
	}
	if err != nil {
		return nil, errors.New(errors.CodeWalletError, "submit transfer", err).
			WithContext("asset", asset.ID)
	}
	w.sent("wallet.transfer.submitted", tx)
	return w.operation("Transfer", tx.Hash(), "",
		wallet.Field{Key: "network", Value: string(w.network)},
		wallet.Field{Key: "asset", Value: req.AssetID},
		wallet.Field{Key: "amount", Value: req.Amount},
		wallet.Field{Key: "destination", Value: to.Hex()},
	), nil
}

// Trade implements wallet.Provider. Swaps need a routing service this wallet
// does not integrate with.
func (w *Wallet) Trade(ctx context.Context, req wallet.TradeRequest) (wallet.Operation, error) {
	return nil, errors.New(errors.CodeWalletError, "asset trades are not supported by the evm wallet", nil).
		WithContext("from", req.FromAssetID).
		WithContext("to", req.ToAssetID)
}

// InvokeContract implements wallet.Provider. The method is looked up in the
// configured NFT and token artifacts, then in the ERC-20 interface.
func (w *Wallet) InvokeContract(ctx context.Context, call wallet.ContractCall) (wallet.Operation, error) {
	if !common.IsHexAddress(call.Contract) {
		return nil, errors.New(errors.CodeInvalidInput, fmt.Sprintf("invalid contract address %q", call.Contract), nil)
	}
	contractABI, method, ok := w.findMethod(call.Method)
	if !ok {
		return nil, errors.New(errors.CodeWalletError, "unknown contract method "+call.Method, nil)
	}
	params, err := namedArgs(method.Inputs, call.Args)
	if err != nil {
		return nil, err
	}
	addr := common.HexToAddress(call.Contract)

	w.mu.Lock()
	defer w.mu.Unlock()

	opts, err := w.transactor(ctx)
	if err != nil {
		return nil, err
	}
	tx, err := w.bound(addr, contractABI).Transact(opts, call.Method, params...)
	if err != nil {
		return nil, errors.New(errors.CodeWalletError, "invoke "+call.Method, err)
	}
	w.sent("wallet.invoke.submitted", tx)
	fields := []wallet.Field{
		{Key: "contract", Value: addr.Hex()},
		{Key: "method", Value: call.Method},
	}
	if to, ok := call.Args["to"]; ok {
		fields = append(fields, wallet.Field{Key: "to", Value: to})
	}
	return w.operation("ContractInvocation", tx.Hash(), "", fields...), nil
}

// Balance implements wallet.Provider.
func (w *Wallet) Balance(ctx context.Context, assetID string) (string, error) {
	asset, known, err := w.assets.Resolve(w.network, assetID)
	if err != nil {
		return "", errors.New(errors.CodeInvalidInput, err.Error(), nil)
	}
	if asset.IsNative() {
		v, err := w.backend.BalanceAt(ctx, w.from, nil)
		if err != nil {
			return "", errors.New(errors.CodeWalletError, "read balance", err)
		}
		return wallet.FormatUnits(v, asset.Decimals), nil
	}

	token := w.bound(common.HexToAddress(asset.Address), w.erc20)
	opts := &bind.CallOpts{Context: ctx, From: w.from}
	var out []any
	if err := token.Call(opts, &out, "balanceOf", w.from); err != nil {
		return "", errors.New(errors.CodeWalletError, "read token balance", err).WithContext("asset", asset.ID)
	}
	if len(out) != 1 {
		return "", errors.New(errors.CodeWalletError, "unexpected balanceOf result", nil).WithContext("asset", asset.ID)
	}
	v, _ := out[0].(*big.Int)

	decimals := asset.Decimals
	if !known {
		var dec []any
		if err := token.Call(opts, &dec, "decimals"); err == nil && len(dec) == 1 {
			if d, ok := dec[0].(uint8); ok {
				decimals = d
			}
		}
	}
	return wallet.FormatUnits(v, decimals), nil
}

func (w *Wallet) findMethod(name string) (abi.ABI, abi.Method, bool) {
	for _, art := range []*Artifact{w.nft, w.token} {
		if art == nil {
			continue
		}
		if m, ok := art.ABI.Methods[name]; ok {
			return art.ABI, m, true
		}
	}
	m, ok := w.erc20.Methods[name]
	return w.erc20, m, ok
}

func (w *Wallet) bound(addr common.Address, contractABI abi.ABI) *bind.BoundContract {
	return bind.NewBoundContract(addr, contractABI, w.backend, w.backend, w.backend)
}

func (w *Wallet) transactor(ctx context.Context) (*bind.TransactOpts, error) {
	opts, err := bind.NewKeyedTransactorWithChainID(w.key, w.chainID)
	if err != nil {
		return nil, errors.New(errors.CodeWalletError, "create transactor", err)
	}
	opts.Context = ctx
	return opts, nil
}

func (w *Wallet) sendNative(ctx context.Context, to common.Address, amount *big.Int) (*coretypes.Transaction, error) {
	nonce, err := w.backend.PendingNonceAt(ctx, w.from)
	if err != nil {
		return nil, fmt.Errorf("pending nonce: %w", err)
	}
	tip, err := w.backend.SuggestGasTipCap(ctx)
	if err != nil {
		return nil, fmt.Errorf("suggest gas tip: %w", err)
	}
	head, err := w.backend.HeaderByNumber(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("latest header: %w", err)
	}
	feeCap := new(big.Int).Set(tip)
	if head.BaseFee != nil {
		feeCap.Add(feeCap, new(big.Int).Mul(head.BaseFee, big.NewInt(2)))
	}

	tx := coretypes.NewTx(&coretypes.DynamicFeeTx{
		ChainID:   w.chainID,
		Nonce:     nonce,
		GasTipCap: tip,
		GasFeeCap: feeCap,
		Gas:       21000,
		To:        &to,
		Value:     amount,
	})
	signed, err := coretypes.SignTx(tx, coretypes.LatestSignerForChainID(w.chainID), w.key)
	if err != nil {
		return nil, fmt.Errorf("sign transaction: %w", err)
	}
	if err := w.backend.SendTransaction(ctx, signed); err != nil {
		return nil, fmt.Errorf("send transaction: %w", err)
	}
	return signed, nil
}

func (w *Wallet) sent(event string, tx *coretypes.Transaction) {
	w.logger.Info(event,
		slog.String("network", string(w.network)),
		slog.String("tx_hash", tx.Hash().Hex()),
	)
	if w.afterSend != nil {
		w.afterSend()
	}
}

var _ wallet.Provider = (*Wallet)(nil)
