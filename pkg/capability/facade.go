// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

// Package capability implements the onchain and AI operations the agent can
// perform. Every operation returns a human readable string: failures come
// back as text starting with "Error:" instead of Go errors, so the result can
// be handed to a model unchanged.
package capability

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jllopis/basedagent/pkg/errors"
	"github.com/jllopis/basedagent/pkg/wallet"
)

const (
	// FaucetUnavailable is returned by RequestFaucet on the production network.
	FaucetUnavailable = "Error: The faucet is only available on Base Sepolia testnet."
	// SwapUnavailable is returned by SwapAssets outside the production network.
	SwapUnavailable = "Error: Asset swaps are only available on Base Mainnet."
)

var errNoWallet = stderrors.New("wallet not initialized")

// ArtGenerator produces an image for a prompt and returns its URL.
type ArtGenerator interface {
	GenerateArt(ctx context.Context, prompt string) (string, error)
}

// Facade binds the operations to one wallet and one image generator.
type Facade struct {
	wallet wallet.Provider
	art    ArtGenerator
	logger *slog.Logger
}

// Option configures a Facade.
type Option func(*Facade)

// WithWallet attaches the wallet used by onchain operations.
func WithWallet(w wallet.Provider) Option {
	return func(f *Facade) { f.wallet = w }
}

// WithArtGenerator attaches the image generator used by GenerateArt.
func WithArtGenerator(g ArtGenerator) Option {
	return func(f *Facade) { f.art = g }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(f *Facade) {
		if l != nil {
			f.logger = l
		}
	}
}

// New creates a Facade.
func New(opts ...Option) *Facade {
	f := &Facade{logger: slog.Default()}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Address returns the wallet address, or "" before a wallet is attached.
func (f *Facade) Address() string {
	if f.wallet == nil {
		return ""
	}
	return f.wallet.Address()
}

// IsMainnet reports whether the attached wallet is on the production network.
func (f *Facade) IsMainnet() bool {
	return f.wallet != nil && f.wallet.Network().IsMainnet()
}

// CreateToken deploys an ERC-20 token. initialSupply is decimal text.
func (f *Facade) CreateToken(ctx context.Context, name, symbol, initialSupply string) string {
	if f.wallet == nil {
		return failure("failed to create token", errNoWallet)
	}
	dep, err := f.wallet.DeployToken(ctx, wallet.TokenSpec{Name: name, Symbol: symbol, InitialSupply: initialSupply})
	if err == nil {
		err = settle(ctx, dep, "token deployment")
	}
	if err != nil {
		f.logger.Warn("capability.create_token.failed", slog.String("symbol", symbol), slog.String("error", err.Error()))
		return failure("failed to create token", err)
	}
	f.logger.Info("capability.create_token", slog.String("symbol", symbol), slog.String("contract", dep.ContractAddress()))
	return fmt.Sprintf("Token %s (%s) created with initial supply of %s and contract address %s",
		name, symbol, initialSupply, dep.ContractAddress())
}

// TransferAsset sends amount of assetID to destination. Transfers of USDC on
// the production network are requested as gasless.
func (f *Facade) TransferAsset(ctx context.Context, amount, assetID, destination string) string {
	if f.wallet == nil {
		return failure("failed to transfer asset", errNoWallet)
	}
	gasless := f.wallet.Network().IsMainnet() && strings.EqualFold(assetID, "usdc")

	op, err := f.wallet.Transfer(ctx, wallet.TransferRequest{
		Amount:      amount,
		AssetID:     assetID,
		Destination: destination,
		Gasless:     gasless,
	})
	if err == nil {
		err = settle(ctx, op, "transfer")
	}
	if err != nil {
		f.logger.Warn("capability.transfer.failed", slog.String("asset", assetID), slog.String("error", err.Error()))
		return failure("failed to transfer asset", err)
	}
	f.logger.Info("capability.transfer", slog.String("asset", assetID), slog.Bool("gasless", gasless))
	return "Transfer successfully completed: " + op.String()
}

// GetBalance reports the wallet balance of assetID.
func (f *Facade) GetBalance(ctx context.Context, assetID string) string {
	if f.wallet == nil {
		return failure("failed to get balance", errNoWallet)
	}
	bal, err := f.wallet.Balance(ctx, assetID)
	if err != nil {
		return failure("failed to get balance", err)
	}
	return fmt.Sprintf("Current balance of %s: %s", assetID, bal)
}

// RequestFaucet asks the testnet faucet for funds. On the production network
// the wallet is not called.
func (f *Facade) RequestFaucet(ctx context.Context) string {
	if f.wallet == nil {
		return failure("failed to request from faucet", errNoWallet)
	}
	if f.wallet.Network().IsMainnet() {
		return FaucetUnavailable
	}
	op, err := f.wallet.Faucet(ctx)
	if err == nil {
		err = settle(ctx, op, "faucet transaction")
	}
	if err != nil {
		f.logger.Warn("capability.faucet.failed", slog.String("error", err.Error()))
		return failure("failed to request from faucet", err)
	}
	f.logger.Info("capability.faucet")
	return "Faucet transaction completed successfully: " + op.String()
}

// GenerateArt creates an image from prompt.
func (f *Facade) GenerateArt(ctx context.Context, prompt string) string {
	if f.art == nil {
		return "Error: image generation is not configured"
	}
	url, err := f.art.GenerateArt(ctx, prompt)
	if err != nil {
		f.logger.Warn("capability.generate_art.failed", slog.String("error", err.Error()))
		return failure("failed to generate artwork", err)
	}
	return "Generated artwork available at: " + url
}

// DeployNFT deploys an ERC-721 collection.
func (f *Facade) DeployNFT(ctx context.Context, name, symbol, baseURI string) string {
	if f.wallet == nil {
		return failure("failed to deploy NFT", errNoWallet)
	}
	dep, err := f.wallet.DeployNFT(ctx, wallet.NFTSpec{Name: name, Symbol: symbol, BaseURI: baseURI})
	if err == nil {
		err = settle(ctx, dep, "NFT deployment")
	}
	if err != nil {
		f.logger.Warn("capability.deploy_nft.failed", slog.String("symbol", symbol), slog.String("error", err.Error()))
		return failure("failed to deploy NFT", err)
	}
	f.logger.Info("capability.deploy_nft", slog.String("symbol", symbol), slog.String("contract", dep.ContractAddress()))
	return fmt.Sprintf("Successfully deployed NFT contract '%s' (%s) at address %s with base URI: %s",
		name, symbol, dep.ContractAddress(), baseURI)
}

// MintNFT mints one token of the collection at contract to mintTo.
func (f *Facade) MintNFT(ctx context.Context, contract, mintTo string) string {
	if f.wallet == nil {
		return failure("failed to mint NFT", errNoWallet)
	}
	op, err := f.wallet.InvokeContract(ctx, wallet.ContractCall{
		Contract: contract,
		Method:   "mint",
		Args:     map[string]string{"to": mintTo, "quantity": "1"},
	})
	if err == nil {
		err = settle(ctx, op, "mint")
	}
	if err != nil {
		f.logger.Warn("capability.mint_nft.failed", slog.String("contract", contract), slog.String("error", err.Error()))
		return failure("failed to mint NFT", err)
	}
	return "Successfully minted NFT to " + mintTo
}

// SwapAssets trades amount of fromAssetID for toAssetID. Only the production
// network supports trades; elsewhere the wallet is not called.
func (f *Facade) SwapAssets(ctx context.Context, amount, fromAssetID, toAssetID string) string {
	if f.wallet == nil {
		return failure("failed to swap assets", errNoWallet)
	}
	if !f.wallet.Network().IsMainnet() {
		return SwapUnavailable
	}
	op, err := f.wallet.Trade(ctx, wallet.TradeRequest{Amount: amount, FromAssetID: fromAssetID, ToAssetID: toAssetID})
	if err == nil {
		err = settle(ctx, op, "trade")
	}
	if err != nil {
		f.logger.Warn("capability.swap.failed", slog.String("error", err.Error()))
		return failure("failed to swap assets", err)
	}
	return "Trade successfully completed: " + op.String()
}

// settle waits for op and turns any status other than complete into an error.
func settle(ctx context.Context, op wallet.Operation, what string) error {
	if err := op.Wait(ctx); err != nil {
		return err
	}
	if op.Status() != wallet.StatusComplete {
		return fmt.Errorf("%s failed: %s", what, op.String())
	}
	return nil
}

func failure(action string, err error) string {
	return "Error: " + action + ": " + describe(err)
}

// describe renders err without the bracketed code of AgentError.
func describe(err error) string {
	var ae *errors.AgentError
	if stderrors.As(err, &ae) {
		if ae.Err != nil {
			return ae.Message + ": " + ae.Err.Error()
		}
		return ae.Message
	}
	return err.Error()
}
