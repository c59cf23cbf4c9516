// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package capability

import (
	"context"

	"github.com/jllopis/basedagent/pkg/tools"
)

// Capability names as seen by the model.
const (
	NameCreateToken   = "createToken"
	NameTransferAsset = "transferAsset"
	NameGetBalance    = "getBalance"
	NameRequestFaucet = "requestFaucet"
	NameGenerateArt   = "generateArt"
	NameDeployNFT     = "deployNft"
	NameMintNFT       = "mintNft"
	NameSwapAssets    = "swapAssets"
)

type tokenParams struct {
	Name, Symbol, InitialSupply string
}

type transferParams struct {
	Amount, AssetID, Destination string
}

type balanceParams struct {
	AssetID string
}

type artParams struct {
	Prompt string
}

type nftParams struct {
	Name, Symbol, BaseURI string
}

type mintParams struct {
	Contract, MintTo string
}

type swapParams struct {
	Amount, FromAssetID, ToAssetID string
}

// Capabilities returns every operation of f bound as a tool, in the order
// they are offered to the model.
func Capabilities(f *Facade) []tools.Capability {
	return []tools.Capability{
		tools.Define(tools.Descriptor{
			Name:        NameCreateToken,
			Description: "Create a new ERC-20 token",
			Params: []tools.Param{
				{Name: "name", Type: tools.TypeString, Required: true, Description: "The name of the token"},
				{Name: "symbol", Type: tools.TypeString, Required: true, Description: "The symbol of the token"},
				{Name: "initialSupply", Type: tools.TypeNumber, Required: true, Description: "The initial supply of tokens"},
			},
		}, func(a tools.Args) (p tokenParams, err error) {
			if p.Name, err = a.String("name"); err != nil {
				return p, err
			}
			if p.Symbol, err = a.String("symbol"); err != nil {
				return p, err
			}
			p.InitialSupply, err = a.Decimal("initialSupply")
			return p, err
		}, func(ctx context.Context, p tokenParams) string {
			return f.CreateToken(ctx, p.Name, p.Symbol, p.InitialSupply)
		}),

		tools.Define(tools.Descriptor{
			Name:        NameTransferAsset,
			Description: "Transfer assets to a specific address",
			Params: []tools.Param{
				{Name: "amount", Type: tools.TypeNumber, Required: true, Description: "Amount to transfer"},
				{Name: "assetId", Type: tools.TypeString, Required: true, Description: `Asset identifier ("eth", "usdc") or contract address`},
				{Name: "destinationAddress", Type: tools.TypeString, Required: true, Description: "Recipient's address"},
			},
		}, func(a tools.Args) (p transferParams, err error) {
			if p.Amount, err = a.Decimal("amount"); err != nil {
				return p, err
			}
			if p.AssetID, err = a.String("assetId"); err != nil {
				return p, err
			}
			p.Destination, err = a.String("destinationAddress")
			return p, err
		}, func(ctx context.Context, p transferParams) string {
			return f.TransferAsset(ctx, p.Amount, p.AssetID, p.Destination)
		}),

		tools.Define(tools.Descriptor{
			Name:        NameGetBalance,
			Description: "Get the balance of a specific asset in the wallet",
			Params: []tools.Param{
				{Name: "assetId", Type: tools.TypeString, Required: true, Description: `Asset identifier ("eth", "usdc") or contract address`},
			},
		}, func(a tools.Args) (p balanceParams, err error) {
			p.AssetID, err = a.String("assetId")
			return p, err
		}, func(ctx context.Context, p balanceParams) string {
			return f.GetBalance(ctx, p.AssetID)
		}),

		tools.Define(tools.Descriptor{
			Name:        NameRequestFaucet,
			Description: "Request ETH from the Base Sepolia testnet faucet",
		}, tools.DecodeNone, func(ctx context.Context, _ tools.NoParams) string {
			return f.RequestFaucet(ctx)
		}),

		tools.Define(tools.Descriptor{
			Name:        NameGenerateArt,
			Description: "Generate art using DALL-E based on a text prompt",
			Params: []tools.Param{
				{Name: "prompt", Type: tools.TypeString, Required: true, Description: "Text description of the artwork to generate"},
			},
		}, func(a tools.Args) (p artParams, err error) {
			p.Prompt, err = a.String("prompt")
			return p, err
		}, func(ctx context.Context, p artParams) string {
			return f.GenerateArt(ctx, p.Prompt)
		}),

		tools.Define(tools.Descriptor{
			Name:        NameDeployNFT,
			Description: "Deploy an ERC-721 NFT contract",
			Params: []tools.Param{
				{Name: "name", Type: tools.TypeString, Required: true, Description: "Name of the NFT collection"},
				{Name: "symbol", Type: tools.TypeString, Required: true, Description: "Symbol of the NFT collection"},
				{Name: "baseUri", Type: tools.TypeString, Required: true, Description: "Base URI for token metadata"},
			},
		}, func(a tools.Args) (p nftParams, err error) {
			if p.Name, err = a.String("name"); err != nil {
				return p, err
			}
			if p.Symbol, err = a.String("symbol"); err != nil {
				return p, err
			}
			p.BaseURI, err = a.String("baseUri")
			return p, err
		}, func(ctx context.Context, p nftParams) string {
			return f.DeployNFT(ctx, p.Name, p.Symbol, p.BaseURI)
		}),

		tools.Define(tools.Descriptor{
			Name:        NameMintNFT,
			Description: "Mint an NFT from an existing collection to an address",
			Params: []tools.Param{
				{Name: "contractAddress", Type: tools.TypeString, Required: true, Description: "Address of the NFT contract"},
				{Name: "mintTo", Type: tools.TypeString, Required: true, Description: "Address that receives the NFT"},
			},
		}, func(a tools.Args) (p mintParams, err error) {
			if p.Contract, err = a.String("contractAddress"); err != nil {
				return p, err
			}
			p.MintTo, err = a.String("mintTo")
			return p, err
		}, func(ctx context.Context, p mintParams) string {
			return f.MintNFT(ctx, p.Contract, p.MintTo)
		}),

		tools.Define(tools.Descriptor{
			Name:        NameSwapAssets,
			Description: "Swap one asset for another (Base Mainnet only)",
			Params: []tools.Param{
				{Name: "amount", Type: tools.TypeNumber, Required: true, Description: "Amount of the source asset to swap"},
				{Name: "fromAssetId", Type: tools.TypeString, Required: true, Description: "Asset to swap from"},
				{Name: "toAssetId", Type: tools.TypeString, Required: true, Description: "Asset to swap to"},
			},
		}, func(a tools.Args) (p swapParams, err error) {
			if p.Amount, err = a.Decimal("amount"); err != nil {
				return p, err
			}
			if p.FromAssetID, err = a.String("fromAssetId"); err != nil {
				return p, err
			}
			p.ToAssetID, err = a.String("toAssetId")
			return p, err
		}, func(ctx context.Context, p swapParams) string {
			return f.SwapAssets(ctx, p.Amount, p.FromAssetID, p.ToAssetID)
		}),
	}
}
