// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package evm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jllopis/basedagent/pkg/errors"
	"github.com/jllopis/basedagent/pkg/wallet"
)

type faucetRequest struct {
	Address string `json:"address"`
	Network string `json:"network"`
}

type faucetResponse struct {
	TransactionHash string `json:"transaction_hash"`
}

// Faucet implements wallet.Provider by asking the configured faucet service
// to fund the wallet address. Only testnets have a faucet.
func (w *Wallet) Faucet(ctx context.Context) (wallet.Operation, error) {
	if w.network.IsMainnet() {
		return nil, errors.New(errors.CodeWalletError, "faucet is not available on "+string(w.network), nil)
	}
	if strings.TrimSpace(w.faucetURL) == "" {
		return nil, errors.New(errors.CodeConfiguration, "no faucet url configured", nil)
	}

	body, err := json.Marshal(faucetRequest{Address: w.from.Hex(), Network: string(w.network)})
	if err != nil {
		return nil, errors.New(errors.CodeInternal, "encode faucet request", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.faucetURL, bytes.NewReader(body))
	if err != nil {
		return nil, errors.New(errors.CodeConfiguration, "build faucet request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.http.Do(req)
	if err != nil {
		return nil, errors.New(errors.CodeWalletError, "faucet request failed", err).WithRecoverable(true)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, errors.New(errors.CodeWalletError,
			fmt.Sprintf("faucet returned %d: %s", resp.StatusCode, strings.TrimSpace(string(msg))), nil).
			WithRecoverable(resp.StatusCode >= 500)
	}

	var out faucetResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, errors.New(errors.CodeWalletError, "decode faucet response", err)
	}
	if len(common.FromHex(out.TransactionHash)) != common.HashLength {
		return nil, errors.New(errors.CodeWalletError, fmt.Sprintf("faucet returned invalid transaction hash %q", out.TransactionHash), nil)
	}

	hash := common.HexToHash(out.TransactionHash)
	w.logger.Info("wallet.faucet.submitted",
		slog.String("network", string(w.network)),
		slog.String("tx_hash", hash.Hex()),
	)
	return w.operation("FaucetTransaction", hash, "",
		wallet.Field{Key: "network", Value: string(w.network)},
	), nil
}
