// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package evm

import (
	"context"
	stderrors "errors"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	coretypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/jllopis/basedagent/pkg/errors"
	"github.com/jllopis/basedagent/pkg/resilience"
	"github.com/jllopis/basedagent/pkg/wallet"
)

// operation tracks a submitted transaction until its receipt is available.
type operation struct {
	w        *Wallet
	kind     string
	hash     common.Hash
	contract string
	fields   []wallet.Field

	mu     sync.Mutex
	status wallet.Status
}

func (w *Wallet) operation(kind string, hash common.Hash, contract string, fields ...wallet.Field) *operation {
	return &operation{
		w:        w,
		kind:     kind,
		hash:     hash,
		contract: contract,
		fields:   fields,
		status:   wallet.StatusPending,
	}
}

// Wait polls for the receipt. A reverted transaction settles as failed
// without returning an error.
func (o *operation) Wait(ctx context.Context) error {
	rc := resilience.RetryConfig{
		MaxAttempts:  o.w.attempts,
		InitialDelay: o.w.poll,
		MaxDelay:     o.w.poll,
		Multiplier:   1,
		IsRecoverable: func(err error) bool {
			return stderrors.Is(err, ethereum.NotFound)
		},
	}
	receipt, err := resilience.Retry(ctx, rc, func() (*coretypes.Receipt, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return o.w.backend.TransactionReceipt(ctx, o.hash)
	})
	if err != nil {
		if stderrors.Is(err, ethereum.NotFound) {
			return errors.New(errors.CodeTimeout, "transaction not mined", err).
				WithContext("tx_hash", o.hash.Hex()).
				WithRecoverable(true)
		}
		return errors.New(errors.CodeWalletError, "wait for receipt", err).
			WithContext("tx_hash", o.hash.Hex())
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if receipt.Status == coretypes.ReceiptStatusSuccessful {
		o.status = wallet.StatusComplete
	} else {
		o.status = wallet.StatusFailed
	}
	if o.contract == "" && receipt.ContractAddress != (common.Address{}) {
		o.contract = receipt.ContractAddress.Hex()
	}
	return nil
}

func (o *operation) Status() wallet.Status {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.status
}

func (o *operation) ContractAddress() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.contract
}

func (o *operation) String() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	fields := make([]wallet.Field, 0, len(o.fields)+4)
	if o.contract != "" {
		fields = append(fields, wallet.Field{Key: "contractAddress", Value: o.contract})
	}
	fields = append(fields, o.fields...)
	fields = append(fields,
		wallet.Field{Key: "transactionHash", Value: o.hash.Hex()},
		wallet.Field{Key: "transactionLink", Value: o.w.network.TxLink(o.hash.Hex())},
		wallet.Field{Key: "status", Value: string(o.status)},
	)
	return wallet.Describe(o.kind, fields...)
}
