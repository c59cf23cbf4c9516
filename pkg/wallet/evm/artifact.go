// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package evm

import (
	"encoding/json"
	"fmt"
	"math/big"
	"os"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/jllopis/basedagent/pkg/errors"
)

// erc20ABI covers the calls the wallet makes on arbitrary tokens.
const erc20ABI = `[
 {"type":"function","name":"balanceOf","stateMutability":"view","inputs":[{"name":"account","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
 {"type":"function","name":"decimals","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint8"}]},
 {"type":"function","name":"transfer","stateMutability":"nonpayable","inputs":[{"name":"to","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[{"name":"","type":"bool"}]}
]`

// Artifact is a compiled contract: its ABI and creation bytecode.
type Artifact struct {
	ABI      abi.ABI
	Bytecode []byte
}

// artifactFile accepts both the Hardhat layout ("bytecode": "0x...") and the
// Foundry layout ("bytecode": {"object": "0x..."}).
type artifactFile struct {
	ABI      json.RawMessage `json:"abi"`
	Bytecode json.RawMessage `json:"bytecode"`
}

// LoadArtifact reads a compiled contract JSON file.
func LoadArtifact(path string) (*Artifact, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.New(errors.CodeConfiguration, "read contract artifact", err).
			WithContext("path", path)
	}
	a, err := ParseArtifact(content)
	if err != nil {
		return nil, errors.AsAgentError(err).WithContext("path", path)
	}
	return a, nil
}

// ParseArtifact decodes a compiled contract JSON document.
func ParseArtifact(content []byte) (*Artifact, error) {
	var file artifactFile
	if err := json.Unmarshal(content, &file); err != nil {
		return nil, errors.New(errors.CodeConfiguration, "parse contract artifact", err)
	}
	if len(file.ABI) == 0 {
		return nil, errors.New(errors.CodeConfiguration, "contract artifact has no abi", nil)
	}
	parsed, err := abi.JSON(strings.NewReader(string(file.ABI)))
	if err != nil {
		return nil, errors.New(errors.CodeConfiguration, "parse contract abi", err)
	}

	var code string
	if err := json.Unmarshal(file.Bytecode, &code); err != nil {
		var obj struct {
			Object string `json:"object"`
		}
		if err := json.Unmarshal(file.Bytecode, &obj); err != nil {
			return nil, errors.New(errors.CodeConfiguration, "contract artifact has no bytecode", err)
		}
		code = obj.Object
	}
	bytecode := common.FromHex(code)
	if len(bytecode) == 0 {
		return nil, errors.New(errors.CodeConfiguration, "contract artifact has empty bytecode", nil)
	}
	return &Artifact{ABI: parsed, Bytecode: bytecode}, nil
}

// positionalArgs converts values to the Go types expected by inputs, in order.
func positionalArgs(inputs abi.Arguments, values []string) ([]any, error) {
	if len(inputs) > len(values) {
		return nil, errors.New(errors.CodeWalletError,
			fmt.Sprintf("constructor expects %d arguments, have %d", len(inputs), len(values)), nil)
	}
	out := make([]any, 0, len(inputs))
	for i, in := range inputs {
		v, err := convertArg(in, values[i])
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// namedArgs converts a map of argument names to the inputs of a method.
func namedArgs(inputs abi.Arguments, values map[string]string) ([]any, error) {
	out := make([]any, 0, len(inputs))
	for _, in := range inputs {
		s, ok := values[in.Name]
		if !ok {
			return nil, errors.New(errors.CodeInvalidInput, "missing contract argument "+in.Name, nil).
				WithContext("parameter", in.Name)
		}
		v, err := convertArg(in, s)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func convertArg(in abi.Argument, s string) (any, error) {
	s = strings.TrimSpace(s)
	bad := func(cause error) error {
		return errors.New(errors.CodeInvalidInput,
			fmt.Sprintf("argument %s: %q is not a valid %s", in.Name, s, in.Type.String()), cause).
			WithContext("parameter", in.Name)
	}

	switch in.Type.T {
	case abi.StringTy:
		return s, nil
	case abi.AddressTy:
		if !common.IsHexAddress(s) {
			return nil, bad(nil)
		}
		return common.HexToAddress(s), nil
	case abi.BoolTy:
		b, err := strconv.ParseBool(s)
		if err != nil {
			return nil, bad(err)
		}
		return b, nil
	case abi.UintTy:
		n, ok := new(big.Int).SetString(s, 10)
		if !ok || n.Sign() < 0 || n.BitLen() > in.Type.Size {
			return nil, bad(nil)
		}
		switch in.Type.Size {
		case 8:
			return uint8(n.Uint64()), nil
		case 16:
			return uint16(n.Uint64()), nil
		case 32:
			return uint32(n.Uint64()), nil
		case 64:
			return n.Uint64(), nil
		}
		return n, nil
	case abi.IntTy:
		n, ok := new(big.Int).SetString(s, 10)
		if !ok || n.BitLen() >= in.Type.Size {
			return nil, bad(nil)
		}
		switch in.Type.Size {
		case 8:
			return int8(n.Int64()), nil
		case 16:
			return int16(n.Int64()), nil
		case 32:
			return int32(n.Int64()), nil
		case 64:
			return n.Int64(), nil
		}
		return n, nil
	default:
		return nil, errors.New(errors.CodeInvalidInput,
			fmt.Sprintf("argument %s has unsupported type %s", in.Name, in.Type.String()), nil)
	}
}
