// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package tools

import (
	"context"
	"reflect"
	"testing"

	"github.com/jllopis/basedagent/pkg/errors"
	"github.com/jllopis/basedagent/pkg/llm"
)

type transferParams struct {
	Amount      string
	AssetID     string
	Destination string
}

type recorder struct {
	calls []transferParams
}

func (r *recorder) capability() Capability {
	return Define(Descriptor{
		Name:        "transferAsset",
		Description: "Transfer an asset",
		Params: []Param{
			{Name: "amount", Type: TypeNumber, Required: true},
			{Name: "assetId", Type: TypeString, Required: true},
			{Name: "destinationAddress", Type: TypeString, Required: true},
		},
	}, func(a Args) (transferParams, error) {
		var p transferParams
		var err error
		if p.Amount, err = a.Decimal("amount"); err != nil {
			return p, err
		}
		if p.AssetID, err = a.String("assetId"); err != nil {
			return p, err
		}
		p.Destination, err = a.String("destinationAddress")
		return p, err
	}, func(_ context.Context, p transferParams) string {
		r.calls = append(r.calls, p)
		return "Transfer successfully completed: " + p.Amount + " " + p.AssetID + " to " + p.Destination
	})
}

func faucet() Capability {
	return Define(Descriptor{Name: "requestFaucet", Description: "Request test funds"}, DecodeNone,
		func(context.Context, NoParams) string { return "ok" })
}

func TestNewRegistryRejectsBadDefinitions(t *testing.T) {
	rec := &recorder{}
	tests := []struct {
		name string
		caps []Capability
	}{
		{"duplicate", []Capability{rec.capability(), faucet(), rec.capability()}},
		{"empty name", []Capability{Define(Descriptor{}, DecodeNone, func(context.Context, NoParams) string { return "" })}},
		{"no invoker", []Capability{{Descriptor: Descriptor{Name: "x"}}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewRegistry(tt.caps...)
			if !errors.HasCode(err, errors.CodeConfiguration) {
				t.Fatalf("expected CONFIGURATION_ERROR, got %v", err)
			}
		})
	}
}

func TestRegistryOrder(t *testing.T) {
	rec := &recorder{}
	r, err := NewRegistry(faucet(), rec.capability())
	if err != nil {
		t.Fatalf("NewRegistry failed: %v", err)
	}
	var names []string
	for _, d := range r.Descriptors() {
		names = append(names, d.Name)
	}
	if !reflect.DeepEqual(names, []string{"requestFaucet", "transferAsset"}) {
		t.Errorf("unexpected order %v", names)
	}
	tools := r.LLMTools()
	if len(tools) != 2 || tools[1].Function.Name != "transferAsset" || tools[1].Type != llm.ToolTypeFunction {
		t.Errorf("unexpected tools %+v", tools)
	}
	if _, ok := r.Lookup("transferAsset"); !ok {
		t.Errorf("expected lookup to succeed")
	}
}

func TestInvokePassesDecodedParams(t *testing.T) {
	rec := &recorder{}
	r, _ := NewRegistry(rec.capability())

	args, err := ParseArgs(`{"destinationAddress":"0xabc","assetId":"usdc","amount":0.1}`)
	if err != nil {
		t.Fatalf("ParseArgs failed: %v", err)
	}
	got, err := r.Invoke(context.Background(), "transferAsset", args)
	if err != nil {
		t.Fatalf("Invoke failed: %v", err)
	}
	if want := "Transfer successfully completed: 0.1 usdc to 0xabc"; got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
	want := []transferParams{{Amount: "0.1", AssetID: "usdc", Destination: "0xabc"}}
	if !reflect.DeepEqual(rec.calls, want) {
		t.Errorf("expected %+v, got %+v", want, rec.calls)
	}
}

func TestInvokeMissingRequiredParameter(t *testing.T) {
	tests := []struct {
		name    string
		args    Args
		missing string
	}{
		{"all missing", Args{}, "amount"},
		{"nil map", nil, "amount"},
		{"first present", Args{"amount": "1"}, "assetId"},
		{"null value", Args{"amount": "1", "assetId": "eth", "destinationAddress": nil}, "destinationAddress"},
		{"later present earlier missing", Args{"destinationAddress": "0x1"}, "amount"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &recorder{}
			r, _ := NewRegistry(rec.capability())
			_, err := r.Invoke(context.Background(), "transferAsset", tt.args)
			ae := errors.AsAgentError(err)
			if ae == nil || ae.Code != errors.CodeInvalidInput {
				t.Fatalf("expected INVALID_INPUT, got %v", err)
			}
			if ae.Context["parameter"] != tt.missing {
				t.Errorf("expected missing %q, got %v", tt.missing, ae.Context["parameter"])
			}
			if len(rec.calls) != 0 {
				t.Errorf("capability must not run when validation fails")
			}
		})
	}
}

func TestInvokeWrongType(t *testing.T) {
	rec := &recorder{}
	r, _ := NewRegistry(rec.capability())
	_, err := r.Invoke(context.Background(), "transferAsset", Args{"amount": "lots", "assetId": "eth", "destinationAddress": "0x1"})
	if !errors.HasCode(err, errors.CodeInvalidInput) {
		t.Fatalf("expected INVALID_INPUT, got %v", err)
	}
	if len(rec.calls) != 0 {
		t.Errorf("capability must not run with undecodable args")
	}
}

func TestInvokeUnknownCapability(t *testing.T) {
	r, _ := NewRegistry(faucet())
	_, err := r.Invoke(context.Background(), "launchRocket", Args{})
	if !errors.HasCode(err, errors.CodeNotFound) {
		t.Fatalf("expected NOT_FOUND, got %v", err)
	}
}

func TestCall(t *testing.T) {
	r, _ := NewRegistry(faucet())

	tests := []struct {
		name     string
		call     llm.ToolCall
		wantCode errors.ErrorCode
		want     string
	}{
		{"empty arguments", llm.ToolCall{Function: llm.FunctionCall{Name: "requestFaucet"}}, "", "ok"},
		{"object arguments", llm.ToolCall{Function: llm.FunctionCall{Name: "requestFaucet", Arguments: "{}"}}, "", "ok"},
		{"malformed", llm.ToolCall{Function: llm.FunctionCall{Name: "requestFaucet", Arguments: "{oops"}}, errors.CodeInvalidInput, ""},
		{"unknown", llm.ToolCall{Function: llm.FunctionCall{Name: "nope", Arguments: "{"}}, errors.CodeNotFound, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := r.Call(context.Background(), tt.call)
			if tt.wantCode != "" {
				if !errors.HasCode(err, tt.wantCode) {
					t.Fatalf("expected %s, got %v", tt.wantCode, err)
				}
				return
			}
			if err != nil || got != tt.want {
				t.Fatalf("expected %q, got %q (%v)", tt.want, got, err)
			}
		})
	}
}

func TestWrap(t *testing.T) {
	var seen string
	c := faucet().Wrap(func(d Descriptor, next Invoker) Invoker {
		return func(ctx context.Context, args Args) (string, error) {
			seen = d.Name
			out, err := next(ctx, args)
			return "wrapped " + out, err
		}
	})
	r, _ := NewRegistry(c)
	got, _ := r.Invoke(context.Background(), "requestFaucet", nil)
	if got != "wrapped ok" || seen != "requestFaucet" {
		t.Errorf("unexpected %q / %q", got, seen)
	}
}

func TestSchema(t *testing.T) {
	rec := &recorder{}
	schema := rec.capability().Descriptor.Schema()
	if schema["type"] != "object" {
		t.Errorf("expected object schema")
	}
	required := schema["required"].([]string)
	if !reflect.DeepEqual(required, []string{"amount", "assetId", "destinationAddress"}) {
		t.Errorf("unexpected required %v", required)
	}
	props := schema["properties"].(map[string]any)
	if props["amount"].(map[string]any)["type"] != "number" {
		t.Errorf("expected amount to be a number")
	}
}

func TestArgsDecimal(t *testing.T) {
	tests := []struct {
		name    string
		args    Args
		want    string
		wantErr bool
	}{
		{"json number", mustParse(t, `{"v":0.000001}`), "0.000001", false},
		{"exponent", mustParse(t, `{"v":1e3}`), "1000", false},
		{"numeric string", Args{"v": " 12.50 "}, "12.5", false},
		{"float", Args{"v": 2.5}, "2.5", false},
		{"absent", Args{}, "", false},
		{"not a number", Args{"v": "abc"}, "", true},
		{"bool", Args{"v": true}, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.args.Decimal("v")
			if (err != nil) != tt.wantErr {
				t.Fatalf("unexpected error state: %v", err)
			}
			if got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func mustParse(t *testing.T, raw string) Args {
	t.Helper()
	a, err := ParseArgs(raw)
	if err != nil {
		t.Fatalf("ParseArgs(%q): %v", raw, err)
	}
	return a
}
