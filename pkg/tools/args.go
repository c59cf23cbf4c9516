// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package tools

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"github.com/jllopis/basedagent/pkg/errors"
)

// Args is a decoded argument map. Numbers decoded by ParseArgs are kept as
// json.Number so amounts are never rounded through float64.
type Args map[string]any

// ParseArgs decodes raw JSON argument text. Empty text is an empty map.
func ParseArgs(raw string) (Args, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Args{}, nil
	}
	dec := json.NewDecoder(bytes.NewReader([]byte(raw)))
	dec.UseNumber()
	var args Args
	if err := dec.Decode(&args); err != nil {
		return nil, errors.New(errors.CodeInvalidInput, "arguments are not a JSON object", err)
	}
	if args == nil {
		args = Args{}
	}
	return args, nil
}

// Has reports whether name is present with a non-null value.
func (a Args) Has(name string) bool {
	v, ok := a[name]
	return ok && v != nil
}

// String returns a string parameter. Absent parameters return "".
func (a Args) String(name string) (string, error) {
	v, ok := a[name]
	if !ok || v == nil {
		return "", nil
	}
	switch s := v.(type) {
	case string:
		return s, nil
	case json.Number:
		return s.String(), nil
	default:
		return "", typeError(name, "string", v)
	}
}

// Decimal returns a numeric parameter as canonical decimal text.
// Numeric strings such as "0.5" are accepted.
func (a Args) Decimal(name string) (string, error) {
	v, ok := a[name]
	if !ok || v == nil {
		return "", nil
	}
	var text string
	switch n := v.(type) {
	case json.Number:
		text = n.String()
	case string:
		text = strings.TrimSpace(n)
	case float64:
		text = strconv.FormatFloat(n, 'f', -1, 64)
	case int:
		text = strconv.Itoa(n)
	case int64:
		text = strconv.FormatInt(n, 10)
	default:
		return "", typeError(name, "number", v)
	}
	f, ok := new(big.Float).SetPrec(256).SetString(text)
	if !ok {
		return "", typeError(name, "number", v)
	}
	return f.Text('f', -1), nil
}

// Bool returns a boolean parameter. Absent parameters return false.
func (a Args) Bool(name string) (bool, error) {
	v, ok := a[name]
	if !ok || v == nil {
		return false, nil
	}
	switch b := v.(type) {
	case bool:
		return b, nil
	case string:
		parsed, err := strconv.ParseBool(b)
		if err != nil {
			return false, typeError(name, "boolean", v)
		}
		return parsed, nil
	default:
		return false, typeError(name, "boolean", v)
	}
}

func typeError(name, want string, got any) error {
	return errors.New(errors.CodeInvalidInput, fmt.Sprintf("parameter %s must be a %s, got %T", name, want, got), nil).
		WithContext("parameter", name)
}
