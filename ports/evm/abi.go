package evm

import (
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	gethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// packCall encodes a call from a human signature such as
// "transfer(address,uint256)" or "balanceOf(address)(uint256)", where
// the optional second list declares the return types. It returns the
// calldata and the output argument spec for decoding.
func packCall(signature string, args []string) ([]byte, abi.Arguments, error) {
	name, inTypes, outTypes, err := parseSignature(signature)
	if err != nil {
		return nil, nil, err
	}
	if len(args) != len(inTypes) {
		return nil, nil, fmt.Errorf("method %s takes %d argument(s), got %d", name, len(inTypes), len(args))
	}

	inputs := make(abi.Arguments, len(inTypes))
	values := make([]interface{}, len(inTypes))
	for i, typeName := range inTypes {
		t, err := abi.NewType(typeName, "", nil)
		if err != nil {
			return nil, nil, fmt.Errorf("unsupported argument type %s: %w", typeName, err)
		}
		inputs[i] = abi.Argument{Type: t}
		values[i], err = convertArg(typeName, args[i])
		if err != nil {
			return nil, nil, err
		}
	}

	packed, err := inputs.Pack(values...)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to encode arguments: %w", err)
	}

	canonical := name + "(" + strings.Join(inTypes, ",") + ")"
	selector := crypto.Keccak256([]byte(canonical))[:4]

	outputs := make(abi.Arguments, len(outTypes))
	for i, typeName := range outTypes {
		t, err := abi.NewType(typeName, "", nil)
		if err != nil {
			return nil, nil, fmt.Errorf("unsupported return type %s: %w", typeName, err)
		}
		outputs[i] = abi.Argument{Type: t}
	}

	return append(selector, packed...), outputs, nil
}

// parseSignature splits "name(in,...)(out,...)" into its parts. The
// return list is optional.
func parseSignature(signature string) (name string, in, out []string, err error) {
	signature = strings.TrimSpace(signature)
	open := strings.IndexByte(signature, '(')
	if open <= 0 {
		return "", nil, nil, fmt.Errorf("invalid method signature: %s", signature)
	}
	name = signature[:open]

	rest := signature[open:]
	inList, rest, err := takeParenList(rest)
	if err != nil {
		return "", nil, nil, fmt.Errorf("invalid method signature %s: %w", signature, err)
	}
	if rest != "" {
		out, rest, err = takeParenList(rest)
		if err != nil || rest != "" {
			return "", nil, nil, fmt.Errorf("invalid method signature: %s", signature)
		}
	}
	return name, inList, out, nil
}

func takeParenList(s string) ([]string, string, error) {
	if !strings.HasPrefix(s, "(") {
		return nil, "", fmt.Errorf("expected '('")
	}
	close := strings.IndexByte(s, ')')
	if close < 0 {
		return nil, "", fmt.Errorf("unbalanced parentheses")
	}
	inner := strings.TrimSpace(s[1:close])
	if inner == "" {
		return nil, s[close+1:], nil
	}
	parts := strings.Split(inner, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts, s[close+1:], nil
}

// convertArg turns a string argument into the Go value the ABI encoder
// expects for the given Solidity type.
func convertArg(typeName, raw string) (interface{}, error) {
	raw = strings.TrimSpace(raw)
	switch {
	case typeName == "address":
		if !gethcommon.IsHexAddress(raw) {
			return nil, fmt.Errorf("invalid address argument: %s", raw)
		}
		return gethcommon.HexToAddress(raw), nil

	case strings.HasPrefix(typeName, "uint") || strings.HasPrefix(typeName, "int"):
		n, ok := new(big.Int).SetString(raw, 10)
		if !ok {
			return nil, fmt.Errorf("invalid integer argument: %s", raw)
		}
		return abiInteger(typeName, n)

	case typeName == "bool":
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid bool argument: %s", raw)
		}
		return b, nil

	case typeName == "string":
		return raw, nil

	case typeName == "bytes32":
		var out [32]byte
		copy(out[:], gethcommon.FromHex(raw))
		return out, nil

	case typeName == "bytes":
		return gethcommon.FromHex(raw), nil

	default:
		return nil, fmt.Errorf("unsupported argument type: %s", typeName)
	}
}

// abiInteger maps an integer to the narrow Go type go-ethereum's encoder
// requires for small widths.
func abiInteger(typeName string, n *big.Int) (interface{}, error) {
	switch typeName {
	case "uint8":
		return uint8(n.Uint64()), nil
	case "uint16":
		return uint16(n.Uint64()), nil
	case "uint32":
		return uint32(n.Uint64()), nil
	case "uint64":
		return n.Uint64(), nil
	case "int8":
		return int8(n.Int64()), nil
	case "int16":
		return int16(n.Int64()), nil
	case "int32":
		return int32(n.Int64()), nil
	case "int64":
		return n.Int64(), nil
	default:
		return n, nil
	}
}

// renderValue formats a decoded ABI value for display in a result cell.
func renderValue(v interface{}) string {
	switch t := v.(type) {
	case *big.Int:
		return t.String()
	case gethcommon.Address:
		return t.Hex()
	case [32]byte:
		return gethcommon.Bytes2Hex(t[:])
	case []byte:
		return gethcommon.Bytes2Hex(t)
	case bool:
		return strconv.FormatBool(t)
	case string:
		return t
	default:
		return fmt.Sprintf("%v", t)
	}
}
