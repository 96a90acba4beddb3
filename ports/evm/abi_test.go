package evm

import (
	"math/big"
	"testing"

	gethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSignature(t *testing.T) {
	name, in, out, err := parseSignature("transfer(address,uint256)")
	require.NoError(t, err)
	assert.Equal(t, "transfer", name)
	assert.Equal(t, []string{"address", "uint256"}, in)
	assert.Empty(t, out)

	name, in, out, err = parseSignature("balanceOf(address)(uint256)")
	require.NoError(t, err)
	assert.Equal(t, "balanceOf", name)
	assert.Equal(t, []string{"address"}, in)
	assert.Equal(t, []string{"uint256"}, out)

	name, in, out, err = parseSignature("decimals()(uint8)")
	require.NoError(t, err)
	assert.Equal(t, "decimals", name)
	assert.Empty(t, in)
	assert.Equal(t, []string{"uint8"}, out)
}

func TestParseSignatureRejects(t *testing.T) {
	for _, sig := range []string{"", "transfer", "(address)", "transfer(address", "transfer(address)x"} {
		_, _, _, err := parseSignature(sig)
		assert.Error(t, err, sig)
	}
}

func TestPackCallTransferSelector(t *testing.T) {
	data, outputs, err := packCall("transfer(address,uint256)",
		[]string{"0x1111111111111111111111111111111111111111", "1000"})
	require.NoError(t, err)
	assert.Empty(t, outputs)

	// Well-known ERC-20 transfer selector.
	assert.Equal(t, "a9059cbb", gethcommon.Bytes2Hex(data[:4]))
	assert.Len(t, data, 4+32+32)
}

func TestPackCallArgCountMismatch(t *testing.T) {
	_, _, err := packCall("transfer(address,uint256)", []string{"0x1111111111111111111111111111111111111111"})
	assert.Error(t, err)
}

func TestConvertArg(t *testing.T) {
	v, err := convertArg("uint256", "12345")
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(12345), v)

	v, err = convertArg("bool", "true")
	require.NoError(t, err)
	assert.Equal(t, true, v)

	v, err = convertArg("uint8", "7")
	require.NoError(t, err)
	assert.Equal(t, uint8(7), v)

	_, err = convertArg("address", "not-an-address")
	assert.Error(t, err)
	_, err = convertArg("uint256", "12.5")
	assert.Error(t, err)
}

func TestRenderValue(t *testing.T) {
	assert.Equal(t, "42", renderValue(big.NewInt(42)))
	assert.Equal(t, "true", renderValue(true))
	addr := gethcommon.HexToAddress("0x1111111111111111111111111111111111111111")
	assert.Equal(t, addr.Hex(), renderValue(addr))
}
