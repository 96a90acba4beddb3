package vault

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"
	"golang.org/x/crypto/ripemd160"
)

// Generate mints a fresh secret bundle: an EVM keypair and a secondary
// Stacks keypair whose address carries the given version byte. Private
// keys are stored hex-encoded.
func Generate(stacksVersion byte) (*Secrets, error) {
	evmKey, err := crypto.GenerateKey()
	if err != nil {
		return nil, fmt.Errorf("failed to generate EVM key: %w", err)
	}

	stxKey, err := crypto.GenerateKey()
	if err != nil {
		return nil, fmt.Errorf("failed to generate Stacks key: %w", err)
	}

	stxAddr, err := StacksAddress(crypto.CompressPubkey(&stxKey.PublicKey), stacksVersion)
	if err != nil {
		return nil, err
	}

	return &Secrets{
		EVM: WalletKey{
			Address:    crypto.PubkeyToAddress(evmKey.PublicKey).Hex(),
			PrivateKey: hex.EncodeToString(crypto.FromECDSA(evmKey)),
		},
		Stacks: &WalletKey{
			Address:    stxAddr,
			PrivateKey: hex.EncodeToString(crypto.FromECDSA(stxKey)),
		},
	}, nil
}

// Stacks address version bytes.
const (
	MainnetSingleSig = 22 // 'P'
	TestnetSingleSig = 26 // 'T'
)

// StacksVersion maps a network name to its single-sig address version.
// Anything other than "testnet" is treated as mainnet.
func StacksVersion(network string) byte {
	if strings.EqualFold(network, "testnet") {
		return TestnetSingleSig
	}
	return MainnetSingleSig
}

// c32 is the Crockford base32 alphabet used by Stacks addresses.
const c32Alphabet = "0123456789ABCDEFGHJKMNPQRSTVWXYZ"

// StacksAddress derives a c32check address from a compressed secp256k1
// public key: version + hash160(pubkey) with a double-SHA256 checksum.
func StacksAddress(compressedPubkey []byte, version byte) (string, error) {
	if len(compressedPubkey) != 33 {
		return "", fmt.Errorf("compressed pubkey must be 33 bytes, got %d", len(compressedPubkey))
	}

	shaSum := sha256.Sum256(compressedPubkey)
	ripemd := ripemd160.New()
	ripemd.Write(shaSum[:])
	hash160 := ripemd.Sum(nil)

	check := checksum(version, hash160)
	payload := append(append([]byte{}, hash160...), check...)

	return "S" + string(c32Alphabet[version]) + c32Encode(payload), nil
}

func checksum(version byte, payload []byte) []byte {
	data := append([]byte{version}, payload...)
	first := sha256.Sum256(data)
	second := sha256.Sum256(first[:])
	return second[:4]
}

// c32Encode renders bytes in Crockford base32, preserving leading zero
// bytes as leading '0' digits.
func c32Encode(data []byte) string {
	leadingZeros := 0
	for _, b := range data {
		if b != 0 {
			break
		}
		leadingZeros++
	}

	n := new(big.Int).SetBytes(data)
	base := big.NewInt(32)
	mod := new(big.Int)

	var digits []byte
	for n.Sign() > 0 {
		n.DivMod(n, base, mod)
		digits = append(digits, c32Alphabet[mod.Int64()])
	}
	for i := 0; i < leadingZeros; i++ {
		digits = append(digits, '0')
	}

	for i, j := 0, len(digits)-1; i < j; i, j = i+1, j-1 {
		digits[i], digits[j] = digits[j], digits[i]
	}
	return string(digits)
}
