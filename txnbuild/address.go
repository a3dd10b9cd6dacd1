package txnbuild

import (
	"crypto/sha512"
	"encoding/base32"
	"fmt"

	"github.com/vitwit/algopay/types"
)

const (
	addressLen   = 58
	publicKeyLen = 32
	checksumLen  = 4
)

var base32Encoder = base32.StdEncoding.WithPadding(base32.NoPadding)

// DecodeAddress checks the canonical checksum format of an Algorand address
// and returns its 32-byte public key. An address is 58 base32 characters
// covering the public key plus the last 4 bytes of its SHA-512/256 digest;
// any single-character mutation breaks the checksum.
func DecodeAddress(address string) ([publicKeyLen]byte, error) {
	var pk [publicKeyLen]byte

	if len(address) != addressLen {
		return pk, fmt.Errorf("address length is %d, expected %d", len(address), addressLen)
	}

	decoded, err := base32Encoder.DecodeString(address)
	if err != nil {
		return pk, fmt.Errorf("address is not valid base32: %w", err)
	}
	if len(decoded) != publicKeyLen+checksumLen {
		return pk, fmt.Errorf("decoded address is %d bytes, expected %d", len(decoded), publicKeyLen+checksumLen)
	}

	digest := sha512.Sum512_256(decoded[:publicKeyLen])
	expected := digest[len(digest)-checksumLen:]
	actual := decoded[publicKeyLen:]
	for i := range expected {
		if expected[i] != actual[i] {
			return pk, fmt.Errorf("address checksum mismatch")
		}
	}

	copy(pk[:], decoded[:publicKeyLen])
	return pk, nil
}

// EncodeAddress renders a public key in the canonical address format.
func EncodeAddress(publicKey [publicKeyLen]byte) string {
	digest := sha512.Sum512_256(publicKey[:])
	buf := make([]byte, 0, publicKeyLen+checksumLen)
	buf = append(buf, publicKey[:]...)
	buf = append(buf, digest[len(digest)-checksumLen:]...)
	return base32Encoder.EncodeToString(buf)
}

// IsValidAddress reports whether the address is well-formed.
func IsValidAddress(address string) bool {
	_, err := DecodeAddress(address)
	return err == nil
}

// ValidateAddresses decodes sender and recipient, mapping failures to the
// invalid-address error with the failing party in the details.
func ValidateAddresses(sender, recipient string) ([publicKeyLen]byte, [publicKeyLen]byte, error) {
	snd, err := DecodeAddress(sender)
	if err != nil {
		return snd, snd, types.NewPayError(types.ErrInvalidAddress,
			"connected wallet address is invalid, reconnect your wallet",
			map[string]interface{}{types.DetailWho: types.PartySender})
	}
	rcv, err := DecodeAddress(recipient)
	if err != nil {
		return snd, rcv, types.NewPayError(types.ErrInvalidAddress,
			"merchant address appears invalid, contact support",
			map[string]interface{}{types.DetailWho: types.PartyMerchant})
	}
	return snd, rcv, nil
}
