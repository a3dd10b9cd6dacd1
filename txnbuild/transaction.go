package txnbuild

import (
	"crypto/sha512"
	"encoding/base32"
	"fmt"

	"github.com/ugorji/go/codec"
)

// Transaction types on the wire.
const (
	TypePayment       = "pay"
	TypeAssetTransfer = "axfer"
)

// Transaction is an unsigned transaction in the chain's canonical field
// layout. Zero-valued fields are omitted from the encoding, and keys are
// sorted, so the msgpack bytes match what the network and wallets expect.
type Transaction struct {
	_struct struct{} `codec:",omitempty,omitemptyarray"`

	Type string `codec:"type"`

	Sender      [32]byte `codec:"snd"`
	Fee         uint64   `codec:"fee"`
	FirstValid  uint64   `codec:"fv"`
	LastValid   uint64   `codec:"lv"`
	Note        []byte   `codec:"note"`
	GenesisID   string   `codec:"gen"`
	GenesisHash [32]byte `codec:"gh"`

	// Payment fields.
	Receiver [32]byte `codec:"rcv"`
	Amount   uint64   `codec:"amt"`

	// Asset transfer fields.
	XferAsset     uint64   `codec:"xaid"`
	AssetAmount   uint64   `codec:"aamt"`
	AssetReceiver [32]byte `codec:"arcv"`
}

var msgpackHandle = func() *codec.MsgpackHandle {
	h := new(codec.MsgpackHandle)
	h.Canonical = true
	h.RecursiveEmptyCheck = true
	h.WriteExt = true
	h.PositiveIntUnsigned = true
	return h
}()

// Encode renders the transaction as canonical msgpack.
func (t *Transaction) Encode() ([]byte, error) {
	var buf []byte
	enc := codec.NewEncoderBytes(&buf, msgpackHandle)
	if err := enc.Encode(t); err != nil {
		return nil, fmt.Errorf("encode transaction: %w", err)
	}
	return buf, nil
}

// ID computes the transaction id locally: base32 of SHA-512/256 over the
// domain-separated encoding. Matches the id the node returns on submit.
func (t *Transaction) ID() (string, error) {
	encoded, err := t.Encode()
	if err != nil {
		return "", err
	}
	msg := make([]byte, 0, len(encoded)+2)
	msg = append(msg, []byte("TX")...)
	msg = append(msg, encoded...)
	digest := sha512.Sum512_256(msg)
	return base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString(digest[:]), nil
}

// SenderAddress returns the sender in display format.
func (t *Transaction) SenderAddress() string { return EncodeAddress(t.Sender) }

// ReceiverAddress returns the effective recipient in display format.
func (t *Transaction) ReceiverAddress() string {
	if t.Type == TypeAssetTransfer {
		return EncodeAddress(t.AssetReceiver)
	}
	return EncodeAddress(t.Receiver)
}
