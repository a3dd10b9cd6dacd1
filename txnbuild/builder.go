package txnbuild

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/shopspring/decimal"

	"github.com/vitwit/algopay/types"
)

// NotePayload is the structured note embedded in every payment transaction.
// The JSON keys are part of the wire contract with the merchant backend and
// must not change.
type NotePayload struct {
	Host     string `json:"host"`
	Amount   string `json:"amount"`
	Currency string `json:"currency"`
	TxRef    string `json:"tx_id,omitempty"`
	AsaID    uint64 `json:"asa_id,omitempty"`
	AsaName  string `json:"asa_name,omitempty"`
}

// EncodeNote serializes the note payload as UTF-8 JSON bytes.
func EncodeNote(intent *types.PaymentIntent, host string) ([]byte, error) {
	note := NotePayload{
		Host:     host,
		Amount:   intent.Amount.String(),
		Currency: intent.CurrencyDisplayName,
		TxRef:    intent.BackendTxReference,
	}
	if intent.IsAssetTransfer {
		note.AsaID = intent.AssetID
		note.AsaName = intent.CurrencyDisplayName
	}
	return json.Marshal(note)
}

// AlgosToMicroAlgos converts a display amount of the native currency to the
// chain's minimal unit using the fixed exponent.
func AlgosToMicroAlgos(amount decimal.Decimal) (uint64, error) {
	return toBaseUnits(amount, types.AlgoDecimals)
}

// AssetBaseUnits converts a display amount of an asset to integer base units.
// Rounding is to nearest, half away from zero: asset amounts are integers by
// definition and truncation would silently under-pay the merchant.
func AssetBaseUnits(amount decimal.Decimal, decimals uint32) (uint64, error) {
	return toBaseUnits(amount, int32(decimals))
}

func toBaseUnits(amount decimal.Decimal, decimals int32) (uint64, error) {
	if amount.IsNegative() {
		return 0, fmt.Errorf("amount must not be negative")
	}
	scaled := amount.Shift(decimals).Round(0)
	if !scaled.BigInt().IsUint64() || scaled.BigInt().Uint64() > math.MaxInt64 {
		return 0, fmt.Errorf("amount %s exceeds representable range", amount)
	}
	return scaled.BigInt().Uint64(), nil
}

// Build produces an unsigned transaction from a validated intent, the
// connected sender, and freshly fetched network parameters. The fee is always
// flat and at least the protocol minimum.
func Build(intent *types.PaymentIntent, sender string, params *types.NetworkParameters, note []byte) (*Transaction, error) {
	if params == nil {
		return nil, types.NewPayError(types.ErrTransactionBuild, "network parameters are required", nil)
	}
	if err := params.Validate(); err != nil {
		return nil, types.NewPayError(types.ErrTransactionBuild, err.Error(), nil)
	}

	snd, rcv, err := ValidateAddresses(sender, intent.MerchantAddress)
	if err != nil {
		return nil, err
	}

	fee := params.Fee
	if fee < types.MinTxnFee {
		fee = types.MinTxnFee
	}

	txn := &Transaction{
		Sender:     snd,
		Fee:        fee,
		FirstValid: params.FirstValid,
		LastValid:  params.LastValid,
		Note:       note,
		GenesisID:  params.GenesisID,
	}
	copy(txn.GenesisHash[:], params.GenesisHash)

	if intent.IsAssetTransfer {
		if intent.AssetID == 0 {
			return nil, types.NewPayError(types.ErrTransactionBuild, "asset id is required for an asset transfer", nil)
		}
		units, err := AssetBaseUnits(intent.Amount, intent.AssetDecimals)
		if err != nil {
			return nil, types.NewPayError(types.ErrTransactionBuild, err.Error(), nil)
		}
		txn.Type = TypeAssetTransfer
		txn.XferAsset = intent.AssetID
		txn.AssetAmount = units
		txn.AssetReceiver = rcv
		return txn, nil
	}

	micro, err := AlgosToMicroAlgos(intent.Amount)
	if err != nil {
		return nil, types.NewPayError(types.ErrTransactionBuild, err.Error(), nil)
	}
	txn.Type = TypePayment
	txn.Receiver = rcv
	txn.Amount = micro
	return txn, nil
}

// BuildOptIn produces the zero-amount self asset transfer that registers an
// account for an asset.
func BuildOptIn(address string, assetID uint64, params *types.NetworkParameters) (*Transaction, error) {
	if assetID == 0 {
		return nil, types.NewPayError(types.ErrTransactionBuild, "asset id is required for an opt-in", nil)
	}
	if params == nil {
		return nil, types.NewPayError(types.ErrTransactionBuild, "network parameters are required", nil)
	}

	pk, err := DecodeAddress(address)
	if err != nil {
		return nil, types.NewPayError(types.ErrInvalidAddress, err.Error(), nil)
	}

	fee := params.Fee
	if fee < types.MinTxnFee {
		fee = types.MinTxnFee
	}

	txn := &Transaction{
		Type:          TypeAssetTransfer,
		Sender:        pk,
		Fee:           fee,
		FirstValid:    params.FirstValid,
		LastValid:     params.LastValid,
		GenesisID:     params.GenesisID,
		XferAsset:     assetID,
		AssetAmount:   0,
		AssetReceiver: pk,
	}
	copy(txn.GenesisHash[:], params.GenesisHash)
	return txn, nil
}
