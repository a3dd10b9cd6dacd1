package utils

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/vitwit/algopay/txnbuild"
	"github.com/vitwit/algopay/types"
)

// ValidateAmount checks that an amount string is a non-negative decimal.
func ValidateAmount(amount string) (decimal.Decimal, error) {
	if amount == "" {
		return decimal.Zero, fmt.Errorf("amount cannot be empty")
	}

	dec, err := decimal.NewFromString(amount)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount format: %w", err)
	}
	if dec.IsNegative() {
		return decimal.Zero, fmt.Errorf("amount cannot be negative")
	}
	return dec, nil
}

// ValidateIntentAmount checks that the intent's amount converts cleanly to
// base units, catching range overflow before the transaction build stage.
func ValidateIntentAmount(intent *types.PaymentIntent) error {
	var err error
	if intent.IsAssetTransfer {
		_, err = txnbuild.AssetBaseUnits(intent.Amount, intent.AssetDecimals)
	} else {
		_, err = txnbuild.AlgosToMicroAlgos(intent.Amount)
	}
	if err != nil {
		return types.NewPayError(types.ErrConfigurationError, err.Error(), nil)
	}
	return nil
}

// ValidateAddress checks the Algorand address format and checksum.
func ValidateAddress(address string) error {
	if address == "" {
		return fmt.Errorf("address cannot be empty")
	}
	if _, err := txnbuild.DecodeAddress(address); err != nil {
		return err
	}
	return nil
}

// ValidateNetwork checks if a network name is supported.
func ValidateNetwork(network string) error {
	if !types.Network(network).Valid() {
		return fmt.Errorf("unsupported network: %s", network)
	}
	return nil
}

// FormatBaseUnits formats an integer base-unit amount as a display string
// with the given precision.
func FormatBaseUnits(amount uint64, decimals uint32) string {
	return decimal.New(int64(amount), -int32(decimals)).String()
}
