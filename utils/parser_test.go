package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vitwit/algopay/txnbuild"
	"github.com/vitwit/algopay/types"
)

func intentJSON(merchant string) []byte {
	return []byte(`{
		"amount": "2.5",
		"currencyDisplayName": "USDC",
		"isAssetTransfer": true,
		"assetId": 10458941,
		"assetDecimals": 6,
		"merchantAddress": "` + merchant + `",
		"network": "testnet",
		"nodeUrl": "https://testnet-api.algonode.cloud",
		"backendTxReference": "SO-42"
	}`)
}

func validMerchant() string {
	var pk [32]byte
	pk[0] = 9
	return txnbuild.EncodeAddress(pk)
}

func TestParsePaymentIntent(t *testing.T) {
	intent, err := ParsePaymentIntent(intentJSON(validMerchant()))
	require.NoError(t, err)

	assert.Equal(t, "2.5", intent.Amount.String())
	assert.Equal(t, "USDC", intent.CurrencyDisplayName)
	assert.True(t, intent.IsAssetTransfer)
	assert.Equal(t, uint64(10458941), intent.AssetID)
	assert.Equal(t, types.NetworkTestnet, intent.Network)
}

func TestParsePaymentIntentValidation(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{"malformed json", `{`},
		{"short merchant address", string(intentJSON("TOOSHORT"))},
		{"unknown network", `{"amount":"1","currencyDisplayName":"ALGO","merchantAddress":"` +
			validMerchant() + `","network":"devnet","nodeUrl":"https://node"}`},
		{"asset transfer without asset id", `{"amount":"1","currencyDisplayName":"USDC","isAssetTransfer":true,"merchantAddress":"` +
			validMerchant() + `","network":"testnet","nodeUrl":"https://node"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParsePaymentIntent([]byte(tc.body))
			require.Error(t, err)
			assert.Equal(t, types.ErrConfigurationError, types.CodeOf(err))
		})
	}
}

func TestValidateAmount(t *testing.T) {
	dec, err := ValidateAmount("2.5")
	require.NoError(t, err)
	assert.Equal(t, "2.5", dec.String())

	_, err = ValidateAmount("")
	assert.Error(t, err)
	_, err = ValidateAmount("abc")
	assert.Error(t, err)
	_, err = ValidateAmount("-1")
	assert.Error(t, err)
}

func TestValidateAddress(t *testing.T) {
	assert.NoError(t, ValidateAddress(validMerchant()))
	assert.Error(t, ValidateAddress(""))
	assert.Error(t, ValidateAddress("bogus"))
}

func TestFormatBaseUnits(t *testing.T) {
	assert.Equal(t, "2.5", FormatBaseUnits(2_500_000, 6))
	assert.Equal(t, "42", FormatBaseUnits(42, 0))
}
