package utils

import (
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/vitwit/algopay/types"
)

var validate *validator.Validate

func init() {
	validate = validator.New()
}

// ParsePaymentIntent parses and validates a PaymentIntent from JSON. This is
// the single entry point for intents read out of a hosting page or POS order.
func ParsePaymentIntent(data []byte) (*types.PaymentIntent, error) {
	var intent types.PaymentIntent

	if err := json.Unmarshal(data, &intent); err != nil {
		return nil, types.NewPayError(types.ErrConfigurationError,
			fmt.Sprintf("failed to parse payment intent: %v", err), nil)
	}

	if err := validate.Struct(&intent); err != nil {
		return nil, types.NewPayError(types.ErrConfigurationError,
			fmt.Sprintf("validation failed: %v", err), nil)
	}

	if err := ValidateIntentAmount(&intent); err != nil {
		return nil, err
	}

	return &intent, nil
}

// ParseClientConfig parses ClientConfig from JSON.
func ParseClientConfig(data []byte) (*types.ClientConfig, error) {
	var config types.ClientConfig

	if err := json.Unmarshal(data, &config); err != nil {
		return nil, types.NewPayError(types.ErrConfigurationError,
			fmt.Sprintf("failed to parse client config: %v", err), nil)
	}

	if err := validate.Struct(&config); err != nil {
		return nil, types.NewPayError(types.ErrConfigurationError,
			fmt.Sprintf("validation failed: %v", err), nil)
	}

	return &config, nil
}

// SerializeIntent converts a PaymentIntent to JSON.
func SerializeIntent(intent *types.PaymentIntent) ([]byte, error) {
	return json.Marshal(intent)
}
