// Package optin checks and establishes asset opt-in for payment parties.
package optin

import (
	"context"

	"github.com/vitwit/algopay/clients"
	"github.com/vitwit/algopay/logger"
	"github.com/vitwit/algopay/signing"
	"github.com/vitwit/algopay/txnbuild"
	"github.com/vitwit/algopay/types"
	"github.com/vitwit/algopay/wallet"
)

// Service answers opt-in queries and runs the opt-in transaction flow.
type Service struct {
	node   clients.NodeClient
	signer *signing.Service
	log    logger.Logger
}

// NewService creates an opt-in service.
func NewService(node clients.NodeClient, signer *signing.Service, log logger.Logger) *Service {
	if log == nil {
		log = logger.NoopLogger{}
	}
	return &Service{node: node, signer: signer, log: log.Named("optin")}
}

// IsOptedIn reports whether the account holds the asset. Query failures fail
// soft: absence is the safe default, so the caller sees false plus a warning
// log instead of an aborted flow.
func (s *Service) IsOptedIn(ctx context.Context, address string, assetID uint64) bool {
	assets, err := s.node.AccountAssets(ctx, address)
	if err != nil {
		s.log.Warn("asset opt-in check failed", map[string]any{
			"address": address,
			"assetId": assetID,
			"error":   err.Error(),
		})
		return false
	}
	for _, a := range assets {
		if a.AssetID == assetID {
			return true
		}
	}
	return false
}

// State recomputes the opt-in state for both payment parties. It is called
// after every wallet connect and after an opt-in submission, never cached.
func (s *Service) State(ctx context.Context, sender, merchant string, assetID uint64) types.AssetOptInState {
	state := types.AssetOptInState{}
	if sender != "" {
		state.SenderOptedIn = s.IsOptedIn(ctx, sender, assetID)
	}
	if merchant != "" {
		state.MerchantOptedIn = s.IsOptedIn(ctx, merchant, assetID)
	}
	return state
}

// OptIn submits the zero-amount self transfer that registers the connected
// account for an asset, then polls for confirmation for a bounded number of
// rounds. The poll outcome is advisory; callers re-check opt-in state anyway.
func (s *Service) OptIn(ctx context.Context, session *wallet.Session, assetID uint64) (string, error) {
	address := session.Address()
	if address == "" {
		return "", types.NewPayError(types.ErrWalletConnectionFailed, "no wallet connected", nil)
	}

	params, err := s.node.SuggestedParams(ctx)
	if err != nil {
		return "", err
	}

	txn, err := txnbuild.BuildOptIn(address, assetID, params)
	if err != nil {
		return "", err
	}

	record := signing.NewRecord(txn)
	txID, err := s.signer.SignAndBroadcast(ctx, record, session)
	if err != nil {
		return "", err
	}

	confirmed, round, err := clients.WaitForConfirmation(ctx, s.node, txID, clients.DefaultConfirmationRounds, s.log)
	if err != nil {
		s.log.Warn("opt-in confirmation poll failed", map[string]any{"txId": txID, "error": err.Error()})
	} else if confirmed {
		record.ConfirmedRound = round
	}

	s.log.Info("asset opt-in submitted", map[string]any{
		"address":   address,
		"assetId":   assetID,
		"txId":      txID,
		"confirmed": confirmed,
	})
	return txID, nil
}
