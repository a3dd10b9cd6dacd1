package clients

import (
	"context"

	"github.com/vitwit/algopay/logger"
)

// DefaultConfirmationRounds bounds how many rounds WaitForConfirmation
// advances before giving up.
const DefaultConfirmationRounds = 8

// WaitForConfirmation polls pending-transaction status round by round until
// the transaction is confirmed or maxRounds rounds have passed. Exhausting
// the bound is not an error: confirmation here is best-effort, and a caller
// that needs a guarantee must re-check independently.
func WaitForConfirmation(ctx context.Context, node NodeClient, txID string, maxRounds int, log logger.Logger) (confirmed bool, round uint64, err error) {
	if log == nil {
		log = logger.NoopLogger{}
	}
	if maxRounds <= 0 {
		maxRounds = DefaultConfirmationRounds
	}

	last, err := node.LastRound(ctx)
	if err != nil {
		return false, 0, err
	}

	for i := 0; i < maxRounds; i++ {
		last++
		if err := node.WaitForBlockAfter(ctx, last); err != nil {
			return false, 0, err
		}

		pending, err := node.PendingTransaction(ctx, txID)
		if err != nil {
			return false, 0, err
		}
		if pending.Confirmed() {
			log.Debug("transaction confirmed", map[string]any{
				"txId":  txID,
				"round": pending.ConfirmedRound,
			})
			return true, pending.ConfirmedRound, nil
		}
	}

	log.Warn("confirmation window exhausted", map[string]any{
		"txId":   txID,
		"rounds": maxRounds,
	})
	return false, 0, nil
}
