// Package signing hands transactions to the connected wallet and submits the
// signed result to the network.
package signing

import (
	"context"
	"fmt"
	"sync"

	"github.com/vitwit/algopay/clients"
	"github.com/vitwit/algopay/logger"
	"github.com/vitwit/algopay/txnbuild"
	"github.com/vitwit/algopay/types"
	"github.com/vitwit/algopay/wallet"
)

// Record tracks one transaction through sign and broadcast. The signed
// payload is set at most once and broadcast is attempted at most once; a
// failed attempt discards the record rather than retrying it.
type Record struct {
	mu sync.Mutex

	Unsigned       *txnbuild.Transaction
	signed         []byte
	txID           string
	ConfirmedRound uint64
	submitted      bool
}

// NewRecord wraps a freshly built unsigned transaction.
func NewRecord(txn *txnbuild.Transaction) *Record {
	return &Record{Unsigned: txn}
}

// Signed returns the signed payload, nil before signing.
func (r *Record) Signed() []byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.signed
}

// TxID returns the network transaction id, empty before broadcast.
func (r *Record) TxID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.txID
}

func (r *Record) setSigned(b []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.signed != nil {
		return fmt.Errorf("signed payload already set")
	}
	r.signed = b
	return nil
}

func (r *Record) markSubmitted() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.signed == nil {
		return fmt.Errorf("record has no signed payload")
	}
	if r.submitted {
		return fmt.Errorf("broadcast already attempted for this record")
	}
	r.submitted = true
	return nil
}

func (r *Record) setTxID(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.txID = id
}

// Service signs through the wallet session and broadcasts through the node.
type Service struct {
	node clients.NodeClient
	log  logger.Logger
}

// NewService creates a signing and broadcast service.
func NewService(node clients.NodeClient, log logger.Logger) *Service {
	if log == nil {
		log = logger.NoopLogger{}
	}
	return &Service{node: node, log: log.Named("signing")}
}

// Sign wraps the record's transaction in a one-element signing group, invokes
// the wallet, and stores the normalized signed payload. An empty result or a
// wallet refusal maps to signing_rejected.
func (s *Service) Sign(ctx context.Context, record *Record, session *wallet.Session) error {
	group := wallet.SingleGroup(record.Unsigned)

	raw, err := session.Sign(ctx, group)
	if err != nil {
		if types.CodeOf(err) != "" {
			return err
		}
		return types.NewPayError(types.ErrSigningRejected, err.Error(), nil)
	}

	blobs := Normalize(raw)
	if len(blobs) == 0 || len(blobs[0]) == 0 {
		return types.NewPayError(types.ErrSigningRejected, "no signed bytes returned by wallet", nil)
	}

	if err := record.setSigned(blobs[0]); err != nil {
		return types.NewPayError(types.ErrSigningRejected, err.Error(), nil)
	}
	s.log.Debug("transaction signed", map[string]any{"bytes": len(blobs[0])})
	return nil
}

// Broadcast submits the signed payload exactly once. It is never retried
// here: node-side duplicate-submission semantics make a blind resubmit
// unsafe, so a failure ends the attempt.
func (s *Service) Broadcast(ctx context.Context, record *Record) (string, error) {
	if err := record.markSubmitted(); err != nil {
		return "", types.NewPayError(types.ErrBroadcast, err.Error(),
			map[string]interface{}{"code": clients.ErrAlreadySubmitted})
	}

	txID, err := s.node.SendRawTransaction(ctx, record.Signed())
	if err != nil {
		return "", err
	}
	record.setTxID(txID)
	return txID, nil
}

// SignAndBroadcast runs sign then broadcast as one logical step. A signing
// failure never reaches broadcast.
func (s *Service) SignAndBroadcast(ctx context.Context, record *Record, session *wallet.Session) (string, error) {
	if err := s.Sign(ctx, record, session); err != nil {
		return "", err
	}
	return s.Broadcast(ctx, record)
}

// Normalize flattens the shapes wallets return from a sign call into a flat
// list of signed blobs. A nested array-of-arrays (one list per group), a flat
// list, and a single buffer all normalize to one element for a
// one-transaction group.
func Normalize(raw interface{}) [][]byte {
	switch v := raw.(type) {
	case nil:
		return nil
	case []byte:
		if len(v) == 0 {
			return nil
		}
		return [][]byte{v}
	case [][]byte:
		return v
	case [][][]byte:
		if len(v) == 0 {
			return nil
		}
		return v[0]
	case []interface{}:
		return normalizeSlice(v)
	default:
		return nil
	}
}

func normalizeSlice(items []interface{}) [][]byte {
	if len(items) == 0 {
		return nil
	}
	// Nested group shape: take the first group.
	if inner, ok := items[0].([]interface{}); ok {
		return normalizeSlice(inner)
	}
	if inner, ok := items[0].([][]byte); ok {
		return inner
	}
	var out [][]byte
	for _, item := range items {
		if b, ok := item.([]byte); ok {
			out = append(out, b)
		}
	}
	return out
}
