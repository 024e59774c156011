package ledger

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/euras-play/backend/internal/accounts"
	"github.com/euras-play/backend/internal/store"
)

var ErrInsufficientFunds = errors.New("insufficient funds")

// Ledger adjusts player balances around a match: debit on queue entry,
// refund on matchmaking failure, credit on an observed win. The matchmaking
// core never calls these itself — the API layer does, with the wager amount
// and winner id the core supplies.
type Ledger struct {
	st        store.Store
	houseEdge float64 // fraction withheld from the winning pot
}

// New builds a Ledger. houseEdgePct is a percentage (5 = the portal's 5%).
func New(st store.Store, houseEdgePct int) *Ledger {
	return &Ledger{st: st, houseEdge: float64(houseEdgePct) / 100}
}

// WinPayout is the amount credited for winning a match at the given wager:
// both stakes minus the house cut.
func (l *Ledger) WinPayout(wager float64) float64 {
	return 2 * wager * (1 - l.houseEdge)
}

// Debit removes the stake from the player's balance. Fails with
// ErrInsufficientFunds rather than driving the balance negative.
func (l *Ledger) Debit(ctx context.Context, playerID string, amount float64) error {
	if err := l.adjust(ctx, playerID, -amount, true); err != nil {
		return err
	}
	log.Printf("[LEDGER] Debited %.4f from %s", amount, playerID)
	return nil
}

// Refund returns a previously debited stake (failed matchmaking, cancel).
func (l *Ledger) Refund(ctx context.Context, playerID string, amount float64) error {
	if err := l.adjust(ctx, playerID, amount, false); err != nil {
		return err
	}
	log.Printf("[LEDGER] Refunded %.4f to %s", amount, playerID)
	return nil
}

// CreditWin pays out a won match at the given wager.
func (l *Ledger) CreditWin(ctx context.Context, playerID string, wager float64) error {
	payout := l.WinPayout(wager)
	if err := l.adjust(ctx, playerID, payout, false); err != nil {
		return err
	}
	log.Printf("[LEDGER] Credited %.4f to %s (wager %.4f)", payout, playerID, wager)
	return nil
}

// adjust applies a signed delta to the user's balance inside a transaction
// so concurrent adjustments never lose an update.
func (l *Ledger) adjust(ctx context.Context, playerID string, delta float64, checkFunds bool) error {
	return l.st.RunTransaction(ctx, func(tx store.Tx) error {
		doc, ok, err := tx.Get(accounts.UserCollection, playerID)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("adjust balance: %w", accounts.ErrNotFound)
		}
		balance, _ := doc["balance"].(float64)
		next := balance + delta
		if checkFunds && next < 0 {
			return ErrInsufficientFunds
		}
		return tx.Set(accounts.UserCollection, playerID, store.Doc{"balance": next}, true)
	})
}
