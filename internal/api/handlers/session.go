package handlers

import (
	"context"
	"errors"
	"log"
	"net/http"
	"sync/atomic"

	"github.com/gin-gonic/gin"

	"github.com/euras-play/backend/internal/accounts"
	"github.com/euras-play/backend/internal/game"
	"github.com/euras-play/backend/internal/ledger"
	"github.com/euras-play/backend/internal/match"
	"github.com/euras-play/backend/internal/middleware"
	"github.com/euras-play/backend/internal/payout"
	"github.com/euras-play/backend/internal/ws"
)

// moveFrame is an inbound partial session update. Board is the full payload
// after the player's move; Turn hands play over; Winner closes the session.
type moveFrame struct {
	Type   string  `json:"type"`
	Board  any     `json:"board"`
	Turn   *string `json:"turn"`
	Winner *string `json:"winner"`
}

// SessionWebSocket streams full session snapshots to a participant and
// accepts move frames back. The canonically-first player's connection also
// performs the one-time board deal when it sees an undealt session.
//
// GET /api/v1/session/:id/ws?token=<jwt>
func SessionWebSocket(sessions *match.Sync, users *accounts.Service, wagers *ledger.Ledger) gin.HandlerFunc {
	return func(c *gin.Context) {
		playerID := c.GetString(middleware.UserIDKey)
		sessionID := c.Param("id")

		sess, err := sessions.Get(c.Request.Context(), sessionID)
		if err != nil {
			if errors.Is(err, match.ErrSessionNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
				return
			}
			log.Printf("[SESSION] Failed to load session %s: %v", sessionID, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}
		if sess.Opponent(playerID) == "" {
			c.JSON(http.StatusForbidden, gin.H{"error": "not a participant"})
			return
		}

		client, err := ws.Upgrade(c.Writer, c.Request, playerID)
		if err != nil {
			log.Printf("[SESSION] WebSocket upgrade failed for %s: %v", playerID, err)
			return
		}
		defer client.Close()

		// initInFlight keeps this connection from issuing duplicate deal
		// writes; the transactional null re-check in InitBoard is what makes
		// the deal safe across connections.
		var initInFlight atomic.Bool

		unsub, err := sessions.Subscribe(c.Request.Context(), sessionID, func(s *match.Session) {
			client.Send(sessionStateFrame(s))

			if s.Board == nil && !s.Finished() && s.CanonicalFirst() == playerID &&
				initInFlight.CompareAndSwap(false, true) {
				go func() {
					defer initInFlight.Store(false)
					if err := sessions.InitBoard(context.Background(), sessionID, playerID); err != nil {
						log.Printf("[SESSION] Board init for %s failed: %v", sessionID, err)
					}
				}()
			}
		})
		if err != nil {
			log.Printf("[SESSION] Subscribe to %s failed: %v", sessionID, err)
			client.SendError("failed to watch session")
			return
		}
		defer unsub()

		for {
			var frame moveFrame
			if err := client.ReadJSON(&frame); err != nil {
				return
			}
			if frame.Type != "move" {
				client.SendError("unknown frame type")
				continue
			}

			board, err := game.DecodeBoard(frame.Board)
			if err != nil {
				client.SendError("malformed board payload")
				continue
			}

			mut := match.Mutation{Board: board, Turn: frame.Turn, Winner: frame.Winner}
			if err := sessions.ApplyMutation(c.Request.Context(), sessionID, mut); err != nil {
				switch {
				case errors.Is(err, match.ErrSessionOver):
					client.SendError("session already finished")
				case errors.Is(err, match.ErrSessionNotFound):
					client.SendError("session not found")
					return
				default:
					log.Printf("[SESSION] Mutation on %s failed: %v", sessionID, err)
					client.SendError("failed to apply move")
				}
				continue
			}

			// The mutation that sets the winner is the only one that ever
			// commits (the session is write-once past that point), so paying
			// out here cannot double-credit.
			if frame.Winner != nil && *frame.Winner != "" {
				settleSession(sess, *frame.Winner, users, wagers)
			}
		}
	}
}

// settleSession pays out a finished session: winner takes both stakes minus
// the house cut, a draw refunds both players. External on-chain transfers go
// out best-effort when the payout service is configured.
func settleSession(sess *match.Session, winner string, users *accounts.Service, wagers *ledger.Ledger) {
	ctx := context.Background()

	if winner == match.WinnerDraw {
		for _, pid := range sess.Players {
			if err := wagers.Refund(ctx, pid, sess.Wager); err != nil {
				log.Printf("[SESSION] Draw refund for %s failed: %v", pid, err)
			}
		}
		return
	}

	if err := wagers.CreditWin(ctx, winner, sess.Wager); err != nil {
		log.Printf("[SESSION] Win credit for %s failed: %v", winner, err)
		return
	}

	if payout.Default == nil {
		return
	}
	user, err := users.Get(ctx, winner)
	if err != nil || user.ActiveWallet == "" {
		return
	}
	go func() {
		if _, err := payout.Default.Transfer(context.Background(), user.ActiveWallet, wagers.WinPayout(sess.Wager)); err != nil {
			log.Printf("[SESSION] On-chain payout for %s failed: %v", winner, err)
		}
	}()
}

// sessionStateFrame renders a session snapshot for the wire.
func sessionStateFrame(s *match.Session) map[string]any {
	var turn any
	if s.Turn != "" {
		turn = s.Turn
	}
	var winner any
	if s.Winner != "" {
		winner = s.Winner
	}
	return map[string]any{
		"type":        "session_state",
		"session_id":  s.ID,
		"game":        s.GameID,
		"wager":       s.Wager,
		"players":     s.Players,
		"player_data": s.PlayerData,
		"state":       s.State,
		"board":       s.Board,
		"turn":        turn,
		"winner":      winner,
		"rev":         s.Rev,
	}
}
