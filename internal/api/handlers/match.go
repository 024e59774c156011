package handlers

import (
	"context"
	"log"
	"net/http"
	"strconv"
	"sync"

	"github.com/gin-gonic/gin"

	"github.com/euras-play/backend/internal/accounts"
	"github.com/euras-play/backend/internal/config"
	"github.com/euras-play/backend/internal/game"
	"github.com/euras-play/backend/internal/ledger"
	"github.com/euras-play/backend/internal/match"
	"github.com/euras-play/backend/internal/middleware"
	"github.com/euras-play/backend/internal/ws"
)

// matchmakingFailedMsg is the message surfaced to the client for any store
// failure during matchmaking.
const matchmakingFailedMsg = "Connection failed. Please try again."

// MatchWebSocket runs one matchmaking attempt over a WebSocket:
// the stake is debited up front, then the connection stays open until a
// match is found, the attempt fails, or the client disconnects. Failure and
// disconnect before a match both refund the stake.
//
// GET /api/v1/match/ws?game=<id>&wager=<amount>&token=<jwt>
func MatchWebSocket(mm *match.Matchmaker, users *accounts.Service, wagers *ledger.Ledger, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		playerID := c.GetString(middleware.UserIDKey)

		gameID := c.Query("game")
		if !game.Known(gameID) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown game"})
			return
		}
		wager, err := strconv.ParseFloat(c.Query("wager"), 64)
		if err != nil || wager < cfg.MinWager {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid wager"})
			return
		}

		user, err := users.Get(c.Request.Context(), playerID)
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "account not found"})
			return
		}

		client, err := ws.Upgrade(c.Writer, c.Request, playerID)
		if err != nil {
			log.Printf("[MATCH] WebSocket upgrade failed for %s: %v", playerID, err)
			return
		}
		defer client.Close()

		if err := wagers.Debit(c.Request.Context(), playerID, wager); err != nil {
			if err == ledger.ErrInsufficientFunds {
				client.SendError("insufficient balance")
			} else {
				log.Printf("[MATCH] Debit failed for %s: %v", playerID, err)
				client.SendError(matchmakingFailedMsg)
			}
			return
		}

		// settled flips exactly once: on match, failure, or disconnect. It
		// decides who owns the refund.
		var mu sync.Mutex
		settled := false
		settle := func() bool {
			mu.Lock()
			defer mu.Unlock()
			if settled {
				return false
			}
			settled = true
			return true
		}

		profile := match.Profile{ID: user.ID, Username: user.Username, Avatar: user.Avatar}
		cancel := mm.Join(c.Request.Context(), gameID, wager, profile,
			func(sessionID string, opponent match.PlayerInfo) {
				if !settle() {
					return
				}
				client.Send(map[string]any{
					"type":       "match_found",
					"session_id": sessionID,
					"opponent":   opponent,
				})
			},
			func(err error) {
				if !settle() {
					return
				}
				if rerr := wagers.Refund(context.Background(), playerID, wager); rerr != nil {
					log.Printf("[MATCH] Refund after failure for %s failed: %v", playerID, rerr)
				}
				client.Send(map[string]any{
					"type":    "match_error",
					"message": matchmakingFailedMsg,
				})
			})

		client.Send(map[string]any{"type": "queued", "game": gameID, "wager": wager})

		// Block until the client goes away; the matchmaker callbacks above
		// write frames independently.
		for {
			var frame map[string]any
			if err := client.ReadJSON(&frame); err != nil {
				break
			}
		}

		cancel()
		// A match landing in the same instant as the disconnect is resolved
		// in the player's favor: they keep the refund and can rejoin.
		if settle() {
			if err := wagers.Refund(context.Background(), playerID, wager); err != nil {
				log.Printf("[MATCH] Refund on disconnect for %s failed: %v", playerID, err)
			}
		}
	}
}
