package handlers

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/euras-play/backend/internal/match"
	"github.com/euras-play/backend/internal/store"
)

// AdminListQueue dumps the current matchmaking queue.
func AdminListQueue(st store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		docs, err := st.Query(c.Request.Context(), store.Query{
			Collection: match.QueueCollection,
			OrderBy:    "joinedAt",
		})
		if err != nil {
			log.Printf("[ADMIN] Queue listing failed: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}

		entries := make([]gin.H, 0, len(docs))
		for _, d := range docs {
			entries = append(entries, gin.H{"id": d.ID, "entry": d.Data})
		}
		c.JSON(http.StatusOK, gin.H{"count": len(entries), "queue": entries})
	}
}

// AdminListSessions dumps the active game sessions.
func AdminListSessions(st store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		docs, err := st.Query(c.Request.Context(), store.Query{
			Collection: match.SessionCollection,
			Filters: []store.Filter{
				{Field: "state", Op: store.OpEqual, Value: match.StateActive},
			},
			OrderBy: "createdAt",
		})
		if err != nil {
			log.Printf("[ADMIN] Session listing failed: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}

		sessions := make([]gin.H, 0, len(docs))
		for _, d := range docs {
			sessions = append(sessions, gin.H{"id": d.ID, "session": d.Data})
		}
		c.JSON(http.StatusOK, gin.H{"count": len(sessions), "sessions": sessions})
	}
}
