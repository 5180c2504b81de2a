package dashboard

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/Fechomap/cargas-gas-sub000/internal/models"
)

// readingEvent holds data for a new-reading SSE event.
type readingEvent struct {
	ID         uint    `json:"id"`
	TenantID   uint    `json:"tenant_id"`
	UnitID     uint    `json:"unit_id"`
	LogType    string  `json:"log_type"`
	Kilometers float64 `json:"kilometers"`
	LogDate    string  `json:"log_date"`
}

// handleSSE streams a tenant's new kilometer readings as they are captured.
// It polls for rows above the highest ID seen at connect time, so a client
// only receives readings created after it subscribed.
func handleSSE(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		tenantID, ok := tenantParam(c)
		if !ok {
			return
		}

		c.Header("Content-Type", "text/event-stream")
		c.Header("Cache-Control", "no-cache")
		c.Header("Connection", "keep-alive")
		c.Header("X-Accel-Buffering", "no")

		writeSSE(c.Writer, "connected", map[string]string{"type": "connected"})
		c.Writer.Flush()

		// Only alert on readings captured after this subscription.
		lastSeenID := latestReadingID(db, tenantID)

		ctx := c.Request.Context()
		ticker := time.NewTicker(3 * time.Second)
		heartbeat := time.NewTicker(15 * time.Second)
		defer ticker.Stop()
		defer heartbeat.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-heartbeat.C:
				writeSSE(c.Writer, "heartbeat", map[string]string{
					"timestamp": time.Now().UTC().Format(time.RFC3339),
				})
				c.Writer.Flush()
			case <-ticker.C:
				entries := readingsSince(db, tenantID, lastSeenID)
				if len(entries) == 0 {
					continue
				}
				lastSeenID = entries[len(entries)-1].ID

				for _, e := range entries {
					writeSSE(c.Writer, "reading", readingEvent{
						ID:         e.ID,
						TenantID:   e.TenantID,
						UnitID:     e.UnitID,
						LogType:    e.LogType,
						Kilometers: e.Kilometers,
						LogDate:    e.LogDate.Format("2006-01-02"),
					})
				}
				c.Writer.Flush()
			}
		}
	}
}

// latestReadingID returns the highest kilometer-log ID for a tenant, or 0
// when it has none.
func latestReadingID(db *gorm.DB, tenantID uint) uint {
	var maxEntry models.KilometerLog
	err := db.Where("tenant_id = ?", tenantID).
		Order("id DESC").Limit(1).First(&maxEntry).Error
	if err != nil {
		return 0
	}
	return maxEntry.ID
}

// readingsSince returns a tenant's non-omitted readings with an ID above
// lastSeenID, oldest first.
func readingsSince(db *gorm.DB, tenantID uint, lastSeenID uint) []models.KilometerLog {
	var entries []models.KilometerLog
	db.Where("tenant_id = ? AND id > ? AND omitted = ?", tenantID, lastSeenID, false).
		Order("id ASC").
		Find(&entries)
	return entries
}

// writeSSE writes a single SSE event to the writer.
func writeSSE(w io.Writer, event string, data any) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, string(jsonData))
}
