package dashboard

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/Fechomap/cargas-gas-sub000/internal/models"
)

// registerRoutes sets up all dashboard routes on the Gin router.
func registerRoutes(router *gin.Engine, db *gorm.DB) {
	api := router.Group("/api")

	api.GET("/tenants/:tenant/units", handleUnits(db))
	api.GET("/tenants/:tenant/kilometers", handleKilometers(db))
	api.GET("/tenants/:tenant/charges", handleCharges(db))
	api.GET("/tenants/:tenant/events", handleSSE(db))
	api.POST("/charges/:id/pay", handleMarkPaid(db))
}

// tenantParam parses the tenant path segment; writes the error response
// itself so handlers can bail with a bare return.
func tenantParam(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("tenant"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid tenant id"})
		return 0, false
	}
	return uint(id), true
}

func handleUnits(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		tenantID, ok := tenantParam(c)
		if !ok {
			return
		}
		rows, err := UnitSummary(db, tenantID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"units": rows})
	}
}

func handleKilometers(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		tenantID, ok := tenantParam(c)
		if !ok {
			return
		}

		var filter KilometerFilter
		if raw := c.Query("date"); raw != "" {
			date, err := time.Parse("2006-01-02", raw)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "date must be YYYY-MM-DD"})
				return
			}
			filter.Date = date
		}
		if raw := c.Query("type"); raw != "" {
			if !models.ValidLogType(raw) {
				c.JSON(http.StatusBadRequest, gin.H{"error": "unknown log type"})
				return
			}
			filter.LogType = raw
		}

		rows, err := KilometerSummary(db, tenantID, filter)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"kilometers": rows})
	}
}

func handleCharges(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		tenantID, ok := tenantParam(c)
		if !ok {
			return
		}

		status := c.Query("status")
		if status != "" && status != models.PaymentPending && status != models.PaymentPaid {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown payment status"})
			return
		}

		rows, err := ChargeSummary(db, tenantID, status)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		count, total, err := PendingTotal(db, tenantID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"charges":        rows,
			"pending_count":  count,
			"pending_amount": total,
		})
	}
}

func handleMarkPaid(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.ParseUint(c.Param("id"), 10, 32)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid charge id"})
			return
		}
		if err := MarkChargePaid(db, uint(id)); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "charge not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": models.PaymentPaid})
	}
}
