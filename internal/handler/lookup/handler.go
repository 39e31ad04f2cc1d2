package lookup

import (
	"context"
	"log/slog"
	"net"
	"net/http"

	"github.com/gin-gonic/gin"
)

// LookupRequest represents the JSON body for a country lookup.
type LookupRequest struct {
	IP string `json:"ip" binding:"required"`
}

// LookupResponse represents the JSON response for a country lookup.
type LookupResponse struct {
	Country string `json:"country"`
	Found   bool   `json:"found"`
	Error   string `json:"error"`
}

// Resolver resolves an IP address to a country code and records the hit.
type Resolver interface {
	ResolveAndCount(ctx context.Context, ip net.IP) (string, bool)
}

// Handler manages IP geolocation lookup endpoints.
type Handler struct {
	resolver Resolver
}

// NewHandler creates a new lookup handler with the given Resolver.
func NewHandler(resolver Resolver) *Handler {
	return &Handler{resolver: resolver}
}

// Lookup handles POST /api/v1/lookup
func (h *Handler) Lookup(c *gin.Context) {
	var req LookupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, LookupResponse{
			Error: "invalid request: " + err.Error(),
		})
		return
	}

	slog.Debug("lookup request received", "ip", req.IP)

	ip := net.ParseIP(req.IP)
	if ip == nil {
		c.JSON(http.StatusBadRequest, LookupResponse{
			Error: "invalid IP address",
		})
		return
	}

	country, found := h.resolver.ResolveAndCount(c.Request.Context(), ip)

	c.JSON(http.StatusOK, LookupResponse{
		Country: country,
		Found:   found,
	})
}
