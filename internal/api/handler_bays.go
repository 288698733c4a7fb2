package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type attendeeResponse struct {
	PrincipalID int64     `json:"principal_id"`
	Name        string    `json:"name"`
	Lastname    string    `json:"lastname"`
	EntryTime   time.Time `json:"entry_time"`
}

type sessionResponse struct {
	ID        int64              `json:"id"`
	Name      string             `json:"name"`
	StartTime time.Time          `json:"start_time"`
	Attendees []attendeeResponse `json:"attendees"`
}

type bayResponse struct {
	ModuleLotoCode string           `json:"module_loto_code"`
	Name           string           `json:"name"`
	Connectivity   string           `json:"connectivity"`
	LastStatus     *string          `json:"last_status"`
	ActiveSession  *sessionResponse `json:"active_session"`
}

// GetBay handles GET /api/bays/:module_code.
func (h *Handler) GetBay(c *gin.Context) {
	code := c.Param("module_code")

	overview, err := h.store.BayOverview(c.Request.Context(), code)
	if err != nil {
		h.log.Error("bay lookup failed", zap.String("module_code", code), zap.Error(err))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve bay"})
		return
	}
	if overview == nil {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "No bay uses this module code"})
		return
	}

	resp := bayResponse{
		ModuleLotoCode: overview.Bay.ModuleLotoCode,
		Name:           overview.Bay.Name,
		Connectivity:   string(overview.Bay.ModuleLotoStatus),
	}
	if last, ok := h.status.LastStatus(code); ok {
		resp.LastStatus = &last
	}
	if s := overview.ActiveSession; s != nil {
		session := &sessionResponse{
			ID:        s.ID,
			Name:      s.Name,
			StartTime: s.StartTime,
			Attendees: make([]attendeeResponse, 0, len(overview.OpenAttendees)),
		}
		for _, a := range overview.OpenAttendees {
			session.Attendees = append(session.Attendees, attendeeResponse{
				PrincipalID: a.PrincipalID,
				Name:        a.Principal.Name,
				Lastname:    a.Principal.Lastname,
				EntryTime:   a.EntryTime,
			})
		}
		resp.ActiveSession = session
	}

	c.JSON(http.StatusOK, resp)
}
