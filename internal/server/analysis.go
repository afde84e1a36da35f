package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	admissiondomain "github.com/plansight/plansight/internal/admission/domain"
)

type startAnalysisRequest struct {
	ImageKey string  `json:"image_key" binding:"required"`
	Cost     float64 `json:"cost"`
}

// StartAnalysis admits a new analysis job for the caller. Quota
// exhaustion is a 429 with the eligibility block, not an error body.
func (s *Server) StartAnalysis(c *gin.Context) {
	var req startAnalysisRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	decision, err := s.admissionSvc.StartAnalysis(c.Request.Context(), admissiondomain.StartAnalysisRequest{
		UserID:   currentUser(c),
		ImageKey: req.ImageKey,
		Cost:     req.Cost,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	if !decision.Accepted {
		status := http.StatusTooManyRequests
		if decision.Reason == admissiondomain.ReasonNotAuthenticated {
			status = http.StatusUnauthorized
		}
		c.JSON(status, decision)
		return
	}

	c.JSON(http.StatusAccepted, decision)
}
