package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	ledgerdomain "github.com/plansight/plansight/internal/ledger/domain"
)

type upgradeSubscriptionRequest struct {
	Tier           string `json:"tier" binding:"required"`
	DurationMonths int    `json:"duration_months" binding:"required"`
}

func (s *Server) UpgradeSubscription(c *gin.Context) {
	var req upgradeSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	record, err := s.ledgerSvc.UpgradeSubscription(c.Request.Context(), ledgerdomain.UpgradeRequest{
		UserID:         currentUser(c),
		Tier:           ledgerdomain.Tier(req.Tier),
		DurationMonths: req.DurationMonths,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, record)
}
