package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	ledgerdomain "github.com/plansight/plansight/internal/ledger/domain"
)

type usageResponse struct {
	Record      *ledgerdomain.UsageRecord `json:"record"`
	Eligibility ledgerdomain.Eligibility  `json:"eligibility"`
}

func (s *Server) GetUsage(c *gin.Context) {
	userID := currentUser(c)

	record, err := s.ledgerSvc.GetOrCreate(c.Request.Context(), userID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	eligibility, err := s.ledgerSvc.CanAnalyze(c.Request.Context(), userID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, usageResponse{
		Record:      record,
		Eligibility: eligibility,
	})
}
