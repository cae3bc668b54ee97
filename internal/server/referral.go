package server

import (
	"strconv"
	"strings"

	referraldomain "github.com/gainsai/gains-backend/internal/referral/domain"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

type createReferralCodeRequest struct {
	Code           string           `json:"code"`
	AdminKey       string           `json:"adminKey"`
	CommissionRate *decimal.Decimal `json:"commissionRate"`
}

func (s *Server) GetReferralStats(c *gin.Context) {
	resp, err := s.referralSvc.GetStats(c.Request.Context(), c.Param("code"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	respondData(c, resp)
}

func (s *Server) ListReferralPurchases(c *gin.Context) {
	limit, err := strconv.Atoi(strings.TrimSpace(c.Query("limit")))
	if err != nil {
		limit = referraldomain.DefaultPurchasePageSize
	}

	resp, err := s.referralSvc.ListPurchases(c.Request.Context(), referraldomain.ListPurchasesRequest{
		Code:  c.Param("code"),
		Limit: limit,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	respondData(c, resp)
}

func (s *Server) CreateReferralCode(c *gin.Context) {
	var req createReferralCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, bindError(err))
		return
	}

	resp, err := s.referralSvc.Create(c.Request.Context(), referraldomain.CreateRequest{
		Code:           req.Code,
		AdminKey:       req.AdminKey,
		CommissionRate: req.CommissionRate,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	respondData(c, resp)
}
