package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	entitlementUsecases "github.com/maxnet-vpn/maxnet/internal/application/entitlement/usecases"
	"github.com/maxnet-vpn/maxnet/internal/domain/entitlement"
	"github.com/maxnet-vpn/maxnet/internal/shared/logger"
	"github.com/maxnet-vpn/maxnet/internal/shared/utils"
)

// AdminHandler exposes the administrative surface: entitlement reads, manual
// grants, activation state changes, deletion and pool diagnostics.
type AdminHandler struct {
	manualGrantUC *entitlementUsecases.ManualGrantUseCase
	activateUC    *entitlementUsecases.AdminActivateUseCase
	deactivateUC  *entitlementUsecases.AdminDeactivateUseCase
	deleteUC      *entitlementUsecases.AdminDeleteUseCase
	getUC         *entitlementUsecases.GetEntitlementUseCase
	listRecentUC  *entitlementUsecases.ListRecentUseCase
	latestUC      *entitlementUsecases.GetLatestActiveForSubjectUseCase
	poolStatsUC   *entitlementUsecases.PoolStatsUseCase
	createPromoUC *entitlementUsecases.CreatePromoCodesUseCase
	listPromoUC   *entitlementUsecases.ListPromoCodesUseCase
	redeemPromoUC *entitlementUsecases.RedeemPromoUseCase
	logger        logger.Interface
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(
	manualGrantUC *entitlementUsecases.ManualGrantUseCase,
	activateUC *entitlementUsecases.AdminActivateUseCase,
	deactivateUC *entitlementUsecases.AdminDeactivateUseCase,
	deleteUC *entitlementUsecases.AdminDeleteUseCase,
	getUC *entitlementUsecases.GetEntitlementUseCase,
	listRecentUC *entitlementUsecases.ListRecentUseCase,
	latestUC *entitlementUsecases.GetLatestActiveForSubjectUseCase,
	poolStatsUC *entitlementUsecases.PoolStatsUseCase,
	createPromoUC *entitlementUsecases.CreatePromoCodesUseCase,
	listPromoUC *entitlementUsecases.ListPromoCodesUseCase,
	redeemPromoUC *entitlementUsecases.RedeemPromoUseCase,
	log logger.Interface,
) *AdminHandler {
	return &AdminHandler{
		manualGrantUC: manualGrantUC,
		activateUC:    activateUC,
		deactivateUC:  deactivateUC,
		deleteUC:      deleteUC,
		getUC:         getUC,
		listRecentUC:  listRecentUC,
		latestUC:      latestUC,
		poolStatsUC:   poolStatsUC,
		createPromoUC: createPromoUC,
		listPromoUC:   listPromoUC,
		redeemPromoUC: redeemPromoUC,
		logger:        log,
	}
}

// ManualGrantRequest issues access for a subject by administrative decision.
type ManualGrantRequest struct {
	SubjectID    int64  `json:"subject_id" binding:"required"`
	SubjectLabel string `json:"subject_label"`
	DurationDays int    `json:"duration_days" binding:"required,min=1,max=730"`
}

// ManualGrant handles POST /admin/entitlements.
func (h *AdminHandler) ManualGrant(c *gin.Context) {
	var req ManualGrantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "invalid request: "+err.Error())
		return
	}

	result, err := h.manualGrantUC.Execute(c.Request.Context(), entitlementUsecases.ManualGrantCommand{
		SubjectID:    req.SubjectID,
		SubjectLabel: req.SubjectLabel,
		Duration:     time.Duration(req.DurationDays) * 24 * time.Hour,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}

	utils.SuccessResponse(c, http.StatusCreated, "entitlement granted", result)
}

// Activate handles POST /admin/entitlements/:id/activate.
func (h *AdminHandler) Activate(c *gin.Context) {
	id, ok := h.entitlementID(c)
	if !ok {
		return
	}

	result, err := h.activateUC.Execute(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "entitlement activated", result)
}

// Deactivate handles POST /admin/entitlements/:id/deactivate.
func (h *AdminHandler) Deactivate(c *gin.Context) {
	id, ok := h.entitlementID(c)
	if !ok {
		return
	}

	result, err := h.deactivateUC.Execute(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "entitlement deactivated", result)
}

// Delete handles DELETE /admin/entitlements/:id.
func (h *AdminHandler) Delete(c *gin.Context) {
	id, ok := h.entitlementID(c)
	if !ok {
		return
	}

	result, err := h.deleteUC.Execute(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "entitlement deleted", result)
}

// Get handles GET /admin/entitlements/:id.
func (h *AdminHandler) Get(c *gin.Context) {
	id, ok := h.entitlementID(c)
	if !ok {
		return
	}

	result, err := h.getUC.Execute(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "", result)
}

// ListRecent handles GET /admin/entitlements.
func (h *AdminHandler) ListRecent(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	result, err := h.listRecentUC.Execute(c.Request.Context(), limit)
	if err != nil {
		h.respondError(c, err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "", result)
}

// LatestForSubject handles GET /admin/subjects/:subject_id/entitlement.
func (h *AdminHandler) LatestForSubject(c *gin.Context) {
	subjectID, err := strconv.ParseInt(c.Param("subject_id"), 10, 64)
	if err != nil || subjectID == 0 {
		utils.ErrorResponse(c, http.StatusBadRequest, "invalid subject ID")
		return
	}

	result, err := h.latestUC.Execute(c.Request.Context(), subjectID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "", result)
}

// CreatePromoCodesRequest issues a batch of promo codes. A multi-use batch
// names one code; a one-shot batch generates Count random single-use codes.
type CreatePromoCodesRequest struct {
	ExtraDays        int    `json:"extra_days" binding:"required,min=1,max=730"`
	MultiUse         bool   `json:"multi_use"`
	Code             string `json:"code"`
	Count            int    `json:"count"`
	ValidDays        int    `json:"valid_days" binding:"min=0"`
	MaxUses          int    `json:"max_uses" binding:"min=0"`
	PerUserLimit     int    `json:"per_user_limit" binding:"min=0"`
	AllowedSubjectID int64  `json:"allowed_subject_id"`
	Comment          string `json:"comment"`
	CreatedBy        string `json:"created_by"`
}

// CreatePromoCodes handles POST /admin/promo-codes.
func (h *AdminHandler) CreatePromoCodes(c *gin.Context) {
	var req CreatePromoCodesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "invalid request: "+err.Error())
		return
	}

	result, err := h.createPromoUC.Execute(c.Request.Context(), entitlementUsecases.CreatePromoCodesCommand{
		ExtraDays:        req.ExtraDays,
		MultiUse:         req.MultiUse,
		ManualCode:       req.Code,
		Count:            req.Count,
		ValidDays:        req.ValidDays,
		MaxUses:          req.MaxUses,
		PerUserLimit:     req.PerUserLimit,
		AllowedSubjectID: req.AllowedSubjectID,
		Comment:          req.Comment,
		CreatedBy:        req.CreatedBy,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}

	utils.SuccessResponse(c, http.StatusCreated, "promo codes created", result)
}

// ListPromoCodes handles GET /admin/promo-codes.
func (h *AdminHandler) ListPromoCodes(c *gin.Context) {
	result, err := h.listPromoUC.Execute(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "", result)
}

// RedeemPromoRequest applies a code to a subject's current entitlement.
type RedeemPromoRequest struct {
	SubjectID int64  `json:"subject_id" binding:"required"`
	Code      string `json:"code" binding:"required"`
}

// RedeemPromo handles POST /admin/promo-codes/redeem.
func (h *AdminHandler) RedeemPromo(c *gin.Context) {
	var req RedeemPromoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "invalid request: "+err.Error())
		return
	}

	result, err := h.redeemPromoUC.Execute(c.Request.Context(), entitlementUsecases.RedeemPromoCommand{
		SubjectID: req.SubjectID,
		Code:      req.Code,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "promo code redeemed", result)
}

// PoolStats handles GET /admin/pool/stats.
func (h *AdminHandler) PoolStats(c *gin.Context) {
	stats, err := h.poolStatsUC.Execute(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "", gin.H{
		"total":              stats.Total,
		"allocated":          stats.Allocated,
		"free":               stats.Free,
		"consistency_faults": stats.ConsistencyFaults(),
		"orphan_allocations": stats.OrphanAllocations,
		"missing_pool":       stats.MissingPoolEntries,
	})
}

func (h *AdminHandler) entitlementID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil || id == 0 {
		utils.ErrorResponse(c, http.StatusBadRequest, "invalid entitlement ID")
		return 0, false
	}
	return uint(id), true
}

func (h *AdminHandler) respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, entitlement.ErrEntitlementNotFound):
		utils.ErrorResponse(c, http.StatusNotFound, "entitlement not found")
	case errors.Is(err, entitlement.ErrEntitlementActive):
		utils.ErrorResponse(c, http.StatusConflict, "entitlement is already active")
	case errors.Is(err, entitlement.ErrAddressUnavailable):
		utils.ErrorResponse(c, http.StatusConflict, "stored address is no longer available")
	case errors.Is(err, entitlement.ErrPoolExhausted):
		utils.ErrorResponse(c, http.StatusConflict, "no free address available")
	case errors.Is(err, entitlement.ErrControlPlaneUnavailable):
		utils.ErrorResponse(c, http.StatusBadGateway, "network daemon unavailable")
	case errors.Is(err, entitlement.ErrPromoCodeNotFound):
		utils.ErrorResponse(c, http.StatusNotFound, "promo code not found")
	case errors.Is(err, entitlement.ErrPromoCodeNotRedeemable):
		utils.ErrorResponse(c, http.StatusConflict, "promo code not redeemable")
	case errors.Is(err, entitlement.ErrPromoCodeExhausted):
		utils.ErrorResponse(c, http.StatusConflict, "promo code exhausted")
	default:
		h.logger.Errorw("admin operation failed", "error", err)
		utils.ErrorResponse(c, http.StatusInternalServerError, "operation failed")
	}
}
