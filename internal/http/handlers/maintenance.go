package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/epigraph-ai/epigraph-backend/internal/http/response"
	"github.com/epigraph-ai/epigraph-backend/internal/platform/logger"
	"github.com/epigraph-ai/epigraph-backend/internal/vocab/classifier"
	"github.com/epigraph-ai/epigraph-backend/internal/vocab/validator"
)

// MaintenanceHandler exposes manual triggers for the scheduled passes. Both
// passes are idempotent, so an overlapping manual trigger is harmless.
type MaintenanceHandler struct {
	log        *logger.Logger
	classifier *classifier.Classifier
	validator  *validator.Validator
}

func NewMaintenanceHandler(log *logger.Logger, cl *classifier.Classifier, va *validator.Validator) *MaintenanceHandler {
	return &MaintenanceHandler{
		log:        log.With("handler", "MaintenanceHandler"),
		classifier: cl,
		validator:  va,
	}
}

func (h *MaintenanceHandler) RunClassifier(c *gin.Context) {
	summary, err := h.classifier.Run(c.Request.Context())
	if err != nil {
		h.log.Error("Manual classifier pass failed", "error", err)
		response.RespondError(c, http.StatusConflict, "classifier_pass_deferred", err)
		return
	}
	response.RespondOK(c, gin.H{"summary": summary})
}

func (h *MaintenanceHandler) RunValidator(c *gin.Context) {
	summary, err := h.validator.Run(c.Request.Context())
	if err != nil {
		h.log.Error("Manual validator pass failed", "error", err)
		response.RespondError(c, http.StatusConflict, "validator_pass_deferred", err)
		return
	}
	response.RespondOK(c, gin.H{"summary": summary})
}
