package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/epigraph-ai/epigraph-backend/internal/data/repos/vocab"
	"github.com/epigraph-ai/epigraph-backend/internal/http/response"
	"github.com/epigraph-ai/epigraph-backend/internal/platform/logger"
	"github.com/epigraph-ai/epigraph-backend/internal/vocab/normalizer"
	"github.com/epigraph-ai/epigraph-backend/internal/vocab/resolver"
)

type VocabularyHandler struct {
	log      *logger.Logger
	types    vocab.VocabularyTypeRepo
	resolver *resolver.Resolver
}

func NewVocabularyHandler(log *logger.Logger, types vocab.VocabularyTypeRepo, res *resolver.Resolver) *VocabularyHandler {
	return &VocabularyHandler{
		log:      log.With("handler", "VocabularyHandler"),
		types:    types,
		resolver: res,
	}
}

// List returns the vocabulary, optionally filtered by category,
// category_source, or validation_status query params.
func (h *VocabularyHandler) List(c *gin.Context) {
	filter := vocab.ListFilter{
		Category:         c.Query("category"),
		CategorySource:   c.Query("category_source"),
		ValidationStatus: c.Query("validation_status"),
	}
	rows, err := h.types.List(c.Request.Context(), nil, filter)
	if err != nil {
		h.log.Error("List vocabulary failed", "error", err)
		response.RespondError(c, http.StatusInternalServerError, "list_vocabulary_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"types": rows, "count": len(rows)})
}

// Get returns a single type by canonical name. The lookup canonicalizes its
// input so "part of" finds PART_OF.
func (h *VocabularyHandler) Get(c *gin.Context) {
	name := normalizer.CanonicalToken(c.Param("name"))
	if name == "" {
		response.RespondError(c, http.StatusBadRequest, "invalid_type_name", fmt.Errorf("empty type name"))
		return
	}
	row, err := h.types.GetByName(c.Request.Context(), nil, name)
	if err != nil {
		h.log.Error("Get vocabulary type failed", "name", name, "error", err)
		response.RespondError(c, http.StatusInternalServerError, "get_vocabulary_type_failed", err)
		return
	}
	if row == nil {
		response.RespondError(c, http.StatusNotFound, "vocabulary_type_not_found", fmt.Errorf("no type named %q", name))
		return
	}
	response.RespondOK(c, gin.H{"type": row, "role_distribution": row.RoleRatios()})
}

type resolveRequest struct {
	Type string `json:"type" binding:"required"`
}

// Resolve maps a free-form relationship token onto the vocabulary: match,
// rejection, or admission as a new proposed type.
func (h *VocabularyHandler) Resolve(c *gin.Context) {
	var req resolveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_resolve_request", err)
		return
	}
	outcome, err := h.resolver.Resolve(c.Request.Context(), req.Type)
	if err != nil {
		h.log.Error("Resolve failed", "raw", req.Type, "error", err)
		response.RespondError(c, http.StatusInternalServerError, "resolve_failed", err)
		return
	}
	if outcome.Rejection != "" {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"rejection": outcome.Rejection})
		return
	}
	response.RespondOK(c, outcome)
}
