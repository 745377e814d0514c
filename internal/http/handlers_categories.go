package http

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"fintrack/internal/core"
)

type categoryRequest struct {
	Name      string `json:"name"`
	Direction string `json:"direction"`
	Threshold string `json:"threshold,omitempty"`
}

type categoryResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Direction string `json:"direction"`
	Threshold string `json:"threshold,omitempty"`
}

func toCategoryResponse(c *core.Category) categoryResponse {
	resp := categoryResponse{
		ID:        c.ID,
		Name:      c.Name,
		Direction: string(c.Direction),
	}
	if !c.Threshold.IsZero() {
		resp.Threshold = c.Threshold.String()
	}
	return resp
}

func (s *Server) categoryFromRequest(req categoryRequest, ownerID, id string) (*core.Category, error) {
	threshold := decimal.Zero
	if req.Threshold != "" {
		var err error
		threshold, err = decimal.NewFromString(req.Threshold)
		if err != nil {
			return nil, core.ErrInvalidAmount
		}
	}
	c := &core.Category{
		ID:        id,
		OwnerID:   ownerID,
		Name:      sanitizeInput(req.Name),
		Direction: core.Direction(req.Direction),
		Threshold: threshold,
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *Server) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	var req categoryRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	c, err := s.categoryFromRequest(req, ownerID(r), uuid.NewString())
	if err != nil {
		writeStorageError(w, err)
		return
	}
	if err := s.store.CreateCategory(r.Context(), c); err != nil {
		writeStorageError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toCategoryResponse(c))
}

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := s.store.ListCategories(r.Context(), ownerID(r))
	if err != nil {
		writeStorageError(w, err)
		return
	}

	resp := make([]categoryResponse, 0, len(categories))
	for i := range categories {
		resp = append(resp, toCategoryResponse(&categories[i]))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetCategory(w http.ResponseWriter, r *http.Request) {
	c, err := s.store.GetCategory(r.Context(), ownerID(r), r.PathValue("id"))
	if err != nil {
		writeStorageError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toCategoryResponse(c))
}

func (s *Server) handleUpdateCategory(w http.ResponseWriter, r *http.Request) {
	var req categoryRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	c, err := s.categoryFromRequest(req, ownerID(r), r.PathValue("id"))
	if err != nil {
		writeStorageError(w, err)
		return
	}
	if err := s.store.UpdateCategory(r.Context(), c); err != nil {
		writeStorageError(w, err)
		return
	}

	// Renames change the per-category breakdown of cached summaries.
	s.bumpStatsGeneration(c.OwnerID)
	writeJSON(w, http.StatusOK, toCategoryResponse(c))
}

func (s *Server) handleDeleteCategory(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteCategory(r.Context(), ownerID(r), r.PathValue("id")); err != nil {
		writeStorageError(w, err)
		return
	}
	s.bumpStatsGeneration(ownerID(r))
	writeJSON(w, http.StatusNoContent, nil)
}
