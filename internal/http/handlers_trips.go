package http

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"fintrack/internal/core"
)

type tripRequest struct {
	Name           string   `json:"name"`
	StartDate      string   `json:"startDate"`
	EndDate        string   `json:"endDate,omitempty"`
	TransactionIDs []string `json:"transactionIds,omitempty"`
}

type tripResponse struct {
	ID             string   `json:"id"`
	Name           string   `json:"name"`
	StartDate      string   `json:"startDate"`
	EndDate        string   `json:"endDate,omitempty"`
	TransactionIDs []string `json:"transactionIds"`
}

func toTripResponse(t *core.Trip) tripResponse {
	resp := tripResponse{
		ID:             t.ID,
		Name:           t.Name,
		StartDate:      t.StartDate.String(),
		TransactionIDs: t.TransactionIDs,
	}
	if !t.EndDate.IsZero() {
		resp.EndDate = t.EndDate.String()
	}
	if resp.TransactionIDs == nil {
		resp.TransactionIDs = []string{}
	}
	return resp
}

func tripFromRequest(req tripRequest, ownerID, id string) (*core.Trip, error) {
	start, err := core.ParseDate(strings.TrimSpace(req.StartDate))
	if err != nil {
		return nil, err
	}
	var end core.Date
	if v := strings.TrimSpace(req.EndDate); v != "" {
		end, err = core.ParseDate(v)
		if err != nil {
			return nil, err
		}
	}

	t := &core.Trip{
		ID:             id,
		OwnerID:        ownerID,
		Name:           sanitizeInput(req.Name),
		StartDate:      start,
		EndDate:        end,
		TransactionIDs: req.TransactionIDs,
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return t, nil
}

func (s *Server) handleCreateTrip(w http.ResponseWriter, r *http.Request) {
	var req tripRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	t, err := tripFromRequest(req, ownerID(r), uuid.NewString())
	if err != nil {
		writeStorageError(w, err)
		return
	}
	if err := s.store.CreateTrip(r.Context(), t); err != nil {
		writeStorageError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toTripResponse(t))
}

func (s *Server) handleListTrips(w http.ResponseWriter, r *http.Request) {
	trips, err := s.store.ListTrips(r.Context(), ownerID(r))
	if err != nil {
		writeStorageError(w, err)
		return
	}

	resp := make([]tripResponse, 0, len(trips))
	for i := range trips {
		resp = append(resp, toTripResponse(&trips[i]))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetTrip(w http.ResponseWriter, r *http.Request) {
	t, err := s.store.GetTrip(r.Context(), ownerID(r), r.PathValue("id"))
	if err != nil {
		writeStorageError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toTripResponse(t))
}

func (s *Server) handleUpdateTrip(w http.ResponseWriter, r *http.Request) {
	var req tripRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	t, err := tripFromRequest(req, ownerID(r), r.PathValue("id"))
	if err != nil {
		writeStorageError(w, err)
		return
	}
	if err := s.store.UpdateTrip(r.Context(), t); err != nil {
		writeStorageError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toTripResponse(t))
}

func (s *Server) handleDeleteTrip(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteTrip(r.Context(), ownerID(r), r.PathValue("id")); err != nil {
		writeStorageError(w, err)
		return
	}
	writeJSON(w, http.StatusNoContent, nil)
}

// handleTripRollup summarizes the expenses of a single trip.
func (s *Server) handleTripRollup(w http.ResponseWriter, r *http.Request) {
	q, err := ParseRollupQuery(r.URL.Query())
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	summary, err := s.trips.Rollup(r.Context(), ownerID(r), r.PathValue("id"), q.Granularity)
	if err != nil {
		writeStorageError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// handleTripRollups summarizes all trips, optionally filtered by date range.
// Trips whose filtered expense set is empty are left out of the response.
func (s *Server) handleTripRollups(w http.ResponseWriter, r *http.Request) {
	q, err := ParseRollupQuery(r.URL.Query())
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	summaries, err := s.trips.Rollups(r.Context(), ownerID(r), q.Range, q.Granularity)
	if err != nil {
		writeStorageError(w, err)
		return
	}
	if summaries == nil {
		summaries = []core.TripSummary{}
	}
	writeJSON(w, http.StatusOK, summaries)
}
