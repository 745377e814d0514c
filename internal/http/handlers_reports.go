package http

import (
	"net/http"
	"strings"
	"time"

	"fintrack/internal/core"
)

type saveReportRequest struct {
	Name        string `json:"name"`
	Start       string `json:"start"`
	End         string `json:"end"`
	Granularity string `json:"granularity,omitempty"`
}

type dispatchRequest struct {
	Start       string `json:"start"`
	End         string `json:"end"`
	Granularity string `json:"granularity,omitempty"`
}

type reportResponse struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	PeriodStart string         `json:"periodStart"`
	PeriodEnd   string         `json:"periodEnd"`
	Granularity string         `json:"granularity"`
	Aggregate   core.Aggregate `json:"aggregate"`
	CreatedAt   time.Time      `json:"createdAt"`
}

type dispatchResponse struct {
	OwnerID   string `json:"ownerId"`
	Recipient string `json:"recipient"`
	Sent      bool   `json:"sent"`
	Error     string `json:"error,omitempty"`
}

func toReportResponse(rep *core.Report) reportResponse {
	return reportResponse{
		ID:          rep.ID,
		Name:        rep.Name,
		PeriodStart: rep.PeriodStart.String(),
		PeriodEnd:   rep.PeriodEnd.String(),
		Granularity: string(rep.Granularity),
		Aggregate:   rep.Aggregate,
		CreatedAt:   rep.CreatedAt,
	}
}

func (s *Server) handleSaveReport(w http.ResponseWriter, r *http.Request) {
	var req saveReportRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	dateRange, granularity, err := parseReportPeriod(req.Start, req.End, req.Granularity)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	rep, err := s.stats.SaveReport(r.Context(), ownerID(r), sanitizeInput(req.Name), dateRange, granularity)
	if err != nil {
		writeStorageError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toReportResponse(rep))
}

func (s *Server) handleListReports(w http.ResponseWriter, r *http.Request) {
	reports, err := s.store.ListReports(r.Context(), ownerID(r))
	if err != nil {
		writeStorageError(w, err)
		return
	}

	resp := make([]reportResponse, 0, len(reports))
	for i := range reports {
		resp = append(resp, toReportResponse(&reports[i]))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetReport(w http.ResponseWriter, r *http.Request) {
	rep, err := s.store.GetReport(r.Context(), ownerID(r), r.PathValue("id"))
	if err != nil {
		writeStorageError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toReportResponse(rep))
}

// handleRenameReport changes a saved report's name. The frozen aggregate and
// period are immutable.
func (s *Server) handleRenameReport(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	name := sanitizeInput(req.Name)
	if name == "" {
		writeError(w, http.StatusUnprocessableEntity, "name cannot be empty")
		return
	}

	rep, err := s.store.GetReport(r.Context(), ownerID(r), r.PathValue("id"))
	if err != nil {
		writeStorageError(w, err)
		return
	}
	rep.Name = name
	if err := s.store.UpdateReport(r.Context(), rep); err != nil {
		writeStorageError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toReportResponse(rep))
}

func (s *Server) handleDeleteReport(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteReport(r.Context(), ownerID(r), r.PathValue("id")); err != nil {
		writeStorageError(w, err)
		return
	}
	writeJSON(w, http.StatusNoContent, nil)
}

// handleDispatchReports queues the caller's own summary email for the
// requested period. The scheduler handles the all-users batch.
func (s *Server) handleDispatchReports(w http.ResponseWriter, r *http.Request) {
	var req dispatchRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	dateRange, granularity, err := parseReportPeriod(req.Start, req.End, req.Granularity)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	user, err := s.store.GetUserByID(r.Context(), ownerID(r))
	if err != nil {
		writeStorageError(w, err)
		return
	}

	res := s.dispatcher.Dispatch(r.Context(), *user, dateRange, granularity)
	resp := dispatchResponse{
		OwnerID:   res.OwnerID,
		Recipient: res.Recipient,
		Sent:      res.Sent,
	}
	if res.Err != nil {
		resp.Error = res.Err.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}

// parseReportPeriod validates the period shared by report saving and
// dispatching. The granularity defaults to monthly and unknown values are
// rejected.
func parseReportPeriod(start, end, granularity string) (core.DateRange, core.Granularity, error) {
	g := core.Monthly
	if v := strings.TrimSpace(granularity); v != "" {
		parsed, ok := core.ParseGranularity(v)
		if !ok {
			return core.DateRange{}, g, errUnknownGranularity
		}
		g = parsed
	}

	startDate, err := core.ParseDate(strings.TrimSpace(start))
	if err != nil {
		return core.DateRange{}, g, err
	}
	endDate, err := core.ParseDate(strings.TrimSpace(end))
	if err != nil {
		return core.DateRange{}, g, err
	}

	dateRange := core.DateRange{Start: startDate, End: endDate}
	if err := dateRange.Validate(); err != nil {
		return core.DateRange{}, g, err
	}
	return dateRange, g, nil
}
