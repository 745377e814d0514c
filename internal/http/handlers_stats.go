package http

import (
	"fmt"
	"log/slog"
	"net/http"

	applog "fintrack/internal/log"
)

// handleStats computes an aggregate summary over the caller's transactions.
// Results are served from the LRU cache when the owner's data has not
// changed since they were computed.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	q, err := ParseStatsQuery(r.URL.Query())
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	owner := ownerID(r)
	key := s.statsCacheKey(owner, q)
	if agg, found := s.statsCache.Get(key); found {
		slog.DebugContext(r.Context(), "Stats cache hit", applog.FieldOwnerID, owner)
		writeJSON(w, http.StatusOK, agg)
		return
	}

	agg, err := s.stats.Summary(r.Context(), owner, q.Direction, q.Range, q.Granularity)
	if err != nil {
		writeStorageError(w, err)
		return
	}

	s.statsCache.Set(key, agg)
	writeJSON(w, http.StatusOK, agg)
}

func (s *Server) statsCacheKey(owner string, q StatsQuery) string {
	rangeKey := ""
	if q.Range != nil {
		rangeKey = q.Range.Start.String() + ".." + q.Range.End.String()
	}
	return fmt.Sprintf("%s|%d|%s|%s|%s", owner, s.statsGeneration(owner), q.Direction, rangeKey, q.Granularity)
}

func (s *Server) statsGeneration(owner string) uint64 {
	s.genMu.Lock()
	defer s.genMu.Unlock()
	return s.statsGen[owner]
}

// bumpStatsGeneration invalidates all cached stats of one owner. Stale
// entries stay in the LRU until evicted but can no longer be keyed.
func (s *Server) bumpStatsGeneration(owner string) {
	s.genMu.Lock()
	defer s.genMu.Unlock()
	s.statsGen[owner]++
}
