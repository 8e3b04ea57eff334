package api

import (
	"net/http"
	"time"

	"github.com/visionedge/visionedge-cloud/internal/storage"
)

// HandleListEvents lists ingested events, newest first
func (s *RESTServer) HandleListEvents(w http.ResponseWriter, r *http.Request) {
	claims, _ := claimsFromContext(r.Context())
	limit, offset := pagination(r)

	filters := storage.EventFilters{OrganizationID: orgFilter(claims)}
	q := r.URL.Query()

	if v := q.Get("edge_server_id"); v != "" {
		if id, err := parseInt64(v); err == nil {
			filters.EdgeServerID = &id
		}
	}
	if v := q.Get("event_type"); v != "" {
		filters.EventType = &v
	}
	if v := q.Get("severity"); v != "" {
		filters.Severity = &v
	}
	if v := q.Get("start_time"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			s.respondError(w, http.StatusUnprocessableEntity, "invalid start_time, expected RFC3339")
			return
		}
		filters.StartTime = &t
	}
	if v := q.Get("end_time"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			s.respondError(w, http.StatusUnprocessableEntity, "invalid end_time, expected RFC3339")
			return
		}
		filters.EndTime = &t
	}

	events, total, err := s.store.ListEvents(r.Context(), filters, limit, offset)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"events": events,
		"total":  total,
	})
}
