package server

import (
	"net/http"

	"github.com/jrsteele09/quiz-admin/dispatch"
)

type jobsResponse struct {
	Jobs []dispatch.JobStatus `json:"jobs"`
}

type runResponse struct {
	Outcome dispatch.Outcome `json:"outcome"`
}

func (s *Server) JobsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, jobsResponse{Jobs: s.dispatcher.Jobs()})
	}
}

// JobsRefreshHandler reloads last-executed instants from the backend. A failed
// load is reported, and the job list shows the unknown state.
func (s *Server) JobsRefreshHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := s.dispatcher.LoadCooldowns(r.Context()); err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, jobsResponse{Jobs: s.dispatcher.Jobs()})
	}
}

func (s *Server) JobRunHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		out, err := s.dispatcher.Dispatch(r.Context(), r.PathValue("id"))
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, runResponse{Outcome: out})
	}
}
