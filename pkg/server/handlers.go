package server

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/matzehuels/knotview/pkg/buildinfo"
	"github.com/matzehuels/knotview/pkg/errors"
	"github.com/matzehuels/knotview/pkg/grammar"
	"github.com/matzehuels/knotview/pkg/scene"
)

type toggleRequest struct {
	Visible *bool `json:"visible"`
}

type highlightRequest struct {
	KnotID string `json:"knotId"`
	Index  *int   `json:"index"`
	Value  *bool  `json:"value"`
}

type clearRequest struct {
	LayerID string `json:"layerId"`
}

type pickRequest struct {
	X int `json:"x"`
	Y int `json:"y"`
}

type filterRequest struct {
	Bbox []float64 `json:"bbox"`
}

type healthResponse struct {
	State string          `json:"state"`
	Frame string          `json:"frame,omitempty"`
	Build buildinfo.Build `json:"build"`
}

type knotsResponse struct {
	Knots  []scene.KnotStatus `json:"knots"`
	Groups [][]string         `json:"groups"`
}

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// =============================================================================
// Handlers
// =============================================================================

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	state := s.scene.State()
	status := http.StatusOK
	switch state {
	case scene.StateReady, scene.StateRendering, scene.StateIdle:
	default:
		status = http.StatusServiceUnavailable
	}
	s.writeJSON(w, status, healthResponse{State: state.String(), Frame: s.scene.FrameID(), Build: buildinfo.Current()})
}

func (s *Server) handlePlots(w http.ResponseWriter, _ *http.Request) {
	data, err := s.scene.PlotsData()
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, data)
}

func (s *Server) handleKnots(w http.ResponseWriter, _ *http.Request) {
	s.writeKnots(w)
}

func (s *Server) writeKnots(w http.ResponseWriter) {
	knots, err := s.scene.Knots()
	if err != nil {
		s.writeError(w, err)
		return
	}
	groups, err := s.scene.Groups()
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, knotsResponse{Knots: knots, Groups: groups})
}

func (s *Server) handleToggle(w http.ResponseWriter, r *http.Request) {
	var req toggleRequest
	if r.ContentLength != 0 {
		if !s.decode(w, r, &req) {
			return
		}
	}
	if err := s.scene.ToggleKnot(chi.URLParam(r, "id"), req.Visible); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeKnots(w)
}

func (s *Server) handleHighlight(w http.ResponseWriter, r *http.Request) {
	var req highlightRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.KnotID == "" || req.Index == nil {
		s.writeError(w, errors.New(errors.ErrCodeInvalidInput, "knotId and index are required"))
		return
	}
	value := true
	if req.Value != nil {
		value = *req.Value
	}
	if err := s.scene.SelectFromPlot(req.KnotID, *req.Index, value); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	var req clearRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.LayerID == "" {
		s.writeError(w, errors.New(errors.ErrCodeInvalidInput, "layerId is required"))
		return
	}
	if err := s.scene.UpdateGrammarPlotsHighlight(req.LayerID, "", 0, true); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handlePick(w http.ResponseWriter, r *http.Request) {
	var req pickRequest
	if !s.decode(w, r, &req) {
		return
	}
	res, err := s.scene.Pick(req.X, req.Y)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleGetCamera(w http.ResponseWriter, _ *http.Request) {
	st, err := s.scene.Camera()
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleSetCamera(w http.ResponseWriter, r *http.Request) {
	var req grammar.CameraParams
	if !s.decode(w, r, &req) {
		return
	}
	if err := s.scene.SetCamera(req); err != nil {
		s.writeError(w, err)
		return
	}
	s.handleGetCamera(w, r)
}

func (s *Server) handleFilter(w http.ResponseWriter, r *http.Request) {
	var req filterRequest
	if !s.decode(w, r, &req) {
		return
	}
	if err := s.scene.SetFilterBbox(req.Bbox); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// Encoding
// =============================================================================

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		s.writeError(w, errors.New(errors.ErrCodeInvalidInput, "decode request body: %v", err))
		return false
	}
	return true
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("response not written", "err", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := errors.HTTPStatus(err)
	code := errors.GetCode(err)
	if code == "" {
		code = errors.ErrCodeInternal
	}
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "err", err)
	}
	s.writeJSON(w, status, errorBody{Error: errorDetail{Code: string(code), Message: errors.UserMessage(err)}})
}
