package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/spigell/legallens/internal/ai"
	"github.com/spigell/legallens/internal/document"
	"github.com/spigell/legallens/internal/tender"
)

const (
	formDocument = "document"
	formEntity   = "entity"
	formSolution = "solution"
)

type analyzeResponse struct {
	RunID      string         `json:"runId"`
	State      string         `json:"state"`
	Result     *tender.Result `json:"result,omitempty"`
	ArchiveKey string         `json:"archiveKey,omitempty"`
	Error      string         `json:"error,omitempty"`
}

type assistantRequest struct {
	History []tender.Turn  `json:"history"`
	Query   string         `json:"query"`
	Result  *tender.Result `json:"result,omitempty"`
}

type assistantResponse struct {
	Answer string `json:"answer"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Write([]byte("ok"))
}

func (s *Server) handleSolutions(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.deps.Solutions)
}

// POST /api/v1/analyze
// Multipart form: document (PDF file) plus either entity or solution.
func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.deps.MaxDocumentSize+formOverhead)
	if err := r.ParseMultipartForm(formOverhead); err != nil {
		s.badRequest(w, "Please upload a valid PDF file.", err)
		return
	}
	defer r.MultipartForm.RemoveAll()

	req, err := s.analysisRequest(r.FormValue(formEntity), r.FormValue(formSolution))
	if err != nil {
		s.badRequest(w, err.Error(), err)
		return
	}

	file, header, err := r.FormFile(formDocument)
	if err != nil {
		s.badRequest(w, "Please upload a valid PDF file.", err)
		return
	}
	defer file.Close()

	in := document.Input{
		Name:     header.Filename,
		MIMEType: header.Header.Get("Content-Type"),
		Size:     header.Size,
		Reader:   file,
	}

	run, err := s.deps.Pipeline.Analyze(r.Context(), req, in)
	if err != nil {
		resp := analyzeResponse{Error: tender.UserMessage(err)}
		if run != nil {
			resp.RunID = run.ID
			resp.State = string(run.State)
		}
		writeJSON(w, statusFor(err), resp)
		return
	}

	writeJSON(w, http.StatusOK, analyzeResponse{
		RunID:      run.ID,
		State:      string(run.State),
		Result:     run.Result,
		ArchiveKey: run.ArchiveKey,
	})
}

func (s *Server) analysisRequest(entity, solutionID string) (tender.Request, error) {
	entity = strings.TrimSpace(entity)
	solutionID = strings.TrimSpace(solutionID)

	switch {
	case entity != "" && solutionID != "":
		return tender.Request{}, errors.New("provide either entity or solution, not both")
	case solutionID != "":
		solution, ok := tender.FindSolution(s.deps.Solutions, solutionID)
		if !ok {
			return tender.Request{}, errors.New("unknown solution: " + solutionID)
		}
		return tender.NewSolutionRequest(solution)
	case entity != "":
		return tender.NewGroundedRequest(entity)
	default:
		return tender.Request{}, errors.New("entity or solution is required")
	}
}

// POST /api/v1/assistant
// Body: {"history": [{"role": "user", "text": "..."}], "query": "...", "result": {...}}
func (s *Server) handleAssistant(w http.ResponseWriter, r *http.Request) {
	var body assistantRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.badRequest(w, "invalid request body", err)
		return
	}
	if strings.TrimSpace(body.Query) == "" {
		s.badRequest(w, "query is required", nil)
		return
	}

	history := body.History
	if body.Result != nil {
		history = append(ai.ResultTurns(*body.Result), history...)
	}
	for _, turn := range history {
		if !turn.Role.Valid() {
			s.badRequest(w, "unsupported role: "+string(turn.Role), nil)
			return
		}
	}

	answer, err := s.deps.Assistant.Answer(r.Context(), history, body.Query)
	if err != nil {
		s.deps.Metrics.ObserveAnswer("error")
		s.logger.Error("assistant request failed", zap.Error(err))
		writeJSON(w, http.StatusBadGateway, errorResponse{Error: "The assistant is unavailable. Please try again."})
		return
	}

	s.deps.Metrics.ObserveAnswer("ok")
	writeJSON(w, http.StatusOK, assistantResponse{Answer: answer})
}

func (s *Server) badRequest(w http.ResponseWriter, message string, err error) {
	if err != nil {
		s.logger.Debug("rejecting request", zap.String("reason", message), zap.Error(err))
	}
	writeJSON(w, http.StatusBadRequest, errorResponse{Error: message})
}

// statusFor maps a failed run to an HTTP status. Details stay in the logs.
func statusFor(err error) int {
	switch {
	case errors.Is(err, tender.ErrAdmission), errors.Is(err, tender.ErrEncoding):
		return http.StatusBadRequest
	case errors.Is(err, tender.ErrEmptyResponse), errors.Is(err, tender.ErrSchemaViolation):
		return http.StatusUnprocessableEntity
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusBadGateway
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
