package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"runtime/debug"
	"strconv"
	"time"

	"github.com/jonathan/group-harmony/internal/config"
	"github.com/jonathan/group-harmony/internal/logging"
	"github.com/jonathan/group-harmony/internal/metrics"
	"github.com/jonathan/group-harmony/internal/pipeline"
	"github.com/jonathan/group-harmony/internal/trace"
	"github.com/jonathan/group-harmony/internal/types"
)

// maxBodyBytes caps recommendation request bodies.
const maxBodyBytes = 1 << 20

// TestResponse is the body of GET /api/test.
type TestResponse struct {
	Message     string            `json:"message"`
	Timestamp   string            `json:"timestamp"`
	Environment map[string]string `json:"environment"`
	Request     RequestEcho       `json:"request"`
}

// RequestEcho describes the request that reached the server.
type RequestEcho struct {
	Method  string      `json:"method"`
	URL     string      `json:"url"`
	Headers http.Header `json:"headers"`
}

// handleRecommendations runs the recommendation pipeline for one request.
// External calls run on a context detached from client cancellation.
func (s *Server) handleRecommendations(w http.ResponseWriter, r *http.Request) {
	ctx, tr := trace.Start(context.WithoutCancel(r.Context()))
	mode := "unknown"

	defer func() {
		if rec := recover(); rec != nil {
			stack := debug.Stack()
			tr.Errorf("server", "panic: %v", rec)
			logging.Ctx(ctx).Error().Interface("panic", rec).Bytes("stack", stack).Msg("pipeline panicked")
			metrics.PipelineRequests.WithLabelValues(mode, strconv.Itoa(http.StatusInternalServerError)).Inc()
			s.internalError(w, fmt.Sprintf("%s: %v", MsgInternal, rec), tr.Lines(), stack)
		}
	}()

	req, err := decodeRequest(w, r)
	if err != nil {
		tr.Warnf("request", "%v", err)
		s.pipelineFailure(w, tr, mode, err)
		return
	}
	mode = string(pipeline.DetectMode(req))

	result, err := s.runner.Run(ctx, req)
	if err != nil {
		s.pipelineFailure(w, tr, mode, err)
		return
	}

	metrics.PipelineRequests.WithLabelValues(mode, strconv.Itoa(http.StatusOK)).Inc()
	s.jsonResponse(w, http.StatusOK, result.Body())
}

// pipelineFailure maps err to a status and writes the error body with the trace so far.
func (s *Server) pipelineFailure(w http.ResponseWriter, tr *trace.Trace, mode string, err error) {
	status := HTTPStatus(err)
	metrics.PipelineRequests.WithLabelValues(mode, strconv.Itoa(status)).Inc()

	if status == http.StatusInternalServerError {
		tr.Errorf("server", "request failed: %v", err)
		s.internalError(w, errorMessage(err), tr.Lines(), debug.Stack())
		return
	}
	s.errorResponse(w, status, errorMessage(err), tr.Lines())
}

func decodeRequest(w http.ResponseWriter, r *http.Request) (types.RecommendationRequest, error) {
	var req types.RecommendationRequest
	if r.Body == nil {
		return req, &ErrBadRequestBody{Message: MsgMissingBody}
	}

	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&req); err != nil {
		if errors.Is(err, io.EOF) {
			return req, &ErrBadRequestBody{Message: MsgMissingBody, Cause: err}
		}
		return req, &ErrBadRequestBody{Message: MsgInvalidJSON, Cause: err}
	}
	return req, nil
}

// handleMethodNotAllowed answers non-POST requests on the recommendation paths.
func (s *Server) handleMethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Allow", "POST, OPTIONS")
	s.errorResponse(w, http.StatusMethodNotAllowed, MsgMethodNotAllowed,
		[]string{fmt.Sprintf("[request] rejected method %s", r.Method)})
}

// handleTest reports which secrets are configured and echoes the request.
func (s *Server) handleTest(w http.ResponseWriter, r *http.Request) {
	s.jsonResponse(w, http.StatusOK, TestResponse{
		Message:     "API is working!",
		Timestamp:   s.now().UTC().Format(time.RFC3339),
		Environment: config.EnvReport(s.getenv),
		Request: RequestEcho{
			Method:  r.Method,
			URL:     r.URL.String(),
			Headers: r.Header,
		},
	})
}

// handleHealth returns server health status
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.jsonResponse(w, http.StatusOK, map[string]string{"status": "ok"})
}
