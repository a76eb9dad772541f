package restserver

import (
	"fmt"
	"net/http"

	"github.com/chrissnell/thermexposure/internal/batch"
	"github.com/chrissnell/thermexposure/internal/selection"
	"github.com/chrissnell/thermexposure/internal/types"
	"github.com/chrissnell/thermexposure/pkg/responseformat"
	"github.com/gorilla/mux"
)

// Handlers contains all HTTP handlers for the REST server
type Handlers struct {
	controller *Controller
	formatter  *responseformat.Formatter
}

// NewHandlers creates a new handlers instance
func NewHandlers(ctrl *Controller) *Handlers {
	return &Handlers{
		controller: ctrl,
		formatter:  responseformat.NewFormatter(),
	}
}

// NodeResponse is the body of /nodes/{node}. Exactly one of Result and
// Failure is set.
type NodeResponse struct {
	Node    types.NodeID          `json:"node"`
	Status  string                `json:"status"`
	Result  *types.ExposureResult `json:"result,omitempty"`
	Failure *batch.Failure        `json:"failure,omitempty"`
}

// FailuresResponse is the body of /failures
type FailuresResponse struct {
	RunID  string                                `json:"run_id"`
	Total  int                                   `json:"total"`
	ByKind map[batch.FailureKind][]batch.Failure `json:"by_kind"`
}

func (h *Handlers) reportOr503(w http.ResponseWriter, req *http.Request) *batch.Report {
	report := h.controller.currentReport()
	if report == nil {
		h.write(w, req, http.StatusServiceUnavailable, responseformat.ErrorBody{Error: "no report available yet"})
	}
	return report
}

func (h *Handlers) write(w http.ResponseWriter, req *http.Request, status int, data any) {
	if err := h.formatter.WriteResponse(w, req, status, data); err != nil {
		h.controller.logger.Errorf("error encoding response for %s: %v", req.URL.Path, err)
	}
}

// GetReport returns the whole report of the last run
func (h *Handlers) GetReport(w http.ResponseWriter, req *http.Request) {
	report := h.reportOr503(w, req)
	if report == nil {
		return
	}
	h.write(w, req, http.StatusOK, report)
}

// GetNode returns the result or the failure of one node
func (h *Handlers) GetNode(w http.ResponseWriter, req *http.Request) {
	report := h.reportOr503(w, req)
	if report == nil {
		return
	}

	nodes, err := selection.ParseNodeList(mux.Vars(req)["node"])
	if err != nil || len(nodes) != 1 {
		h.write(w, req, http.StatusBadRequest, responseformat.ErrorBody{Error: fmt.Sprintf("invalid node %q", mux.Vars(req)["node"])})
		return
	}
	node := nodes[0]

	if res, ok := report.Result(node); ok {
		h.write(w, req, http.StatusOK, NodeResponse{Node: node, Status: "ok", Result: &res})
		return
	}
	if f, ok := report.Failure(node); ok {
		h.write(w, req, http.StatusOK, NodeResponse{Node: node, Status: string(f.Kind), Failure: &f})
		return
	}

	h.write(w, req, http.StatusNotFound, responseformat.ErrorBody{Error: fmt.Sprintf("node %v was not part of run %s", node, report.RunID)})
}

// GetFailures returns the failures grouped by kind
func (h *Handlers) GetFailures(w http.ResponseWriter, req *http.Request) {
	report := h.reportOr503(w, req)
	if report == nil {
		return
	}
	h.write(w, req, http.StatusOK, FailuresResponse{
		RunID:  report.RunID,
		Total:  len(report.Failures),
		ByKind: report.FailuresByKind(),
	})
}
