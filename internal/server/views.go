package server

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"

	"github.com/GustavoChierici/system-dashboard/internal/model"
	"github.com/GustavoChierici/system-dashboard/internal/sampler"
)

// View names accepted by the websocket endpoint.
const (
	ViewCPU       = "cpu"
	ViewCores     = "cores"
	ViewMemory    = "memory"
	ViewProcesses = "processes"
	ViewHost      = "host"
)

var errNoData = stderrors.New("no data yet")

// Request asks for one view. Core is only read for the cpu view; -1 is
// the whole machine.
type Request struct {
	ID   string `json:"id,omitempty"`
	View string `json:"view"`
	Core int    `json:"core"`
}

type CPUResponse struct {
	Core   int           `json:"core"`
	Points []model.Point `json:"points"`
}

type CoresResponse struct {
	Cores int    `json:"cores"`
	State string `json:"state"`
}

type HostResponse struct {
	Host string `json:"host"`
}

type ProcessesResponse struct {
	Processes []model.ProcessRecord `json:"processes"`
}

// resolve answers req from the current views. The status is the HTTP code
// the answer maps to.
func (s *Server) resolve(ctx context.Context, req Request) (any, int, error) {
	switch req.View {
	case ViewCPU:
		if s.views.State() != sampler.Running {
			return nil, http.StatusServiceUnavailable, errNoData
		}
		if req.Core < sampler.AggregateKey || req.Core >= s.views.Cores() {
			return nil, http.StatusNotFound, fmt.Errorf("unknown core %d", req.Core)
		}
		return CPUResponse{Core: req.Core, Points: s.views.CPUView(req.Core)}, http.StatusOK, nil

	case ViewCores:
		if s.views.State() == sampler.Uninitialized {
			return nil, http.StatusServiceUnavailable, errNoData
		}
		return CoresResponse{Cores: s.views.Cores(), State: s.views.State().String()}, http.StatusOK, nil

	case ViewMemory:
		mem, ok := s.views.Memory()
		if !ok {
			return nil, http.StatusServiceUnavailable, errNoData
		}
		return mem, http.StatusOK, nil

	case ViewHost:
		host, ok := s.views.HostIdentity()
		if !ok {
			return nil, http.StatusServiceUnavailable, errNoData
		}
		return HostResponse{Host: host}, http.StatusOK, nil

	case ViewProcesses:
		list, err := s.procs.List(ctx)
		if err != nil {
			s.log.WithError(err).Warn("process list failed")
			return nil, http.StatusServiceUnavailable, err
		}
		return ProcessesResponse{Processes: list}, http.StatusOK, nil

	default:
		return nil, http.StatusBadRequest, fmt.Errorf("unknown view %q", req.View)
	}
}
