package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"

	"github.com/couchcryptid/agrisense/internal/domain"
	"github.com/couchcryptid/agrisense/internal/simulator"
)

const maxRequestBytes = 1 << 16

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type errorEnvelope struct {
	Error errorBody `json:"error"`
}

type cropsResponse struct {
	Crops []domain.CropProfile `json:"crops"`
}

// simulationRequest is the POST /api/v1/simulations body.
type simulationRequest struct {
	Crop           string   `json:"crop"`
	IrrigationMm   float64  `json:"irrigation_mm"`
	FertilizerKg   float64  `json:"fertilizer_kg_per_ha"`
	Latitude       *float64 `json:"latitude,omitempty"`
	Longitude      *float64 `json:"longitude,omitempty"`
	RainfallMm     *float64 `json:"rainfall_mm,omitempty"`
	TemperatureC   *float64 `json:"temperature_c,omitempty"`
	IncludeSurface bool     `json:"include_surface,omitempty"`
}

func (req simulationRequest) toRequest(farm domain.Point) (simulator.Request, error) {
	out := simulator.Request{
		Decision: domain.DecisionInput{
			Crop:         req.Crop,
			IrrigationMm: req.IrrigationMm,
			FertilizerKg: req.FertilizerKg,
		},
		RainfallMm:     req.RainfallMm,
		TemperatureC:   req.TemperatureC,
		IncludeSurface: req.IncludeSurface,
	}
	if req.Latitude != nil || req.Longitude != nil {
		at := farm
		if req.Latitude != nil {
			at.Lat = *req.Latitude
		}
		if req.Longitude != nil {
			at.Lon = *req.Longitude
		}
		if err := validatePoint(at); err != nil {
			return simulator.Request{}, err
		}
		out.Location = &at
	}
	return out, nil
}

func (s *Server) handleListCrops(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, cropsResponse{Crops: s.sim.Catalog().Profiles()})
}

func (s *Server) handleGetClimate(w http.ResponseWriter, r *http.Request) {
	at := s.sim.Farm()
	q := r.URL.Query()
	if raw := q.Get("lat"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "bad_request", fmt.Sprintf("invalid lat %q", raw))
			return
		}
		at.Lat = v
	}
	if raw := q.Get("lon"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "bad_request", fmt.Sprintf("invalid lon %q", raw))
			return
		}
		at.Lon = v
	}
	if err := validatePoint(at); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, s.sim.ResolveClimate(r.Context(), at))
}

func (s *Server) handleCreateSimulation(w http.ResponseWriter, r *http.Request) {
	var body simulationRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid request body: "+err.Error())
		return
	}

	req, err := body.toRequest(s.sim.Farm())
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_decision", err.Error())
		return
	}

	outcome, err := s.sim.Simulate(r.Context(), req)
	switch {
	case errors.Is(err, domain.ErrInvalidDecision):
		writeError(w, http.StatusBadRequest, "invalid_decision", err.Error())
		return
	case errors.Is(err, domain.ErrUnknownCrop):
		writeError(w, http.StatusUnprocessableEntity, "unknown_crop", err.Error())
		return
	case err != nil:
		s.logger.Error("simulation failed", "error", err, "crop", body.Crop)
		writeError(w, http.StatusInternalServerError, "internal", "simulation failed")
		return
	}

	writeJSON(w, http.StatusOK, outcome)
}

func validatePoint(at domain.Point) error {
	if math.IsNaN(at.Lat) || at.Lat < -90 || at.Lat > 90 {
		return fmt.Errorf("latitude %v out of range [-90, 90]", at.Lat)
	}
	if math.IsNaN(at.Lon) || at.Lon < -180 || at.Lon > 180 {
		return fmt.Errorf("longitude %v out of range [-180, 180]", at.Lon)
	}
	return nil
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorEnvelope{Error: errorBody{Code: code, Message: message}})
}

// writeJSON encodes v before any header is sent so an unencodable value
// becomes a 500 instead of an empty success.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		sharedobs.WriteJSON(w, http.StatusInternalServerError, errorEnvelope{
			Error: errorBody{Code: "internal", Message: "encode response: " + err.Error()},
		})
		return
	}
	sharedobs.WriteJSON(w, status, json.RawMessage(data))
}
