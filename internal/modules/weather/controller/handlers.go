package controller

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/minjin8128-hub/kiwi-last/internal/modules/weather/repository"
	"github.com/minjin8128-hub/kiwi-last/internal/utils"
)

func (c *weatherControllerImpl) handleStatus(w http.ResponseWriter, r *http.Request) {
	status, err := c.repository.LoadStatus()
	if errors.Is(err, repository.ErrNoStatus) {
		utils.WriteError(w, http.StatusNotFound, "no run has completed yet")
		return
	}
	if err != nil {
		slog.Error("status: load failed", "error", err)
		utils.WriteError(w, http.StatusInternalServerError, "failed to load status")
		return
	}
	utils.WriteRawJSON(w, http.StatusOK, status)
}

func (c *weatherControllerImpl) handleDaily(w http.ResponseWriter, r *http.Request) {
	from, to, limit, err := parseRangeQuery(r)
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	records, err := c.repository.GetDaily(from, to, limit)
	if err != nil {
		slog.Error("daily: get records failed", "error", err)
		utils.WriteError(w, http.StatusInternalServerError, "failed to load daily records")
		return
	}
	utils.WriteJSON(w, http.StatusOK, records)
}

func (c *weatherControllerImpl) handleSoil(w http.ResponseWriter, r *http.Request) {
	zone := r.PathValue("zone")
	if zone == "" {
		utils.WriteError(w, http.StatusBadRequest, "missing zone")
		return
	}

	from, to, limit, err := parseRangeQuery(r)
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	samples, err := c.repository.GetSamples(zone, from, to, limit)
	if err != nil {
		slog.Error("soil: get samples failed", "zone", zone, "error", err)
		utils.WriteError(w, http.StatusInternalServerError, "failed to load soil samples")
		return
	}
	utils.WriteJSON(w, http.StatusOK, samples)
}

// handleIrrigation serves one zone's report out of the last status.
func (c *weatherControllerImpl) handleIrrigation(w http.ResponseWriter, r *http.Request) {
	zone := r.PathValue("zone")
	if zone == "" {
		utils.WriteError(w, http.StatusBadRequest, "missing zone")
		return
	}

	status, err := c.repository.LoadStatus()
	if errors.Is(err, repository.ErrNoStatus) {
		utils.WriteError(w, http.StatusNotFound, "no run has completed yet")
		return
	}
	if err != nil {
		slog.Error("irrigation: load status failed", "error", err)
		utils.WriteError(w, http.StatusInternalServerError, "failed to load status")
		return
	}

	var doc struct {
		Irrigation []json.RawMessage `json:"irrigation"`
	}
	if err := json.Unmarshal(status, &doc); err != nil {
		slog.Error("irrigation: decode status failed", "error", err)
		utils.WriteError(w, http.StatusInternalServerError, "stored status is not valid JSON")
		return
	}
	for _, report := range doc.Irrigation {
		var head struct {
			Zone string `json:"zone"`
		}
		if err := json.Unmarshal(report, &head); err == nil && head.Zone == zone {
			utils.WriteRawJSON(w, http.StatusOK, report)
			return
		}
	}
	utils.WriteError(w, http.StatusNotFound, "unknown zone")
}
