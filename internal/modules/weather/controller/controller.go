package controller

import (
	"net/http"

	"github.com/minjin8128-hub/kiwi-last/internal/modules/weather/repository"
)

type WeatherController interface {
	RegisterRoutes(mux *http.ServeMux)
}

type weatherControllerImpl struct {
	repository repository.WeatherRepository
}

func NewWeatherController(repository repository.WeatherRepository) WeatherController {
	return &weatherControllerImpl{repository: repository}
}

func (c *weatherControllerImpl) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/status", c.handleStatus)
	mux.HandleFunc("GET /api/daily", c.handleDaily)
	mux.HandleFunc("GET /api/soil/{zone}", c.handleSoil)
	mux.HandleFunc("GET /api/irrigation/{zone}", c.handleIrrigation)
}
