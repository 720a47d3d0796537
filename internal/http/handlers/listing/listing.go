// Package listing реализует публичные HTTP-обработчики каталога рангов и апгрейдов.
package listing

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/render"

	"github.com/magabrotheeeer/rankshop/internal/catalog"
	"github.com/magabrotheeeer/rankshop/internal/http/response"
)

// Source отдаёт содержимое каталога.
type Source interface {
	Ranks() []catalog.Rank
	Upgrades() []catalog.Upgrade
}

// RanksHandler возвращает все ранги.
type RanksHandler struct {
	log    *slog.Logger
	source Source
}

// NewRanks создает RanksHandler.
func NewRanks(log *slog.Logger, source Source) *RanksHandler {
	return &RanksHandler{log: log, source: source}
}

// ServeHTTP godoc
// @Summary Каталог рангов
// @Tags Catalog
// @Produce  json
// @Success 200 {object} response.Response{data=[]catalog.Rank}
// @Router /catalog/ranks [get]
func (h *RanksHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, response.OKWithData(h.source.Ranks()))
}

// UpgradesHandler возвращает все апгрейды.
type UpgradesHandler struct {
	log    *slog.Logger
	source Source
}

// NewUpgrades создает UpgradesHandler.
func NewUpgrades(log *slog.Logger, source Source) *UpgradesHandler {
	return &UpgradesHandler{log: log, source: source}
}

// ServeHTTP godoc
// @Summary Каталог апгрейдов
// @Tags Catalog
// @Produce  json
// @Success 200 {object} response.Response{data=[]catalog.Upgrade}
// @Router /catalog/upgrades [get]
func (h *UpgradesHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, response.OKWithData(h.source.Upgrades()))
}
