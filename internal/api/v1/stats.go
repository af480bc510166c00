package v1

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Lartitiz/nowadaysagency-sub004/internal/exporter"
	"github.com/Lartitiz/nowadaysagency-sub004/internal/model"
)

// parseMonthParam accepte YYYY-MM ou YYYY-MM-DD ; vide = sans borne
func parseMonthParam(v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, nil
	}
	for _, layout := range []string{"2006-01", model.MonthKeyLayout} {
		if t, err := time.Parse(layout, v); err == nil {
			return model.FirstOfMonth(t), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid month %q", v)
}

// ListStats statistiques mensuelles
// GET /api/stats?from=YYYY-MM&to=YYYY-MM
func (h *Handler) ListStats(c *gin.Context) {
	from, err := parseMonthParam(c.Query("from"))
	if err != nil {
		errorResponse(c, CodeBadRequest, "Paramètre from invalide")
		return
	}
	to, err := parseMonthParam(c.Query("to"))
	if err != nil {
		errorResponse(c, CodeBadRequest, "Paramètre to invalide")
		return
	}

	rows, err := h.stats.List(c.Request.Context(), ownerID(c), from, to)
	if err != nil {
		h.fail(c, err)
		return
	}

	items := make([]gin.H, 0, len(rows))
	for _, r := range rows {
		items = append(items, gin.H{
			"month":     r.MonthKey(),
			"values":    r.Values,
			"updatedAt": r.UpdatedAt,
		})
	}
	success(c, items)
}

// yearParam année demandée, année courante par défaut
func yearParam(c *gin.Context) (int, bool) {
	v := c.Query("year")
	if v == "" {
		return time.Now().Year(), true
	}
	y, err := strconv.Atoi(v)
	if err != nil || y < 2000 || y > 2100 {
		errorResponse(c, CodeBadRequest, "Paramètre year invalide")
		return 0, false
	}
	return y, true
}

// GetSummary bilan annuel
// GET /api/stats/summary?year=
func (h *Handler) GetSummary(c *gin.Context) {
	year, ok := yearParam(c)
	if !ok {
		return
	}

	sum, err := h.stats.Summary(c.Request.Context(), ownerID(c), year)
	if err != nil {
		h.fail(c, err)
		return
	}
	success(c, sum)
}

// ExportStats classeur xlsx de l'année
// GET /api/stats/export?year=
func (h *Handler) ExportStats(c *gin.Context) {
	year, ok := yearParam(c)
	if !ok {
		return
	}
	if h.exporter == nil {
		errorResponse(c, CodeInternal, "Export indisponible")
		return
	}

	f, err := h.exporter.Export(c.Request.Context(), ownerID(c), year)
	if err != nil {
		h.fail(c, err)
		return
	}
	defer f.Close()

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		h.fail(c, fmt.Errorf("failed to write export: %w", err))
		return
	}

	c.Header("Content-Disposition", exporter.ContentDisposition(year))
	c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", buf.Bytes())
}
