// Package exporter classeur annuel des statistiques mensuelles.
package exporter

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/Lartitiz/nowadaysagency-sub004/internal/model"
	"github.com/Lartitiz/nowadaysagency-sub004/internal/parser"
	"github.com/Lartitiz/nowadaysagency-sub004/internal/service/stats"
)

// SheetName feuille unique du classeur exporté
const SheetName = "Statistiques"

// MonthHeader en-tête de la colonne des mois
const MonthHeader = "Mois"

// Exporter écrit les statistiques d'une année dans un classeur
type Exporter struct {
	repo stats.Repository
}

// NewExporter crée l'exporteur
func NewExporter(repo stats.Repository) *Exporter {
	return &Exporter{repo: repo}
}

// Headers en-têtes du classeur : Mois puis une colonne par métrique, dans l'ordre de définition.
// Un classeur exporté puis ré-importé retrouve donc toujours la même empreinte.
func Headers() []string {
	defs := model.Metrics()
	out := make([]string, 0, len(defs)+1)
	out = append(out, MonthHeader)
	for _, d := range defs {
		out = append(out, d.Label)
	}
	return out
}

// Export une ligne par mois renseigné ; l'appelant ferme le fichier
func (e *Exporter) Export(ctx context.Context, ownerID string, year int) (*excelize.File, error) {
	from := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(year, time.December, 1, 0, 0, 0, 0, time.UTC)
	rows, err := e.repo.ListMonthlyStats(ctx, ownerID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to load stats for %d: %w", year, err)
	}

	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("failed to rename sheet: %w", err)
	}

	if err := f.SetSheetRow(SheetName, "A1", toInterfaces(Headers())); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("failed to write header: %w", err)
	}

	keys := model.MetricKeys()
	for i, row := range rows {
		line := make([]interface{}, 0, len(keys)+1)
		line = append(line, parser.MonthLabel(row.Month))
		for _, k := range keys {
			v, ok := row.Values[k]
			switch {
			case !ok || v.IsNull():
				line = append(line, nil)
			case v.Number != nil:
				line = append(line, *v.Number)
			default:
				line = append(line, *v.Text)
			}
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			_ = f.Close()
			return nil, err
		}
		if err := f.SetSheetRow(SheetName, cell, &line); err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("failed to write %s: %w", row.MonthKey(), err)
		}
	}

	if err := f.SetColWidth(SheetName, "A", "A", 16); err != nil {
		_ = f.Close()
		return nil, err
	}
	if err := f.SetPanes(SheetName, &excelize.Panes{
		Freeze:      true,
		XSplit:      1,
		YSplit:      1,
		TopLeftCell: "B2",
		ActivePane:  "bottomRight",
	}); err != nil {
		_ = f.Close()
		return nil, err
	}

	f.SetActiveSheet(0)
	return f, nil
}

// ContentDisposition en-tête de téléchargement (nom ASCII + nom UTF-8)
func ContentDisposition(year int) string {
	ascii := fmt.Sprintf("statistiques-%d.xlsx", year)
	utf8Name := fmt.Sprintf("Statistiques mensuelles %d.xlsx", year)
	return fmt.Sprintf("attachment; filename=%q; filename*=UTF-8''%s", ascii, url.PathEscape(utf8Name))
}

func toInterfaces(values []string) *[]interface{} {
	out := make([]interface{}, len(values))
	for i, v := range values {
		out[i] = v
	}
	return &out
}
