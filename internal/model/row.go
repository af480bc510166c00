package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// MonthKeyLayout format canonique d'une clé de mois
const MonthKeyLayout = "2006-01-02"

// MetricValue valeur d'une métrique : nombre, texte ou null
type MetricValue struct {
	Number *float64
	Text   *string
}

// NumberValue valeur numérique
func NumberValue(f float64) MetricValue {
	return MetricValue{Number: &f}
}

// TextValue valeur textuelle
func TextValue(s string) MetricValue {
	return MetricValue{Text: &s}
}

// NullValue valeur nulle (la colonne est mappée mais la cellule est vide)
func NullValue() MetricValue {
	return MetricValue{}
}

// IsNull aucune valeur
func (v MetricValue) IsNull() bool {
	return v.Number == nil && v.Text == nil
}

// SQLValue valeur à passer au driver
func (v MetricValue) SQLValue() interface{} {
	switch {
	case v.Number != nil:
		return *v.Number
	case v.Text != nil:
		return *v.Text
	default:
		return nil
	}
}

// MarshalJSON nombre, chaîne ou null
func (v MetricValue) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.SQLValue())
}

// UnmarshalJSON accepte nombre, chaîne ou null
func (v *MetricValue) UnmarshalJSON(data []byte) error {
	*v = MetricValue{}
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		v.Text = &s
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("metric value: %w", err)
	}
	v.Number = &f
	return nil
}

// FirstOfMonth ramène une date au premier jour du mois (UTC)
func FirstOfMonth(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// MonthIndex nombre de mois depuis l'an 0, pour calculer des écarts
func MonthIndex(t time.Time) int {
	return t.Year()*12 + int(t.Month()) - 1
}

// NormalizedMonthRow une ligne mensuelle normalisée
type NormalizedMonthRow struct {
	Month      time.Time                 `json:"-"`
	SourceLine int                       `json:"sourceLine"`
	Values     map[MetricKey]MetricValue `json:"values"`
}

// MonthKey clé canonique YYYY-MM-01
func (r NormalizedMonthRow) MonthKey() string {
	return FirstOfMonth(r.Month).Format(MonthKeyLayout)
}

type normalizedMonthRowJSON struct {
	Month      string                    `json:"month"`
	SourceLine int                       `json:"sourceLine"`
	Values     map[MetricKey]MetricValue `json:"values"`
}

// MarshalJSON expose la clé de mois plutôt que l'horodatage
func (r NormalizedMonthRow) MarshalJSON() ([]byte, error) {
	return json.Marshal(normalizedMonthRowJSON{
		Month:      r.MonthKey(),
		SourceLine: r.SourceLine,
		Values:     r.Values,
	})
}

// UnmarshalJSON relit la clé de mois
func (r *NormalizedMonthRow) UnmarshalJSON(data []byte) error {
	var raw normalizedMonthRowJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	month, err := time.Parse(MonthKeyLayout, raw.Month)
	if err != nil {
		return fmt.Errorf("month key %q: %w", raw.Month, err)
	}
	r.Month = month
	r.SourceLine = raw.SourceLine
	r.Values = raw.Values
	return nil
}

// Correction correction automatique d'une date (année mal lue)
type Correction struct {
	SourceLine int    `json:"sourceLine"`
	From       string `json:"from"`
	To         string `json:"to"`
	Label      string `json:"label"`
}

// SkipReasonDate motif d'une ligne dont la date est illisible
const SkipReasonDate = "date not recognized"

// SkippedRow ligne écartée lors de la transformation
type SkippedRow struct {
	Line     int    `json:"line"`
	RawValue string `json:"rawValue"`
	Reason   string `json:"reason"`
}

// PresentKeys métriques portant une valeur, dans l'ordre de l'énumération
func (r NormalizedMonthRow) PresentKeys() []MetricKey {
	out := make([]MetricKey, 0, len(r.Values))
	for _, d := range metricDefs {
		if v, ok := r.Values[d.Key]; ok && !v.IsNull() {
			out = append(out, d.Key)
		}
	}
	return out
}
