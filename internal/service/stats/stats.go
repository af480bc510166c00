// Package stats lecture des statistiques mensuelles importées.
package stats

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Lartitiz/nowadaysagency-sub004/internal/model"
)

// ErrInvalidRange borne de fin antérieure à la borne de début
var ErrInvalidRange = errors.New("invalid range")

// Repository lecture des statistiques
type Repository interface {
	ListMonthlyStats(ctx context.Context, ownerID string, from, to time.Time) ([]model.MonthlyStat, error)
}

// Service statistiques d'un propriétaire
type Service struct {
	repo Repository
}

// NewService crée le service
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// List statistiques par mois croissant (bornes incluses, zéro = sans borne)
func (s *Service) List(ctx context.Context, ownerID string, from, to time.Time) ([]model.MonthlyStat, error) {
	if !from.IsZero() && !to.IsZero() && to.Before(from) {
		return nil, fmt.Errorf("%w: %s is before %s", ErrInvalidRange, to.Format(model.MonthKeyLayout), from.Format(model.MonthKeyLayout))
	}
	return s.repo.ListMonthlyStats(ctx, ownerID, from, to)
}

// Summary bilan annuel
type Summary struct {
	Year           int              `json:"year"`
	MonthsReported int              `json:"monthsReported"`
	Revenue        decimal.Decimal  `json:"revenue"`
	AdBudget       decimal.Decimal  `json:"adBudget"`
	FollowerGrowth decimal.Decimal  `json:"followerGrowth"`
	DiscoveryCalls decimal.Decimal  `json:"discoveryCalls"`
	ClientsSigned  decimal.Decimal  `json:"clientsSigned"`
	ConversionRate *decimal.Decimal `json:"conversionRate"`
	LastFollowers  *decimal.Decimal `json:"lastFollowers"`
}

// Summary totaux de l'année : chiffre d'affaires, budget publicitaire, solde d'abonnés
// (gagnés - perdus), taux de conversion appels → clients (2 décimales, nil sans appel)
func (s *Service) Summary(ctx context.Context, ownerID string, year int) (*Summary, error) {
	from := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(year, time.December, 1, 0, 0, 0, 0, time.UTC)
	rows, err := s.repo.ListMonthlyStats(ctx, ownerID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to load stats for %d: %w", year, err)
	}

	sum := &Summary{
		Year:           year,
		Revenue:        decimal.Zero,
		AdBudget:       decimal.Zero,
		FollowerGrowth: decimal.Zero,
		DiscoveryCalls: decimal.Zero,
		ClientsSigned:  decimal.Zero,
	}
	for _, row := range rows {
		if len(row.Values) == 0 {
			continue
		}
		sum.MonthsReported++
		sum.Revenue = sum.Revenue.Add(value(row, model.MetricRevenue))
		sum.AdBudget = sum.AdBudget.Add(value(row, model.MetricAdBudget))
		sum.FollowerGrowth = sum.FollowerGrowth.
			Add(value(row, model.MetricFollowersGained)).
			Sub(value(row, model.MetricFollowersLost))
		sum.DiscoveryCalls = sum.DiscoveryCalls.Add(value(row, model.MetricDiscoveryCalls))
		sum.ClientsSigned = sum.ClientsSigned.Add(value(row, model.MetricClientsSigned))
		if v, ok := row.Values[model.MetricFollowers]; ok && v.Number != nil {
			last := decimal.NewFromFloat(*v.Number)
			sum.LastFollowers = &last
		}
	}

	sum.Revenue = sum.Revenue.Round(2)
	sum.AdBudget = sum.AdBudget.Round(2)
	if sum.DiscoveryCalls.IsPositive() {
		rate := sum.ClientsSigned.DivRound(sum.DiscoveryCalls, 2)
		sum.ConversionRate = &rate
	}
	return sum, nil
}

func value(row model.MonthlyStat, key model.MetricKey) decimal.Decimal {
	v, ok := row.Values[key]
	if !ok || v.Number == nil {
		return decimal.Zero
	}
	return decimal.NewFromFloat(*v.Number)
}
