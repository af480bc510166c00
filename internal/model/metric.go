package model

import "fmt"

// MetricsVersion version de l'énumération des métriques : à incrémenter à chaque extension
const MetricsVersion = 1

// MetricKey identifiant de métrique (énumération fermée)
type MetricKey string

const (
	MetricObjective        MetricKey = "objective"
	MetricContentPublished MetricKey = "content_published"

	MetricReach                 MetricKey = "reach"
	MetricViews                 MetricKey = "views"
	MetricProfileVisits         MetricKey = "profile_visits"
	MetricWebsiteClicks         MetricKey = "website_clicks"
	MetricInteractions          MetricKey = "interactions"
	MetricAccountsEngaged       MetricKey = "accounts_engaged"
	MetricFollowersEngaged      MetricKey = "followers_engaged"
	MetricFollowers             MetricKey = "followers"
	MetricFollowersGained       MetricKey = "followers_gained"
	MetricFollowersLost         MetricKey = "followers_lost"
	MetricEmailSignups          MetricKey = "email_signups"
	MetricNewsletterSubscribers MetricKey = "newsletter_subscribers"
	MetricWebsiteVisitors       MetricKey = "website_visitors"

	MetricTrafficSearch    MetricKey = "traffic_search"
	MetricTrafficSocial    MetricKey = "traffic_social"
	MetricTrafficDirect    MetricKey = "traffic_direct"
	MetricTrafficPinterest MetricKey = "traffic_pinterest"
	MetricTrafficInstagram MetricKey = "traffic_instagram"
	MetricTrafficOther     MetricKey = "traffic_other"

	MetricAdBudget MetricKey = "ad_budget"

	MetricPageViewsHome    MetricKey = "page_views_home"
	MetricPageViewsOffer   MetricKey = "page_views_offer"
	MetricPageViewsAbout   MetricKey = "page_views_about"
	MetricPageViewsContact MetricKey = "page_views_contact"

	MetricDiscoveryCalls MetricKey = "discovery_calls"
	MetricClientsSigned  MetricKey = "clients_signed"
	MetricRevenue        MetricKey = "revenue"
)

// MetricDef définition d'une métrique
type MetricDef struct {
	Key     MetricKey `json:"key"`
	Label   string    `json:"label"`
	Textual bool      `json:"textual"`
}

// metricDefs l'ordre est celui de l'écran de correspondance
var metricDefs = []MetricDef{
	{Key: MetricObjective, Label: "Objectif du mois", Textual: true},
	{Key: MetricContentPublished, Label: "Contenus publiés", Textual: true},
	{Key: MetricReach, Label: "Portée"},
	{Key: MetricViews, Label: "Vues"},
	{Key: MetricProfileVisits, Label: "Visites du profil"},
	{Key: MetricWebsiteClicks, Label: "Clics vers le site"},
	{Key: MetricInteractions, Label: "Interactions"},
	{Key: MetricAccountsEngaged, Label: "Comptes engagés"},
	{Key: MetricFollowersEngaged, Label: "Abonnés engagés"},
	{Key: MetricFollowers, Label: "Abonnés"},
	{Key: MetricFollowersGained, Label: "Nouveaux abonnés"},
	{Key: MetricFollowersLost, Label: "Désabonnements"},
	{Key: MetricEmailSignups, Label: "Inscriptions email"},
	{Key: MetricNewsletterSubscribers, Label: "Abonnés newsletter"},
	{Key: MetricWebsiteVisitors, Label: "Visiteurs du site"},
	{Key: MetricTrafficSearch, Label: "Trafic recherche"},
	{Key: MetricTrafficSocial, Label: "Trafic réseaux sociaux"},
	{Key: MetricTrafficDirect, Label: "Trafic direct"},
	{Key: MetricTrafficPinterest, Label: "Trafic Pinterest"},
	{Key: MetricTrafficInstagram, Label: "Trafic Instagram"},
	{Key: MetricTrafficOther, Label: "Trafic autre"},
	{Key: MetricAdBudget, Label: "Budget publicitaire"},
	{Key: MetricPageViewsHome, Label: "Vues page d'accueil"},
	{Key: MetricPageViewsOffer, Label: "Vues page offre"},
	{Key: MetricPageViewsAbout, Label: "Vues page à propos"},
	{Key: MetricPageViewsContact, Label: "Vues page contact"},
	{Key: MetricDiscoveryCalls, Label: "Appels découverte"},
	{Key: MetricClientsSigned, Label: "Clients signés"},
	{Key: MetricRevenue, Label: "Chiffre d'affaires"},
}

var metricIndex = func() map[MetricKey]MetricDef {
	m := make(map[MetricKey]MetricDef, len(metricDefs))
	for _, d := range metricDefs {
		m[d.Key] = d
	}
	return m
}()

// Metrics retourne une copie de toutes les définitions
func Metrics() []MetricDef {
	out := make([]MetricDef, len(metricDefs))
	copy(out, metricDefs)
	return out
}

// MetricKeys retourne les identifiants dans l'ordre de définition
func MetricKeys() []MetricKey {
	out := make([]MetricKey, 0, len(metricDefs))
	for _, d := range metricDefs {
		out = append(out, d.Key)
	}
	return out
}

// ParseMetricKey valide un identifiant de métrique
func ParseMetricKey(s string) (MetricKey, error) {
	k := MetricKey(s)
	if _, ok := metricIndex[k]; !ok {
		return "", fmt.Errorf("unknown metric key %q", s)
	}
	return k, nil
}

// Valid indique si la clé appartient à l'énumération
func (k MetricKey) Valid() bool {
	_, ok := metricIndex[k]
	return ok
}

// Textual indique une métrique textuelle (objective, content_published)
func (k MetricKey) Textual() bool {
	return metricIndex[k].Textual
}

// Label libellé français
func (k MetricKey) Label() string {
	if d, ok := metricIndex[k]; ok {
		return d.Label
	}
	return string(k)
}
