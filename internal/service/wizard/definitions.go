package wizard

import "github.com/Lartitiz/nowadaysagency-sub004/internal/model"

// Step une étape d'un parcours
type Step struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// Definition parcours guidé et ses étapes ordonnées
type Definition struct {
	Kind  model.WizardKind `json:"kind"`
	Title string           `json:"title"`
	Steps []Step           `json:"steps"`
}

var definitions = []Definition{
	{
		Kind:  model.WizardOnboarding,
		Title: "Bienvenue",
		Steps: []Step{
			{ID: "activite", Label: "Ton activité"},
			{ID: "cible", Label: "Ta cible"},
			{ID: "objectifs", Label: "Tes objectifs"},
			{ID: "canaux", Label: "Tes canaux"},
			{ID: "ton", Label: "Ton ton de voix"},
		},
	},
	{
		Kind:  model.WizardPersona,
		Title: "Mon client idéal",
		Steps: []Step{
			{ID: "identite", Label: "Qui est-ce ?"},
			{ID: "quotidien", Label: "Son quotidien"},
			{ID: "problemes", Label: "Ses problèmes"},
			{ID: "desirs", Label: "Ses envies"},
			{ID: "objections", Label: "Ses freins"},
			{ID: "canaux", Label: "Où le trouver"},
		},
	},
	{
		Kind:  model.WizardProposition,
		Title: "Ma proposition de valeur",
		Steps: []Step{
			{ID: "offre", Label: "Ton offre"},
			{ID: "probleme", Label: "Le problème résolu"},
			{ID: "solution", Label: "Ta solution"},
			{ID: "difference", Label: "Ce qui te distingue"},
			{ID: "preuves", Label: "Tes preuves"},
		},
	},
	{
		Kind:  model.WizardStrategy,
		Title: "Ma stratégie de contenu",
		Steps: []Step{
			{ID: "objectif", Label: "Objectif principal"},
			{ID: "piliers", Label: "Piliers de contenu"},
			{ID: "formats", Label: "Formats"},
			{ID: "frequence", Label: "Fréquence"},
			{ID: "calendrier", Label: "Calendrier"},
		},
	},
}

// Definitions tous les parcours
func Definitions() []Definition {
	out := make([]Definition, len(definitions))
	copy(out, definitions)
	return out
}

// Lookup définition d'un parcours
func Lookup(kind model.WizardKind) (Definition, bool) {
	for _, d := range definitions {
		if d.Kind == kind {
			return d, true
		}
	}
	return Definition{}, false
}

// LastStep index de la dernière étape
func (d Definition) LastStep() int {
	return len(d.Steps) - 1
}
