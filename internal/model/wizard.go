package model

import (
	"fmt"
	"time"
)

// WizardKind parcours guidé
type WizardKind string

const (
	WizardOnboarding  WizardKind = "onboarding"
	WizardPersona     WizardKind = "persona"
	WizardProposition WizardKind = "proposition"
	WizardStrategy    WizardKind = "strategy"
)

// ParseWizardKind valide le type de parcours
func ParseWizardKind(s string) (WizardKind, error) {
	switch k := WizardKind(s); k {
	case WizardOnboarding, WizardPersona, WizardProposition, WizardStrategy:
		return k, nil
	}
	return "", fmt.Errorf("unknown wizard %q", s)
}

// WizardDraft réponses partielles d'un parcours
type WizardDraft struct {
	OwnerID   string                 `json:"ownerId"`
	Kind      WizardKind             `json:"kind"`
	Step      int                    `json:"step"`
	Answers   map[string]interface{} `json:"answers"`
	UpdatedAt time.Time              `json:"updatedAt"`
}
