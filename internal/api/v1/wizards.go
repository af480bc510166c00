package v1

import (
	"github.com/gin-gonic/gin"

	"github.com/Lartitiz/nowadaysagency-sub004/internal/model"
	"github.com/Lartitiz/nowadaysagency-sub004/internal/service/wizard"
)

// DraftResponse brouillon et définition du parcours
type DraftResponse struct {
	Draft      *model.WizardDraft `json:"draft"`
	Definition wizard.Definition  `json:"definition"`
	StepID     string             `json:"stepId"`
}

func draftResponse(d *model.WizardDraft) DraftResponse {
	def, _ := wizard.Lookup(d.Kind)
	out := DraftResponse{Draft: d, Definition: def}
	if d.Step >= 0 && d.Step < len(def.Steps) {
		out.StepID = def.Steps[d.Step].ID
	}
	return out
}

// ListWizards définitions des parcours
// GET /api/wizards
func (h *Handler) ListWizards(c *gin.Context) {
	success(c, wizard.Definitions())
}

// GetDraft brouillon courant
// GET /api/wizards/:kind/draft
func (h *Handler) GetDraft(c *gin.Context) {
	d, err := h.wizards.Get(c.Request.Context(), ownerID(c), model.WizardKind(c.Param("kind")))
	if err != nil {
		h.fail(c, err)
		return
	}
	success(c, draftResponse(d))
}

// SaveDraft réponses d'une étape (enregistrement différé)
// PUT /api/wizards/:kind/draft
func (h *Handler) SaveDraft(c *gin.Context) {
	var req struct {
		Step    int                    `json:"step"`
		Answers map[string]interface{} `json:"answers"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, CodeBadRequest, "Réponses illisibles")
		return
	}
	d, err := h.wizards.Answer(c.Request.Context(), ownerID(c), model.WizardKind(c.Param("kind")), req.Step, req.Answers)
	if err != nil {
		h.fail(c, err)
		return
	}
	success(c, draftResponse(d))
}

// ResetDraft efface le brouillon
// DELETE /api/wizards/:kind/draft
func (h *Handler) ResetDraft(c *gin.Context) {
	if err := h.wizards.Reset(c.Request.Context(), ownerID(c), model.WizardKind(c.Param("kind"))); err != nil {
		h.fail(c, err)
		return
	}
	success(c, nil)
}

// NextStep étape suivante
// POST /api/wizards/:kind/next
func (h *Handler) NextStep(c *gin.Context) {
	d, err := h.wizards.Next(c.Request.Context(), ownerID(c), model.WizardKind(c.Param("kind")))
	if err != nil {
		h.fail(c, err)
		return
	}
	success(c, draftResponse(d))
}

// PreviousStep étape précédente
// POST /api/wizards/:kind/back
func (h *Handler) PreviousStep(c *gin.Context) {
	d, err := h.wizards.Back(c.Request.Context(), ownerID(c), model.WizardKind(c.Param("kind")))
	if err != nil {
		h.fail(c, err)
		return
	}
	success(c, draftResponse(d))
}
