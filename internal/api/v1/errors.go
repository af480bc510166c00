package v1

import (
	"errors"

	"github.com/Lartitiz/nowadaysagency-sub004/internal/importer"
	"github.com/Lartitiz/nowadaysagency-sub004/internal/model"
	"github.com/Lartitiz/nowadaysagency-sub004/internal/service/excel"
	"github.com/Lartitiz/nowadaysagency-sub004/internal/service/mapping"
	"github.com/Lartitiz/nowadaysagency-sub004/internal/service/stats"
	"github.com/Lartitiz/nowadaysagency-sub004/internal/service/wizard"
	"github.com/Lartitiz/nowadaysagency-sub004/internal/session"
)

// Codes métier de l'enveloppe
const (
	CodeBadRequest           = 1001
	CodeUnauthenticated      = 1002
	CodeFileTooLarge         = 1003
	CodeUnreadableFile       = 2001
	CodeInferenceFailed      = 2002
	CodeInvalidMapping       = 2003
	CodeInvalidStep          = 2004
	CodeSessionNotFound      = 2005
	CodePersistenceFailed    = 2006
	CodeNothingToImport      = 2007
	CodeUnknownWizard        = 3001
	CodeWizardStepOutOfRange = 3002
	CodeInternal             = 5000
)

// classify code métier et message court (texte du toast)
func classify(err error) (int, string) {
	var unreadable *excel.UnreadableFileError
	var unavailable *mapping.InferenceUnavailableError
	switch {
	case errors.As(err, &unreadable):
		return CodeUnreadableFile, "Le fichier n'a pas pu être lu. Vérifie qu'il s'agit d'un tableur ou d'un CSV."
	case errors.As(err, &unavailable):
		return CodeInferenceFailed, "L'analyse du fichier a échoué. Réessaie dans quelques instants."
	case errors.Is(err, model.ErrInvalidMapping):
		return CodeInvalidMapping, "La correspondance des colonnes est invalide."
	case errors.Is(err, importer.ErrInvalidStep):
		return CodeInvalidStep, "Cette action n'est pas possible à cette étape de l'import."
	case errors.Is(err, session.ErrNotFound):
		return CodeSessionNotFound, "Import introuvable ou expiré. Recommence l'import."
	case errors.Is(err, importer.ErrPersistenceFailed):
		return CodePersistenceFailed, "L'import a échoué, aucune ligne n'a été enregistrée. Vous pouvez réessayer."
	case errors.Is(err, importer.ErrNoRows):
		return CodeNothingToImport, "Aucune ligne à importer."
	case errors.Is(err, stats.ErrInvalidRange):
		return CodeBadRequest, "La période demandée est invalide."
	case errors.Is(err, wizard.ErrUnknownWizard):
		return CodeUnknownWizard, "Parcours inconnu."
	case errors.Is(err, wizard.ErrStepOutOfRange):
		return CodeWizardStepOutOfRange, "Étape inconnue."
	default:
		return CodeInternal, "Une erreur est survenue."
	}
}
