package parser

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/Lartitiz/nowadaysagency-sub004/internal/model"
)

// nullTokens valeurs de remplissage considérées comme vides
var nullTokens = map[string]struct{}{
	"":   {},
	"-":  {},
	"/":  {},
	"__": {},
	"—":  {},
	"--": {},
}

var (
	reNumberRun      = regexp.MustCompile(`[-+]?\d[\d\s\x{00A0}\x{202F}.,']*`)
	reDotThousands   = regexp.MustCompile(`^[-+]?\d{1,3}\.\d{3}$`)
	groupingStripper = strings.NewReplacer(" ", "", "\n", "", "\r", "", "\u00a0", "", "\u202f", "", "\t", "", "'", "")
)

// IsNullToken valeur vide ou de remplissage
func IsNullToken(s string) bool {
	_, ok := nullTokens[strings.TrimSpace(s)]
	return ok
}

// CleanText normalise une métrique textuelle : nil pour les valeurs de remplissage
func CleanText(c model.Cell) *string {
	if c.IsEmpty() {
		return nil
	}
	s := strings.TrimSpace(c.String())
	if IsNullToken(s) {
		return nil
	}
	return &s
}

// ParseNumber normalise une métrique numérique.
// Les nombres natifs sont repris tels quels ; pour le texte, la première suite de
// chiffres/espaces/séparateurs est extraite ("1 234,56 €" → 1234.56).
func ParseNumber(c model.Cell) *float64 {
	switch c.Kind {
	case model.CellNumber:
		n := c.Number
		return &n
	case model.CellText:
		return ParseNumberString(c.Text)
	default:
		return nil
	}
}

// ParseNumberString variante sur chaîne de ParseNumber
func ParseNumberString(s string) *float64 {
	s = strings.TrimSpace(s)
	if IsNullToken(s) {
		return nil
	}
	run := reNumberRun.FindString(s)
	if run == "" {
		return nil
	}
	run = groupingStripper.Replace(run)
	run = strings.TrimRight(run, ".,")

	switch commas := strings.Count(run, ","); {
	case commas == 1:
		run = strings.ReplaceAll(run, ".", "")
		run = strings.Replace(run, ",", ".", 1)
	case commas > 1:
		run = strings.ReplaceAll(run, ",", "")
	case strings.Count(run, ".") > 1 || reDotThousands.MatchString(run):
		run = strings.ReplaceAll(run, ".", "")
	}

	f, err := strconv.ParseFloat(run, 64)
	if err != nil {
		return nil
	}
	return &f
}
