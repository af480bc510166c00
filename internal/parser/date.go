package parser

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/Lartitiz/nowadaysagency-sub004/internal/model"
)

// Bornes des numéros de série de date Excel acceptés (≈ 2009-07 … 2064-04).
const (
	MinExcelSerial = 40000
	MaxExcelSerial = 60000
)

// DateContext contexte de résolution de l'année quand la cellule n'en porte pas
type DateContext struct {
	// Previous dernier mois résolu avec succès (ligne précédente)
	Previous *time.Time
	// RowIndex index de la ligne parmi les lignes de données (0 = première)
	RowIndex int
	// BaseYear année par défaut quand aucune ligne précédente n'est datée
	BaseYear int
}

var (
	reISODate     = regexp.MustCompile(`^(\d{4})-(\d{1,2})(?:-(\d{1,2}))?`)
	reFrenchDMY   = regexp.MustCompile(`^(\d{1,2})[/.\-](\d{1,2})[/.\-](\d{4}|\d{2})\b`)
	reFrenchMY    = regexp.MustCompile(`^(\d{1,2})/(\d{4})$`)
	reFourDigitYr = regexp.MustCompile(`(?:^|\D)((?:19|20)\d{2})(?:\D|$)`)
	reYearAfter   = regexp.MustCompile(`(\d{4}|\d{2})(?:\D|$)`)
	reLeadingDay  = regexp.MustCompile(`^\d{1,2}(?:er)?\s+`)
	reSpaces      = regexp.MustCompile(`\s+`)
)

// genericLayouts formats tentés pour les chaînes contenant une année sur 4 chiffres
var genericLayouts = []string{
	"January 2006",
	"Jan 2006",
	"January-2006",
	"Jan-2006",
	"Jan. 2006",
	"January 2, 2006",
	"Jan 2, 2006",
	"2 January 2006",
	"2 Jan 2006",
	"2006 January",
	"2006 Jan",
	"2006/01/02",
	"2006/1/2",
	"2006/01",
	"2006/1",
	"2006.01",
	"01.2006",
	"1.2006",
	"01-2006",
	"1-2006",
}

// ParseMonth résout une cellule de date en premier jour du mois.
// Ordre : date native → numéro de série Excel → ISO → JJ/MM/AAAA → chaîne avec année
// sur 4 chiffres (formats génériques) → nom de mois français (+ année explicite ou déduite).
func ParseMonth(c model.Cell, ctx DateContext) (time.Time, bool) {
	switch c.Kind {
	case model.CellDate:
		return model.FirstOfMonth(c.Time), true
	case model.CellNumber:
		if t, ok := fromExcelSerial(c.Number); ok {
			return t, true
		}
		return parseMonthString(strconv.FormatFloat(c.Number, 'f', -1, 64), ctx)
	case model.CellText:
		return parseMonthString(c.Text, ctx)
	default:
		return time.Time{}, false
	}
}

func fromExcelSerial(n float64) (time.Time, bool) {
	if n < MinExcelSerial || n > MaxExcelSerial {
		return time.Time{}, false
	}
	t, err := excelize.ExcelDateToTime(n, false)
	if err != nil {
		return time.Time{}, false
	}
	return model.FirstOfMonth(t), true
}

func parseMonthString(raw string, ctx DateContext) (time.Time, bool) {
	s := strings.TrimSpace(reSpaces.ReplaceAllString(raw, " "))
	if s == "" {
		return time.Time{}, false
	}

	if n, err := strconv.ParseFloat(s, 64); err == nil {
		if t, ok := fromExcelSerial(n); ok {
			return t, true
		}
	}

	if m := reISODate.FindStringSubmatch(s); m != nil {
		if t, ok := makeMonth(atoi(m[1]), atoi(m[2])); ok {
			return t, true
		}
	}

	if m := reFrenchDMY.FindStringSubmatch(s); m != nil {
		if t, ok := makeMonth(expandYear(m[3]), atoi(m[2])); ok {
			return t, true
		}
	}
	if m := reFrenchMY.FindStringSubmatch(s); m != nil {
		if t, ok := makeMonth(atoi(m[2]), atoi(m[1])); ok {
			return t, true
		}
	}

	if reFourDigitYr.MatchString(s) {
		for _, layout := range genericLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return model.FirstOfMonth(t), true
			}
		}
	}

	return parseFrenchMonthName(s, ctx)
}

func parseFrenchMonthName(s string, ctx DateContext) (time.Time, bool) {
	s = reLeadingDay.ReplaceAllString(strings.ToLower(s), "")
	month, rest, ok := MatchFrenchMonth(s)
	if !ok {
		return time.Time{}, false
	}

	if m := reYearAfter.FindStringSubmatch(rest); m != nil {
		return makeMonth(expandYear(m[1]), int(month))
	}

	return makeMonth(InferYear(month, ctx), int(month))
}

// InferYear année d'un mois sans année : celle de la ligne précédente, +1 si le mois
// est inférieur ou égal au précédent (passage d'année) ; sinon par tranche de 12 lignes
// à partir de l'année de base.
func InferYear(month time.Month, ctx DateContext) int {
	if ctx.Previous != nil {
		year := ctx.Previous.Year()
		if month <= ctx.Previous.Month() {
			year++
		}
		return year
	}
	base := ctx.BaseYear
	if base == 0 {
		base = time.Now().Year()
	}
	if ctx.RowIndex < 0 {
		return base
	}
	return base + ctx.RowIndex/12
}

func makeMonth(year, month int) (time.Time, bool) {
	if year < 1900 || year > 2999 || month < 1 || month > 12 {
		return time.Time{}, false
	}
	return time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC), true
}

func expandYear(s string) int {
	y := atoi(s)
	if len(s) == 2 {
		return 2000 + y
	}
	return y
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
