package parser

import (
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"
)

type monthPrefix struct {
	prefix string
	month  time.Month
}

// frenchMonthPrefixes triés par longueur décroissante : "mars" doit être essayé avant "mar",
// "juillet" avant "juil".
var frenchMonthPrefixes = func() []monthPrefix {
	list := []monthPrefix{
		{"janvier", time.January}, {"janv", time.January}, {"jan", time.January},
		{"février", time.February}, {"fevrier", time.February}, {"févr", time.February},
		{"fevr", time.February}, {"fév", time.February}, {"fev", time.February},
		{"mars", time.March}, {"mar", time.March},
		{"avril", time.April}, {"avr", time.April},
		{"mai", time.May},
		{"juin", time.June},
		{"juillet", time.July}, {"juil", time.July},
		{"août", time.August}, {"aout", time.August}, {"aoû", time.August},
		{"septembre", time.September}, {"sept", time.September}, {"sep", time.September},
		{"octobre", time.October}, {"oct", time.October},
		{"novembre", time.November}, {"nov", time.November},
		{"décembre", time.December}, {"decembre", time.December},
		{"déc", time.December}, {"dec", time.December},
	}
	sort.SliceStable(list, func(i, j int) bool {
		return len([]rune(list[i].prefix)) > len([]rune(list[j].prefix))
	})
	return list
}()

var frenchMonthNames = [...]string{
	"janvier", "février", "mars", "avril", "mai", "juin",
	"juillet", "août", "septembre", "octobre", "novembre", "décembre",
}

// MatchFrenchMonth cherche un nom de mois français en tête de chaîne.
// Le préfixe doit être suivi d'une non-lettre ("Marketing" n'est pas mars).
// Retourne le mois et le reste de la chaîne après le préfixe.
func MatchFrenchMonth(s string) (time.Month, string, bool) {
	lower := strings.ToLower(strings.TrimSpace(s))
	for _, p := range frenchMonthPrefixes {
		if !strings.HasPrefix(lower, p.prefix) {
			continue
		}
		rest := lower[len(p.prefix):]
		if r, _ := utf8.DecodeRuneInString(rest); rest != "" && unicode.IsLetter(r) {
			continue
		}
		return p.month, rest, true
	}
	return 0, "", false
}

// FrenchMonthName nom complet du mois
func FrenchMonthName(m time.Month) string {
	if m < time.January || m > time.December {
		return ""
	}
	return frenchMonthNames[m-1]
}

// MonthLabel libellé lisible, ex. "janvier 2024"
func MonthLabel(t time.Time) string {
	return fmt.Sprintf("%s %d", FrenchMonthName(t.Month()), t.Year())
}
