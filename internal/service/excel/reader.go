package excel

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"

	"github.com/Lartitiz/nowadaysagency-sub004/internal/model"
)

// DefaultSampleRows nombre de lignes d'exemple transmises au service d'inférence
const DefaultSampleRows = 3

// UnreadableFileError le fichier ne peut pas être lu comme un tableau
type UnreadableFileError struct {
	FileName string
	Err      error
}

func (e *UnreadableFileError) Error() string {
	return fmt.Sprintf("unreadable file %q: %v", e.FileName, e.Err)
}

func (e *UnreadableFileError) Unwrap() error {
	return e.Err
}

var (
	zipMagic = []byte("PK\x03\x04")
	oleMagic = []byte{0xD0, 0xCF, 0x11, 0xE0}
	utf8BOM  = []byte{0xEF, 0xBB, 0xBF}

	rePlainDecimal = regexp.MustCompile(`^-?\d+(?:\.\d+)?$`)
	reQuoted       = regexp.MustCompile(`"[^"]*"|\[[^\]]*\]`)
)

// Reader lecteur de fichiers importés (xlsx ou texte délimité)
type Reader struct{}

// NewReader crée un lecteur
func NewReader() *Reader {
	return &Reader{}
}

// Read lit le fichier entier et retourne toutes ses feuilles non vides
func (r *Reader) Read(fileName string, data []byte) (*model.Workbook, error) {
	if len(data) == 0 {
		return nil, &UnreadableFileError{FileName: fileName, Err: errors.New("empty file")}
	}

	var (
		sheets []model.Sheet
		err    error
	)
	switch detectFormat(fileName, data) {
	case formatXLSX:
		sheets, err = readWorkbook(data)
	case formatLegacyXLS:
		err = errors.New("legacy .xls format is not supported, save the file as .xlsx")
	default:
		sheets, err = readDelimited(fileName, data)
	}
	if err != nil {
		return nil, &UnreadableFileError{FileName: fileName, Err: err}
	}
	if len(sheets) == 0 {
		return nil, &UnreadableFileError{FileName: fileName, Err: errors.New("no sheet with data")}
	}

	return &model.Workbook{FileName: fileName, Sheets: sheets}, nil
}

// ReadFrom variante sur flux
func (r *Reader) ReadFrom(fileName string, src io.Reader) (*model.Workbook, error) {
	data, err := io.ReadAll(src)
	if err != nil {
		return nil, fmt.Errorf("failed to read upload: %w", err)
	}
	return r.Read(fileName, data)
}

// Summaries en-têtes, lignes d'exemple et nombre de lignes de chaque feuille
func Summaries(wb *model.Workbook, sampleRows int) []model.SheetSummary {
	out := make([]model.SheetSummary, 0, len(wb.Sheets))
	for i := range wb.Sheets {
		s := &wb.Sheets[i]
		out = append(out, model.SheetSummary{
			Name:       s.Name,
			Headers:    s.HeaderStrings(),
			SampleRows: s.Preview(sampleRows),
			RowCount:   s.DataRowCount(),
		})
	}
	return out
}

type fileFormat int

const (
	formatDelimited fileFormat = iota
	formatXLSX
	formatLegacyXLS
)

func detectFormat(fileName string, data []byte) fileFormat {
	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".xlsx", ".xlsm", ".xltx", ".xltm":
		return formatXLSX
	case ".csv", ".tsv", ".txt":
		return formatDelimited
	}
	switch {
	case bytes.HasPrefix(data, zipMagic):
		return formatXLSX
	case bytes.HasPrefix(data, oleMagic):
		return formatLegacyXLS
	default:
		return formatDelimited
	}
}

func readWorkbook(data []byte) ([]model.Sheet, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to open excel: %w", err)
	}
	defer f.Close()

	dates := newDateStyleCache(f)
	sheets := make([]model.Sheet, 0, f.SheetCount)
	for _, name := range f.GetSheetList() {
		raw, err := f.GetRows(name, excelize.Options{RawCellValue: true})
		if err != nil {
			return nil, fmt.Errorf("failed to read sheet %s: %w", name, err)
		}
		raw = trimTrailingBlankRows(raw)
		if len(raw) == 0 {
			continue
		}

		rows := make([][]model.Cell, len(raw))
		for i, line := range raw {
			cells := make([]model.Cell, len(line))
			for j, v := range line {
				cells[j] = workbookCell(f, dates, name, i, j, v)
			}
			rows[i] = cells
		}
		sheets = append(sheets, model.Sheet{Name: name, Rows: rows})
	}
	return sheets, nil
}

// workbookCell type une valeur brute : nombre, date (nombre au format date) ou texte
func workbookCell(f *excelize.File, dates *dateStyleCache, sheet string, row, col int, v string) model.Cell {
	if strings.TrimSpace(v) == "" {
		return model.Cell{Kind: model.CellEmpty}
	}
	n, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return model.TextCell(v)
	}

	ref, err := excelize.CoordinatesToCellName(col+1, row+1)
	if err != nil {
		return model.NumberCell(n)
	}
	typ, err := f.GetCellType(sheet, ref)
	if err != nil {
		return model.NumberCell(n)
	}
	switch typ {
	case excelize.CellTypeSharedString, excelize.CellTypeInlineString, excelize.CellTypeFormula, excelize.CellTypeBool:
		return model.TextCell(v)
	case excelize.CellTypeDate:
		if t, err := excelize.ExcelDateToTime(n, false); err == nil {
			return model.DateCell(t)
		}
		return model.NumberCell(n)
	}

	if dates.isDate(sheet, ref) {
		if t, err := excelize.ExcelDateToTime(n, false); err == nil {
			return model.DateCell(t)
		}
	}
	return model.NumberCell(n)
}

// dateStyleCache mémorise, par style, si le format numérique est une date
type dateStyleCache struct {
	f      *excelize.File
	styles map[int]bool
}

func newDateStyleCache(f *excelize.File) *dateStyleCache {
	return &dateStyleCache{f: f, styles: make(map[int]bool)}
}

func (c *dateStyleCache) isDate(sheet, ref string) bool {
	idx, err := c.f.GetCellStyle(sheet, ref)
	if err != nil || idx == 0 {
		return false
	}
	if v, ok := c.styles[idx]; ok {
		return v
	}
	style, err := c.f.GetStyle(idx)
	v := err == nil && isDateNumFmt(style.NumFmt, style.CustomNumFmt)
	c.styles[idx] = v
	return v
}

// isDateNumFmt formats intégrés 14-22, 27-36, 45-47, 50-58 ou format personnalisé contenant j/a
func isDateNumFmt(id int, custom *string) bool {
	if custom != nil && *custom != "" {
		code := strings.ToLower(reQuoted.ReplaceAllString(*custom, ""))
		return strings.ContainsAny(code, "yd") || strings.Contains(code, "mmm")
	}
	switch {
	case id >= 14 && id <= 22, id >= 27 && id <= 36, id >= 45 && id <= 47, id >= 50 && id <= 58:
		return true
	}
	return false
}

func readDelimited(fileName string, data []byte) ([]model.Sheet, error) {
	data = bytes.TrimPrefix(data, utf8BOM)
	if bytes.IndexByte(data, 0) >= 0 {
		return nil, errors.New("binary content")
	}
	text := string(data)
	if !utf8.ValidString(text) {
		text = decodeLatin1(data)
	}

	r := csv.NewReader(strings.NewReader(text))
	r.Comma = sniffDelimiter(text)
	r.LazyQuotes = true
	r.FieldsPerRecord = -1

	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse delimited text: %w", err)
	}
	records = trimTrailingBlankRows(records)
	if len(records) == 0 {
		return nil, nil
	}

	rows := make([][]model.Cell, len(records))
	for i, rec := range records {
		rec = trimTrailingBlankCells(rec)
		cells := make([]model.Cell, len(rec))
		for j, v := range rec {
			v = strings.TrimSpace(v)
			if rePlainDecimal.MatchString(v) {
				if n, err := strconv.ParseFloat(v, 64); err == nil {
					cells[j] = model.NumberCell(n)
					continue
				}
			}
			cells[j] = model.TextCell(v)
		}
		rows[i] = cells
	}

	name := strings.TrimSuffix(filepath.Base(fileName), filepath.Ext(fileName))
	if name == "" || name == "." {
		name = "Feuille1"
	}
	return []model.Sheet{{Name: name, Rows: rows}}, nil
}

// sniffDelimiter choisit parmi , ; et tabulation d'après la première ligne non vide
func sniffDelimiter(text string) rune {
	line := text
	for _, l := range strings.Split(text, "\n") {
		if strings.TrimSpace(l) != "" {
			line = l
			break
		}
	}

	best, bestCount := ',', 0
	inQuotes := false
	counts := map[rune]int{}
	for _, ch := range line {
		switch {
		case ch == '"':
			inQuotes = !inQuotes
		case !inQuotes && (ch == ',' || ch == ';' || ch == '\t'):
			counts[ch]++
		}
	}
	for _, d := range []rune{',', ';', '\t'} {
		if counts[d] > bestCount {
			best, bestCount = d, counts[d]
		}
	}
	return best
}

func decodeLatin1(data []byte) string {
	runes := make([]rune, len(data))
	for i, b := range data {
		runes[i] = rune(b)
	}
	return string(runes)
}

func trimTrailingBlankRows(rows [][]string) [][]string {
	end := len(rows)
	for end > 0 && isBlankRecord(rows[end-1]) {
		end--
	}
	return rows[:end]
}

func trimTrailingBlankCells(rec []string) []string {
	end := len(rec)
	for end > 0 && strings.TrimSpace(rec[end-1]) == "" {
		end--
	}
	return rec[:end]
}

func isBlankRecord(rec []string) bool {
	for _, v := range rec {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
