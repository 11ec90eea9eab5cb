package rates

import (
	"bankcap/internal/etlerr"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/antzucaro/matchr"
	"github.com/shopspring/decimal"
)

var expectedHeader = []string{"Currency", "Rate"}

// suggestions below this Jaro-Winkler similarity are not worth mentioning
const suggestThreshold = 0.7

// Table maps a currency code to its multiplicative rate relative to the
// base currency. It is immutable once loaded.
type Table struct {
	rates map[string]decimal.Decimal
}

// Load reads a `Currency,Rate` file from disk.
func Load(path string) (Table, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return Table{}, etlerr.ReferenceData(err, "exchange rate file %s does not exist", path)
	}
	if err != nil {
		return Table{}, etlerr.ReferenceData(err, "open exchange rate file %s", path)
	}
	defer f.Close()

	table, err := Parse(f)
	if err != nil {
		return Table{}, fmt.Errorf("%s: %w", path, err)
	}
	return table, nil
}

// Parse reads a two-column delimited table with the header `Currency,Rate`.
func Parse(r io.Reader) (Table, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = len(expectedHeader)

	records, err := reader.ReadAll()
	if err != nil {
		return Table{}, etlerr.ReferenceData(err, "malformed exchange rate table")
	}
	if len(records) == 0 {
		return Table{}, etlerr.ReferenceData(nil, "exchange rate table is empty")
	}

	header := records[0]
	for i, h := range expectedHeader {
		if strings.TrimPrefix(strings.TrimSpace(header[i]), "\ufeff") != h {
			return Table{}, etlerr.ReferenceData(nil, "expected header %s, got %s", strings.Join(expectedHeader, ","), strings.Join(header, ","))
		}
	}

	rates := make(map[string]decimal.Decimal, len(records)-1)
	for i, record := range records[1:] {
		line := i + 2
		code := strings.ToUpper(strings.TrimSpace(record[0]))
		if code == "" {
			return Table{}, etlerr.ReferenceData(nil, "line %d: empty currency code", line)
		}
		if _, exists := rates[code]; exists {
			return Table{}, etlerr.ReferenceData(nil, "line %d: duplicate currency %s", line, code)
		}

		rate, err := decimal.NewFromString(strings.TrimSpace(record[1]))
		if err != nil {
			return Table{}, etlerr.ReferenceData(err, "line %d: rate %q for %s is not a number", line, record[1], code)
		}
		if !rate.IsPositive() {
			return Table{}, etlerr.ReferenceData(nil, "line %d: rate for %s must be positive, got %s", line, code, rate)
		}
		rates[code] = rate
	}

	return Table{rates: rates}, nil
}

// New builds a table from already parsed values, mostly useful in tests.
func New(rates map[string]decimal.Decimal) Table {
	copied := make(map[string]decimal.Decimal, len(rates))
	for code, rate := range rates {
		copied[strings.ToUpper(code)] = rate
	}
	return Table{rates: copied}
}

// Rate looks up `code`. A missing currency is a reference data error that
// names the closest known code when there is a plausible one.
func (t Table) Rate(code string) (decimal.Decimal, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	rate, ok := t.rates[code]
	if ok {
		return rate, nil
	}

	closest, similarity := t.closest(code)
	if closest != "" && similarity >= suggestThreshold {
		return decimal.Decimal{}, etlerr.ReferenceData(nil, "no exchange rate for %s (did you mean %s?)", code, closest)
	}
	return decimal.Decimal{}, etlerr.ReferenceData(nil, "no exchange rate for %s", code)
}

func (t Table) closest(code string) (string, float64) {
	best := ""
	bestScore := 0.0
	for _, known := range t.Codes() {
		score := matchr.JaroWinkler(code, known, false)
		if score > bestScore {
			best = known
			bestScore = score
		}
	}
	return best, bestScore
}

// Codes returns every known currency code, sorted.
func (t Table) Codes() []string {
	codes := make([]string, 0, len(t.rates))
	for code := range t.rates {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

func (t Table) Len() int {
	return len(t.rates)
}
