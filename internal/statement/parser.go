package statement

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// Parser extracts transactions from HTML bank-statement exports. Most local
// banks offer an HTML download alongside PDF; the OCR path for scanned
// statements lives outside this service and feeds the same Transaction shape.
type Parser struct{}

// NewParser creates a new parser instance
func NewParser() *Parser {
	return &Parser{}
}

// Column layouts seen across supported banks. Header text is matched
// case-insensitively after trimming.
var (
	dateHeaders    = []string{"date", "txn date", "transaction date", "value date"}
	descHeaders    = []string{"description", "narration", "details", "particulars"}
	creditHeaders  = []string{"credit", "deposit", "money in", "cr"}
	debitHeaders   = []string{"debit", "withdrawal", "money out", "dr"}
	balanceHeaders = []string{"balance", "running balance", "closing balance"}
)

var dateLayouts = []string{
	"2006-01-02",
	"02/01/2006",
	"02 Jan 2006",
	"Jan 2, 2006",
}

// Parse reads an HTML statement export and returns its transactions in
// statement order. Tables without a recognizable header row are skipped; a
// document with no usable table is an error.
func (p *Parser) Parse(r io.Reader) ([]Transaction, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse statement HTML: %w", err)
	}

	var transactions []Transaction
	doc.Find("table").EachWithBreak(func(i int, table *goquery.Selection) bool {
		cols := p.mapColumns(table)
		if cols == nil {
			return true // not a transaction table, keep looking
		}
		transactions = p.parseRows(table, cols)
		return len(transactions) == 0
	})

	if len(transactions) == 0 {
		return nil, fmt.Errorf("no transaction table found in statement")
	}
	return transactions, nil
}

// columnMap holds the index of each recognized column, -1 when absent
type columnMap struct {
	date, desc, credit, debit, balance int
}

func (p *Parser) mapColumns(table *goquery.Selection) *columnMap {
	cols := &columnMap{date: -1, desc: -1, credit: -1, debit: -1, balance: -1}

	header := table.Find("tr").First()
	header.Find("th, td").Each(func(i int, cell *goquery.Selection) {
		text := strings.ToLower(strings.TrimSpace(cell.Text()))
		switch {
		case cols.date < 0 && matchesHeader(text, dateHeaders):
			cols.date = i
		case cols.desc < 0 && matchesHeader(text, descHeaders):
			cols.desc = i
		case cols.credit < 0 && matchesHeader(text, creditHeaders):
			cols.credit = i
		case cols.debit < 0 && matchesHeader(text, debitHeaders):
			cols.debit = i
		case cols.balance < 0 && matchesHeader(text, balanceHeaders):
			cols.balance = i
		}
	})

	// A usable table needs at least date, balance, and one money column
	if cols.date < 0 || cols.balance < 0 || (cols.credit < 0 && cols.debit < 0) {
		return nil
	}
	return cols
}

func (p *Parser) parseRows(table *goquery.Selection, cols *columnMap) []Transaction {
	var transactions []Transaction

	table.Find("tr").Each(func(rowIdx int, row *goquery.Selection) {
		if rowIdx == 0 {
			return // header
		}
		cells := row.Find("td")
		if cells.Length() <= cols.balance || cells.Length() <= cols.date {
			return
		}

		date, ok := parseDate(strings.TrimSpace(cells.Eq(cols.date).Text()))
		if !ok {
			return // footer or summary row
		}

		tx := Transaction{
			Date:    date,
			Balance: parseAmount(cells.Eq(cols.balance).Text()),
		}
		if cols.desc >= 0 && cells.Length() > cols.desc {
			tx.Description = strings.TrimSpace(cells.Eq(cols.desc).Text())
		}
		if cols.credit >= 0 && cells.Length() > cols.credit {
			tx.Credit = parseAmount(cells.Eq(cols.credit).Text())
		}
		if cols.debit >= 0 && cells.Length() > cols.debit {
			tx.Debit = parseAmount(cells.Eq(cols.debit).Text())
		}
		transactions = append(transactions, tx)
	})

	return transactions
}

func matchesHeader(text string, candidates []string) bool {
	for _, candidate := range candidates {
		if text == candidate {
			return true
		}
	}
	return false
}

func parseDate(text string) (time.Time, bool) {
	for _, layout := range dateLayouts {
		if parsed, err := time.Parse(layout, text); err == nil {
			return parsed, true
		}
	}
	return time.Time{}, false
}

// parseAmount tolerates currency symbols, thousands separators, and
// parenthesized negatives
func parseAmount(text string) float64 {
	cleaned := strings.TrimSpace(text)
	negative := strings.HasPrefix(cleaned, "(") && strings.HasSuffix(cleaned, ")")
	cleaned = strings.Trim(cleaned, "()")

	var b strings.Builder
	for _, r := range cleaned {
		if (r >= '0' && r <= '9') || r == '.' || r == '-' {
			b.WriteRune(r)
		}
	}
	value, err := strconv.ParseFloat(b.String(), 64)
	if err != nil {
		return 0
	}
	if negative {
		value = -value
	}
	return value
}
