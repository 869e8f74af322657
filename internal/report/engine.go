package report

import (
	"io"
	"math"
	"time"

	"github.com/jinhuaitao/accounting/internal/models"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// Summary totals the transactions that fall inside a period.
type Summary struct {
	TotalIncome      float64 `json:"totalIncome"`
	TotalExpense     float64 `json:"totalExpense"`
	Balance          float64 `json:"balance"`
	TransactionCount int     `json:"transactionCount"`
	Period           string  `json:"period"`
}

// DayBalance is the net flow of one day of a month.
type DayBalance struct {
	Day     int     `json:"day"`
	Date    string  `json:"date"`
	Balance float64 `json:"balance"`
}

// MonthBalance is the net flow of one month of a year.
type MonthBalance struct {
	Month   int     `json:"month"`
	Balance float64 `json:"balance"`
}

// WeekdayBalance is the net flow of one day of the current week.
type WeekdayBalance struct {
	Day     string  `json:"day"`
	Weekday int     `json:"weekday"`
	Date    string  `json:"date"`
	Balance float64 `json:"balance"`
}

var weekdayLabels = [7]string{"Mon", "Tue", "Wed", "Thu", "Fri", "Sat", "Sun"}

// Engine computes reports on a Calendar. Its methods are pure functions of
// their arguments; the logger only receives diagnostics.
type Engine struct {
	cal Calendar
	log logrus.FieldLogger
}

// NewEngine returns an Engine. A nil logger discards diagnostics.
func NewEngine(cal Calendar, log logrus.FieldLogger) *Engine {
	if log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		log = l
	}
	return &Engine{cal: cal, log: log}
}

// Calendar returns the engine's calendar.
func (e *Engine) Calendar() Calendar {
	return e.cal
}

// amount parses tx.Amount, treating malformed values as zero.
func (e *Engine) amount(tx models.Transaction) decimal.Decimal {
	d, err := tx.Amount.Decimal()
	if err != nil {
		e.log.WithFields(logrus.Fields{
			"transaction_id": tx.ID,
			"amount":         string(tx.Amount),
		}).Warn("Malformed amount counted as zero")
		return decimal.Zero
	}
	return d
}

// float converts a summed balance for output. Sums past float64 range are
// clamped to ±math.MaxFloat64 so the report stays encodable.
func (e *Engine) float(d decimal.Decimal, field string) float64 {
	f := d.InexactFloat64()
	if math.IsInf(f, 0) {
		e.log.WithField("field", field).Warn("Total exceeds float64 range, clamped")
		return math.Copysign(math.MaxFloat64, f)
	}
	return f
}

// net is the signed contribution of tx to a balance.
func (e *Engine) net(tx models.Transaction) decimal.Decimal {
	d := e.amount(tx)
	if tx.IsIncome() {
		return d
	}
	return d.Neg()
}

// Summarize totals the transactions at or after the start of the named period.
// The name is echoed back verbatim; unknown names include every transaction.
func (e *Engine) Summarize(txs []models.Transaction, period string, now time.Time) Summary {
	start, bounded := e.cal.Boundary(ParsePeriod(period), now)

	income, expense := decimal.Zero, decimal.Zero
	count := 0
	for _, tx := range txs {
		if bounded && tx.Timestamp.Before(start) {
			continue
		}
		count++
		if tx.IsIncome() {
			income = income.Add(e.amount(tx))
		} else {
			expense = expense.Add(e.amount(tx))
		}
	}

	return Summary{
		TotalIncome:      e.float(income, "totalIncome"),
		TotalExpense:     e.float(expense, "totalExpense"),
		Balance:          e.float(income.Sub(expense), "balance"),
		TransactionCount: count,
		Period:           period,
	}
}

// DailyBalances returns the net flow of every day of year-month. Days after
// today read zero, and a month entirely in the future has no entries. A month
// outside 1..12 also has no entries.
func (e *Engine) DailyBalances(txs []models.Transaction, year, month int, now time.Time) []DayBalance {
	if month < 1 || month > 12 {
		return []DayBalance{}
	}
	civilNow := e.cal.Civil(now)
	curYear, curMonth := civilNow.Year(), int(civilNow.Month())
	if year > curYear || (year == curYear && month > curMonth) {
		return []DayBalance{}
	}

	flows := make(map[int]decimal.Decimal)
	for _, tx := range txs {
		t := e.cal.Civil(tx.Timestamp)
		if t.Year() != year || int(t.Month()) != month {
			continue
		}
		flows[t.Day()] = flows[t.Day()].Add(e.net(tx))
	}

	isCurrent := year == curYear && month == curMonth
	days := DaysIn(year, time.Month(month))
	series := make([]DayBalance, 0, days)
	for day := 1; day <= days; day++ {
		balance := flows[day]
		if isCurrent && day > civilNow.Day() {
			balance = decimal.Zero
		}
		series = append(series, DayBalance{
			Day:     day,
			Date:    e.cal.Midnight(year, time.Month(month), day).Format(DateLayout),
			Balance: e.float(balance, "balance"),
		})
	}
	return series
}

// MonthlyBalances returns the net flow of every month of year. Months after
// the current one read zero, and a future year has no entries.
func (e *Engine) MonthlyBalances(txs []models.Transaction, year int, now time.Time) []MonthBalance {
	civilNow := e.cal.Civil(now)
	if year > civilNow.Year() {
		return []MonthBalance{}
	}

	var flows [13]decimal.Decimal
	for _, tx := range txs {
		t := e.cal.Civil(tx.Timestamp)
		if t.Year() != year {
			continue
		}
		flows[t.Month()] = flows[t.Month()].Add(e.net(tx))
	}

	series := make([]MonthBalance, 0, 12)
	for month := 1; month <= 12; month++ {
		balance := flows[month]
		if year == civilNow.Year() && month > int(civilNow.Month()) {
			balance = decimal.Zero
		}
		series = append(series, MonthBalance{Month: month, Balance: e.float(balance, "balance")})
	}
	return series
}

// WeeklyBalances returns the net flow of each day of the current week,
// Monday first. Days after today read zero.
func (e *Engine) WeeklyBalances(txs []models.Transaction, now time.Time) []WeekdayBalance {
	monday := e.cal.StartOfWeek(now)
	today := e.cal.DateKey(now)

	keys := make([]string, 7)
	index := make(map[string]int, 7)
	for i := range keys {
		keys[i] = monday.AddDate(0, 0, i).Format(DateLayout)
		index[keys[i]] = i
	}

	var flows [7]decimal.Decimal
	for _, tx := range txs {
		i, ok := index[e.cal.DateKey(tx.Timestamp)]
		if !ok {
			continue
		}
		flows[i] = flows[i].Add(e.net(tx))
	}

	series := make([]WeekdayBalance, 0, 7)
	for i, key := range keys {
		balance := flows[i]
		if key > today {
			balance = decimal.Zero
		}
		series = append(series, WeekdayBalance{
			Day:     weekdayLabels[i],
			Weekday: i + 1,
			Date:    key,
			Balance: e.float(balance, "balance"),
		})
	}
	return series
}
