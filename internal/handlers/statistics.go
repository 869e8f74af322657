package handlers

import (
	"net/http"
	"strconv"
)

// Summary returns income, expense and balance for ?period= (default daily).
func (h *Handlers) Summary(w http.ResponseWriter, r *http.Request) {
	period := r.URL.Query().Get("period")
	if period == "" {
		period = "daily"
	}

	txs, ok := h.userTransactions(w, r)
	if !ok {
		return
	}
	h.writeJSON(w, http.StatusOK, h.reports.Summarize(txs, period, h.now()))
}

// DailyBalance returns the net flow per day of ?year=&month=, defaulting to
// the current civil month.
func (h *Handlers) DailyBalance(w http.ResponseWriter, r *http.Request) {
	now := h.now()
	civil := h.reports.Calendar().Civil(now)

	year, ok := h.queryInt(w, r, "year", civil.Year())
	if !ok {
		return
	}
	month, ok := h.queryInt(w, r, "month", int(civil.Month()))
	if !ok {
		return
	}
	if month < 1 || month > 12 {
		h.writeError(w, http.StatusBadRequest, "month must be between 1 and 12")
		return
	}

	txs, ok := h.userTransactions(w, r)
	if !ok {
		return
	}
	h.writeJSON(w, http.StatusOK, h.reports.DailyBalances(txs, year, month, now))
}

// MonthlyBalance returns the net flow per month of ?year=, defaulting to the
// current civil year.
func (h *Handlers) MonthlyBalance(w http.ResponseWriter, r *http.Request) {
	now := h.now()
	year, ok := h.queryInt(w, r, "year", h.reports.Calendar().Civil(now).Year())
	if !ok {
		return
	}

	txs, ok := h.userTransactions(w, r)
	if !ok {
		return
	}
	h.writeJSON(w, http.StatusOK, h.reports.MonthlyBalances(txs, year, now))
}

// WeeklyBalance returns the net flow per day of the current week.
func (h *Handlers) WeeklyBalance(w http.ResponseWriter, r *http.Request) {
	txs, ok := h.userTransactions(w, r)
	if !ok {
		return
	}
	h.writeJSON(w, http.StatusOK, h.reports.WeeklyBalances(txs, h.now()))
}

func (h *Handlers) queryInt(w http.ResponseWriter, r *http.Request, name string, def int) (int, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, name+" must be an integer")
		return 0, false
	}
	return v, true
}
