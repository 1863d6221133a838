package widgets

import (
	"math"
	"time"

	"pulseboard/internal/model"
)

// Chart series return one point per day, {"day": "2006-01-02", <label>: value}.
// Rates at day d look back over the windowDays days ending at d. A rate with an empty
// denominator is plotted as 0 so every day keeps its point.

const (
	seriesDays    = 7
	maxSeriesDays = 366
)

// seriesWindow resolves the plotted days: end_date or fallback, start_date or six
// days before the end. Ranges longer than maxSeriesDays keep their most recent days.
func seriesWindow(p model.Params, fallback time.Time) (time.Time, time.Time) {
	end, ok := model.ParseTime(p.String("end_date"))
	if ok {
		end = model.TruncateDay(end)
	} else {
		end = fallback
	}
	start, ok := model.ParseTime(p.String("start_date"))
	if ok {
		start = model.TruncateDay(start)
	} else {
		start = end.AddDate(0, 0, -(seriesDays - 1))
	}
	if start.After(end) {
		start, end = end, start
	}
	if earliest := end.AddDate(0, 0, -(maxSeriesDays - 1)); start.Before(earliest) {
		start = earliest
	}
	return start, end
}

func dayRange(start, end time.Time) []time.Time {
	var out []time.Time
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		out = append(out, d)
	}
	return out
}

func dayKey(d time.Time) string { return d.Format(dateLayout) }

func trailingStart(d time.Time) time.Time {
	return d.AddDate(0, 0, -(windowDays - 1))
}

func orZero(v any) float64 {
	f, _ := v.(float64)
	return f
}

func dailySeries(days []time.Time, label string, value func(time.Time) float64) []model.Row {
	out := make([]model.Row, 0, len(days))
	for _, d := range days {
		out = append(out, model.Row{"day": dayKey(d), label: value(d)})
	}
	return out
}

func latestOf(dates []time.Time, fallback time.Time) time.Time {
	if len(dates) == 0 {
		return fallback
	}
	latest := dates[0]
	for _, d := range dates[1:] {
		if d.After(latest) {
			latest = d
		}
	}
	return latest
}

// -- stock --

var (
	stockSeriesTables     = list(TableStock, TableStockMovement)
	valuationSeriesTables = tables(stockSeriesTables, list(TableProduct, TableCustomerOrder, TableOrderLine))
	stockoutSeriesTables  = tables(stockSeriesTables, list(TableCustomerOrder, TableOrderLine))
)

// stockSeriesDays ends on today unless end_date is given.
func stockSeriesDays(p model.Params) []time.Time {
	return dayRange(seriesWindow(p, today()))
}

// movementDeltas nets signed movement quantities per day within [start, end].
func movementDeltas(s model.Snapshot, scope warehouseScope, start, end time.Time) map[string]float64 {
	out := map[string]float64{}
	for _, m := range s.Rows(TableStockMovement) {
		d, ok := m.Date("datemouvement")
		if !between(d, ok, start, end) || !scope.movement(m) {
			continue
		}
		out[dayKey(d)] += signedQty(m)
	}
	return out
}

// availableByDay rebuilds daily available stock backwards from the current one:
// available(d) = available(now) - movements after d up to the last plotted day.
func availableByDay(s model.Snapshot, scope warehouseScope, days []time.Time) map[string]float64 {
	out := make(map[string]float64, len(days))
	if len(days) == 0 {
		return out
	}
	deltas := movementDeltas(s, scope, days[0], days[len(days)-1])
	current := availableNow(s, scope)
	var after float64
	for i := len(days) - 1; i >= 0; i-- {
		key := dayKey(days[i])
		out[key] = roundTo(current-after, 2)
		after += deltas[key]
	}
	return out
}

// valueByDay scales the current stock value by each day's share of the last day's
// available quantity, which assumes a constant product mix.
func valueByDay(s model.Snapshot, scope warehouseScope, days []time.Time, avail map[string]float64) func(time.Time) float64 {
	last := math.Max(0.0001, avail[dayKey(days[len(days)-1])])
	value := stockValue(s, scope)
	return func(d time.Time) float64 {
		return value * avail[dayKey(d)] / last
	}
}

func stockAvailableSeries(s model.Snapshot, p model.Params) (any, error) {
	days := stockSeriesDays(p)
	avail := availableByDay(s, scopeFor(s, p), days)
	return dailySeries(days, "Disponible", func(d time.Time) float64 { return avail[dayKey(d)] }), nil
}

func daysOnHandSeries(s model.Snapshot, p model.Params) (any, error) {
	days := stockSeriesDays(p)
	scope := scopeFor(s, p)
	avail := availableByDay(s, scope, days)
	deltas := movementDeltas(s, scope, trailingStart(days[0]), days[len(days)-1])

	return dailySeries(days, "DOH", func(d time.Time) float64 {
		var consumed float64
		for c := trailingStart(d); !c.After(d); c = c.AddDate(0, 0, 1) {
			consumed += positive(-deltas[dayKey(c)])
		}
		if consumed <= 0 {
			return 0
		}
		return roundTo(avail[dayKey(d)]/(consumed/windowDays), 2)
	}), nil
}

func turnoverSeries(s model.Snapshot, p model.Params) (any, error) {
	days := stockSeriesDays(p)
	scope := scopeFor(s, p)
	value := valueByDay(s, scope, days, availableByDay(s, scope, days))

	return dailySeries(days, "Rotation", func(d time.Time) float64 {
		v := value(d)
		if v <= 0 {
			return 0
		}
		return roundTo(revenue(s, trailingStart(d), d)/v, 2)
	}), nil
}

func inventoryToSalesSeries(s model.Snapshot, p model.Params) (any, error) {
	days := stockSeriesDays(p)
	scope := scopeFor(s, p)
	value := valueByDay(s, scope, days, availableByDay(s, scope, days))

	return dailySeries(days, "I2S", func(d time.Time) float64 {
		sales := revenue(s, trailingStart(d), d)
		if sales <= 0 {
			return 0
		}
		return roundTo(value(d)/sales, 2)
	}), nil
}

func profitabilitySeries(s model.Snapshot, p model.Params) (any, error) {
	days := stockSeriesDays(p)
	scope := scopeFor(s, p)
	value := valueByDay(s, scope, days, availableByDay(s, scope, days))
	ratio := math.Min(1, positive(p.Float("cout_ratio", 0.7)))
	logistics := positive(p.Float("couts_logistiques", 0))

	return dailySeries(days, "Rentabilité", func(d time.Time) float64 {
		v := value(d)
		if v <= 0 {
			return 0
		}
		sales := revenue(s, trailingStart(d), d)
		return roundTo((sales-sales*ratio-logistics)/v, 2)
	}), nil
}

// stockoutSeries attributes an outbound movement to its own produit_id, or to the
// product of its stock row when it has none.
func stockoutSeries(s model.Snapshot, p model.Params) (any, error) {
	days := stockSeriesDays(p)
	scope := scopeFor(s, p)

	stockProduct := map[string]string{}
	for _, st := range s.Rows(TableStock) {
		stockProduct[st.String("id")] = st.String("produit_id")
	}
	outbound := map[string]map[string]float64{}
	for _, m := range s.Rows(TableStockMovement) {
		if !isOutbound(m) || !scope.movement(m) {
			continue
		}
		d, ok := m.Date("datemouvement")
		if !ok {
			continue
		}
		pid := m.String("produit_id")
		if pid == "" {
			pid = stockProduct[m.String("stock_id")]
		}
		if pid == "" {
			continue
		}
		key := dayKey(d)
		if outbound[key] == nil {
			outbound[key] = map[string]float64{}
		}
		outbound[key][pid] += positive(m.Float("quantite"))
	}

	return dailySeries(days, "Rupture %", func(d time.Time) float64 {
		from := trailingStart(d)
		demand, total := deliveredDemand(s, from, d)
		if total <= 0 {
			return 0
		}
		served := map[string]float64{}
		for c := from; !c.After(d); c = c.AddDate(0, 0, 1) {
			for pid, q := range outbound[dayKey(c)] {
				served[pid] += q
			}
		}
		return roundTo(100*unserved(demand, served)/total, 2)
	}), nil
}

func shelfLifeSeries(s model.Snapshot, p model.Params) (any, error) {
	scope := scopeFor(s, p)
	return dailySeries(stockSeriesDays(p), "Avg days", func(d time.Time) float64 {
		return orZero(shelfLifeAt(s, scope, d))
	}), nil
}

// shrinkageSeries is the loss of each single day, not a trailing sum.
func shrinkageSeries(s model.Snapshot, p model.Params) (any, error) {
	scope := scopeFor(s, p)
	return dailySeries(stockSeriesDays(p), "Quantité", func(d time.Time) float64 {
		return roundTo(shrinkageOver(s, scope, d, d), 2)
	}), nil
}

// -- supplier --

var supplierSeriesTables = tables(supplierWindowTables, list(TableSupplierReturn))

// latestSupplierDate is the newest supplier order, receipt or return date, or today.
func latestSupplierDate(s model.Snapshot) time.Time {
	var dates []time.Time
	for _, f := range []string{"date_reelle_livraison", "date_prevue_livraison", "date_commande"} {
		dates = collectDates(s.Rows(TableSupplierOrder), f, dates)
	}
	dates = collectDates(s.Rows(TableSupplierReceipt), "date_reception", dates)
	dates = collectDates(s.Rows(TableSupplierReturn), "date_retour", dates)
	return latestOf(dates, today())
}

// supplierSeries plots a supplier rate over the trailing window of each day.
func supplierSeries(label string, over func(model.Snapshot, time.Time, time.Time) any) func(model.Snapshot, model.Params) (any, error) {
	return func(s model.Snapshot, p model.Params) (any, error) {
		days := dayRange(seriesWindow(p, latestSupplierDate(s)))
		return dailySeries(days, label, func(d time.Time) float64 {
			return orZero(over(s, trailingStart(d), d))
		}), nil
	}
}
