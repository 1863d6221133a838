package widgets

import (
	"strings"
	"time"

	"pulseboard/internal/model"
)

func supplierWindow(s model.Snapshot, p model.Params) (time.Time, time.Time) {
	var dates []time.Time
	dates = collectDates(s.Rows(TableSupplierReceipt), "date_reception", dates)
	for _, c := range s.Rows(TableSupplierOrder) {
		for _, f := range []string{"date_reelle_livraison", "date_prevue_livraison", "date_commande"} {
			if d, ok := c.Date(f); ok {
				dates = append(dates, d)
				break
			}
		}
	}
	return window(p, dates)
}

var supplierWindowTables = []string{TableSupplierReceipt, TableSupplierOrder}

func conformity(r model.Row) string {
	return strings.ToLower(strings.TrimSpace(r.String("statut_conformite")))
}

// supplierOnTimeRate is the share of receipts in the window that arrived by the planned date.
func supplierOnTimeRate(s model.Snapshot, p model.Params) (any, error) {
	start, end := supplierWindow(s, p)
	return onTimeOver(s, start, end), nil
}

// onTimeOver reads the planned date from the receipt first, then from its order.
func onTimeOver(s model.Snapshot, start, end time.Time) any {
	orders := s.IndexBy(TableSupplierOrder, "id")
	total, onTime := 0, 0
	for _, r := range s.Rows(TableSupplierReceipt) {
		order := orders[r.String("commande_id")]
		planned, ok := r.Date("date_prevue_livraison")
		if !ok {
			planned, ok = order.Date("date_prevue_livraison")
		}
		if !ok {
			continue
		}
		actual, ok := r.Date("date_reception")
		if !ok {
			actual, ok = order.Date("date_reelle_livraison")
		}
		if !between(actual, ok, start, end) {
			continue
		}
		total++
		if !actual.After(planned) {
			onTime++
		}
	}
	return percent(float64(onTime), float64(total))
}

func supplierConformRate(s model.Snapshot, p model.Params) (any, error) {
	start, end := supplierWindow(s, p)
	return conformOver(s, start, end), nil
}

func conformOver(s model.Snapshot, start, end time.Time) any {
	total, ok := 0, 0
	for _, r := range s.Rows(TableSupplierReceipt) {
		d, has := r.Date("date_reception")
		if !between(d, has, start, end) {
			continue
		}
		status := conformity(r)
		if status == "" {
			continue
		}
		total++
		switch status {
		case "conforme", "ok", "valide":
			ok++
		}
	}
	return percent(float64(ok), float64(total))
}

// supplierNonConformRate is non-conforming received quantity over total received quantity.
func supplierNonConformRate(s model.Snapshot, p model.Params) (any, error) {
	start, end := supplierWindow(s, p)
	return nonConformOver(s, start, end), nil
}

func nonConformOver(s model.Snapshot, start, end time.Time) any {
	orders := s.IndexBy(TableSupplierOrder, "id")
	var total, rejected float64
	for _, l := range s.Rows(TableSupplierOrderLine) {
		d, ok := orders[l.String("commande_id")].Date("date_reelle_livraison")
		if !ok {
			d, ok = l.Date("date_reception")
		}
		if !between(d, ok, start, end) {
			continue
		}
		q := positive(l.Float("quantite_recue"))
		total += q
		switch conformity(l) {
		case "nonconforme", "non_conforme", "rejet", "defaut":
			rejected += q
		}
	}
	return percent(rejected, total)
}

func supplierReturnRate(s model.Snapshot, p model.Params) (any, error) {
	start, end := supplierWindow(s, p)
	return returnsOver(s, start, end), nil
}

func returnsOver(s model.Snapshot, start, end time.Time) any {
	returns, receipts := 0, 0
	for _, r := range s.Rows(TableSupplierReturn) {
		if d, ok := r.Date("date_retour"); between(d, ok, start, end) {
			returns++
		}
	}
	for _, r := range s.Rows(TableSupplierReceipt) {
		if d, ok := r.Date("date_reception"); between(d, ok, start, end) {
			receipts++
		}
	}
	return percent(float64(returns), float64(receipts))
}

// supplierLeadTime averages first receipt date minus order date per supplier order.
func supplierLeadTime(s model.Snapshot, p model.Params) (any, error) {
	start, end := supplierWindow(s, p)
	return leadTimeOver(s, start, end), nil
}

func leadTimeOver(s model.Snapshot, start, end time.Time) any {
	firstReceipt := map[string]time.Time{}
	for _, r := range s.Rows(TableSupplierReceipt) {
		id := r.String("commande_id")
		d, ok := r.Date("date_reception")
		if id == "" || !ok {
			continue
		}
		if cur, seen := firstReceipt[id]; !seen || d.Before(cur) {
			firstReceipt[id] = d
		}
	}

	var delays []float64
	for _, c := range s.Rows(TableSupplierOrder) {
		ordered, ok := c.Date("date_commande")
		if !ok {
			continue
		}
		received, found := firstReceipt[c.String("id")]
		if !found {
			received, found = c.Date("date_reelle_livraison")
		}
		if !between(received, found, start, end) {
			continue
		}
		delays = append(delays, float64(days(ordered, received)))
	}
	return mean(delays, 2)
}

func supplierTransportCostRatio(s model.Snapshot, p model.Params) (any, error) {
	start, end := supplierWindow(s, p)
	return transportRatioOver(s, start, end), nil
}

func transportRatioOver(s model.Snapshot, start, end time.Time) any {
	var cost, base float64
	for _, c := range s.Rows(TableSupplierOrder) {
		d, ok := c.Date("date_reelle_livraison")
		if !ok {
			d, ok = c.Date("date_commande")
		}
		if !between(d, ok, start, end) {
			continue
		}
		cost += c.Float("cout_transport")
		base += c.Float("montant_commande")
	}
	if base <= 0 {
		return nil
	}
	return roundTo(cost/base, 4)
}
