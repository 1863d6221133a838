package widgets

import (
	"sort"

	"pulseboard/internal/model"
)

func customerOrders(s model.Snapshot) []model.Row {
	return s.Rows(TableCustomerOrder)
}

// orderCount counts orders that were neither returned nor cancelled.
func orderCount(s model.Snapshot, _ model.Params) (any, error) {
	n := 0
	for _, c := range customerOrders(s) {
		switch c.String("statut") {
		case "retournee", "Annulee":
		default:
			n++
		}
	}
	return n, nil
}

func lateRate(s model.Snapshot, _ model.Params) (any, error) {
	orders := customerOrders(s)
	late := 0
	for _, c := range orders {
		actual, ok1 := c.Date("date_reelle_livraison")
		planned, ok2 := c.Date("date_prevue_livraison")
		if ok1 && ok2 && actual.After(planned) {
			late++
		}
	}
	return percent(float64(late), float64(len(orders))), nil
}

// onTimeInFull is the share of orders delivered on or before the planned date.
func onTimeInFull(s model.Snapshot, _ model.Params) (any, error) {
	orders := customerOrders(s)
	onTime := 0
	for _, c := range orders {
		actual, ok1 := c.Date("date_reelle_livraison")
		planned, ok2 := c.Date("date_prevue_livraison")
		if ok1 && ok2 && !actual.After(planned) {
			onTime++
		}
	}
	return percent(float64(onTime), float64(len(orders))), nil
}

func cancellationRate(s model.Snapshot, _ model.Params) (any, error) {
	orders := customerOrders(s)
	returned := 0
	for _, c := range orders {
		if c.String("statut") == "retournee" {
			returned++
		}
	}
	return percent(float64(returned), float64(len(orders))), nil
}

// cycleTimeDays averages shipping date minus order date over delivered orders.
func cycleTimeDays(s model.Snapshot, _ model.Params) (any, error) {
	var durations []float64
	for _, c := range customerOrders(s) {
		if !c.Has("date_reelle_livraison") {
			continue
		}
		ordered, ok1 := c.Date("date_commande")
		shipped, ok2 := c.Date("date_expedition")
		if ok1 && ok2 {
			durations = append(durations, float64(days(ordered, shipped)))
		}
	}
	return mean(durations, 2), nil
}

type statusChange struct {
	orderID string
	at      model.Row
	date    int64
}

func sortedChanges(s model.Snapshot) []statusChange {
	var changes []statusChange
	for _, r := range s.Rows(TableChangeLog) {
		d, ok := r.Date("date_changement_statut")
		if !ok {
			continue
		}
		changes = append(changes, statusChange{orderID: r.String("commande_id"), at: r, date: d.Unix()})
	}
	sort.SliceStable(changes, func(i, j int) bool {
		if changes[i].orderID != changes[j].orderID {
			return changes[i].orderID < changes[j].orderID
		}
		return changes[i].date < changes[j].date
	})
	return changes
}

// changeLogAvgDays averages the days between consecutive status changes of the same order.
func changeLogAvgDays(s model.Snapshot, _ model.Params) (any, error) {
	changes := sortedChanges(s)
	var gaps []float64
	for i := 1; i < len(changes); i++ {
		if changes[i].orderID == changes[i-1].orderID {
			gaps = append(gaps, float64(changes[i].date-changes[i-1].date)/86400)
		}
	}
	return mean(gaps, 2), nil
}

// changeLogTable lists status changes, newest first, capped by the limit param.
func changeLogTable(s model.Snapshot, p model.Params) (any, error) {
	changes := sortedChanges(s)
	sort.SliceStable(changes, func(i, j int) bool { return changes[i].date > changes[j].date })

	limit := p.Int("limit", 100)
	if limit > 0 && len(changes) > limit {
		changes = changes[:limit]
	}
	out := make([]model.Row, 0, len(changes))
	for _, c := range changes {
		d, ok := c.at.Date("date_changement_statut")
		out = append(out, model.Row{
			"commande_id":            c.at["commande_id"],
			"ancien_statut":          c.at["ancien_statut"],
			"nouveau_statut":         c.at["nouveau_statut"],
			"date_changement_statut": isoDate(d, ok),
		})
	}
	return out, nil
}
