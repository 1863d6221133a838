package widgets

import (
	"sort"
	"strings"
	"time"

	"pulseboard/internal/model"
)

// Stockout risk levels, ordered by severity.
const (
	RiskHigh   = "élevé"
	RiskMedium = "moyen"
	RiskLow    = "faible"
)

var riskOrder = map[string]int{RiskHigh: 0, RiskMedium: 1, RiskLow: 2}

func nameOr(r model.Row, field, fallback string) string {
	if v := r.String(field); v != "" {
		return v
	}
	return fallback
}

// blockedOrders lists customer orders still open or delivered late, most delayed first.
func blockedOrders(s model.Snapshot, _ model.Params) (any, error) {
	contacts := s.IndexBy(TableContact, "id")
	out := []model.Row{}
	for _, c := range s.Rows(TableCustomerOrder) {
		ordered, okOrdered := c.Date("date_commande")
		planned, okPlanned := c.Date("date_prevue_livraison")
		actual, okActual := c.Date("date_reelle_livraison")

		delay := 0
		if okPlanned && okActual && actual.After(planned) {
			delay = days(planned, actual)
		}
		status := c.String("statut")
		open := status == "en_attente" || status == "en_cours" || status == "expediee"
		if !open && delay <= 0 {
			continue
		}
		out = append(out, model.Row{
			"cmd_id":                c["id"],
			"client":                nameOr(contacts[c.String("contact_id")], "nom", "Inconnu"),
			"statut":                c["statut"],
			"date_commande":         isoDate(ordered, okOrdered),
			"date_prevue_livraison": isoDate(planned, okPlanned),
			"date_reelle_livraison": isoDate(actual, okActual),
			"retard_jours":          delay,
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i]["retard_jours"].(int) > out[j]["retard_jours"].(int)
	})
	return out, nil
}

// stockoutRisk rates every stock line by days on hand over the consumption window.
// Without both dates the window is the last 30 days.
func stockoutRisk(s model.Snapshot, p model.Params) (any, error) {
	end := today()
	start := end.AddDate(0, 0, -(windowDays - 1))
	if p.String("start_date") != "" && p.String("end_date") != "" {
		if d, ok := model.ParseTime(p.String("start_date")); ok {
			start = model.TruncateDay(d)
		}
		if d, ok := model.ParseTime(p.String("end_date")); ok {
			end = model.TruncateDay(d)
		}
		if start.After(end) {
			start, end = end, start
		}
	}

	products := s.IndexBy(TableProduct, "id")
	warehouses := s.IndexBy(TableWarehouse, "id")

	consumed := map[string]float64{}
	for _, m := range s.Rows(TableStockMovement) {
		if !isOutbound(m) {
			continue
		}
		d, ok := m.Date("datemouvement")
		if !between(d, ok, start, end) {
			continue
		}
		if id, q := m.String("stock_id"), m.Float("quantite"); id != "" && q > 0 {
			consumed[id] += q
		}
	}

	out := []model.Row{}
	for _, st := range s.Rows(TableStock) {
		pid, wid := st.String("produit_id"), st.String("entrepot_id")
		available := positive(st.Float("quantitedisponible") - st.Float("quantitereserve"))
		used := consumed[st.String("id")]

		doh := 0.0
		if used > 0 {
			doh = roundTo(available/(used/windowDays), 2)
		}
		risk := RiskLow
		switch {
		case doh <= 3:
			risk = RiskHigh
		case doh <= 7:
			risk = RiskMedium
		}

		var warehouse any
		if wid != "" {
			warehouse = nameOr(warehouses[wid], "nom", "Entrepôt "+wid)
		}
		out = append(out, model.Row{
			"produit":          nameOr(products[pid], "nom", "Produit "+pid),
			"reference":        products[pid]["reference"],
			"entrepot":         warehouse,
			"stock_disponible": roundTo(available, 2),
			"conso_30j":        roundTo(used, 2),
			"days_on_hand":     doh,
			"risque":           risk,
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		ri, rj := riskOrder[out[i]["risque"].(string)], riskOrder[out[j]["risque"].(string)]
		if ri != rj {
			return ri < rj
		}
		return out[i]["days_on_hand"].(float64) < out[j]["days_on_hand"].(float64)
	})
	return out, nil
}

var conformityPriority = map[string]int{"Non conforme": 0, "Partiellement conforme": 1, "Conforme": 2}

// lateSuppliers lists supplier orders received after the planned date, or still
// missing past it. start_date and end_date filter on the order date.
func lateSuppliers(s model.Snapshot, p model.Params) (any, error) {
	from, hasFrom := model.ParseTime(p.String("start_date"))
	to, hasTo := model.ParseTime(p.String("end_date"))
	from, to = model.TruncateDay(from), model.TruncateDay(to)

	firstReceipt := map[string]time.Time{}
	statuses := map[string][]string{}
	for _, r := range s.Rows(TableSupplierReceipt) {
		id := r.String("commande_id")
		if id == "" {
			continue
		}
		if d, ok := r.Date("date_reception"); ok {
			if cur, seen := firstReceipt[id]; !seen || d.Before(cur) {
				firstReceipt[id] = d
			}
		}
		if st := strings.TrimSpace(r.String("statut_conformite")); st != "" {
			statuses[id] = append(statuses[id], st)
		}
	}
	suppliers := s.IndexBy(TableThirdParty, "id")

	out := []model.Row{}
	for _, c := range s.Rows(TableSupplierOrder) {
		id := c.String("id")
		ordered, okOrdered := c.Date("date_commande")
		if hasFrom && (!okOrdered || ordered.Before(from)) {
			continue
		}
		if hasTo && (!okOrdered || ordered.After(to)) {
			continue
		}
		planned, okPlanned := c.Date("date_prevue_livraison")
		actual, okActual := firstReceipt[id]
		if !okActual {
			actual, okActual = c.Date("date_reelle_livraison")
		}

		delay := 0
		if okPlanned && okActual && actual.After(planned) {
			delay = days(planned, actual)
		}
		overdue := okPlanned && !okActual && today().After(planned)
		if delay <= 0 && !overdue {
			continue
		}
		out = append(out, model.Row{
			"cmdf_id":               c["id"],
			"fournisseur":           nameOr(suppliers[c.String("tiers_id")], "raison_social", "Fournisseur"),
			"date_commande":         isoDate(ordered, okOrdered),
			"date_prevue_livraison": isoDate(planned, okPlanned),
			"date_reelle_livraison": isoDate(actual, okActual),
			"retard_jours":          delay,
			"statut_conformite":     worstConformity(statuses[id]),
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i]["retard_jours"].(int) > out[j]["retard_jours"].(int)
	})
	return out, nil
}

func worstConformity(vals []string) any {
	if len(vals) == 0 {
		return nil
	}
	rank := func(v string) int {
		if r, ok := conformityPriority[v]; ok {
			return r
		}
		return 99
	}
	worst := vals[0]
	for _, v := range vals[1:] {
		if rank(v) < rank(worst) {
			worst = v
		}
	}
	return worst
}

// expiringSoon lists expiry lots within seuil_jours (default 30) of today.
func expiringSoon(s model.Snapshot, p model.Params) (any, error) {
	threshold := p.Int("seuil_jours", expiryWindow)
	products := s.IndexBy(TableProduct, "id")
	warehouses := s.IndexBy(TableWarehouse, "id")
	stock := s.IndexBy(TableStock, "id")
	ref := today()

	out := []model.Row{}
	for _, r := range s.Rows(TableExpiry) {
		exp, ok := r.Date("dateexpiration")
		if !ok {
			continue
		}
		left := max(0, days(ref, exp))
		if left > threshold {
			continue
		}
		st := stock[r.String("stock_id")]
		pid := r.String("produit_id")
		if pid == "" {
			pid = st.String("produit_id")
		}
		var warehouse any
		if wid := st.String("entrepot_id"); wid != "" {
			warehouse = nameOr(warehouses[wid], "nom", "Entrepôt "+wid)
		}
		out = append(out, model.Row{
			"produit":         nameOr(products[pid], "nom", "Produit "+pid),
			"entrepot":        warehouse,
			"date_expiration": exp.Format(dateLayout),
			"jours_restants":  left,
			"quantite":        roundTo(r.Float("quantite"), 2),
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		li, lj := out[i]["jours_restants"].(int), out[j]["jours_restants"].(int)
		if li != lj {
			return li < lj
		}
		return out[i]["quantite"].(float64) > out[j]["quantite"].(float64)
	})
	return out, nil
}
