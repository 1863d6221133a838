package widgets

import (
	"math"
	"strings"
	"time"

	"pulseboard/internal/model"
)

// stockWindow takes its default end from deliveries, movements and expiry dates.
func stockWindow(s model.Snapshot, p model.Params) (time.Time, time.Time) {
	var dates []time.Time
	dates = collectDates(s.Rows(TableCustomerOrder), "date_reelle_livraison", dates)
	dates = collectDates(s.Rows(TableStockMovement), "datemouvement", dates)
	dates = collectDates(s.Rows(TableExpiry), "dateexpiration", dates)
	return window(p, dates)
}

var stockWindowTables = []string{TableCustomerOrder, TableStockMovement, TableExpiry}

func isOutbound(m model.Row) bool {
	return strings.HasPrefix(movementKind(m), "sortie")
}

// warehouseScope limits stock, movement and expiry rows to the entrepot_id param.
// The zero value keeps every row.
type warehouseScope struct {
	id     string
	stocks map[string]bool
}

func scopeFor(s model.Snapshot, p model.Params) warehouseScope {
	id := p.String("entrepot_id")
	if id == "" {
		return warehouseScope{}
	}
	w := warehouseScope{id: id, stocks: map[string]bool{}}
	for _, st := range s.Rows(TableStock) {
		if st.String("entrepot_id") == id {
			w.stocks[st.String("id")] = true
		}
	}
	return w
}

func (w warehouseScope) stock(st model.Row) bool {
	return w.id == "" || st.String("entrepot_id") == w.id
}

// movement matches on the movement's own warehouse first, then on its stock row.
func (w warehouseScope) movement(m model.Row) bool {
	return w.id == "" || m.String("entrepot_id") == w.id || w.stocks[m.String("stock_id")]
}

func (w warehouseScope) expiry(r model.Row) bool {
	return w.id == "" || w.stocks[r.String("stock_id")]
}

func stockValue(s model.Snapshot, scope warehouseScope) float64 {
	products := s.IndexBy(TableProduct, "id")
	var total float64
	for _, st := range s.Rows(TableStock) {
		if !scope.stock(st) {
			continue
		}
		price := products[st.String("produit_id")].Float("prix")
		total += positive(st.Float("quantitedisponible")) * positive(price)
	}
	return total
}

func availableNow(s model.Snapshot, scope warehouseScope) float64 {
	var total float64
	for _, st := range s.Rows(TableStock) {
		if !scope.stock(st) {
			continue
		}
		total += positive(st.Float("quantitedisponible") - st.Float("quantitereserve"))
	}
	return total
}

// revenue sums order line amounts for orders actually delivered within [start, end].
func revenue(s model.Snapshot, start, end time.Time) float64 {
	orders := s.IndexBy(TableCustomerOrder, "id")
	var total float64
	for _, l := range s.Rows(TableOrderLine) {
		o, found := orders[l.String("commande_id")]
		if !found {
			continue
		}
		d, ok := o.Date("date_reelle_livraison")
		if !between(d, ok, start, end) {
			continue
		}
		total += positive(l.Float("quantite_commandee") * l.Float("prix_unitaire"))
	}
	return total
}

func outboundQty(s model.Snapshot, start, end time.Time) float64 {
	var total float64
	for _, m := range s.Rows(TableStockMovement) {
		if !isOutbound(m) {
			continue
		}
		d, ok := m.Date("datemouvement")
		if between(d, ok, start, end) {
			total += positive(m.Float("quantite"))
		}
	}
	return total
}

func stockQuantity(s model.Snapshot, _ model.Params) (any, error) {
	var total float64
	for _, st := range s.Rows(TableStock) {
		total += positive(st.Float("quantitedisponible"))
	}
	return total, nil
}

func reservedQuantity(s model.Snapshot, _ model.Params) (any, error) {
	var total float64
	for _, st := range s.Rows(TableStock) {
		total += positive(st.Float("quantitereserve"))
	}
	return total, nil
}

func availableStock(s model.Snapshot, _ model.Params) (any, error) {
	return availableNow(s, warehouseScope{}), nil
}

// daysOnHand divides available stock by the average daily outbound quantity of the
// 30 days ending at the window end.
func daysOnHand(s model.Snapshot, p model.Params) (any, error) {
	_, end := stockWindow(s, p)
	start := end.AddDate(0, 0, -(windowDays - 1))
	consumed := outboundQty(s, start, end)
	if consumed <= 0 {
		return nil, nil
	}
	return roundTo(availableNow(s, warehouseScope{})/(consumed/windowDays), 2), nil
}

func turnoverRate(s model.Snapshot, p model.Params) (any, error) {
	start, end := stockWindow(s, p)
	value := stockValue(s, warehouseScope{})
	if value <= 0 {
		return nil, nil
	}
	return roundTo(revenue(s, start, end)/value, 2), nil
}

func inventoryToSales(s model.Snapshot, p model.Params) (any, error) {
	start, end := stockWindow(s, p)
	sales := revenue(s, start, end)
	if sales <= 0 {
		return nil, nil
	}
	return roundTo(stockValue(s, warehouseScope{})/sales, 2), nil
}

// stockProfitability is (revenue - cost of sales - logistics costs) / stock value,
// with cost of sales estimated as revenue * cout_ratio.
func stockProfitability(s model.Snapshot, p model.Params) (any, error) {
	start, end := stockWindow(s, p)
	sales := revenue(s, start, end)
	ratio := math.Min(1, positive(p.Float("cout_ratio", 0.7)))
	margin := sales - sales*ratio - positive(p.Float("couts_logistiques", 0))
	value := stockValue(s, warehouseScope{})
	if value <= 0 {
		return nil, nil
	}
	return roundTo(margin/value, 2), nil
}

// stockoutRate is the share of delivered demand not covered by outbound movements,
// computed per product.
func stockoutRate(s model.Snapshot, p model.Params) (any, error) {
	start, end := stockWindow(s, p)
	demand, totalDemand := deliveredDemand(s, start, end)
	if totalDemand <= 0 {
		return nil, nil
	}

	movements := s.Rows(TableStockMovement)
	byProduct := false
	for _, m := range movements {
		if _, has := m["produit_id"]; has {
			byProduct = true
			break
		}
	}
	stockProduct := map[string]string{}
	for _, st := range s.Rows(TableStock) {
		stockProduct[st.String("id")] = st.String("produit_id")
	}

	served := map[string]float64{}
	for _, m := range movements {
		if !isOutbound(m) {
			continue
		}
		d, ok := m.Date("datemouvement")
		if !between(d, ok, start, end) {
			continue
		}
		pid := stockProduct[m.String("stock_id")]
		if byProduct {
			pid = m.String("produit_id")
		}
		if pid == "" {
			continue
		}
		served[pid] += positive(m.Float("quantite"))
	}

	return roundTo(100*unserved(demand, served)/totalDemand, 2), nil
}

// deliveredDemand sums ordered quantity per product over orders delivered within [start, end].
func deliveredDemand(s model.Snapshot, start, end time.Time) (map[string]float64, float64) {
	orders := s.IndexBy(TableCustomerOrder, "id")
	demand := map[string]float64{}
	var total float64
	for _, l := range s.Rows(TableOrderLine) {
		o, found := orders[l.String("commande_id")]
		if !found {
			continue
		}
		d, ok := o.Date("date_reelle_livraison")
		if !between(d, ok, start, end) {
			continue
		}
		q := positive(l.Float("quantite_commandee"))
		demand[l.String("produit_id")] += q
		total += q
	}
	return demand, total
}

func unserved(demand, served map[string]float64) float64 {
	var out float64
	for pid, q := range demand {
		out += q - math.Min(q, served[pid])
	}
	return out
}

// shelfLifeAvg is the quantity-weighted mean of days left before expiry at the window end.
func shelfLifeAvg(s model.Snapshot, p model.Params) (any, error) {
	_, ref := stockWindow(s, p)
	return shelfLifeAt(s, warehouseScope{}, ref), nil
}

func shelfLifeAt(s model.Snapshot, scope warehouseScope, ref time.Time) any {
	var qty, weighted float64
	for _, r := range s.Rows(TableExpiry) {
		if !scope.expiry(r) {
			continue
		}
		exp, ok := r.Date("dateexpiration")
		if !ok {
			continue
		}
		q := positive(r.Float("quantite"))
		qty += q
		weighted += q * float64(max(0, days(ref, exp)))
	}
	if qty <= 0 {
		return nil
	}
	return roundTo(weighted/qty, 1)
}

func nearExpiry(s model.Snapshot, p model.Params) (any, error) {
	_, ref := stockWindow(s, p)
	out := []model.Row{}
	for _, r := range s.Rows(TableExpiry) {
		exp, ok := r.Date("dateexpiration")
		if !ok {
			continue
		}
		left := days(ref, exp)
		if left > expiryWindow {
			continue
		}
		out = append(out, model.Row{
			"produit_id":     r["produit_id"],
			"jours_restants": max(0, left),
			"quantite":       r.Float("quantite"),
		})
	}
	return out, nil
}

// shrinkage sums losses and negative adjustments within the window.
func shrinkage(s model.Snapshot, p model.Params) (any, error) {
	start, end := stockWindow(s, p)
	return roundTo(shrinkageOver(s, warehouseScope{}, start, end), 2), nil
}

func shrinkageOver(s model.Snapshot, scope warehouseScope, start, end time.Time) float64 {
	var total float64
	for _, m := range s.Rows(TableStockMovement) {
		d, ok := m.Date("datemouvement")
		if !between(d, ok, start, end) || !scope.movement(m) {
			continue
		}
		total += lostQty(m)
	}
	return total
}

func movementKind(m model.Row) string {
	return strings.ToLower(strings.TrimSpace(m.String("typemouvement")))
}

// lostQty is the quantity a loss or negative adjustment removed, zero for other movements.
func lostQty(m model.Row) float64 {
	kind := movementKind(m)
	q := m.Float("quantite")
	switch {
	case kind == "perte" || kind == "shrink" || kind == "shrinkage":
		return math.Abs(q)
	case strings.HasPrefix(kind, "ajustement") && q < 0:
		return -q
	}
	return 0
}

// signedQty is the effect of a movement on available stock.
func signedQty(m model.Row) float64 {
	kind := movementKind(m)
	q := m.Float("quantite")
	switch {
	case strings.HasPrefix(kind, "entr"):
		return q
	case strings.HasPrefix(kind, "sort"):
		return -q
	case strings.HasPrefix(kind, "ajust"):
		return q
	case kind == "perte" || kind == "shrink" || kind == "shrinkage":
		return -math.Abs(q)
	}
	return 0
}
