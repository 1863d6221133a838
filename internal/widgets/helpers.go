package widgets

import (
	"math"
	"time"

	"pulseboard/internal/model"
)

// Upstream table names.
const (
	TableCustomerOrder     = "commandeclient"
	TableOrderLine         = "lignecommande"
	TableChangeLog         = "changelog"
	TableContact           = "contact"
	TableProduct           = "produit"
	TableWarehouse         = "entrepot"
	TableStock             = "stock"
	TableStockMovement     = "mouvement_stock"
	TableExpiry            = "peremption"
	TableSupplierOrder     = "commande_fournisseur"
	TableSupplierOrderLine = "ligne_cmd_fournisseur"
	TableSupplierReceipt   = "reception_fournisseur"
	TableSupplierReturn    = "retour_fournisseur"
	TableThirdParty        = "tiers"
	TableProductionOrder   = "ordre_production"
	TableProductionOutput  = "sortie_production"
	TableProductionPhase   = "phase_production"
)

const (
	windowDays   = 30
	dateLayout   = "2006-01-02"
	expiryWindow = 30
)

// now is swapped in tests.
var now = time.Now

func today() time.Time {
	return model.TruncateDay(now())
}

func roundTo(x float64, digits int) float64 {
	p := math.Pow(10, float64(digits))
	return math.Round(x*p) / p
}

// percent returns 100*num/den rounded to two digits, or nil when den is zero.
func percent(num, den float64) any {
	if den <= 0 {
		return nil
	}
	return roundTo(100*num/den, 2)
}

func mean(xs []float64, digits int) any {
	if len(xs) == 0 {
		return nil
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return roundTo(sum/float64(len(xs)), digits)
}

func positive(x float64) float64 {
	return math.Max(0, x)
}

func days(from, to time.Time) int {
	return int(to.Sub(from).Hours() / 24)
}

func between(d time.Time, ok bool, start, end time.Time) bool {
	return ok && !d.Before(start) && !d.After(end)
}

func isoDate(t time.Time, ok bool) any {
	if !ok {
		return nil
	}
	return t.Format(dateLayout)
}

// window resolves [start, end] from the start_date and end_date params. A missing end
// falls back to the latest date in the candidates, then today; a missing start is
// end minus 29 days.
func window(p model.Params, candidates []time.Time) (time.Time, time.Time) {
	end, ok := model.ParseTime(p.String("end_date"))
	if ok {
		end = model.TruncateDay(end)
	} else if len(candidates) > 0 {
		end = candidates[0]
		for _, c := range candidates[1:] {
			if c.After(end) {
				end = c
			}
		}
	} else {
		end = today()
	}

	start, ok := model.ParseTime(p.String("start_date"))
	if ok {
		start = model.TruncateDay(start)
	} else {
		start = end.AddDate(0, 0, -(windowDays - 1))
	}
	if start.After(end) {
		start, end = end, start
	}
	return start, end
}

// collectDates gathers every parsable date of one field across a table.
func collectDates(rows []model.Row, field string, into []time.Time) []time.Time {
	for _, r := range rows {
		if d, ok := r.Date(field); ok {
			into = append(into, d)
		}
	}
	return into
}
