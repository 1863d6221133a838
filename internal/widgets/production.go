package widgets

import (
	"time"

	"pulseboard/internal/model"
)

func outputVolumes(s model.Snapshot) (ok, nok float64) {
	for _, r := range s.Rows(TableProductionOutput) {
		ok += float64(int(r.Float("quantite_ok")))
		nok += float64(int(r.Float("quantite_nok")))
	}
	return ok, nok
}

func productionOK(s model.Snapshot, _ model.Params) (any, error) {
	ok, _ := outputVolumes(s)
	return int(ok), nil
}

func productionNOK(s model.Snapshot, _ model.Params) (any, error) {
	_, nok := outputVolumes(s)
	return int(nok), nil
}

func productionTotal(s model.Snapshot, _ model.Params) (any, error) {
	ok, nok := outputVolumes(s)
	return int(ok + nok), nil
}

func productionQualityRate(s model.Snapshot, _ model.Params) (any, error) {
	ok, nok := outputVolumes(s)
	return percent(ok, ok+nok), nil
}

func productionDefectRate(s model.Snapshot, _ model.Params) (any, error) {
	ok, nok := outputVolumes(s)
	return percent(nok, ok+nok), nil
}

// productionYield is good output over the target quantity summed across orders.
func productionYield(s model.Snapshot, _ model.Params) (any, error) {
	okByOrder := map[string]float64{}
	for _, r := range s.Rows(TableProductionOutput) {
		okByOrder[r.String("id_op")] += float64(int(r.Float("quantite_ok")))
	}
	var good, target float64
	for _, op := range s.Rows(TableProductionOrder) {
		good += okByOrder[op.String("id_op")]
		target += float64(int(op.Float("quantite_cible")))
	}
	return percent(good, target), nil
}

type span struct {
	start, end       time.Time
	hasStart, hasEnd bool
}

// productionLeadTimeHours averages actual end minus actual launch per production order,
// falling back to the earliest phase start and latest phase end.
func productionLeadTimeHours(s model.Snapshot, _ model.Params) (any, error) {
	phases := map[string]*span{}
	for _, ph := range s.Rows(TableProductionPhase) {
		id := ph.String("id_op")
		if id == "" {
			continue
		}
		sp, found := phases[id]
		if !found {
			sp = &span{}
			phases[id] = sp
		}
		if d, ok := ph.Time("debut_reel"); ok && (!sp.hasStart || d.Before(sp.start)) {
			sp.start, sp.hasStart = d, true
		}
		if f, ok := ph.Time("fin_reel"); ok && (!sp.hasEnd || f.After(sp.end)) {
			sp.end, sp.hasEnd = f, true
		}
	}

	var hours []float64
	for _, op := range s.Rows(TableProductionOrder) {
		sp := phases[op.String("id_op")]
		if sp == nil {
			sp = &span{}
		}
		start, ok1 := op.Time("date_lancement_reelle")
		if !ok1 {
			start, ok1 = sp.start, sp.hasStart
		}
		end, ok2 := op.Time("date_fin_reelle")
		if !ok2 {
			end, ok2 = sp.end, sp.hasEnd
		}
		if !ok1 || !ok2 {
			continue
		}
		if h := end.Sub(start).Hours(); h >= 0 {
			hours = append(hours, h)
		}
	}
	return mean(hours, 2), nil
}

func productionWIP(s model.Snapshot, _ model.Params) (any, error) {
	n := 0
	for _, op := range s.Rows(TableProductionOrder) {
		switch op.String("etat") {
		case "en_attente", "en_cours":
			n++
		}
	}
	return n, nil
}
