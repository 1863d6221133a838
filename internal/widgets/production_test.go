package widgets

import (
	"testing"

	"pulseboard/internal/model"

	"github.com/stretchr/testify/assert"
)

func productionSnapshot() model.Snapshot {
	return model.Snapshot{
		TableProductionOrder: {
			{"id_op": "OP1", "quantite_cible": 100.0, "etat": "termine",
				"date_lancement_reelle": "2024-05-01T08:00:00", "date_fin_reelle": "2024-05-01T20:00:00"},
			{"id_op": "OP2", "quantite_cible": 100.0, "etat": "en_cours"},
			{"id_op": "OP3", "quantite_cible": 0.0, "etat": "en_attente"},
		},
		TableProductionOutput: {
			{"id_op": "OP1", "quantite_ok": 90.0, "quantite_nok": 10.0},
			{"id_op": "OP2", "quantite_ok": 60.0, "quantite_nok": 40.0},
		},
		TableProductionPhase: {
			{"id_op": "OP2", "debut_reel": "2024-05-02 06:00:00", "fin_reel": "2024-05-02 10:00:00"},
			{"id_op": "OP2", "debut_reel": "2024-05-02 10:00:00", "fin_reel": "2024-05-02 12:00:00"},
		},
	}
}

func TestProductionKPIs(t *testing.T) {
	s := productionSnapshot()

	tests := []struct {
		name string
		fn   func(model.Snapshot, model.Params) (any, error)
		want any
	}{
		{"ok", productionOK, 150},
		{"nok", productionNOK, 50},
		{"total", productionTotal, 200},
		{"quality", productionQualityRate, 75.0},
		{"defects", productionDefectRate, 25.0},
		{"yield", productionYield, 75.0},
		{"lead time", productionLeadTimeHours, 9.0},
		{"wip", productionWIP, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, invoke(t, tt.fn, s, nil))
		})
	}
}
