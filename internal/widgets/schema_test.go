package widgets

import (
	"testing"

	"pulseboard/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProjector_FillsCanonicalFields(t *testing.T) {
	p := DefaultProjector()
	in := []model.Row{
		{"id": 1.0, "quantiteDisponible": 12.0, "quantite_reservee": 2.0},
		{"id": 2.0, "quantitedisponible": 5.0, "quantiteDisponible": 99.0},
	}

	out := p.Project(TableStock, in)
	require.Len(t, out, 2)
	assert.Equal(t, 12.0, out[0].Float("quantitedisponible"))
	assert.Equal(t, 2.0, out[0].Float("quantitereserve"))
	assert.Equal(t, 5.0, out[1].Float("quantitedisponible"), "canonical field wins over aliases")

	assert.False(t, in[0].Has("quantitedisponible"), "input rows stay untouched")
}

func TestProjector_SkipsNullAliases(t *testing.T) {
	p := DefaultProjector()
	out := p.Project(TableSupplierReceipt, []model.Row{
		{"datereception": nil, "date_reelle_livraison": "2024-01-03", "id_commandefournisseur": 7.0},
	})
	assert.Equal(t, "2024-01-03", out[0].String("date_reception"))
	assert.Equal(t, "7", out[0].String("commande_id"))
}

func TestProjector_UnknownTablePassesThrough(t *testing.T) {
	rows := []model.Row{{"a": 1}}
	assert.Equal(t, rows, DefaultProjector().Project("unknown", rows))
}
