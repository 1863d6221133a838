// Package widgets holds the computation catalog served by the widget dispatcher
// and the column schemas that normalize upstream rows before computations read them.
package widgets

import (
	"maps"

	"pulseboard/internal/model"
)

// Schema maps a canonical field to the upstream column names it may arrive under,
// in order of preference.
type Schema map[string][]string

// Projector rewrites rows so every canonical field of the table's schema is filled
// from the first non-null alias. Unknown tables pass through unchanged.
type Projector struct {
	schemas map[string]Schema
}

func NewProjector(schemas map[string]Schema) *Projector {
	return &Projector{schemas: schemas}
}

// DefaultProjector knows the column variants found across the upstream databases.
func DefaultProjector() *Projector {
	return NewProjector(DefaultSchemas())
}

func (p *Projector) Project(table string, rows []model.Row) []model.Row {
	schema, ok := p.schemas[table]
	if !ok || len(rows) == 0 {
		return rows
	}
	out := make([]model.Row, len(rows))
	for i, r := range rows {
		row := maps.Clone(r)
		for canonical, aliases := range schema {
			if row.Has(canonical) {
				continue
			}
			for _, a := range aliases {
				if row.Has(a) {
					row[canonical] = row[a]
					break
				}
			}
		}
		out[i] = row
	}
	return out
}

var supplierOrderRef = []string{"commande_fournisseur_id", "commandefournisseur_id", "id_commandefournisseur"}

func DefaultSchemas() map[string]Schema {
	return map[string]Schema{
		TableStock: {
			"quantitedisponible": {"quantiteDisponible", "quantite_disponible"},
			"quantitereserve":    {"quantiteReserve", "quantite_reservee"},
		},
		TableStockMovement: {
			"datemouvement": {"date_mouvement"},
			"typemouvement": {"type_mouvement"},
			"quantite":      {"qte"},
		},
		TableExpiry: {
			"dateexpiration": {"date_expiration"},
			"quantite":       {"qte"},
		},
		TableOrderLine: {
			"quantite_commandee": {"quantite"},
			"prix_unitaire":      {"prix"},
		},
		TableSupplierReceipt: {
			"date_reception":        {"datereception", "date_reelle_livraison"},
			"date_prevue_livraison": {"date_prevue", "date_prevue_reception"},
			"commande_id":           supplierOrderRef,
			"statut_conformite":     {"statutconformite"},
		},
		TableSupplierOrder: {
			"date_prevue_livraison": {"date_prevue", "dateprevulivraison"},
			"date_commande":         {"datecommande"},
			"cout_transport":        {"couttransport"},
			"montant_commande":      {"montantcommande"},
			"tiers_id":              {"fournisseur_id"},
		},
		TableSupplierOrderLine: {
			"commande_id":       supplierOrderRef,
			"quantite_recue":    {"quantiterecue"},
			"statut_conformite": {"statutconformite"},
		},
		TableSupplierReturn: {
			"date_retour": {"dateretour"},
		},
		TableThirdParty: {
			"raison_social": {"raisonSociale", "nom", "name"},
		},
	}
}
