package widgets

import (
	"slices"

	"pulseboard/internal/service"
)

func tables(groups ...[]string) []string {
	var out []string
	for _, g := range groups {
		for _, t := range g {
			if !slices.Contains(out, t) {
				out = append(out, t)
			}
		}
	}
	return out
}

func list(names ...string) []string { return names }

// Catalog returns every widget computation with the tables it reads.
func Catalog() []service.Computation {
	orders := list(TableCustomerOrder)
	changes := list(TableChangeLog)
	stock := list(TableStock)
	stockWin := stockWindowTables
	valuation := tables(stock, list(TableProduct, TableOrderLine), stockWin)
	supplierWin := supplierWindowTables
	output := list(TableProductionOutput)

	return []service.Computation{
		{Name: "kpi_nb_commandes", Tables: orders, Invoke: orderCount},
		{Name: "kpi_taux_retards", Tables: orders, Invoke: lateRate},
		{Name: "kpi_otif", Tables: orders, Invoke: onTimeInFull},
		{Name: "kpi_taux_annulation", Tables: orders, Invoke: cancellationRate},
		{Name: "kpi_duree_cycle_moyenne_jours", Tables: orders, Invoke: cycleTimeDays},
		{Name: "kpi_duree_moyenne_changelog", Tables: changes, Invoke: changeLogAvgDays},
		{Name: "get_table_change_log", Tables: changes, Invoke: changeLogTable},

		{Name: "kpi_quantite_stock", Tables: stock, Invoke: stockQuantity},
		{Name: "kpi_quantite_reservee", Tables: stock, Invoke: reservedQuantity},
		{Name: "kpi_stock_disponible", Tables: stock, Invoke: availableStock},
		{Name: "kpi_days_on_hand", Tables: tables(stock, stockWin), Invoke: daysOnHand},
		{Name: "kpi_taux_rotation", Tables: valuation, Invoke: turnoverRate},
		{Name: "kpi_inventory_to_sales", Tables: valuation, Invoke: inventoryToSales},
		{Name: "kpi_rentabilite_stock", Tables: valuation, Invoke: stockProfitability},
		{Name: "kpi_taux_rupture", Tables: tables(stock, list(TableOrderLine), stockWin), Invoke: stockoutRate},
		{Name: "kpi_remaining_shelf_life_avg", Tables: stockWin, Invoke: shelfLifeAvg},
		{Name: "kpi_produits_proches_peremption", Tables: stockWin, Invoke: nearExpiry},
		{Name: "kpi_contraction_stock_qte", Tables: stockWin, Invoke: shrinkage},

		{Name: "kpi_sup_on_time_rate", Tables: supplierWin, Invoke: supplierOnTimeRate},
		{Name: "kpi_sup_quality_conform_rate", Tables: supplierWin, Invoke: supplierConformRate},
		{Name: "kpi_sup_quality_nonconform_rate", Tables: tables(supplierWin, list(TableSupplierOrderLine)), Invoke: supplierNonConformRate},
		{Name: "kpi_sup_return_rate", Tables: tables(supplierWin, list(TableSupplierReturn)), Invoke: supplierReturnRate},
		{Name: "kpi_sup_avg_lead_time_days", Tables: supplierWin, Invoke: supplierLeadTime},
		{Name: "kpi_sup_transport_cost_ratio", Tables: supplierWin, Invoke: supplierTransportCostRatio},

		{Name: "rpc_stock_disponible_series", Tables: stockSeriesTables, Invoke: stockAvailableSeries},
		{Name: "rpc_days_on_hand_series", Tables: stockSeriesTables, Invoke: daysOnHandSeries},
		{Name: "rpc_taux_rotation_series", Tables: valuationSeriesTables, Invoke: turnoverSeries},
		{Name: "rpc_inventory_to_sales_series", Tables: valuationSeriesTables, Invoke: inventoryToSalesSeries},
		{Name: "rpc_rentabilite_stock_series", Tables: valuationSeriesTables, Invoke: profitabilitySeries},
		{Name: "rpc_taux_rupture_series", Tables: stockoutSeriesTables, Invoke: stockoutSeries},
		{Name: "rpc_remaining_shelf_life_series", Tables: list(TableExpiry, TableStock), Invoke: shelfLifeSeries},
		{Name: "rpc_shrinkage_by_day", Tables: stockSeriesTables, Invoke: shrinkageSeries},

		{Name: "rpc_sup_on_time_rate_series", Tables: supplierSeriesTables, Invoke: supplierSeries("On-Time %", onTimeOver)},
		{Name: "rpc_sup_quality_conform_rate_series", Tables: supplierSeriesTables, Invoke: supplierSeries("Conformité %", conformOver)},
		{Name: "rpc_sup_quality_nonconform_rate_series", Tables: tables(supplierSeriesTables, list(TableSupplierOrderLine)), Invoke: supplierSeries("Non-conformité %", nonConformOver)},
		{Name: "rpc_sup_return_rate_series", Tables: supplierSeriesTables, Invoke: supplierSeries("Retours %", returnsOver)},
		{Name: "rpc_sup_avg_lead_time_days_series", Tables: supplierSeriesTables, Invoke: supplierSeries("Lead time (j)", leadTimeOver)},
		{Name: "rpc_sup_transport_cost_ratio_series", Tables: supplierSeriesTables, Invoke: supplierSeries("Transport/Commande", transportRatioOver)},

		{Name: "prod_volume_ok", Tables: output, Invoke: productionOK},
		{Name: "prod_volume_nok", Tables: output, Invoke: productionNOK},
		{Name: "prod_volume_total", Tables: output, Invoke: productionTotal},
		{Name: "prod_taux_qualite", Tables: output, Invoke: productionQualityRate},
		{Name: "prod_taux_defauts", Tables: output, Invoke: productionDefectRate},
		{Name: "prod_rendement_vs_cible", Tables: list(TableProductionOrder, TableProductionOutput), Invoke: productionYield},
		{Name: "prod_lead_time_of", Tables: list(TableProductionOrder, TableProductionPhase), Invoke: productionLeadTimeHours},
		{Name: "prod_wip_op_en_cours", Tables: list(TableProductionOrder), Invoke: productionWIP},

		{Name: "table_cmd_clients_bloquees", Tables: list(TableCustomerOrder, TableContact), Invoke: blockedOrders},
		{Name: "table_stock_risque_rupture", Tables: list(TableStock, TableProduct, TableWarehouse, TableStockMovement), Invoke: stockoutRisk},
		{Name: "table_fournisseurs_retard", Tables: list(TableSupplierOrder, TableSupplierReceipt, TableThirdParty), Invoke: lateSuppliers},
		{Name: "table_peremption_30j", Tables: list(TableExpiry, TableProduct, TableWarehouse, TableStock), Invoke: expiringSoon},
	}
}

// NewRegistry builds the dispatcher registry from the full catalog.
func NewRegistry() (*service.Registry, error) {
	return service.NewRegistry(Catalog()...)
}
