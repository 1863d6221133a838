package widgets

import (
	"testing"

	"pulseboard/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var lastJuneWeek = model.Params{"start_date": "2024-06-24", "end_date": "2024-06-30"}

// column extracts one label of a series keyed by day.
func column(t *testing.T, got any, label string) map[string]any {
	t.Helper()
	points, ok := got.([]model.Row)
	require.True(t, ok, "series must be a list of points, got %T", got)
	out := make(map[string]any, len(points))
	for _, pt := range points {
		out[pt.String("day")] = pt[label]
	}
	return out
}

func TestSeriesWindow(t *testing.T) {
	fixClock(t, "2024-06-30")

	tests := []struct {
		name       string
		params     model.Params
		start, end string
	}{
		{"defaults to the last seven days", model.Params{}, "2024-06-24", "2024-06-30"},
		{"explicit range", lastJuneWeek, "2024-06-24", "2024-06-30"},
		{"swapped bounds", model.Params{"start_date": "2024-06-30", "end_date": "2024-06-01"}, "2024-06-01", "2024-06-30"},
		{"long ranges keep the recent days", model.Params{"start_date": "2000-01-01", "end_date": "2024-06-30"}, "2023-07-01", "2024-06-30"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			start, end := seriesWindow(tt.params, today())
			assert.Equal(t, tt.start, start.Format(dateLayout))
			assert.Equal(t, tt.end, end.Format(dateLayout))
		})
	}
}

func TestStockAvailableSeries(t *testing.T) {
	got := invoke(t, stockAvailableSeries, stockSnapshot(), lastJuneWeek)
	require.Len(t, got, 7)

	// 140 available today, rebuilt backwards through -15, +99, -3 and -2
	assert.Equal(t, map[string]any{
		"2024-06-24": 61.0,
		"2024-06-25": 46.0,
		"2024-06-26": 145.0,
		"2024-06-27": 142.0,
		"2024-06-28": 140.0,
		"2024-06-29": 140.0,
		"2024-06-30": 140.0,
	}, column(t, got, "Disponible"))
}

func TestStockSeries_WarehouseFilter(t *testing.T) {
	p := model.Params{"start_date": "2024-06-24", "end_date": "2024-06-30", "entrepot_id": 99.0}
	for day, v := range column(t, invoke(t, stockAvailableSeries, stockSnapshot(), p), "Disponible") {
		assert.Equal(t, 0.0, v, day)
	}

	p["entrepot_id"] = 5.0
	assert.Equal(t, 61.0, column(t, invoke(t, stockAvailableSeries, stockSnapshot(), p), "Disponible")["2024-06-24"])
}

func TestDaysOnHandSeries(t *testing.T) {
	doh := column(t, invoke(t, daysOnHandSeries, stockSnapshot(), lastJuneWeek), "DOH")
	// 50 units out over the 30 days ending 06-30, 30 over those ending 06-24
	assert.Equal(t, 84.0, doh["2024-06-30"])
	assert.Equal(t, 61.0, doh["2024-06-24"])
}

func TestValuationSeries(t *testing.T) {
	s := stockSnapshot()

	rotation := column(t, invoke(t, turnoverSeries, s, lastJuneWeek), "Rotation")
	assert.Equal(t, 1.1, rotation["2024-06-30"])
	// stock value scaled by 61/140 on 06-24
	assert.Equal(t, 2.52, rotation["2024-06-24"])

	i2s := column(t, invoke(t, inventoryToSalesSeries, s, lastJuneWeek), "I2S")
	assert.Equal(t, 0.91, i2s["2024-06-30"])

	rent := column(t, invoke(t, profitabilitySeries, s, lastJuneWeek), "Rentabilité")
	assert.Equal(t, 0.33, rent["2024-06-30"])
}

func TestStockoutSeries(t *testing.T) {
	rupture := column(t, invoke(t, stockoutSeries, stockSnapshot(), lastJuneWeek), "Rupture %")
	assert.Equal(t, 20.0, rupture["2024-06-30"])
	// the 15 units of product 2 only leave on 06-25
	assert.Equal(t, 40.0, rupture["2024-06-24"])
}

func TestShelfLifeAndShrinkageSeries(t *testing.T) {
	s := stockSnapshot()

	life := column(t, invoke(t, shelfLifeSeries, s, lastJuneWeek), "Avg days")
	assert.Equal(t, 70.0, life["2024-06-30"])
	assert.Equal(t, 76.0, life["2024-06-24"])

	lost := column(t, invoke(t, shrinkageSeries, s, lastJuneWeek), "Quantité")
	assert.Equal(t, 3.0, lost["2024-06-27"])
	assert.Equal(t, 2.0, lost["2024-06-28"])
	assert.Equal(t, 0.0, lost["2024-06-26"])
}

func TestStockSeries_EmptySnapshotPlotsZeros(t *testing.T) {
	fixClock(t, "2024-06-30")
	got := invoke(t, stockAvailableSeries, model.Snapshot{}, model.Params{})
	points := got.([]model.Row)
	require.Len(t, points, seriesDays)
	assert.Equal(t, "2024-06-24", points[0].String("day"))
	assert.Equal(t, 0.0, points[0]["Disponible"])
}

func TestSupplierSeries(t *testing.T) {
	s := supplierSnapshot()
	p := model.Params{"start_date": "2024-03-08", "end_date": "2024-03-31"}

	onTime := column(t, invoke(t, supplierSeries("On-Time %", onTimeOver), s, p), "On-Time %")
	assert.Equal(t, 0.0, onTime["2024-03-08"], "no receipt yet")
	assert.Equal(t, 100.0, onTime["2024-03-09"])
	assert.Equal(t, 33.33, onTime["2024-03-31"])

	lead := column(t, invoke(t, supplierSeries("Lead time (j)", leadTimeOver), s, p), "Lead time (j)")
	assert.Equal(t, 9.0, lead["2024-03-31"])

	ratio := column(t, invoke(t, supplierSeries("Transport/Commande", transportRatioOver), s, p), "Transport/Commande")
	// order 1 was placed on 03-01, outside the 30 days ending 03-31
	assert.Equal(t, 0.2, ratio["2024-03-31"])
}

func TestSupplierSeries_DefaultsToLatestSupplierDate(t *testing.T) {
	fixClock(t, "2030-01-01")
	got := invoke(t, supplierSeries("Retours %", returnsOver), supplierSnapshot(), model.Params{})
	points := got.([]model.Row)
	require.Len(t, points, seriesDays)
	assert.Equal(t, "2024-03-19", points[0].String("day"))
	assert.Equal(t, "2024-03-25", points[len(points)-1].String("day"))
}
