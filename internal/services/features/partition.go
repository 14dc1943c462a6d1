package features

import (
	"sort"

	"CryptoVol/internal/domain/models"
)

// partition holds the positions of one asset's rows, in date order.
type partition struct {
	asset string
	rows  []int
}

// sortedOrder returns row positions ordered by asset, then date. Missing
// assets and missing dates sort last; ties keep their input order.
func sortedOrder(rows []models.TimeSeriesRow) []int {
	order := make([]int, len(rows))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		ra, rb := rows[order[a]], rows[order[b]]
		if ra.Asset != rb.Asset {
			if ra.Asset == "" || rb.Asset == "" {
				return rb.Asset == ""
			}
			return ra.Asset < rb.Asset
		}
		if ra.HasDate() != rb.HasDate() {
			return ra.HasDate()
		}
		return ra.Date.Before(rb.Date)
	})
	return order
}

// partitionByAsset splits a sorted order into contiguous per-asset runs.
// Rows without an asset are returned separately; they belong to no partition.
func partitionByAsset(rows []models.TimeSeriesRow, order []int) (parts []partition, orphans []int) {
	for _, idx := range order {
		asset := rows[idx].Asset
		if asset == "" {
			orphans = append(orphans, idx)
			continue
		}
		if n := len(parts); n == 0 || parts[n-1].asset != asset {
			parts = append(parts, partition{asset: asset})
		}
		p := &parts[len(parts)-1]
		p.rows = append(p.rows, idx)
	}
	return parts, orphans
}
