// Package analytics computes read-only aggregates over data already
// materialised by the repositories. Every function tolerates empty input and
// returns zeroed aggregates, never an error.
package analytics

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/stockpoint/stockpoint/internal/catalog"
	"github.com/stockpoint/stockpoint/internal/inventory"
	"github.com/stockpoint/stockpoint/internal/sales"
)

// CategoryTotal summarises one product category.
type CategoryTotal struct {
	Category     string          `json:"category"`
	Products     int             `json:"products"`
	UnitsInStock int             `json:"units_in_stock"`
	StockValue   decimal.Decimal `json:"stock_value"`
}

// ComputeCategoryTotals groups products by category, ordered by stock value
// descending.
func ComputeCategoryTotals(products []catalog.Product) []CategoryTotal {
	lookup := map[string]CategoryTotal{}
	for _, p := range products {
		entry := lookup[p.Category]
		entry.Category = p.Category
		entry.Products++
		entry.UnitsInStock += p.StockQuantity
		entry.StockValue = entry.StockValue.Add(p.Price.Mul(decimal.NewFromInt(int64(p.StockQuantity))))
		lookup[p.Category] = entry
	}
	totals := make([]CategoryTotal, 0, len(lookup))
	for _, entry := range lookup {
		totals = append(totals, entry)
	}
	sort.Slice(totals, func(i, j int) bool {
		if !totals[i].StockValue.Equal(totals[j].StockValue) {
			return totals[i].StockValue.GreaterThan(totals[j].StockValue)
		}
		return totals[i].Category < totals[j].Category
	})
	return totals
}

// BestSeller is one product's sales ranking entry.
type BestSeller struct {
	ProductID      int64           `json:"product_id"`
	ProductName    string          `json:"product_name"`
	ProductBarcode string          `json:"product_barcode"`
	QuantitySold   int             `json:"quantity_sold"`
	Revenue        decimal.Decimal `json:"revenue"`
}

// ComputeBestSellers ranks products by summed line quantity across non-voided
// sales, revenue as tiebreaker. topN <= 0 returns the full ranking.
func ComputeBestSellers(salesList []sales.Sale, topN int) []BestSeller {
	lookup := map[int64]BestSeller{}
	for _, sale := range salesList {
		if sale.IsVoided {
			continue
		}
		for _, item := range sale.Items {
			entry := lookup[item.ProductID]
			entry.ProductID = item.ProductID
			entry.ProductName = item.ProductName
			entry.ProductBarcode = item.ProductBarcode
			entry.QuantitySold += item.Quantity
			entry.Revenue = entry.Revenue.Add(item.TotalPrice)
			lookup[item.ProductID] = entry
		}
	}
	ranking := make([]BestSeller, 0, len(lookup))
	for _, entry := range lookup {
		ranking = append(ranking, entry)
	}
	sort.Slice(ranking, func(i, j int) bool {
		if ranking[i].QuantitySold != ranking[j].QuantitySold {
			return ranking[i].QuantitySold > ranking[j].QuantitySold
		}
		return ranking[i].Revenue.GreaterThan(ranking[j].Revenue)
	})
	if topN > 0 && len(ranking) > topN {
		ranking = ranking[:topN]
	}
	return ranking
}

// VarianceLeader is one product's counting-variance ranking entry.
type VarianceLeader struct {
	ProductID      int64  `json:"product_id"`
	ProductName    string `json:"product_name"`
	ProductBarcode string `json:"product_barcode"`
	NetVariance    int    `json:"net_variance"`
	AbsVariance    int    `json:"abs_variance"`
	Sessions       int    `json:"sessions"`
}

// ComputeVarianceLeaders ranks products by accumulated absolute variance
// across counting sessions. topN <= 0 returns the full ranking.
func ComputeVarianceLeaders(counts []inventory.Count, topN int) []VarianceLeader {
	lookup := map[int64]VarianceLeader{}
	for _, c := range counts {
		entry := lookup[c.ProductID]
		entry.ProductID = c.ProductID
		entry.ProductName = c.ProductName
		entry.ProductBarcode = c.ProductBarcode
		entry.NetVariance += c.Variance
		entry.AbsVariance += abs(c.Variance)
		entry.Sessions++
		lookup[c.ProductID] = entry
	}
	leaders := make([]VarianceLeader, 0, len(lookup))
	for _, entry := range lookup {
		leaders = append(leaders, entry)
	}
	sort.Slice(leaders, func(i, j int) bool {
		if leaders[i].AbsVariance != leaders[j].AbsVariance {
			return leaders[i].AbsVariance > leaders[j].AbsVariance
		}
		return leaders[i].ProductID < leaders[j].ProductID
	})
	if topN > 0 && len(leaders) > topN {
		leaders = leaders[:topN]
	}
	return leaders
}

// Period selects the rollup bucket size.
type Period string

const (
	// PeriodDay buckets by calendar day.
	PeriodDay Period = "day"
	// PeriodWeek buckets by ISO week starting Monday.
	PeriodWeek Period = "week"
	// PeriodMonth buckets by calendar month.
	PeriodMonth Period = "month"
)

// Rollup is one time bucket of sales totals. Voided sales are excluded.
type Rollup struct {
	Start    time.Time       `json:"start"`
	Sales    int             `json:"sales"`
	Subtotal decimal.Decimal `json:"subtotal"`
	Tax      decimal.Decimal `json:"tax"`
	Total    decimal.Decimal `json:"total"`
}

// ComputeRollup buckets non-voided sales by period, oldest bucket first.
func ComputeRollup(salesList []sales.Sale, period Period) []Rollup {
	lookup := map[time.Time]Rollup{}
	for _, sale := range salesList {
		if sale.IsVoided {
			continue
		}
		start := bucketStart(sale.Timestamp.UTC(), period)
		entry := lookup[start]
		entry.Start = start
		entry.Sales++
		entry.Subtotal = entry.Subtotal.Add(sale.Subtotal)
		entry.Tax = entry.Tax.Add(sale.Tax)
		entry.Total = entry.Total.Add(sale.Total)
		lookup[start] = entry
	}
	rollups := make([]Rollup, 0, len(lookup))
	for _, entry := range lookup {
		rollups = append(rollups, entry)
	}
	sort.Slice(rollups, func(i, j int) bool {
		return rollups[i].Start.Before(rollups[j].Start)
	})
	return rollups
}

func bucketStart(ts time.Time, period Period) time.Time {
	switch period {
	case PeriodWeek:
		day := ts.Truncate(24 * time.Hour)
		weekday := int(day.Weekday())
		if weekday == 0 {
			weekday = 7
		}
		return day.AddDate(0, 0, -(weekday - 1))
	case PeriodMonth:
		return time.Date(ts.Year(), ts.Month(), 1, 0, 0, 0, 0, time.UTC)
	default:
		return ts.Truncate(24 * time.Hour)
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
