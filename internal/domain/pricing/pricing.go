// Package pricing aggregates variant prices into per-region minimums.
package pricing

import "github.com/opalgrove/catdex/internal/domain/catalog"

// DefaultCurrency is used when no price carries a currency.
const DefaultCurrency = "usd"

// RegionPrice is the resolved minimum price for one region.
type RegionPrice struct {
	MinPrice     int64
	CurrencyCode string
}

// Result holds per-region minimums plus the overall price envelope.
// DefaultPrice is the global minimum; DefaultCurrency is the first
// non-empty currency observed. With no prices everything is zero and
// the currency falls back to "usd".
type Result struct {
	RegionPrices    map[string]RegionPrice
	MinPrice        int64
	MaxPrice        int64
	DefaultPrice    int64
	DefaultCurrency string
}

// Aggregate computes region minimums from a variant price list.
// A region-tagged price counts toward that region only; an untagged price
// applies to every region sharing its currency. Both sources compete on a
// strict numeric minimum. Negative amounts are skipped.
func Aggregate(prices []catalog.Price, regions []catalog.Region) Result {
	res := Result{
		RegionPrices:    make(map[string]RegionPrice),
		DefaultCurrency: DefaultCurrency,
	}

	currencyRegions := make(map[string][]catalog.Region, len(regions))
	for _, r := range regions {
		if r.ID == "" || r.CurrencyCode == "" {
			continue
		}
		currencyRegions[r.CurrencyCode] = append(currencyRegions[r.CurrencyCode], r)
	}

	currencySet := false
	seen := false

	for _, p := range prices {
		if p.Amount < 0 {
			continue
		}
		if !currencySet && p.CurrencyCode != "" {
			res.DefaultCurrency = p.CurrencyCode
			currencySet = true
		}

		if !seen || p.Amount < res.MinPrice {
			res.MinPrice = p.Amount
		}
		if !seen || p.Amount > res.MaxPrice {
			res.MaxPrice = p.Amount
		}
		seen = true

		if p.RegionID != "" {
			updateRegionMin(res.RegionPrices, p.RegionID, p.Amount, p.CurrencyCode)
			continue
		}
		for _, r := range currencyRegions[p.CurrencyCode] {
			updateRegionMin(res.RegionPrices, r.ID, p.Amount, p.CurrencyCode)
		}
	}

	res.DefaultPrice = res.MinPrice
	return res
}

func updateRegionMin(m map[string]RegionPrice, regionID string, amount int64, currency string) {
	existing, ok := m[regionID]
	if !ok || amount < existing.MinPrice {
		m[regionID] = RegionPrice{MinPrice: amount, CurrencyCode: currency}
	}
}
