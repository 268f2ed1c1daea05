// Package money keeps every amount at cent precision. Postgres columns and
// gateway requests carry minor units, so prices, fees and totals are rounded
// once on the way in and converted with the same helpers on the way out.
package money

import "github.com/shopspring/decimal"

const places = 2

// Cents rounds half away from zero to two decimals.
func Cents(d decimal.Decimal) decimal.Decimal { return d.Round(places) }

// Minor converts an amount to the smallest currency unit.
func Minor(d decimal.Decimal) int64 { return d.Shift(places).Round(0).IntPart() }

func FromMinor(v int64) decimal.Decimal { return decimal.New(v, -places) }
