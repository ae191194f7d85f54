// Package domain models a single farming season: the crop catalog, the
// decisions a player makes, the climate the season is played against, and
// the scoring model that turns all of it into a yield and a sustainability
// score.
//
// # Crop Catalog
//
// Crop profiles are static reference data embedded as catalog.yaml and parsed
// once on first use. Each profile carries:
//
//	base_yield          tons/hectare under optimal conditions
//	water_need          mm of water the crop needs over the season
//	fertilizer_optimum  kg/hectare at which fertilizer helps the most
//	drought_resistant   true when low rainfall does not threaten the crop
//
// Loading rejects non-positive water_need and fertilizer_optimum because both
// appear as divisors in the yield model.
//
// # Yield Model
//
// Yield is the product of the crop's base yield and three factors:
//
//	fertilizer:  1 + 0.2 * (1 - |fertilizer - optimum| / optimum)
//	water:       min(1.5, (rainfall + irrigation) / water_need),
//	             then * 0.8 when total water exceeds 1.2 * water_need
//	temperature: 1 - max(0, (temperature - 25) / 50)
//
// The fertilizer factor is linear in the deviation from the optimum and is not
// clamped, so heavy over-application can drive it negative. The overuse cut is
// applied after the 1.5 cap as a separate stage: past 1.2 * water_need the
// factor drops by a flat 20%. The final product is clamped at zero.
//
// # Sustainability Model
//
// The score starts at 100 and loses independent deductions:
//
//	-30  rainfall + irrigation > 1.5 * water_need
//	-20  fertilizer > 1.5 * fertilizer_optimum
//	-10  rainfall < 0.5 * water_need on a crop that is not drought resistant
//
// and is clamped at zero.
//
// # Climate
//
// The scoring model only ever sees two scalars: average rainfall (mm) and
// average temperature (°C). They come from the arithmetic mean of a provider
// series or, when the provider is unavailable, from a fixed fallback pair of
// 100 mm and 25 °C. See [Summarize] and [FallbackClimate].
package domain
