// Package domain models the inputs and outputs of an AED placement run.
//
// # Inputs
//
// Regions are administrative areas (town blocks, wards) with a boundary
// polygon and an aggregate population weight. The weight is supplied by the
// caller; it is usually a risk-weighted population, see [RiskWeightedPopulation].
// Boundaries use GeoJSON axis order: X is longitude, Y is latitude.
//
// Facilities are installed AEDs. Coordinates must be finite; records with
// missing coordinates are dropped by the loaders before a run starts.
//
// # Derived data
//
// A run samples every region into [GridPoint]s, classifies each point as
// covered or uncovered against the existing facilities, scores each uncovered
// point as a [Candidate], and reduces the candidates to a ranked list of
// [Recommendation]s. None of the derived data outlives the run except the
// [Result] handed to sinks.
//
// # Radii
//
// Two distances are in play and must not be mixed up:
//
//	CoverageRadiusMeters   how far an AED serves; used for classification and scoring
//	ExclusionRadiusMeters  minimum spacing between two accepted recommendations
//
// # Scoring caveat
//
// Scores are computed once, before deduplication. A recommendation accepted
// second may count population already served by the first one when the two
// lie further apart than the exclusion radius but closer than twice the
// coverage radius. This is a single-pass approximation of maximum coverage,
// not an incremental greedy solver.
package domain
