package coverage

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/couchcryptid/aed-placement/internal/domain"
	"github.com/couchcryptid/aed-placement/internal/geo"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	refLat = 35.55
	refLon = 139.70
)

func projection(t *testing.T) geo.Projection {
	t.Helper()
	p, err := geo.NewProjection(refLat)
	require.NoError(t, err)
	return p
}

// at returns the coordinates x meters east and y meters north of the
// reference point in the test projection's frame.
func at(x, y float64) (lat, lon float64) {
	return refLat + y/geo.MetersPerDegree,
		refLon + x/(geo.MetersPerDegree*math.Cos(refLat*math.Pi/180))
}

func gridPoint(x, y, w float64) domain.GridPoint {
	lat, lon := at(x, y)
	return domain.GridPoint{Lat: lat, Lon: lon, Weight: w}
}

func facility(x, y float64) domain.Facility {
	lat, lon := at(x, y)
	return domain.Facility{Lat: lat, Lon: lon}
}

func randomPoints(rng *rand.Rand, n int, extent float64) []domain.GridPoint {
	pts := make([]domain.GridPoint, n)
	for i := range pts {
		pts[i] = gridPoint(rng.Float64()*extent, rng.Float64()*extent, 1+rng.Float64()*9)
	}
	return pts
}

func TestClassify_NoFacilities(t *testing.T) {
	c := NewClassifier(nil, projection(t), 2)
	pts := []domain.GridPoint{gridPoint(0, 0, 1), gridPoint(100, 100, 1)}

	assert.Equal(t, []bool{false, false}, c.Classify(pts, 300))
	for _, d := range c.NearestDistances(pts) {
		assert.True(t, math.IsInf(d, 1))
	}
}

func TestClassify_RadiusIsInclusive(t *testing.T) {
	c := NewClassifier([]domain.Facility{facility(0, 0)}, projection(t), 1)
	pts := []domain.GridPoint{gridPoint(299, 0, 1), gridPoint(0, 301, 1), gridPoint(0, 0, 1)}

	assert.Equal(t, []bool{true, false, true}, c.Classify(pts, 300))
}

func TestClassify_MatchesBruteForce(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 11))
	pts := randomPoints(rng, 3000, 8000)
	var facilities []domain.Facility
	for range 120 {
		facilities = append(facilities, facility(rng.Float64()*8000, rng.Float64()*8000))
	}
	proj := projection(t)
	c := NewClassifier(facilities, proj, 4)
	got := c.Classify(pts, 300)

	for i, p := range pts {
		px, py := proj.Project(p.Lat, p.Lon)
		want := false
		for _, f := range facilities {
			fx, fy := proj.Project(f.Lat, f.Lon)
			if math.Hypot(px-fx, py-fy) <= 300 {
				want = true
				break
			}
		}
		assert.Equal(t, want, got[i], "point %d", i)
	}
}

func TestClassify_Monotonic(t *testing.T) {
	rng := rand.New(rand.NewPCG(3, 5))
	pts := randomPoints(rng, 2000, 5000)
	facilities := []domain.Facility{facility(1000, 1000), facility(4000, 2500)}
	proj := projection(t)

	before := NewClassifier(facilities, proj, 2).Classify(pts, 400)
	for range 10 {
		facilities = append(facilities, facility(rng.Float64()*5000, rng.Float64()*5000))
		after := NewClassifier(facilities, proj, 2).Classify(pts, 400)
		for i := range pts {
			if before[i] {
				assert.True(t, after[i], "point %d lost coverage", i)
			}
		}
		before = after
	}
}

func TestNearestDistances_Haversine(t *testing.T) {
	f := facility(0, 0)
	c := NewClassifier([]domain.Facility{f, facility(5000, 0)}, projection(t), 1)
	p := gridPoint(300, 400, 1)

	d := c.NearestDistances([]domain.GridPoint{p})
	require.Len(t, d, 1)
	assert.InDelta(t, geo.Haversine(p.Lat, p.Lon, f.Lat, f.Lon), d[0], 1e-9)
	assert.InDelta(t, 500, d[0], 2)
}

func TestScore_SelfWeightAndNonNegative(t *testing.T) {
	rng := rand.New(rand.NewPCG(21, 8))
	pts := randomPoints(rng, 1500, 4000)
	covered := NewClassifier([]domain.Facility{facility(2000, 2000)}, projection(t), 2).Classify(pts, 300)

	cands := Scorer{Projection: projection(t), Radius: 300, Workers: 3}.Score(pts, covered, nil)

	uncovered := 0
	for _, c := range covered {
		if !c {
			uncovered++
		}
	}
	require.Len(t, cands, uncovered)
	for _, c := range cands {
		assert.False(t, covered[c.PointIndex])
		assert.GreaterOrEqual(t, c.Score, pts[c.PointIndex].Weight)
	}
	for i := 1; i < len(cands); i++ {
		assert.GreaterOrEqual(t, cands[i-1].Score, cands[i].Score)
	}
}

func TestScore_OnlyUncoveredNeighborsCount(t *testing.T) {
	pts := []domain.GridPoint{
		gridPoint(0, 0, 10),
		gridPoint(100, 0, 20),
		gridPoint(200, 0, 40),
		gridPoint(1000, 0, 5),
	}
	covered := []bool{false, true, false, false}
	regions := []domain.Region{{Name: "Kawasaki-ku"}}

	cands := Scorer{Projection: projection(t), Radius: 250, Workers: 1}.Score(pts, covered, regions)
	require.Len(t, cands, 3)

	// Points 0 and 2 tie on score and latitude; the western one wins.
	assert.Equal(t, 0, cands[0].PointIndex)
	assert.InDelta(t, 50, cands[0].Score, 1e-9)
	assert.Equal(t, 2, cands[1].PointIndex)
	assert.InDelta(t, 50, cands[1].Score, 1e-9)
	assert.Equal(t, 3, cands[2].PointIndex)
	assert.InDelta(t, 5, cands[2].Score, 1e-9)
	assert.Equal(t, "Kawasaki-ku", cands[0].Region)
}

func TestScore_TieBreakIsLatitudeThenLongitude(t *testing.T) {
	pts := []domain.GridPoint{
		gridPoint(2000, 1000, 1),
		gridPoint(1000, 1000, 1),
		gridPoint(3000, 0, 1),
	}
	covered := make([]bool, len(pts))

	cands := Scorer{Projection: projection(t), Radius: 100, Workers: 1}.Score(pts, covered, nil)
	got := []int{cands[0].PointIndex, cands[1].PointIndex, cands[2].PointIndex}
	assert.Equal(t, []int{2, 1, 0}, got)
}

func TestScore_NothingUncovered(t *testing.T) {
	pts := []domain.GridPoint{gridPoint(0, 0, 1)}
	assert.Empty(t, Scorer{Projection: projection(t), Radius: 100}.Score(pts, []bool{true}, nil))
}

func TestScore_IndependentOfWorkers(t *testing.T) {
	rng := rand.New(rand.NewPCG(99, 1))
	pts := randomPoints(rng, 4000, 6000)
	covered := make([]bool, len(pts))

	serial := Scorer{Projection: projection(t), Radius: 300, Workers: 1}.Score(pts, covered, nil)
	parallel := Scorer{Projection: projection(t), Radius: 300, Workers: 8}.Score(pts, covered, nil)

	if diff := cmp.Diff(serial, parallel); diff != "" {
		t.Errorf("scores differ (-serial +parallel):\n%s", diff)
	}
}

func TestDeduplicate_NonOverlapping(t *testing.T) {
	rng := rand.New(rand.NewPCG(5, 55))
	pts := randomPoints(rng, 3000, 6000)
	covered := make([]bool, len(pts))
	proj := projection(t)

	cands := Scorer{Projection: proj, Radius: 300, Workers: 4}.Score(pts, covered, nil)
	recs := Deduplicator{Projection: proj, ExclusionRadius: 500, Target: 20}.Deduplicate(cands)

	require.Len(t, recs, 20)
	for i, r := range recs {
		assert.Equal(t, i+1, r.Rank)
		assert.NotEmpty(t, r.ID)
		for _, o := range recs[i+1:] {
			assert.Greater(t, geo.Haversine(r.Lat, r.Lon, o.Lat, o.Lon), 500.0)
		}
	}
	for i := 1; i < len(recs); i++ {
		assert.Less(t, recs[i-1].CandidateRank, recs[i].CandidateRank)
		assert.GreaterOrEqual(t, recs[i-1].Score, recs[i].Score)
	}
}

func TestDeduplicate_SkipsSuppressedCandidates(t *testing.T) {
	mk := func(x, y, score float64) domain.Candidate {
		lat, lon := at(x, y)
		return domain.Candidate{Lat: lat, Lon: lon, Score: score}
	}
	cands := []domain.Candidate{
		mk(0, 0, 100),
		mk(200, 0, 90),  // suppressed by the first
		mk(800, 0, 80),  // accepted
		mk(1000, 0, 70), // suppressed by the third
		mk(2000, 0, 60), // accepted
	}

	recs := Deduplicator{Projection: projection(t), ExclusionRadius: 500, Target: 10}.Deduplicate(cands)
	require.Len(t, recs, 3)
	assert.Equal(t, []int{1, 3, 5}, []int{recs[0].CandidateRank, recs[1].CandidateRank, recs[2].CandidateRank})
	assert.Equal(t, []float64{100, 80, 60}, []float64{recs[0].Score, recs[1].Score, recs[2].Score})
}

func TestDeduplicate_StopsAtTarget(t *testing.T) {
	var cands []domain.Candidate
	for i := range 10 {
		lat, lon := at(float64(i)*1000, 0)
		cands = append(cands, domain.Candidate{Lat: lat, Lon: lon, Score: float64(100 - i)})
	}

	recs := Deduplicator{Projection: projection(t), ExclusionRadius: 500, Target: 4}.Deduplicate(cands)
	assert.Len(t, recs, 4)
	assert.Empty(t, Deduplicator{Projection: projection(t), ExclusionRadius: 500, Target: 4}.Deduplicate(nil))
}

// Scores are never reduced after a pick, so when the exclusion radius is
// smaller than the coverage radius two picks can claim the same weight.
func TestDeduplicate_ScoresCanDoubleCount(t *testing.T) {
	pts := []domain.GridPoint{
		gridPoint(0, 0, 1),
		gridPoint(450, 0, 1),
		gridPoint(900, 0, 1),
	}
	proj := projection(t)
	cands := Scorer{Projection: proj, Radius: 500, Workers: 1}.Score(pts, make([]bool, 3), nil)
	recs := Deduplicator{Projection: proj, ExclusionRadius: 400, Target: 3}.Deduplicate(cands)

	require.Len(t, recs, 3)
	assert.InDelta(t, 3, recs[0].Score, 1e-9)
	assert.InDelta(t, 2, recs[1].Score, 1e-9)
	assert.InDelta(t, 2, recs[2].Score, 1e-9)

	var claimed float64
	for _, r := range recs {
		claimed += r.Score
	}
	assert.Greater(t, claimed, 3.0, "total claimed weight exceeds the weight that exists")
}

func TestReport(t *testing.T) {
	regions := []domain.Region{{Name: "A"}, {Name: "rejected"}, {Name: "B"}}
	pts := []domain.GridPoint{
		{RegionIndex: 0, Weight: 10},
		{RegionIndex: 0, Weight: 10},
		{RegionIndex: 2, Weight: 5},
	}
	covered := []bool{true, false, false}
	nearest := []float64{120, 480, 900}

	got := Report(regions, pts, covered, nearest)
	require.Len(t, got, 2)

	assert.Equal(t, "A", got[0].Region)
	assert.Equal(t, 2, got[0].GridPoints)
	assert.Equal(t, 1, got[0].CoveredPoints)
	assert.InDelta(t, 0.5, got[0].CoverageRate, 1e-12)
	assert.InDelta(t, 10, got[0].CoveredWeight, 1e-12)
	assert.InDelta(t, 10, got[0].UncoveredWeight, 1e-12)
	require.NotNil(t, got[0].NearestFacility)
	assert.InDelta(t, 120, *got[0].NearestFacility, 1e-12)

	assert.Equal(t, "B", got[1].Region)
	assert.Zero(t, got[1].CoverageRate)

	s := Summarize(got, 1, 4, 2)
	assert.Equal(t, domain.Summary{
		Regions: 2, RejectedRegions: 1, Facilities: 4, GridPoints: 3, CoveredPoints: 1,
		TotalWeight: 25, CoveredWeight: 10, UncoveredWeight: 15, Candidates: 2,
	}, s)
}

func TestReport_NoFacilitiesLeavesNearestNil(t *testing.T) {
	regions := []domain.Region{{Name: "A"}}
	pts := []domain.GridPoint{{RegionIndex: 0, Weight: 1}}
	got := Report(regions, pts, []bool{false}, []float64{math.Inf(1)})
	require.Len(t, got, 1)
	assert.Nil(t, got[0].NearestFacility)
}

func TestParallelFor_VisitsEachIndexOnce(t *testing.T) {
	for _, n := range []int{0, 1, 255, 256, 1000, 4097} {
		seen := make([]int, n)
		parallelFor(n, 6, func(lo, hi int) {
			for i := lo; i < hi; i++ {
				seen[i]++
			}
		})
		for i, c := range seen {
			assert.Equal(t, 1, c, "n=%d index %d", n, i)
		}
	}
}
