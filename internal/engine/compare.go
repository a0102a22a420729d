package engine

import (
	"fmt"
	"math"

	"github.com/dm/memwatch/internal/format"
	"github.com/dm/memwatch/internal/model"
)

const (
	// spaceChangePoints is the utilisation movement, in percentage points,
	// above which a region appears in a comparison.
	spaceChangePoints = 5.0
	// spaceRiseRecommendPoints raises a SPACE_UTILIZATION recommendation.
	spaceRiseRecommendPoints = 20.0
	// heapGrowthRecommendBytes raises a MEMORY_GROWTH recommendation.
	heapGrowthRecommendBytes = 10 * bytesPerMB
)

// compareSnapshots is the pure comparison of s2 against baseline s1.
func compareSnapshots(s1, s2 model.Snapshot) model.Comparison {
	cmp := model.Comparison{
		Snapshot1:        s1.Ref(),
		Snapshot2:        s2.Ref(),
		TimeDifferenceMs: s2.Timestamp.Sub(s1.Timestamp).Milliseconds(),
		MemoryChanges: model.MemoryChanges{
			HeapUsed:  memoryChange(s1.HeapUsed, s2.HeapUsed),
			HeapTotal: memoryChange(s1.HeapTotal, s2.HeapTotal),
		},
		SpaceChanges:    []model.SpaceChange{},
		Recommendations: []model.Recommendation{},
	}

	after := make(map[string]model.Region, len(s2.Regions))
	for _, r := range s2.Regions {
		after[r.Name] = r
	}
	for _, r1 := range s1.Regions {
		r2, ok := after[r1.Name]
		if !ok {
			continue
		}
		before, now := regionUsage(r1), regionUsage(r2)
		delta := now.Utilization - before.Utilization
		if math.Abs(delta) <= spaceChangePoints {
			continue
		}
		cmp.SpaceChanges = append(cmp.SpaceChanges, model.SpaceChange{
			Name:              r1.Name,
			UtilizationChange: delta,
			Before:            before,
			After:             now,
		})
	}

	if growth := cmp.MemoryChanges.HeapUsed.Change; growth > heapGrowthRecommendBytes {
		cmp.Recommendations = append(cmp.Recommendations, model.Recommendation{
			Priority: model.PriorityHigh,
			Category: model.CategoryMemoryGrowth,
			Message:  fmt.Sprintf("Significant heap growth of %s between snapshots", format.FormatDelta(growth)),
			Action:   "Review recent allocations and look for retained objects",
		})
	}
	for _, sc := range cmp.SpaceChanges {
		if sc.UtilizationChange <= spaceRiseRecommendPoints {
			continue
		}
		cmp.Recommendations = append(cmp.Recommendations, model.Recommendation{
			Priority: model.PriorityMedium,
			Category: model.CategorySpaceUtilization,
			Message:  fmt.Sprintf("Utilization of %s rose by %.1f points", sc.Name, sc.UtilizationChange),
			Action:   "Monitor this region",
			Region:   sc.Name,
		})
	}
	return cmp
}

func memoryChange(before, after uint64) model.MemoryChange {
	change := int64(after) - int64(before)
	return model.MemoryChange{
		Before:     before,
		After:      after,
		Change:     change,
		Percentage: safeDivide(float64(change), float64(before)) * 100,
	}
}

func regionUsage(r model.Region) model.RegionUsage {
	return model.RegionUsage{
		Used:        r.UsedSize,
		Total:       r.TotalSize,
		Utilization: safeDivide(float64(r.UsedSize), float64(r.TotalSize)) * 100,
	}
}
