package mosaiclib

import (
	"math"
	"testing"
)

func TestGetAoiCoverage(t *testing.T) {
	g := NewGdalToolbox()
	aoi, err := g.AoiFromWkt(PointsToWkt(0, 10, 0, 10), UNIVERSAL_SRID)
	if err != nil {
		t.Fatal(err)
	}
	left, err := g.WktToWkb(PointsToWkt(0, 5, 0, 10), UNIVERSAL_SRID)
	if err != nil {
		t.Fatal(err)
	}
	right, err := g.WktToWkb(PointsToWkt(5, 10, 0, 10), UNIVERSAL_SRID)
	if err != nil {
		t.Fatal(err)
	}
	// 两个半幅影像范围恰好铺满AOI
	ratios, uncovered, err := g.GetAoiCoverage(aoi, []GdalGeo{left, right})
	if err != nil {
		t.Fatal(err)
	}
	for i, r := range ratios {
		if math.Abs(float64(r)-0.5) > 1e-6 {
			t.Fatalf("ratio[%d] = %v, want 0.5", i, r)
		}
	}
	if uncovered != nil {
		t.Fatal("fully covered aoi should have no uncovered remainder")
	}
	// 只有左半幅时应返回未覆盖区域
	ratios, uncovered, err = g.GetAoiCoverage(aoi, []GdalGeo{left})
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(float64(ratios[0])-0.5) > 1e-6 {
		t.Fatalf("ratio = %v, want 0.5", ratios[0])
	}
	if len(uncovered) == 0 {
		t.Fatal("half covered aoi should have uncovered remainder")
	}
}

func TestGetAoiCoverageRatio(t *testing.T) {
	g := NewGdalToolbox()
	aoi, err := g.AoiFromWkt(PointsToWkt(0, 10, 0, 10), UNIVERSAL_SRID)
	if err != nil {
		t.Fatal(err)
	}
	ratio, err := g.GetAoiCoverageRatio(aoi, []string{
		PointsToWkt(0, 5, 0, 10),
		PointsToWkt(5, 10, 0, 10),
	})
	if err != nil {
		t.Fatal(err)
	}
	if ratio < CoverageThreshold {
		t.Fatalf("tiling footprints ratio = %v", ratio)
	}
	ratio, err = g.GetAoiCoverageRatio(aoi, []string{PointsToWkt(0, 5, 0, 10)})
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(float64(ratio)-0.5) > 1e-6 {
		t.Fatalf("half footprint ratio = %v, want 0.5", ratio)
	}
}
