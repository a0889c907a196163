package mosaiclib

import (
	"math"
	"path/filepath"
	"testing"

	gdal "github.com/airbusgeo/godal"
)

func writeTestShp(t *testing.T, dir, wkt string) string {
	sr, err := gdal.NewSpatialRefFromEPSG(UNIVERSAL_SRID)
	if err != nil {
		t.Fatal(err)
	}
	defer sr.Close()
	shp := filepath.Join(dir, "aoi.shp")
	ds, err := gdal.CreateVector(gdal.Shapefile, shp)
	if err != nil {
		t.Fatal(err)
	}
	layer, err := ds.CreateLayer("aoi", sr, gdal.GTPolygon)
	if err != nil {
		t.Fatal(err)
	}
	geom, err := gdal.NewGeometryFromWKT(wkt, sr)
	if err != nil {
		t.Fatal(err)
	}
	defer geom.Close()
	if _, err = layer.NewFeature(geom); err != nil {
		t.Fatal(err)
	}
	if err = ds.Close(); err != nil {
		t.Fatal(err)
	}
	return shp
}

func TestAoiFromShapefile(t *testing.T) {
	g := NewGdalToolbox()
	span := [4]float64{113, 115, 29, 31}
	shp := writeTestShp(t, t.TempDir(), SpanToWkt(span))
	aoi, err := g.AoiFromShapefile(shp)
	if err != nil {
		t.Fatal(err)
	}
	if aoi.Srid != UNIVERSAL_SRID || len(aoi.Geom) == 0 {
		t.Fatalf("wrong aoi: srid %d, geom %d bytes", aoi.Srid, len(aoi.Geom))
	}
	got, err := g.GetWkbSpan(aoi.Geom, aoi.Srid)
	if err != nil {
		t.Fatal(err)
	}
	for i := range span {
		if math.Abs(got[i]-span[i]) > 1e-6 {
			t.Fatalf("aoi span[%d] = %v, want %v", i, got[i], span[i])
		}
	}
}
