package mosaiclib

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	gdal "github.com/airbusgeo/godal"
)

func gradientSrc(w, h int) *SrcRaster {
	s := testSrc(0, float64(h), w, h, 0)
	for r := 0; r < h; r++ {
		for c := 0; c < w; c++ {
			s.Bufs[0][r*w+c] = float64(r*w + c)
		}
	}
	return s
}

func TestMaskWindow(t *testing.T) {
	mask := make([]byte, 10*10)
	for r := 2; r < 7; r++ {
		for c := 3; c < 9; c++ {
			mask[r*10+c] = 1
		}
	}
	win, ok := maskWindow(mask, 10, 10)
	if !ok || win != [4]int{3, 2, 6, 5} {
		t.Fatalf("wrong window: %v %v", win, ok)
	}
	if _, ok = maskWindow(make([]byte, 100), 10, 10); ok {
		t.Fatal("empty mask should have no window")
	}
}

func TestShiftTransform(t *testing.T) {
	gt := shiftTransform([6]float64{100, 2, 0, 300, 0, -2}, 10, 5)
	if gt != [6]float64{120, 2, 0, 290, 0, -2} {
		t.Fatalf("wrong transform: %v", gt)
	}
}

func TestApplyMaskFullCover(t *testing.T) {
	// AOI铺满影像范围时裁剪应为恒等操作
	src := gradientSrc(40, 40)
	mask := make([]byte, 40*40)
	for i := range mask {
		mask[i] = 1
	}
	out := applyMask(src, mask, [4]int{0, 0, 40, 40}, ClipOptions{})
	if out.Meta.GeoTransform != src.Meta.GeoTransform {
		t.Fatalf("geotransform changed: %v", out.Meta.GeoTransform)
	}
	if !reflect.DeepEqual(out.Bufs, src.Bufs) {
		t.Fatal("full-cover clip changed pixels")
	}
}

func TestApplyMaskHalf(t *testing.T) {
	// AOI为影像左半幅时，裁剪结果应为100×200的子区域原值
	const w, h = 200, 200
	src := gradientSrc(w, h)
	mask := make([]byte, w*h)
	for r := 0; r < h; r++ {
		for c := 0; c < w/2; c++ {
			mask[r*w+c] = 1
		}
	}
	win, ok := maskWindow(mask, w, h)
	if !ok || win != [4]int{0, 0, w / 2, h} {
		t.Fatalf("wrong window: %v", win)
	}
	out := applyMask(src, mask, win, ClipOptions{NoData: -1})
	if out.Meta.Width != w/2 || out.Meta.Height != h {
		t.Fatalf("wrong clip size: %dx%d", out.Meta.Width, out.Meta.Height)
	}
	for r := 0; r < h; r++ {
		for c := 0; c < w/2; c++ {
			if out.Bufs[0][r*w/2+c] != src.Bufs[0][r*w+c] {
				t.Fatalf("pixel (%d,%d) differs", c, r)
			}
		}
	}
}

func TestApplyMaskFill(t *testing.T) {
	src := gradientSrc(10, 10)
	mask := make([]byte, 100)
	for r := 0; r < 10; r++ {
		mask[r*10+r] = 1 // 对角线
	}
	out := applyMask(src, mask, [4]int{0, 0, 10, 10}, ClipOptions{NoData: -1})
	if out.Bufs[0][0] != 0 || out.Bufs[0][11] != 11 {
		t.Fatal("inside pixels should keep value")
	}
	if out.Bufs[0][1] != -1 {
		t.Fatalf("outside pixel = %v, want nodata", out.Bufs[0][1])
	}
	// CropOnly模式不做掩膜填充
	out = applyMask(src, mask, [4]int{0, 0, 10, 10}, ClipOptions{NoData: -1, CropOnly: true})
	if !reflect.DeepEqual(out.Bufs, src.Bufs) {
		t.Fatal("crop-only clip changed pixels")
	}
}

func TestClipSource(t *testing.T) {
	g := NewGdalToolbox()
	sr, err := gdal.NewSpatialRefFromEPSG(UNIVERSAL_SRID)
	if err != nil {
		t.Fatal(err)
	}
	defer sr.Close()
	wkt, err := sr.WKT()
	if err != nil {
		t.Fatal(err)
	}
	src := gradientSrc(50, 50)
	src.Meta.Projection = wkt

	aoi, err := g.AoiFromWkt(PointsToWkt(0, 50, 0, 50), UNIVERSAL_SRID)
	if err != nil {
		t.Fatal(err)
	}
	out, err := g.ClipSource(src, aoi, ClipOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if out.Meta.Width != 50 || out.Meta.Height != 50 {
		t.Fatalf("full-bbox clip resized: %dx%d", out.Meta.Width, out.Meta.Height)
	}
	if !reflect.DeepEqual(out.Bufs, src.Bufs) {
		t.Fatal("full-bbox clip changed pixels")
	}

	// 与影像无交集的AOI
	aoi, err = g.AoiFromWkt(PointsToWkt(100, 120, 100, 120), UNIVERSAL_SRID)
	if err != nil {
		t.Fatal(err)
	}
	if _, err = g.ClipSource(src, aoi, ClipOptions{}); !errors.Is(err, ErrEmptyIntersection) {
		t.Fatalf("disjoint aoi err = %v", err)
	}

	// 坐标系不一致
	aoi.Srid = WEB_MERC_SRID
	if _, err = g.ClipSource(src, aoi, ClipOptions{}); !errors.Is(err, ErrCRSMismatch) {
		t.Fatalf("crs mismatch err = %v", err)
	}
}

func TestClipRasterDisjointAoi(t *testing.T) {
	dir := t.TempDir()
	g := NewGdalToolbox(dir)
	sr, err := gdal.NewSpatialRefFromEPSG(UNIVERSAL_SRID)
	if err != nil {
		t.Fatal(err)
	}
	defer sr.Close()
	wkt, err := sr.WKT()
	if err != nil {
		t.Fatal(err)
	}
	src := gradientSrc(20, 20)
	src.Meta.Projection = wkt
	in := filepath.Join(dir, "mosaic.tif")
	if err = g.WriteRaster(src, in); err != nil {
		t.Fatal(err)
	}
	aoi, err := g.AoiFromWkt(PointsToWkt(100, 120, 100, 120), UNIVERSAL_SRID)
	if err != nil {
		t.Fatal(err)
	}
	// 范围判交在读取像元之前完成，且失败时不产生输出文件
	out := filepath.Join(dir, "clip.tif")
	if err = g.ClipRaster(in, aoi, out, ClipOptions{}); !errors.Is(err, ErrEmptyIntersection) {
		t.Fatalf("disjoint aoi err = %v", err)
	}
	if _, err = os.Stat(out); !os.IsNotExist(err) {
		t.Fatal("clip output should not exist")
	}
}
