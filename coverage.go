package mosaiclib

import (
	"github.com/wgdzlh/mosaiclib/log"
	"github.com/wgdzlh/mosaiclib/utils"

	"github.com/lukeroth/gdal"
	"go.uber.org/zap"
)

// 获取各影像范围WKB分别在AOI中的覆盖率，及镶嵌后仍未覆盖区域的GeoJSON。
// 可在读取像元之前判断待镶嵌影像能否铺满AOI。
func (g *GdalToolbox) GetAoiCoverage(aoi Aoi, footprints []GdalGeo) (ratios []float32, uncovered AnyJson, err error) {
	log.Info(g.logTag+"start get aoi coverage", zap.Int("cnt", len(footprints)))
	ref, err := g.getSridRef(aoi.Srid)
	if err != nil {
		return
	}
	district, err := g.parseWKB(aoi.Geom, ref)
	if err != nil {
		return
	}
	var (
		geo      gdal.Geometry
		unionGeo = gdal.Create(gdal.GT_Polygon)
		gc       = []destroyable{district, unionGeo}
	)
	defer func() {
		for _, v := range gc {
			v.Destroy()
		}
	}()
	var (
		aoiArea = district.Area()
		n       = len(footprints)
	)
	ratios = make([]float32, n)
	for i, fp := range footprints {
		if geo, err = g.parseWKB(fp, ref); err != nil {
			return
		}
		gc = append(gc, geo)
		inter := district.Intersection(geo)
		ratios[i] = float32(inter.Area() / aoiArea)
		gc = append(gc, inter)
		unionGeo = unionGeo.Union(geo)
		gc = append(gc, unionGeo)
	}
	inter := district.Intersection(unionGeo)
	gc = append(gc, inter)
	if float32(inter.Area()/aoiArea) < CoverageThreshold {
		diff := district.Difference(unionGeo)
		gc = append(gc, diff)
		uncovered = utils.S2B(diff.ToJSON())
	}
	log.Info(g.logTag+"got aoi coverage", zap.Any("ratios", ratios), zap.Bool("fullyCovered", uncovered == nil))
	return
}

// 获取多个影像范围WKT的集合在AOI中的总覆盖率
func (g *GdalToolbox) GetAoiCoverageRatio(aoi Aoi, footWkts []string) (ratio float32, err error) {
	ref, err := g.getSridRef(aoi.Srid)
	if err != nil {
		return
	}
	district, err := g.parseWKB(aoi.Geom, ref)
	if err != nil {
		return
	}
	var (
		subGeo   gdal.Geometry
		unionGeo = gdal.Create(gdal.GT_Polygon)
		gc       = []destroyable{district, unionGeo}
	)
	defer func() {
		for _, v := range gc {
			v.Destroy()
		}
	}()
	for _, wkt := range footWkts {
		if subGeo, err = g.parseWKT(wkt, ref); err != nil {
			return
		}
		gc = append(gc, subGeo)
		unionGeo = unionGeo.Union(subGeo)
		gc = append(gc, unionGeo)
	}
	inter := district.Intersection(unionGeo)
	gc = append(gc, inter)
	ratio = float32(inter.Area() / district.Area())
	log.Info(g.logTag+"got aoi coverage ratio", zap.Float32("ratio", ratio))
	return
}
