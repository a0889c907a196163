package mosaiclib

import (
	"fmt"

	"github.com/wgdzlh/mosaiclib/log"
	"github.com/wgdzlh/mosaiclib/utils"

	"github.com/lukeroth/gdal"
	"go.uber.org/zap"
)

func (g *GdalToolbox) parseShp(shp string) (ret gdal.Geometry, srid int, err error) {
	driver := gdal.OGRDriverByName(SHP_DRIVER_NAME)
	ds, ok := driver.Open(shp, 0)
	if !ok {
		err = ErrGdalDriverOpen
		return
	}
	defer ds.Destroy()
	var (
		layer   = ds.LayerByIndex(0)
		feature *gdal.Feature
		gc      []destroyable
	)
	if srid, err = g.getSrid(layer.SpatialReference()); err != nil {
		return
	}
	defer func() {
		for _, v := range gc {
			v.Destroy()
		}
	}()
	ret = gdal.Create(gdal.GT_Polygon)
	for {
		if feature = layer.NextFeature(); feature != nil {
			gc = append(gc, *feature)
			gc = append(gc, ret)
			ret = ret.Union(feature.Geometry())
		} else {
			break
		}
	}
	if ret.IsEmpty() {
		gc = append(gc, ret)
		err = ErrGdalEmptyShp
	}
	return
}

// 读取shp中所有面要素的并集作为AOI，坐标系从文件自动识别
func (g *GdalToolbox) AoiFromShapefile(shp string) (aoi Aoi, err error) {
	log.Info(g.logTag+"start parse aoi shp", zap.String("shp", shp))
	geo, srid, err := g.parseShp(shp)
	if err != nil {
		return
	}
	defer geo.Destroy()
	if gt := geo.Type(); gt != gdal.GT_Polygon && gt != gdal.GT_MultiPolygon {
		err = ErrGdalWrongGeoType
		return
	}
	aoi.Srid = srid
	aoi.Geom, err = geo.ToWKB()
	log.Info(g.logTag+"got aoi from shp", zap.String("shp", shp), zap.Int("srid", srid), zap.Bool("succeed", err == nil))
	return
}

// 从zip压缩包中解出shp并读取AOI
func (g *GdalToolbox) AoiFromShapefileZip(zipFile string) (aoi Aoi, err error) {
	dir, err := utils.GetUniqSubDir(g.tmpDir)
	if err != nil {
		return
	}
	shp, _, err := utils.GetShpInZip(zipFile, dir)
	if err != nil {
		log.Error(g.logTag+"no shp in zip", zap.String("zip", zipFile), zap.Error(err))
		return
	}
	return g.AoiFromShapefile(shp)
}

// 由WKT构造AOI
func (g *GdalToolbox) AoiFromWkt(wkt string, srid int) (aoi Aoi, err error) {
	aoi.Srid = srid
	aoi.Geom, err = g.WktToWkb(wkt, srid)
	return
}

// 由GeoJSON构造AOI（GeoJSON约定为4326坐标系）
func (g *GdalToolbox) AoiFromGeoJSON(geoJson AnyJson) (aoi Aoi, err error) {
	aoi.Srid = GEOJSON_SRID
	aoi.Geom, err = g.GeoJSONToWkb(geoJson)
	return
}

// 按属性字段筛选shp中的单个要素作为AOI；字段名找不到时尝试GBK编码回退
func (g *GdalToolbox) LookupAoiFeature(shp, field, value string) (aoi Aoi, err error) {
	return g.lookupAoiFeature(shp, field, value, false)
}

// 从zip压缩包中解出shp并按属性字段筛选AOI要素；属性编码按cpg文件标记处理
func (g *GdalToolbox) LookupAoiFeatureInZip(zipFile, field, value string) (aoi Aoi, err error) {
	dir, err := utils.GetUniqSubDir(g.tmpDir)
	if err != nil {
		return
	}
	shp, utf8, err := utils.GetShpInZip(zipFile, dir)
	if err != nil {
		log.Error(g.logTag+"no shp in zip", zap.String("zip", zipFile), zap.Error(err))
		return
	}
	return g.lookupAoiFeature(shp, field, value, utf8)
}

// utf8标记为真时属性已是UTF-8编码，跳过GBK回退
func (g *GdalToolbox) lookupAoiFeature(shp, field, value string, utf8 bool) (aoi Aoi, err error) {
	log.Info(g.logTag+"lookup aoi feature", zap.String("shp", shp), zap.String("field", field),
		zap.String("value", value), zap.Bool("utf8", utf8))
	driver := gdal.OGRDriverByName(SHP_DRIVER_NAME)
	ds, ok := driver.Open(shp, 0)
	if !ok {
		err = ErrGdalDriverOpen
		return
	}
	defer ds.Destroy()
	layer := ds.LayerByIndex(0)
	def := layer.Definition()
	fieldIdx := def.FieldIndex(field)
	if fieldIdx < 0 && !utf8 {
		fieldGbk, _ := utils.Utf8StrToGbk(field)
		fieldIdx = def.FieldIndex(fieldGbk)
	}
	if fieldIdx < 0 {
		err = fmt.Errorf(ErrColumnMissingTemplate, field)
		return
	}
	if aoi.Srid, err = g.getSrid(layer.SpatialReference()); err != nil {
		return
	}
	var (
		feature *gdal.Feature
		attr    string
		gc      []destroyable
	)
	defer func() {
		for _, v := range gc {
			v.Destroy()
		}
	}()
	for {
		if feature = layer.NextFeature(); feature == nil {
			break
		}
		gc = append(gc, *feature)
		attr = feature.FieldAsString(fieldIdx)
		if attr == "" {
			log.Warn(g.logTag+"empty attr in feature", zap.Int64("fid", feature.FID()))
			continue
		}
		if attr != value {
			if utf8 {
				continue
			}
			// 属性值可能为GBK编码
			if trans, e := utils.GbkStrToUtf8(attr); e != nil || utils.PurifyForUtf8(trans) != value {
				continue
			}
		}
		aoi.Geom, err = feature.Geometry().ToWKB()
		return
	}
	err = fmt.Errorf(ErrFeatureMissingTemplate, field, value)
	return
}
