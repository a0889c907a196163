package mosaiclib

import (
	"fmt"

	"github.com/wgdzlh/mosaiclib/log"

	gdal "github.com/airbusgeo/godal"
	"go.uber.org/zap"
)

// 读取影像元数据（只读头信息，不读像元）
func (g *GdalToolbox) GetRasterMeta(tif string) (meta RasterMeta, err error) {
	sds, err := gdal.Open(tif, gdal.RasterOnly())
	if err != nil {
		log.Error(g.logTag+"open tif failed", zap.String("tif", tif), zap.Error(err))
		err = ErrInvalidTif
		return
	}
	defer sds.Close()
	return g.readRasterMeta(sds, tif)
}

func (g *GdalToolbox) readRasterMeta(sds *gdal.Dataset, tif string) (meta RasterMeta, err error) {
	st := sds.Structure()
	if st.NBands == 0 {
		log.Error(g.logTag+"tif has no band", zap.String("tif", tif))
		err = ErrInvalidTif
		return
	}
	gt, err := sds.GeoTransform()
	if err != nil {
		log.Error(g.logTag+"tif has no geotransform", zap.String("tif", tif), zap.Error(err))
		err = ErrInvalidTif
		return
	}
	meta = RasterMeta{
		Path:         tif,
		Width:        st.SizeX,
		Height:       st.SizeY,
		Bands:        st.NBands,
		DataType:     st.DataType,
		GeoTransform: gt,
		Projection:   sds.Projection(),
		Extra:        sds.Metadatas(),
	}
	meta.NoData, meta.HasNoData = sds.Bands()[0].NoData()
	return
}

// 读取整景影像（各波段像元统一转为float64存储）
func (g *GdalToolbox) ReadRaster(tif string) (src *SrcRaster, err error) {
	sds, err := gdal.Open(tif, gdal.RasterOnly())
	if err != nil {
		log.Error(g.logTag+"open tif failed", zap.String("tif", tif), zap.Error(err))
		err = ErrInvalidTif
		return
	}
	defer sds.Close()
	meta, err := g.readRasterMeta(sds, tif)
	if err != nil {
		return
	}
	log.Info(g.logTag+"start read tif", zap.String("tif", tif), zap.Int("bands", meta.Bands),
		zap.Int("width", meta.Width), zap.Int("height", meta.Height), zap.String("dt", meta.DataType.String()))
	bufs := make([][]float64, meta.Bands)
	for i, band := range sds.Bands() {
		bufs[i] = make([]float64, meta.Width*meta.Height)
		if err = band.Read(0, 0, bufs[i], meta.Width, meta.Height); err != nil {
			log.Error(g.logTag+"read tif band failed", zap.Int("band", i), zap.Error(err))
			err = ErrTifReadFailed
			return
		}
	}
	src = &SrcRaster{Meta: meta, Bufs: bufs}
	return
}

// 影像的世界坐标范围 [minX, maxX, minY, maxY]
func (m *RasterMeta) Footprint() (span [4]float64) {
	gt := m.GeoTransform
	x0, y0 := gt[0], gt[3]
	x1 := gt[0] + float64(m.Width)*gt[1] + float64(m.Height)*gt[2]
	y1 := gt[3] + float64(m.Width)*gt[4] + float64(m.Height)*gt[5]
	if x0 > x1 {
		x0, x1 = x1, x0
	}
	if y0 > y1 {
		y0, y1 = y1, y0
	}
	span[0], span[1], span[2], span[3] = x0, x1, y0, y1
	return
}

// 影像范围的WKT表达（可用于覆盖率计算）
func (m *RasterMeta) FootprintWkt() string {
	return SpanToWkt(m.Footprint())
}

// 镶嵌前置校验：各景影像的数据类型、坐标系、波段数必须一致，且像元尺寸对齐。
// 校验只依赖元数据，在读取任何像元之前完成。
func (g *GdalToolbox) checkMergeInputs(metas []RasterMeta) (err error) {
	if len(metas) == 0 {
		return ErrEmptyInput
	}
	base := &metas[0]
	if base.GeoTransform[2] != 0 || base.GeoTransform[4] != 0 {
		return fmt.Errorf("%w: rotated raster %s", ErrResolutionMismatch, base.Path)
	}
	for i := 1; i < len(metas); i++ {
		m := &metas[i]
		if m.DataType != base.DataType {
			return fmt.Errorf("%w: dtype %s of %s", ErrIncompatibleRaster, m.DataType.String(), m.Path)
		}
		if m.Bands != base.Bands {
			return fmt.Errorf("%w: band count %d of %s", ErrIncompatibleRaster, m.Bands, m.Path)
		}
		same, e := g.sameProjection(base.Projection, m.Projection)
		if e != nil {
			return e
		}
		if !same {
			return fmt.Errorf("%w: CRS of %s", ErrIncompatibleRaster, m.Path)
		}
		if !floatEq(m.GeoTransform[1], base.GeoTransform[1]) || !floatEq(m.GeoTransform[5], base.GeoTransform[5]) ||
			m.GeoTransform[2] != 0 || m.GeoTransform[4] != 0 {
			return fmt.Errorf("%w: pixel size of %s", ErrResolutionMismatch, m.Path)
		}
	}
	return
}

// 比较两个WKT坐标系是否等价（文本一致时无需解析）
func (g *GdalToolbox) sameProjection(wktA, wktB string) (same bool, err error) {
	if wktA == wktB {
		same = true
		return
	}
	if wktA == "" || wktB == "" {
		return
	}
	refA, err := gdal.NewSpatialRefFromWKT(wktA)
	if err != nil {
		err = ErrUnsupportedCRS
		return
	}
	defer refA.Close()
	refB, err := gdal.NewSpatialRefFromWKT(wktB)
	if err != nil {
		err = ErrUnsupportedCRS
		return
	}
	defer refB.Close()
	same = refA.IsSame(refB)
	return
}

func floatEq(a, b float64) bool {
	d := a - b
	return d < resolutionEps && d > -resolutionEps
}
