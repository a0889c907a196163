package mosaiclib

import (
	"github.com/wgdzlh/mosaiclib/log"

	gdal "github.com/airbusgeo/godal"
	"go.uber.org/zap"
)

// 按AOI裁剪影像tif，输出GeoTIFF。
// AOI坐标系须与影像一致（可先经ReprojectAoi转换），否则返回ErrCRSMismatch。
func (g *GdalToolbox) ClipRaster(in string, aoi Aoi, out string, opt ClipOptions) (err error) {
	log.Info(g.logTag+"start clip tif", zap.String("in", in), zap.Int("srid", aoi.Srid), zap.String("out", out))
	meta, err := g.GetRasterMeta(in)
	if err != nil {
		return
	}
	// 坐标系与范围校验先于像元读取
	if err = g.checkAoiCrs(&meta, aoi); err != nil {
		return
	}
	if err = g.checkAoiSpan(meta.Footprint(), aoi); err != nil {
		return
	}
	src, err := g.ReadRaster(in)
	if err != nil {
		return
	}
	clipped, err := g.ClipSource(src, aoi, opt)
	if err != nil {
		return
	}
	return g.WriteRaster(clipped, out)
}

// 按AOI裁剪内存中的影像：
// 先在影像像元格网上栅格化AOI掩膜，取掩膜内像元的最小外接窗口为裁剪范围，
// 窗口内、面外的像元填充nodata（CropOnly模式下保留原值）。
func (g *GdalToolbox) ClipSource(src *SrcRaster, aoi Aoi, opt ClipOptions) (out *SrcRaster, err error) {
	if err = g.checkAoiCrs(&src.Meta, aoi); err != nil {
		return
	}
	if err = g.checkAoiSpan(src.Meta.Footprint(), aoi); err != nil {
		return
	}
	mask, err := g.rasterizeAoiMask(&src.Meta, aoi, opt.Rule)
	if err != nil {
		return
	}
	win, ok := maskWindow(mask, src.Meta.Width, src.Meta.Height)
	if !ok {
		log.Warn(g.logTag+"aoi does not touch raster", zap.String("tif", src.Meta.Path))
		err = ErrEmptyIntersection
		return
	}
	log.Info(g.logTag+"clip window", zap.Ints("win", win[:]))
	out = applyMask(src, mask, win, opt)
	return
}

// AOI范围与影像范围先行判交，不触及时直接返回ErrEmptyIntersection，
// 无需栅格化（更无需读取像元）
func (g *GdalToolbox) checkAoiSpan(span [4]float64, aoi Aoi) (err error) {
	aoiSpan, err := g.GetWkbSpan(aoi.Geom, aoi.Srid)
	if err != nil {
		return
	}
	if _, sect := IntersectSpan(aoiSpan, span); !sect {
		log.Warn(g.logTag+"aoi span outside raster", zap.Float64s("aoiSpan", aoiSpan[:]))
		err = ErrEmptyIntersection
	}
	return
}

func (g *GdalToolbox) checkAoiCrs(meta *RasterMeta, aoi Aoi) (err error) {
	if meta.Projection == "" {
		return ErrCRSMismatch
	}
	ref, err := g.getSridRef(aoi.Srid)
	if err != nil {
		return
	}
	wkt, err := ref.ToWKT()
	if err != nil {
		return ErrUnsupportedCRS
	}
	same, err := g.sameProjection(meta.Projection, wkt)
	if err != nil {
		return
	}
	if !same {
		log.Error(g.logTag+"aoi srid differs from raster CRS", zap.Int("srid", aoi.Srid))
		err = ErrCRSMismatch
	}
	return
}

// 在影像格网上栅格化AOI，面内像元为1，其余为0
func (g *GdalToolbox) rasterizeAoiMask(meta *RasterMeta, aoi Aoi, rule MaskRule) (mask []byte, err error) {
	mem, err := gdal.Create(gdal.Memory, "", 1, gdal.Byte, meta.Width, meta.Height)
	if err != nil {
		log.Error(g.logTag+"create mem mask failed", zap.Error(err))
		return
	}
	defer mem.Close()
	if err = mem.SetGeoTransform(meta.GeoTransform); err != nil {
		return
	}
	sr, err := gdal.NewSpatialRefFromEPSG(aoi.Srid)
	if err != nil {
		err = ErrUnsupportedCRS
		return
	}
	defer sr.Close()
	if err = mem.SetSpatialRef(sr); err != nil {
		return
	}
	geo, err := gdal.NewGeometryFromWKB(aoi.Geom, sr)
	if err != nil {
		log.Error(g.logTag+"parse aoi wkb failed", zap.Error(err))
		err = ErrGdalWrongGeoType
		return
	}
	defer geo.Close()
	opts := []gdal.RasterizeGeometryOption{gdal.Values(1)}
	if rule == MaskAllTouched {
		opts = append(opts, gdal.AllTouched())
	}
	if err = mem.RasterizeGeometry(geo, opts...); err != nil {
		log.Error(g.logTag+"rasterize aoi failed", zap.Error(err))
		return
	}
	mask = make([]byte, meta.Width*meta.Height)
	err = mem.Read(0, 0, mask, meta.Width, meta.Height)
	return
}

// 掩膜内像元的最小外接窗口 [x0, y0, width, height]
func maskWindow(mask []byte, w, h int) (win [4]int, ok bool) {
	x0, y0, x1, y1 := w, h, -1, -1
	for r := 0; r < h; r++ {
		base := r * w
		for c := 0; c < w; c++ {
			if mask[base+c] == 0 {
				continue
			}
			if c < x0 {
				x0 = c
			}
			if c > x1 {
				x1 = c
			}
			if r < y0 {
				y0 = r
			}
			y1 = r
		}
	}
	if x1 < 0 {
		return
	}
	win = [4]int{x0, y0, x1 - x0 + 1, y1 - y0 + 1}
	ok = true
	return
}

// 按窗口裁剪并按掩膜填充nodata，纯函数
func applyMask(src *SrcRaster, mask []byte, win [4]int, opt ClipOptions) (out *SrcRaster) {
	var (
		x0, y0, cw, ch = win[0], win[1], win[2], win[3]
		meta           = src.Meta
		noData         = opt.NoData
	)
	if meta.HasNoData {
		noData = meta.NoData
	}
	meta.Path = ""
	meta.Width = cw
	meta.Height = ch
	meta.GeoTransform = shiftTransform(meta.GeoTransform, x0, y0)
	meta.NoData = noData
	meta.HasNoData = true
	out = &SrcRaster{Meta: meta, Bufs: make([][]float64, len(src.Bufs))}
	for b, buf := range src.Bufs {
		dst := make([]float64, cw*ch)
		for r := 0; r < ch; r++ {
			si := (y0+r)*src.Meta.Width + x0
			di := r * cw
			copy(dst[di:di+cw], buf[si:si+cw])
			if opt.CropOnly {
				continue
			}
			for c := 0; c < cw; c++ {
				if mask[si+c] == 0 {
					dst[di+c] = noData
				}
			}
		}
		out.Bufs[b] = dst
	}
	return
}

// 窗口左上角对齐到世界坐标，重算geotransform
func shiftTransform(gt [6]float64, x0, y0 int) [6]float64 {
	gt[0] += float64(x0)*gt[1] + float64(y0)*gt[2]
	gt[3] += float64(x0)*gt[4] + float64(y0)*gt[5]
	return gt
}

// 镶嵌多张影像并按AOI裁剪，依次输出镶嵌tif与裁剪tif。
// 任一阶段失败即中止，之后阶段的输出文件不会产生。
func (g *GdalToolbox) MosaicAndClip(ins []string, aoi Aoi, outMosaic, outClip string, mo MergeOptions, co ClipOptions) (err error) {
	log.Info(g.logTag+"start mosaic and clip", zap.Int("cnt", len(ins)),
		zap.String("outMosaic", outMosaic), zap.String("outClip", outClip))
	if len(ins) == 0 {
		return ErrEmptyInput
	}
	metas := make([]RasterMeta, len(ins))
	for i, tif := range ins {
		if metas[i], err = g.GetRasterMeta(tif); err != nil {
			return
		}
	}
	if err = g.checkMergeInputs(metas); err != nil {
		return
	}
	if err = g.checkAoiCrs(&metas[0], aoi); err != nil {
		return
	}
	if err = g.checkAoiSpan(unionSpan(metas), aoi); err != nil {
		return
	}
	srcs := make([]*SrcRaster, len(ins))
	for i, tif := range ins {
		if srcs[i], err = g.ReadRaster(tif); err != nil {
			return
		}
	}
	mosaic, err := g.MergeSources(srcs, mo)
	if err != nil {
		return
	}
	if err = g.WriteRaster(mosaic, outMosaic); err != nil {
		return
	}
	clipped, err := g.ClipSource(mosaic, aoi, co)
	if err != nil {
		return
	}
	return g.WriteRaster(clipped, outClip)
}
