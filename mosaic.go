package mosaiclib

import (
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/wgdzlh/mosaiclib/log"

	gdal "github.com/airbusgeo/godal"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// 所有影像范围的并集 [minX, maxX, minY, maxY]
func unionSpan(metas []RasterMeta) (span [4]float64) {
	span = metas[0].Footprint()
	for i := 1; i < len(metas); i++ {
		s := metas[i].Footprint()
		span[0] = math.Min(span[0], s[0])
		span[1] = math.Max(span[1], s[1])
		span[2] = math.Min(span[2], s[2])
		span[3] = math.Max(span[3], s[3])
	}
	return
}

// 镶嵌多景已读入内存的影像。
// 输出覆盖所有输入范围的并集，间隙以opt.NoData填充；
// 重叠像元的取舍由opt.Overlap决定，源影像中的nodata永远不会覆盖已有的有效值。
// 纯函数：不改动输入，不产生任何IO。
func (g *GdalToolbox) MergeSources(srcs []*SrcRaster, opt MergeOptions) (out *SrcRaster, err error) {
	metas := make([]RasterMeta, len(srcs))
	for i, s := range srcs {
		metas[i] = s.Meta
	}
	if err = g.checkMergeInputs(metas); err != nil {
		return
	}
	var (
		base = &srcs[0].Meta
		a    = base.GeoTransform[1]
		e    = base.GeoTransform[5]
		span = unionSpan(metas)
	)
	// 输出原点取并集范围中与像元行列方向一致的角点
	originX, originY := span[0], span[3]
	if a < 0 {
		originX = span[1]
	}
	if e > 0 {
		originY = span[2]
	}
	width := int(math.Round((span[1] - span[0]) / math.Abs(a)))
	height := int(math.Round((span[3] - span[2]) / math.Abs(e)))
	log.Info(g.logTag+"merge rasters", zap.Int("cnt", len(srcs)),
		zap.Int("width", width), zap.Int("height", height), zap.Uint8("overlap", uint8(opt.Overlap)))
	out = &SrcRaster{
		Meta: RasterMeta{
			Width:        width,
			Height:       height,
			Bands:        base.Bands,
			DataType:     base.DataType,
			GeoTransform: [6]float64{originX, a, 0, originY, 0, e},
			Projection:   base.Projection,
			NoData:       opt.NoData,
			HasNoData:    true,
			Extra:        base.Extra,
		},
		Bufs: make([][]float64, base.Bands),
	}
	for b := range out.Bufs {
		buf := make([]float64, width*height)
		if opt.NoData != 0 {
			for i := range buf {
				buf[i] = opt.NoData
			}
		}
		out.Bufs[b] = buf
	}
	for _, s := range srcs {
		ox := int(math.Round((s.Meta.GeoTransform[0] - originX) / a))
		oy := int(math.Round((s.Meta.GeoTransform[3] - originY) / e))
		srcNoData := opt.NoData
		if s.Meta.HasNoData {
			srcNoData = s.Meta.NoData
		}
		for b, src := range s.Bufs {
			dst := out.Bufs[b]
			for r := 0; r < s.Meta.Height; r++ {
				si := r * s.Meta.Width
				di := (oy+r)*width + ox
				for c := 0; c < s.Meta.Width; c++ {
					v := src[si+c]
					if v == srcNoData {
						continue
					}
					if opt.Overlap == OverlapFirstWins && dst[di+c] != opt.NoData {
						continue
					}
					dst[di+c] = v
				}
			}
		}
	}
	return
}

// 镶嵌多张影像tif，输出GeoTIFF。
// 元数据校验在读取任何像元之前完成；校验或镶嵌失败时不产生输出文件。
func (g *GdalToolbox) MergeRasters(ins []string, out string, opt MergeOptions) (err error) {
	log.Info(g.logTag+"start merge tifs", zap.Int("cnt", len(ins)), zap.String("out", out))
	if len(ins) == 0 {
		err = ErrEmptyInput
		return
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
	srcs := make([]*SrcRaster, len(ins))
	for i, tif := range ins {
		if srcs[i], err = g.ReadRaster(tif); err != nil {
			return
		}
	}
	mosaic, err := g.MergeSources(srcs, opt)
	if err != nil {
		return
	}
	return g.WriteRaster(mosaic, out)
}

// 将内存中的影像写出为GeoTIFF（LZW压缩）。
// 先写到临时路径，成功关闭后再改名到目标路径，失败时不留下输出文件。
func (g *GdalToolbox) WriteRaster(src *SrcRaster, out string) (err error) {
	tmp := filepath.Join(g.tmpDir, fmt.Sprintf(TMP_TIF, uuid.NewString()))
	defer func() {
		if err != nil {
			os.Remove(tmp)
		}
	}()
	ds, err := gdal.Create(gdal.GTiff, tmp, src.Meta.Bands, src.Meta.DataType,
		src.Meta.Width, src.Meta.Height, gdal.CreationOption("COMPRESS=LZW"))
	if err != nil {
		log.Error(g.logTag+"create tif failed", zap.String("out", out), zap.Error(err))
		err = ErrTifWriteFailed
		return
	}
	if err = g.fillDataset(ds, src); err != nil {
		ds.Close()
		return
	}
	if err = ds.Close(); err != nil {
		log.Error(g.logTag+"close tif failed", zap.String("out", out), zap.Error(err))
		err = ErrTifWriteFailed
		return
	}
	if err = os.Rename(tmp, out); err != nil {
		log.Error(g.logTag+"move tif failed", zap.String("out", out), zap.Error(err))
	}
	return
}

func (g *GdalToolbox) fillDataset(ds *gdal.Dataset, src *SrcRaster) (err error) {
	if err = ds.SetGeoTransform(src.Meta.GeoTransform); err != nil {
		log.Error(g.logTag+"set geotransform failed", zap.Error(err))
		return ErrTifWriteFailed
	}
	if src.Meta.Projection != "" {
		if err = ds.SetProjection(src.Meta.Projection); err != nil {
			log.Error(g.logTag+"set projection failed", zap.Error(err))
			return ErrTifWriteFailed
		}
	}
	if src.Meta.HasNoData {
		if err = ds.SetNoData(src.Meta.NoData); err != nil {
			log.Error(g.logTag+"set nodata failed", zap.Error(err))
			return ErrTifWriteFailed
		}
	}
	for k, v := range src.Meta.Extra {
		if err = ds.SetMetadata(k, v); err != nil {
			log.Error(g.logTag+"set metadata failed", zap.String("key", k), zap.Error(err))
			return ErrTifWriteFailed
		}
	}
	for i, band := range ds.Bands() {
		if err = band.Write(0, 0, src.Bufs[i], src.Meta.Width, src.Meta.Height); err != nil {
			log.Error(g.logTag+"write tif band failed", zap.Int("band", i), zap.Error(err))
			return ErrTifWriteFailed
		}
	}
	return
}
