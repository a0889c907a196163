package mosaiclib

import (
	"encoding/json"

	gdal "github.com/airbusgeo/godal"
)

type AnyJson = json.RawMessage

type GdalGeo = []byte

// 待裁剪区域矢量（WKB + 坐标系）
type Aoi struct {
	Geom GdalGeo
	Srid int
}

// 影像元数据（固定字段，未知标签透传至Extra）
type RasterMeta struct {
	Path         string
	Width        int
	Height       int
	Bands        int
	DataType     gdal.DataType
	GeoTransform [6]float64
	Projection   string // 坐标系WKT
	NoData       float64
	HasNoData    bool
	Extra        map[string]string
}

// 已读入内存的影像（按波段存储像元值）
type SrcRaster struct {
	Meta RasterMeta
	Bufs [][]float64
}

// 镶嵌时重叠像元的取舍策略
type OverlapPolicy uint8

const (
	// 排序靠后的影像优先显示（有效值覆盖在先者，nodata不覆盖）
	OverlapLastWins OverlapPolicy = iota
	// 排序靠前的影像优先显示（仅填充仍为nodata的像元）
	OverlapFirstWins
)

// 掩膜判定规则
type MaskRule uint8

const (
	// 像元中心落于面内则视为面内
	MaskCenter MaskRule = iota
	// 与面有任何接触即视为面内
	MaskAllTouched
)

type MergeOptions struct {
	NoData  float64 // 输出空隙的填充值
	Overlap OverlapPolicy
}

type ClipOptions struct {
	NoData   float64 // 源影像未标记nodata时的掩膜填充值
	Rule     MaskRule
	CropOnly bool // 只按范围裁剪，不做面内掩膜
}
