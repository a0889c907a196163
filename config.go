package mosaiclib

const (
	SHP_DRIVER_NAME = "ESRI Shapefile"
	UNIVERSAL_SRID  = 4326
	GEOJSON_SRID    = 4326
	WEB_MERC_SRID   = 3857

	ErrColumnMissingTemplate  = `shp文件中缺失【%s】字段`
	ErrFeatureMissingTemplate = `shp文件中找不到【%s=%s】的要素`

	// MergeOptions/ClipOptions未指定时的nodata填充值
	DEFAULT_NODATA = 0

	CoverageThreshold = 0.9999

	TMP_TIF = "ras_%s.tif"

	// 判定像元尺寸一致的容差
	resolutionEps = 1e-9
)
