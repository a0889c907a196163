package mosaiclib

import "errors"

var (
	ErrGdalDriverOpen   = errors.New("gdal driver open err")
	ErrGdalEmptyShp     = errors.New("gdal shp is empty")
	ErrVoidSrid         = errors.New("gdal shp with void srid")
	ErrGdalWrongGeoType = errors.New("gdal wrong geo type")
	ErrGdalWrongGeoJSON = errors.New("gdal wrong GeoJSON")
	ErrInvalidWKT       = errors.New("invalid WKT")
	ErrInvalidTif       = errors.New("invalid tif")
	ErrTifReadFailed    = errors.New("tif read failed")
	ErrTifWriteFailed   = errors.New("tif write failed")

	// 镶嵌、裁剪的前置校验错误，均在读取像元数据之前返回
	ErrEmptyInput         = errors.New("no input raster")
	ErrIncompatibleRaster = errors.New("incompatible raster metadata")
	ErrResolutionMismatch = errors.New("raster resolution mismatch")
	ErrUnsupportedCRS     = errors.New("unsupported CRS")
	ErrProjection         = errors.New("projection not defined for coordinate")
	ErrCRSMismatch        = errors.New("raster and AOI CRS mismatch")
	ErrEmptyIntersection  = errors.New("AOI does not intersect raster")
)
