// Package imaging loads music pages and renders views of detection results.
//
// Pages are decoded with disintegration/imaging (PNG, JPEG, GIF, TIFF and
// BMP, EXIF orientation applied) and kept in a PageCache keyed by path.
// Binarize turns a page into the ink/background raster consumed by the
// distance field: ink pixels are 0, background pixels are 255.
//
// # Coordinate System
//
// All pixel coordinates are 0-based with (0,0) at the top-left corner.
// Rectangles follow image.Rectangle: Min is inclusive, Max is exclusive.
//
// # Thread Safety
//
// PageCache is safe for concurrent use. The other functions are stateless and
// never modify their input image.
package imaging
