// Package contour turns a grayscale solar raster into normalized sunspot
// boundary polygons.
//
// Extraction binarizes the raster at a threshold, follows every border of
// the binary image (outer borders and hole borders, over the whole
// containment hierarchy), drops degenerate and out-of-window polygons by
// area, and remaps pixel coordinates into the [0,1] calibration frame of
// the image scale the raster was fetched at.
package contour
