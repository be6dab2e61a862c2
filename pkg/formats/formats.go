// Package formats reads and writes raw terrain buffers: RAW16 heightmaps
// and RGBA8 splat maps.
package formats
