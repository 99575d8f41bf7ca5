// Package render drives ffmpeg to assemble recipe clips into a single audio
// file. It plans one input per distinct source asset, trims and concatenates
// the clips with a filtergraph, and optionally applies two-pass loudness
// normalization before encoding to the requested format.
package render
