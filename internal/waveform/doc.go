// Package waveform extracts amplitude peaks from audio files for client-side
// waveform drawing. ffmpeg decodes the audio to mono 8 kHz 16-bit PCM on a
// stdout pipe and the samples are folded into per-bucket absolute peaks at a
// few fixed resolutions.
package waveform
