// Package mjpeg turns an upstream camera response into a single still frame.
//
// Classify decides whether a response is a live multipart stream or a plain
// image. For streams, an Extractor reads the body chunk by chunk into a
// bounded buffer and rescans it for SOI..EOI byte ranges after every read.
// Candidates are ranked by size, preferring a plausible band, and the
// winner must carry Start-Of-Frame and Start-Of-Scan markers before it is
// accepted. The multipart boundary is reported for diagnostics only; camera
// firmware formats it too inconsistently to drive parsing.
package mjpeg
