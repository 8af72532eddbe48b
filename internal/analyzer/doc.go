// Package analyzer derives descriptive metadata from image content: face
// count, people presence, three dominant colours, mean brightness, a
// thumbhash placeholder and a deterministic tag set.
//
// Detectors are optional capabilities injected at construction. A detector
// failure degrades that stage to its neutral value; an image that cannot be
// decoded yields EmptyResult and ErrAnalysisUnavailable so callers leave the
// item unanalysed and retry later.
package analyzer
