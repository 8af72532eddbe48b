// Package mediatypes holds the shared vocabulary for media kinds: which
// extensions and MIME types are ingested, how they map to a Kind, and how
// generated artifacts are recognised when they share the library root.
//
// The package has no dependencies beyond the standard library so that every
// other package can import it without cycles.
//
//	kind := mediatypes.KindForName("IMG_0001.JPG") // mediatypes.KindImage
//	filter := mediatypes.NewFilter(libraryDir, previewDir, thumbnailDir)
//	if filter.Accept(path) {
//	    // hand to ingestion
//	}
package mediatypes
