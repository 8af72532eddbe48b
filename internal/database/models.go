package database

import (
	"time"

	"media-catalog/internal/mediatypes"
)

// RGB is a colour triple.
type RGB [3]uint8

// Enrichment holds the fields written by content analysis. Ingestion never
// touches them; a freshly inserted item carries the zero value.
type Enrichment struct {
	Analyzed       bool      `json:"analyzed"`
	FaceCount      int       `json:"faceCount"`
	HasPeople      bool      `json:"hasPeople"`
	DominantColors []RGB     `json:"dominantColors"`
	Brightness     float64   `json:"brightness"`
	Tags           []string  `json:"tags"`
	Placeholder    []byte    `json:"placeholder,omitempty"`
	AnalyzedAt     time.Time `json:"analyzedAt,omitempty"`
}

// MediaItem is one catalogued original.
type MediaItem struct {
	ID           int64           `json:"id"`
	StorageName  string          `json:"storageName"`
	OriginalName string          `json:"originalName"`
	Kind         mediatypes.Kind `json:"kind"`
	ContentHash  string          `json:"contentHash,omitempty"`
	MimeType     string          `json:"mimeType,omitempty"`
	Width        int             `json:"width"`
	Height       int             `json:"height"`
	ByteSize     int64           `json:"byteSize"`
	CreatedAt    time.Time       `json:"createdAt"`
	Favorite     bool            `json:"favorite"`
	Enrichment   Enrichment      `json:"enrichment"`
}

// HasHash reports whether the item carries a content digest. Rows ingested
// before hashing existed do not.
func (m *MediaItem) HasHash() bool {
	return m.ContentHash != ""
}

// CatalogStats summarises the catalog for health and metrics endpoints.
type CatalogStats struct {
	TotalItems      int `json:"totalItems"`
	TotalImages     int `json:"totalImages"`
	TotalVideos     int `json:"totalVideos"`
	Analyzed        int `json:"analyzed"`
	PendingAnalysis int `json:"pendingAnalysis"`
	MissingHash     int `json:"missingHash"`
	Favorites       int `json:"favorites"`
}
