package ingest

import (
	"path/filepath"
	"strings"

	"archivist/internal/store"
)

var extensionKinds = map[string]store.MediaKind{
	".jpg":  store.MediaImage,
	".jpeg": store.MediaImage,
	".png":  store.MediaImage,
	".gif":  store.MediaImage,
	".bmp":  store.MediaImage,
	".tif":  store.MediaImage,
	".tiff": store.MediaImage,
	".webp": store.MediaImage,
	".heic": store.MediaImage,

	".mp4":  store.MediaVideo,
	".mov":  store.MediaVideo,
	".avi":  store.MediaVideo,
	".mkv":  store.MediaVideo,
	".m4v":  store.MediaVideo,
	".webm": store.MediaVideo,
	".mpg":  store.MediaVideo,
	".mpeg": store.MediaVideo,

	".mp3":  store.MediaAudio,
	".wav":  store.MediaAudio,
	".m4a":  store.MediaAudio,
	".flac": store.MediaAudio,
	".ogg":  store.MediaAudio,
	".aac":  store.MediaAudio,
}

// KindForFilename classifies a file by extension. Unknown extensions are
// still ingested; the enrichment stage routes them to low confidence.
func KindForFilename(name string) store.MediaKind {
	ext := strings.ToLower(filepath.Ext(name))
	if kind, ok := extensionKinds[ext]; ok {
		return kind
	}
	return store.MediaUnknown
}
