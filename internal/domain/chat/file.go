package chat

import (
	"mime"
	"path/filepath"
	"strings"
)

var allowedExt = map[string]bool{
	".xlsx": true,
	".xls":  true,
	".csv":  true,
}

var allowedMIME = map[string]bool{
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet": true,
	"application/vnd.ms-excel": true,
	"text/csv":                 true,
}

// ValidateFileName is the only file check done on this side: the extension
// or the declared MIME type must name a spreadsheet.
func ValidateFileName(name, contentType string) error {
	ext := strings.ToLower(filepath.Ext(name))
	if allowedExt[ext] {
		return nil
	}
	if mt, _, err := mime.ParseMediaType(contentType); err == nil && allowedMIME[mt] {
		return nil
	}
	return ErrUnsupportedFile
}
