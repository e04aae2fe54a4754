package source

import (
	"mime"
	"path"
	"strings"

	"github.com/alvmarrod/tree-exporter/internal/tree"
)

// Office formats are missing from the builtin table of package mime
var extensionMimes = map[string]string{
	".pdf":  tree.MimePDF,
	".doc":  tree.MimeWord,
	".docx": tree.MimeWordX,
	".xls":  tree.MimeExcel,
	".xlsx": tree.MimeExcelX,
	".ppt":  tree.MimePowerPoint,
	".pptx": tree.MimePowerPointX,
	".txt":  tree.MimeText,
}

// mimeOf guesses a mime type from a file name
func mimeOf(name string) string {
	ext := strings.ToLower(path.Ext(name))
	if ext == "" {
		return ""
	}
	if m, ok := extensionMimes[ext]; ok {
		return m
	}
	return mime.TypeByExtension(ext)
}
