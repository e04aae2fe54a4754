package source

import (
	"archive/zip"
	"fmt"
	"os"
	"path/filepath"
	"testing"
)

// writeWorkbook creates a minimal xlsx holding only the workbook part
func writeWorkbook(t *testing.T, path string, sheets ...string) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create workbook: %v", err)
	}
	defer f.Close()

	zw := zip.NewWriter(f)
	w, err := zw.Create("xl/workbook.xml")
	if err != nil {
		t.Fatalf("create workbook part: %v", err)
	}
	fmt.Fprint(w, `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>`)
	fmt.Fprint(w, `<workbook xmlns="http://schemas.openxmlformats.org/spreadsheetml/2006/main" `+
		`xmlns:r="http://schemas.openxmlformats.org/officeDocument/2006/relationships"><sheets>`)
	for i, name := range sheets {
		fmt.Fprintf(w, `<sheet name="%s" sheetId="%d" r:id="rId%d"/>`, name, i+1, i+1)
	}
	fmt.Fprint(w, `</sheets></workbook>`)
	if err := zw.Close(); err != nil {
		t.Fatalf("close workbook: %v", err)
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// buildShare lays out
//
//	a.txt
//	b.xlsx [Summary Data]
//	scratch.tmp
//	~$b.xlsx
//	.git/HEAD
//	node_modules/x/index.js
//	sub/c.pdf
func buildShare(t *testing.T) string {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.txt"), "hello")
	writeWorkbook(t, filepath.Join(dir, "b.xlsx"), "Summary", "Data")
	writeFile(t, filepath.Join(dir, "scratch.tmp"), "")
	writeFile(t, filepath.Join(dir, "~$b.xlsx"), "lock")
	writeFile(t, filepath.Join(dir, ".git", "HEAD"), "ref: refs/heads/main")
	writeFile(t, filepath.Join(dir, "node_modules", "x", "index.js"), "")
	writeFile(t, filepath.Join(dir, "sub", "c.pdf"), "%PDF-1.4")
	return dir
}
