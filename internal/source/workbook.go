package source

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
)

const workbookPart = "xl/workbook.xml"

type workbookXML struct {
	Sheets []struct {
		Name string `xml:"name,attr"`
	} `xml:"sheets>sheet"`
}

// SheetNames lists the sheet names of an xlsx workbook in tab order
func SheetNames(r io.ReaderAt, size int64) ([]string, error) {
	archive, err := zip.NewReader(r, size)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}

	for _, file := range archive.File {
		if file.Name != workbookPart {
			continue
		}
		rc, err := file.Open()
		if err != nil {
			return nil, fmt.Errorf("failed to open %s: %w", workbookPart, err)
		}
		defer rc.Close()

		var wb workbookXML
		if err := xml.NewDecoder(rc).Decode(&wb); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", workbookPart, err)
		}
		names := make([]string, 0, len(wb.Sheets))
		for _, sheet := range wb.Sheets {
			names = append(names, sheet.Name)
		}
		return names, nil
	}

	return nil, fmt.Errorf("workbook has no %s", workbookPart)
}

// sheetNamesFromBytes is SheetNames over an in-memory workbook
func sheetNamesFromBytes(data []byte) ([]string, error) {
	return SheetNames(bytes.NewReader(data), int64(len(data)))
}
