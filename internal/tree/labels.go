package tree

import (
	"path"
	"strings"
)

// TypeLabel is the friendly file type shown in the report.
type TypeLabel string

const (
	LabelGoogleDoc   TypeLabel = "Google Doc"
	LabelGoogleSheet TypeLabel = "Google Sheet"
	LabelGoogleSlide TypeLabel = "Google Slide"
	LabelPDF         TypeLabel = "PDF"
	LabelWord        TypeLabel = "Word"
	LabelExcel       TypeLabel = "Excel"
	LabelPowerPoint  TypeLabel = "PowerPoint"
	LabelText        TypeLabel = "Text"
	LabelUnknown     TypeLabel = "Unknown"
	LabelSheetTab    TypeLabel = "Sheet Tab"
)

// Well known mime types.
const (
	MimeFolder       = "application/vnd.google-apps.folder"
	MimeGoogleDoc    = "application/vnd.google-apps.document"
	MimeGoogleSheet  = "application/vnd.google-apps.spreadsheet"
	MimeGoogleSlides = "application/vnd.google-apps.presentation"
	MimePDF          = "application/pdf"
	MimeWord         = "application/msword"
	MimeWordX        = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	MimeExcel        = "application/vnd.ms-excel"
	MimeExcelX       = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	MimePowerPoint   = "application/vnd.ms-powerpoint"
	MimePowerPointX  = "application/vnd.openxmlformats-officedocument.presentationml.presentation"
	MimeText         = "text/plain"
)

// FileType is the lookup result for a mime type.
type FileType struct {
	Label     TypeLabel
	LinkLabel string
	// MultiPart types hold named sub-parts (spreadsheet tabs).
	MultiPart bool
}

const defaultLinkLabel = "Open File"

// FolderLinkLabel labels links to containers.
const FolderLinkLabel = "Open Folder"

var fileTypes = map[string]FileType{
	MimeGoogleDoc:    {Label: LabelGoogleDoc, LinkLabel: "Open Doc"},
	MimeGoogleSheet:  {Label: LabelGoogleSheet, LinkLabel: "Open Sheet", MultiPart: true},
	MimeGoogleSlides: {Label: LabelGoogleSlide, LinkLabel: "Open Slides"},
	MimePDF:          {Label: LabelPDF, LinkLabel: "Open PDF"},
	MimeWord:         {Label: LabelWord, LinkLabel: defaultLinkLabel},
	MimeWordX:        {Label: LabelWord, LinkLabel: defaultLinkLabel},
	MimeExcel:        {Label: LabelExcel, LinkLabel: defaultLinkLabel},
	MimeExcelX:       {Label: LabelExcel, LinkLabel: "Open Sheet", MultiPart: true},
	MimePowerPoint:   {Label: LabelPowerPoint, LinkLabel: defaultLinkLabel},
	MimePowerPointX:  {Label: LabelPowerPoint, LinkLabel: defaultLinkLabel},
	MimeText:         {Label: LabelText, LinkLabel: defaultLinkLabel},
}

// Classify looks up the leaf's mime type. Unknown types fall back to the
// upper-cased file extension, then to LabelUnknown.
func (l Leaf) Classify() FileType {
	if ft, ok := fileTypes[baseMime(l.MimeType)]; ok {
		return ft
	}
	ext := strings.TrimPrefix(path.Ext(l.Name), ".")
	if ext == "" {
		return FileType{Label: LabelUnknown, LinkLabel: defaultLinkLabel}
	}
	return FileType{Label: TypeLabel(strings.ToUpper(ext)), LinkLabel: defaultLinkLabel}
}

// baseMime strips parameters such as "; charset=utf-8".
func baseMime(mime string) string {
	if i := strings.IndexByte(mime, ';'); i >= 0 {
		mime = mime[:i]
	}
	return strings.ToLower(strings.TrimSpace(mime))
}
