package source

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/alvmarrod/tree-exporter/internal/tree"
	. "github.com/smartystreets/goconvey/convey"
)

func leafNames(c *tree.Container) []string {
	var names []string
	for _, leaf := range c.Leaves {
		names = append(names, leaf.Name)
	}
	return names
}

func TestFS(t *testing.T) {
	Convey("Given a directory tree", t, func() {
		ctx := context.Background()
		dir := buildShare(t)
		filter, err := NewFilter([]string{`\.tmp$`})
		So(err, ShouldBeNil)
		src, err := NewFS(dir, filter)
		So(err, ShouldBeNil)

		Convey("the root lists subdirectories and files in name order", func() {
			c, err := src.Resolve(ctx, src.RootID())
			So(err, ShouldBeNil)
			So(c.Name, ShouldEqual, filepath.Base(dir))
			So(c.Link, ShouldStartWith, "file://")
			So(c.Subcontainers, ShouldResemble, []tree.Ref{{ID: filepath.Join(dir, "sub"), Name: "sub"}})
			So(leafNames(c), ShouldResemble, []string{"a.txt", "b.xlsx"})
		})

		Convey("leaves carry type and modification details", func() {
			c, err := src.Resolve(ctx, src.RootID())
			So(err, ShouldBeNil)
			a, b := c.Leaves[0], c.Leaves[1]
			So(a.Classify().Label, ShouldEqual, tree.LabelText)
			So(a.ModifiedAt.IsZero(), ShouldBeFalse)
			So(a.Link, ShouldEndWith, "/a.txt")
			So(b.MimeType, ShouldEqual, tree.MimeExcelX)
			So(b.Classify().MultiPart, ShouldBeTrue)
			if runtime.GOOS != "windows" {
				So(a.ModifiedBy, ShouldNotBeEmpty)
			}
		})

		Convey("subdirectories resolve by id", func() {
			c, err := src.Resolve(ctx, filepath.Join(dir, "sub"))
			So(err, ShouldBeNil)
			So(c.Name, ShouldEqual, "sub")
			So(c.HasSubcontainers(), ShouldBeFalse)
			So(leafNames(c), ShouldResemble, []string{"c.pdf"})
			So(c.Leaves[0].Classify().Label, ShouldEqual, tree.LabelPDF)
		})

		Convey("workbook sheets are listed in tab order", func() {
			parts, err := src.Subparts(ctx, tree.Leaf{ID: filepath.Join(dir, "b.xlsx")})
			So(err, ShouldBeNil)
			So(parts, ShouldResemble, []string{"Summary", "Data"})
		})

		Convey("unreadable nodes fail with a resolution error", func() {
			var resErr *tree.ResolutionError

			_, err := src.Resolve(ctx, filepath.Join(dir, "missing"))
			So(errors.As(err, &resErr), ShouldBeTrue)

			_, err = src.Resolve(ctx, filepath.Dir(dir))
			So(errors.As(err, &resErr), ShouldBeTrue)

			_, err = src.Subparts(ctx, tree.Leaf{ID: filepath.Join(dir, "a.txt")})
			So(errors.As(err, &resErr), ShouldBeTrue)
		})

		Convey("a cancelled context stops resolution", func() {
			cctx, cancel := context.WithCancel(ctx)
			cancel()
			_, err := src.Resolve(cctx, src.RootID())
			So(errors.Is(err, context.Canceled), ShouldBeTrue)
		})
	})

	Convey("The root must be an existing directory", t, func() {
		dir := t.TempDir()
		_, err := NewFS(filepath.Join(dir, "missing"), nil)
		So(err, ShouldNotBeNil)

		file := filepath.Join(dir, "file")
		So(os.WriteFile(file, nil, 0644), ShouldBeNil)
		_, err = NewFS(file, nil)
		So(err, ShouldNotBeNil)
	})
}

func TestFilter(t *testing.T) {
	Convey("Built-in patterns apply without a filter", t, func() {
		var f *Filter
		So(f.IsExcluded(".git"), ShouldBeTrue)
		So(f.IsExcluded("node_modules"), ShouldBeTrue)
		So(f.IsExcluded(".DS_Store"), ShouldBeTrue)
		So(f.IsExcluded("~$report.docx"), ShouldBeTrue)
		So(f.IsExcluded("report.docx"), ShouldBeFalse)
		So(f.IsExcluded(".gitignore"), ShouldBeFalse)
	})

	Convey("Extra patterns add to the built-in ones", t, func() {
		f, err := NewFilter([]string{`(?i)\.bak$`})
		So(err, ShouldBeNil)
		So(f.IsExcluded("old.BAK"), ShouldBeTrue)
		So(f.IsExcluded(".git"), ShouldBeTrue)
		So(f.IsExcluded("old.txt"), ShouldBeFalse)
	})

	Convey("Invalid patterns are rejected", t, func() {
		_, err := NewFilter([]string{"("})
		So(err, ShouldNotBeNil)
	})
}

func TestSheetNames(t *testing.T) {
	Convey("Data that is not a workbook is rejected", t, func() {
		_, err := sheetNamesFromBytes([]byte("not a zip"))
		So(err, ShouldNotBeNil)

		var buf bytes.Buffer
		zw := zip.NewWriter(&buf)
		_, err = zw.Create("docProps/app.xml")
		So(err, ShouldBeNil)
		So(zw.Close(), ShouldBeNil)
		_, err = sheetNamesFromBytes(buf.Bytes())
		So(err, ShouldNotBeNil)
	})

	Convey("Sheet names come back as written", t, func() {
		path := filepath.Join(t.TempDir(), "book.xlsx")
		writeWorkbook(t, path, "Q1", "Q2", "Notes")
		data, err := os.ReadFile(path)
		So(err, ShouldBeNil)
		names, err := sheetNamesFromBytes(data)
		So(err, ShouldBeNil)
		So(names, ShouldResemble, []string{"Q1", "Q2", "Notes"})
	})
}
