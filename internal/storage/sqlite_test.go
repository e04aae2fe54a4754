package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

func openTestStorage(t *testing.T) *Storage {
	s, err := NewStorage(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open storage: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStateTable(t *testing.T) {
	Convey("Given checkpoint tables for two jobs", t, func() {
		ctx := context.Background()
		s := openTestStorage(t)
		a := s.States("a")
		b := s.States("b")

		Convey("a missing key is reported as absent", func() {
			_, ok, err := a.Get(ctx, "state")
			So(err, ShouldBeNil)
			So(ok, ShouldBeFalse)
		})

		Convey("set overwrites and stays scoped to its job", func() {
			So(a.Set(ctx, "state", "one"), ShouldBeNil)
			So(a.Set(ctx, "state", "two"), ShouldBeNil)
			So(b.Set(ctx, "state", "other"), ShouldBeNil)

			value, ok, err := a.Get(ctx, "state")
			So(err, ShouldBeNil)
			So(ok, ShouldBeTrue)
			So(value, ShouldEqual, "two")
		})

		Convey("clear removes only the job's keys", func() {
			So(a.Set(ctx, "state", "x"), ShouldBeNil)
			So(a.Set(ctx, "status", "running"), ShouldBeNil)
			So(b.Set(ctx, "status", "paused"), ShouldBeNil)

			So(a.ClearAll(ctx), ShouldBeNil)

			_, ok, _ := a.Get(ctx, "state")
			So(ok, ShouldBeFalse)
			_, ok, _ = a.Get(ctx, "status")
			So(ok, ShouldBeFalse)
			value, ok, _ := b.Get(ctx, "status")
			So(ok, ShouldBeTrue)
			So(value, ShouldEqual, "paused")
		})
	})

	Convey("Checkpoints survive reopening the database", t, func() {
		ctx := context.Background()
		path := filepath.Join(t.TempDir(), "reopen.db")

		s, err := NewStorage(path)
		So(err, ShouldBeNil)
		So(s.States("job").Set(ctx, "state", `{"next_row":7}`), ShouldBeNil)
		So(s.Close(), ShouldBeNil)

		s, err = NewStorage(path)
		So(err, ShouldBeNil)
		defer s.Close()
		value, ok, err := s.States("job").Get(ctx, "state")
		So(err, ShouldBeNil)
		So(ok, ShouldBeTrue)
		So(value, ShouldEqual, `{"next_row":7}`)
	})
}

func TestReport(t *testing.T) {
	Convey("Given a report", t, func() {
		ctx := context.Background()
		s := openTestStorage(t)
		r := s.Report("job")
		modified := time.Date(2024, 3, 4, 5, 6, 7, 0, time.UTC)

		So(r.Reset(ctx, []string{"Name", "Type"}), ShouldBeNil)
		So(r.AppendRows(ctx, 2, []Row{
			{Category: CategoryFolder, Name: "Root", Link: "file:///r", LinkLabel: "Open Folder"},
			{Category: CategoryFile, Name: "│  a.xlsx", TypeLabel: "Excel", ModifiedAt: modified, ModifiedBy: "ana", Parent: "Root", Depth: 1},
			{Category: CategoryTab, Name: "│  │  Sheet1", TypeLabel: "Sheet Tab", Parent: "a.xlsx", Depth: 2},
		}), ShouldBeNil)

		Convey("rows are read back in position order", func() {
			rows, err := r.ReadAll(ctx)
			So(err, ShouldBeNil)
			So(rows, ShouldHaveLength, 3)
			So(rows[0].Index, ShouldEqual, 2)
			So(rows[0].Category, ShouldEqual, CategoryFolder)
			So(rows[0].LinkLabel, ShouldEqual, "Open Folder")
			So(rows[0].ModifiedAt.IsZero(), ShouldBeTrue)
			So(rows[1].ModifiedAt.Equal(modified), ShouldBeTrue)
			So(rows[1].ModifiedBy, ShouldEqual, "ana")
			So(rows[2].Index, ShouldEqual, 4)
			So(rows[2].Depth, ShouldEqual, 2)
		})

		Convey("appending at a used position overwrites it", func() {
			So(r.AppendRows(ctx, 3, []Row{
				{Category: CategoryFile, Name: "│  b.txt"},
				{Category: CategoryFile, Name: "│  c.txt"},
			}), ShouldBeNil)

			rows, err := r.ReadAll(ctx)
			So(err, ShouldBeNil)
			So(rows, ShouldHaveLength, 4)
			So(rows[1].Name, ShouldEqual, "│  b.txt")
			So(rows[2].Name, ShouldEqual, "│  c.txt")
			So(rows[2].Category, ShouldEqual, CategoryFile)
			So(rows[3].Index, ShouldEqual, 5)
		})

		Convey("tagging styles exactly the given range", func() {
			So(r.TagRange(ctx, 3, 2, CategoryFile), ShouldBeNil)

			style, err := r.Style(ctx, 2)
			So(err, ShouldBeNil)
			So(style, ShouldBeEmpty)
			style, _ = r.Style(ctx, 3)
			So(style, ShouldEqual, categoryStyles[CategoryFile])
			style, _ = r.Style(ctx, 4)
			So(style, ShouldEqual, categoryStyles[CategoryFile])
		})

		Convey("fields keep the last value written", func() {
			So(r.SetStatusField(ctx, "Status: Running"), ShouldBeNil)
			So(r.SetStatusField(ctx, "Status: Paused"), ShouldBeNil)
			So(r.SetProgressField(ctx, "Progress: 3 items"), ShouldBeNil)

			status, err := r.StatusField(ctx)
			So(err, ShouldBeNil)
			So(status, ShouldEqual, "Status: Paused")
			progress, err := r.ProgressField(ctx)
			So(err, ShouldBeNil)
			So(progress, ShouldEqual, "Progress: 3 items")

			header, err := r.Header(ctx)
			So(err, ShouldBeNil)
			So(header, ShouldResemble, []string{"Name", "Type"})
		})

		Convey("a summary replaces the previous one", func() {
			So(r.WriteSummary(ctx, []SummaryLine{{Label: "Total Folders", Count: 1}, {Label: "Total Files", Count: 9}}), ShouldBeNil)
			So(r.WriteSummary(ctx, []SummaryLine{{Label: "Total Items", Count: 3}}), ShouldBeNil)

			lines, err := r.ReadSummary(ctx)
			So(err, ShouldBeNil)
			So(lines, ShouldResemble, []SummaryLine{{Label: "Total Items", Count: 3}})
		})

		Convey("reset drops rows, fields and summary", func() {
			So(r.SetStatusField(ctx, "Status: Completed"), ShouldBeNil)
			So(r.WriteSummary(ctx, []SummaryLine{{Label: "Total Items", Count: 3}}), ShouldBeNil)

			So(r.Reset(ctx, []string{"Name"}), ShouldBeNil)

			rows, err := r.ReadAll(ctx)
			So(err, ShouldBeNil)
			So(rows, ShouldBeEmpty)
			status, _ := r.StatusField(ctx)
			So(status, ShouldBeEmpty)
			lines, _ := r.ReadSummary(ctx)
			So(lines, ShouldBeEmpty)
		})

		Convey("reports of other jobs are separate", func() {
			rows, err := s.Report("other").ReadAll(ctx)
			So(err, ShouldBeNil)
			So(rows, ShouldBeEmpty)
		})
	})
}
