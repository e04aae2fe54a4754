package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/alvmarrod/tree-exporter/internal/storage"
	"github.com/alvmarrod/tree-exporter/internal/tree"
	. "github.com/smartystreets/goconvey/convey"
)

func TestTree(t *testing.T) {
	Convey("Given an in-memory tree", t, func() {
		ctx := context.Background()
		tr := NewTree("root", "Root")
		So(tr.AddFolder("root", "a", "A"), ShouldBeNil)
		So(tr.AddFolder("root", "b", "B"), ShouldBeNil)
		So(tr.AddLeaf("a", tree.Leaf{ID: "f", Name: "f.xlsx"}), ShouldBeNil)
		tr.SetSubparts("f", "S1", "S2")

		Convey("folders list children in insertion order", func() {
			c, err := tr.Resolve(ctx, "root")
			So(err, ShouldBeNil)
			So(c.Subcontainers, ShouldResemble, []tree.Ref{{ID: "a", Name: "A"}, {ID: "b", Name: "B"}})
			So(tr.Resolves("root"), ShouldEqual, 1)
		})

		Convey("adding under a missing folder or twice fails", func() {
			So(tr.AddFolder("nope", "x", "X"), ShouldNotBeNil)
			So(tr.AddFolder("root", "a", "A"), ShouldNotBeNil)
			So(tr.AddLeaf("nope", tree.Leaf{}), ShouldNotBeNil)
		})

		Convey("failures are injected per node", func() {
			cause := errors.New("boom")
			tr.FailFolder("a", cause)
			tr.FailSubparts("f", cause)

			var resErr *tree.ResolutionError
			_, err := tr.Resolve(ctx, "a")
			So(errors.As(err, &resErr), ShouldBeTrue)
			So(errors.Is(err, cause), ShouldBeTrue)
			_, err = tr.Subparts(ctx, tree.Leaf{ID: "f"})
			So(errors.Is(err, cause), ShouldBeTrue)
			_, err = tr.Resolve(ctx, "missing")
			So(errors.As(err, &resErr), ShouldBeTrue)
		})

		Convey("sub-parts are returned as copies", func() {
			parts, err := tr.Subparts(ctx, tree.Leaf{ID: "f"})
			So(err, ShouldBeNil)
			parts[0] = "changed"
			again, _ := tr.Subparts(ctx, tree.Leaf{ID: "f"})
			So(again, ShouldResemble, []string{"S1", "S2"})
		})
	})
}

func TestStore(t *testing.T) {
	Convey("Given an in-memory store", t, func() {
		ctx := context.Background()
		s := NewStore()
		So(s.Set(ctx, "k", "v"), ShouldBeNil)

		value, ok, err := s.Get(ctx, "k")
		So(err, ShouldBeNil)
		So(ok, ShouldBeTrue)
		So(value, ShouldEqual, "v")

		s.FailSet("k", true)
		So(errors.Is(s.Set(ctx, "k", "w"), ErrInjected), ShouldBeTrue)
		raw, _ := s.Raw("k")
		So(raw, ShouldEqual, "v")

		So(s.ClearAll(ctx), ShouldBeNil)
		_, ok, _ = s.Get(ctx, "k")
		So(ok, ShouldBeFalse)
		So(s.Clears(), ShouldEqual, 1)
		So(s.Sets(), ShouldEqual, 1)
	})
}

func TestSink(t *testing.T) {
	Convey("Given an in-memory sink", t, func() {
		ctx := context.Background()
		s := NewSink()
		So(s.Reset(ctx, []string{"Name"}), ShouldBeNil)
		So(s.AppendRows(ctx, 2, []storage.Row{{Name: "a"}, {Name: "b"}}), ShouldBeNil)

		Convey("rows are indexed from the start position", func() {
			rows, err := s.ReadAll(ctx)
			So(err, ShouldBeNil)
			So(rows, ShouldResemble, []storage.Row{{Index: 2, Name: "a"}, {Index: 3, Name: "b"}})
		})

		Convey("rewriting a position overwrites it", func() {
			So(s.AppendRows(ctx, 3, []storage.Row{{Name: "c"}}), ShouldBeNil)
			So(s.Rows(), ShouldResemble, []storage.Row{{Index: 2, Name: "a"}, {Index: 3, Name: "c"}})
			So(s.Appends(), ShouldEqual, 2)
		})

		Convey("an armed failure rejects appends", func() {
			s.FailAppend(true)
			So(errors.Is(s.AppendRows(ctx, 4, []storage.Row{{Name: "d"}}), ErrInjected), ShouldBeTrue)
			So(s.Rows(), ShouldHaveLength, 2)
		})

		Convey("reset clears everything but the new header", func() {
			So(s.SetStatusField(ctx, "Status: Running"), ShouldBeNil)
			So(s.TagRange(ctx, 2, 2, storage.CategoryFile), ShouldBeNil)
			So(s.Reset(ctx, []string{"Other"}), ShouldBeNil)
			So(s.Rows(), ShouldBeEmpty)
			So(s.Tags(), ShouldBeEmpty)
			So(s.Status(), ShouldBeEmpty)
			So(s.Header(), ShouldResemble, []string{"Other"})
		})
	})
}
