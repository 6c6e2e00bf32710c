package fsutil

import (
	"os"
	"path"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestCopyTree(t *testing.T) {
	Convey("While copying a directory tree", t, func() {
		source := t.TempDir()
		target := path.Join(t.TempDir(), "copy")

		So(os.MkdirAll(path.Join(source, "logs", "aws"), 0755), ShouldBeNil)
		So(os.WriteFile(path.Join(source, "top.txt"), []byte("top"), 0644), ShouldBeNil)
		So(os.WriteFile(path.Join(source, "logs", "aws", "lambda.log"), []byte("nested"), 0644), ShouldBeNil)

		Convey("Nested files arrive with their contents", func() {
			So(CopyTree(source, target), ShouldBeNil)

			data, err := os.ReadFile(path.Join(target, "top.txt"))
			So(err, ShouldBeNil)
			So(string(data), ShouldEqual, "top")

			data, err = os.ReadFile(path.Join(target, "logs", "aws", "lambda.log"))
			So(err, ShouldBeNil)
			So(string(data), ShouldEqual, "nested")
		})

		Convey("A missing source is an error", func() {
			So(CopyTree(path.Join(source, "missing"), target), ShouldNotBeNil)
		})
	})
}

func TestCopyFile(t *testing.T) {
	Convey("While copying a single file", t, func() {
		dir := t.TempDir()
		source := path.Join(dir, "a.txt")
		destination := path.Join(dir, "b.txt")
		So(os.WriteFile(source, []byte("payload"), 0644), ShouldBeNil)

		Convey("The destination is created or truncated", func() {
			So(os.WriteFile(destination, []byte("previous longer content"), 0644), ShouldBeNil)
			So(CopyFile(source, destination), ShouldBeNil)

			data, err := os.ReadFile(destination)
			So(err, ShouldBeNil)
			So(string(data), ShouldEqual, "payload")
		})
	})
}
