package upload

import (
	"context"
	"os"
	"path"
	"sort"
	"testing"

	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/pkg/errors"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/JakobPriesner/BeFaaS-framework/pkg/experiment"
)

type fakeObjectUploader struct {
	keys    []string
	buckets []string
	err     error
}

func (f *fakeObjectUploader) Upload(ctx context.Context, input *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error) {
	f.keys = append(f.keys, *input.Key)
	f.buckets = append(f.buckets, *input.Bucket)
	if f.err != nil {
		return nil, f.err
	}
	return &manager.UploadOutput{}, nil
}

func TestSync(t *testing.T) {
	Convey("While syncing run results to remote storage", t, func() {
		outputDir := path.Join(t.TempDir(), "faas_none_512mb_run")
		So(os.MkdirAll(path.Join(outputDir, "baseline", "analysis"), 0755), ShouldBeNil)
		So(os.WriteFile(path.Join(outputDir, "master.log"), []byte("log"), 0644), ShouldBeNil)
		So(os.WriteFile(path.Join(outputDir, "baseline", "analysis", "insights.json"), []byte("{}"), 0644), ShouldBeNil)

		cfg := experiment.Config{Name: "webservice", OutputDir: outputDir}
		fake := &fakeObjectUploader{}

		Convey("Without a configured bucket the upload is skipped successfully", func() {
			uploader := &Uploader{client: fake}
			So(uploader.Sync(cfg), ShouldBeTrue)
			So(fake.keys, ShouldBeEmpty)
		})

		Convey("Every file is uploaded under experiment/run-directory keys", func() {
			uploader := &Uploader{Bucket: "results", client: fake}
			So(uploader.Sync(cfg), ShouldBeTrue)

			sort.Strings(fake.keys)
			So(fake.keys, ShouldResemble, []string{
				"webservice/faas_none_512mb_run/baseline/analysis/insights.json",
				"webservice/faas_none_512mb_run/master.log",
			})
			So(fake.buckets[0], ShouldEqual, "results")
		})

		Convey("An object failure reports false but tries the remaining files", func() {
			fake.err = errors.New("access denied")
			uploader := &Uploader{Bucket: "results", client: fake}

			So(uploader.Sync(cfg), ShouldBeFalse)
			So(fake.keys, ShouldHaveLength, 2)
		})
	})
}
