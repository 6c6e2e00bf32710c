// Package upload syncs a finished run's output directory to durable remote
// storage on S3.
package upload

import (
	"context"
	"io/fs"
	"os"
	"path"
	"path/filepath"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	log "github.com/sirupsen/logrus"

	"github.com/JakobPriesner/BeFaaS-framework/pkg/conf"
	"github.com/JakobPriesner/BeFaaS-framework/pkg/experiment"
)

var bucketFlag = conf.NewStringFlag(
	"results_bucket",
	"S3 bucket for uploading run results; empty disables uploading",
	"",
)

// objectUploader is the slice of manager.Uploader the syncer needs.
// Replaceable in tests.
type objectUploader interface {
	Upload(ctx context.Context, input *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

// Uploader syncs output directories to a remote bucket.
type Uploader struct {
	// Bucket overrides the flag value. Empty means the flag.
	Bucket string
	// client is lazily constructed from the ambient AWS configuration.
	client objectUploader
}

func (u *Uploader) bucket() string {
	if u.Bucket != "" {
		return u.Bucket
	}
	return bucketFlag.Value()
}

func (u *Uploader) uploader(ctx context.Context) (objectUploader, error) {
	if u.client != nil {
		return u.client, nil
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, err
	}

	u.client = manager.NewUploader(s3.NewFromConfig(awsCfg))
	return u.client, nil
}

// Sync uploads the full output directory tree below
// s3://<bucket>/<experiment>/<basename(outputDir)>/. It returns whether the
// upload fully succeeded and never returns an error: upload failure is
// non-fatal to the run.
func (u *Uploader) Sync(cfg experiment.Config) bool {
	bucket := u.bucket()
	if bucket == "" {
		log.Info("No results bucket configured, skipping upload")
		return true
	}

	ctx := context.Background()
	uploader, err := u.uploader(ctx)
	if err != nil {
		log.Warnf("Could not configure S3 upload: %v", err)
		return false
	}

	prefix := path.Join(cfg.Name, filepath.Base(cfg.OutputDir))
	ok := true
	uploaded := 0

	err = filepath.WalkDir(cfg.OutputDir, func(walkPath string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if entry.IsDir() {
			return nil
		}

		relative, err := filepath.Rel(cfg.OutputDir, walkPath)
		if err != nil {
			return err
		}

		file, err := os.Open(walkPath)
		if err != nil {
			log.Warnf("Could not open %q for upload: %v", walkPath, err)
			ok = false
			return nil
		}
		defer file.Close()

		key := path.Join(prefix, filepath.ToSlash(relative))
		_, err = uploader.Upload(ctx, &s3.PutObjectInput{
			Bucket: &bucket,
			Key:    &key,
			Body:   file,
		})
		if err != nil {
			log.Warnf("Upload of %q failed: %v", key, err)
			ok = false
			return nil
		}

		uploaded++
		return nil
	})
	if err != nil {
		log.Warnf("Walking %q for upload failed: %v", cfg.OutputDir, err)
		return false
	}

	if ok {
		log.Infof("Uploaded %d files to s3://%s/%s", uploaded, bucket, prefix)
	}
	return ok
}
