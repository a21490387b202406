package usecase

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
	"go.uber.org/zap"

	"github.com/semmidev/dbvault/internal/adapter/compressor"
	"github.com/semmidev/dbvault/internal/adapter/storage"
	"github.com/semmidev/dbvault/internal/domain"
)

func TestBackup(t *testing.T) {
	Convey("Given a Backup executor", t, func() {
		ctx := context.Background()
		log := zap.NewNop().Sugar()
		dir := filepath.Join(t.TempDir(), "backups", "mysql")
		fixed := time.Date(2024, 5, 10, 3, 4, 5, 0, time.UTC)

		dumper := &fakeDumper{
			outputs:  map[string]string{"app": "-- app dump", "logs": "-- logs dump"},
			failures: map[string]bool{"broken": true},
		}
		archiver := compressor.NewZip("secret", log)
		folder := storage.NewLocal(dir, storage.WithBirthTime(modTime))

		newBackup := func(opts BackupOptions, targets ...UploadTarget) *Backup {
			if opts.Now == nil {
				opts.Now = func() time.Time { return fixed }
			}
			return NewBackup(dumper, archiver, folder, targets, log, opts)
		}

		Convey("When the dump succeeds without a time format", func() {
			outcome, err := newBackup(BackupOptions{KeepCount: 7}).Execute(ctx, 3, "app")

			Convey("It should create the folder and a plain named archive", func() {
				So(err, ShouldBeNil)
				So(outcome.ArchivePath, ShouldEqual, filepath.Join(dir, "app.zip"))
				So(listNames(t, dir), ShouldResemble, []string{"app.zip"})
			})

			Convey("It should describe the attempt", func() {
				So(err, ShouldBeNil)
				So(outcome.Index, ShouldEqual, 3)
				So(outcome.Database, ShouldEqual, "app")
				So(outcome.Success, ShouldBeTrue)
				So(outcome.Duration, ShouldEqual, 11*time.Microsecond)
				So(outcome.Size, ShouldBeGreaterThan, 0)
			})

			Convey("It should store the dump under the raw file name", func() {
				name, data, err := archiver.Extract(outcome.ArchivePath)
				So(err, ShouldBeNil)
				So(name, ShouldEqual, "app.sql")
				So(string(data), ShouldEqual, "-- app dump")
			})
		})

		Convey("When a time format is configured", func() {
			outcome, err := newBackup(BackupOptions{TimeFormat: "20060102_150405", KeepCount: 7}).Execute(ctx, 0, "app")

			Convey("It should use one timestamp for raw and archive names", func() {
				So(err, ShouldBeNil)
				So(filepath.Base(outcome.ArchivePath), ShouldEqual, "app_20240510_030405.zip")

				name, _, err := archiver.Extract(outcome.ArchivePath)
				So(err, ShouldBeNil)
				So(name, ShouldEqual, "app_20240510_030405.sql")
			})
		})

		Convey("When archives accumulate beyond the keep count", func() {
			clock := fixed
			backup := newBackup(BackupOptions{
				TimeFormat: "20060102",
				KeepCount:  2,
				Now:        func() time.Time { return clock },
			})

			for day := 0; day < 4; day++ {
				clock = fixed.AddDate(0, 0, day)
				outcome, err := backup.Execute(ctx, 0, "app")
				So(err, ShouldBeNil)
				stamp := clock.Add(-time.Hour)
				So(os.Chtimes(outcome.ArchivePath, stamp, stamp), ShouldBeNil)
			}

			Convey("It should prune after every successful archive", func() {
				So(listNames(t, dir), ShouldResemble, []string{"app_20240512.zip", "app_20240513.zip"})
			})
		})

		Convey("When the dump fails", func() {
			outcome, err := newBackup(BackupOptions{KeepCount: 7}).Execute(ctx, 1, "broken")

			Convey("It should return no outcome and leave no files", func() {
				So(outcome, ShouldBeNil)
				So(errors.Is(err, domain.ErrDumpFailed), ShouldBeTrue)
				So(listNames(t, dir), ShouldBeEmpty)
			})
		})

		Convey("When the archive cannot be written", func() {
			blocked := filepath.Join(dir, "app.zip")
			So(os.MkdirAll(filepath.Join(blocked, "keep"), 0755), ShouldBeNil)

			outcome, err := newBackup(BackupOptions{KeepCount: 7}).Execute(ctx, 0, "app")

			Convey("It should fail only this attempt", func() {
				So(outcome, ShouldBeNil)
				So(err, ShouldNotBeNil)
				So(errors.Is(err, ErrDestinationUnavailable), ShouldBeFalse)
				So(listNames(t, dir), ShouldResemble, []string{"app.zip"})

				info, err := os.Stat(blocked)
				So(err, ShouldBeNil)
				So(info.IsDir(), ShouldBeTrue)
			})
		})

		Convey("When the destination folder cannot be created", func() {
			blocker := filepath.Join(t.TempDir(), "file")
			So(os.WriteFile(blocker, []byte("x"), 0644), ShouldBeNil)

			backup := NewBackup(dumper, archiver, storage.NewLocal(filepath.Join(blocker, "sub")), nil, log, BackupOptions{})
			_, err := backup.Execute(ctx, 0, "app")

			Convey("It should report the destination as unavailable", func() {
				So(errors.Is(err, ErrDestinationUnavailable), ShouldBeTrue)
				So(dumper.calls, ShouldBeEmpty)
			})
		})

		Convey("When upload targets are configured", func() {
			good := &fakeStorage{}
			bad := &fakeStorage{failWith: errors.New("bucket not found")}

			outcome, err := newBackup(BackupOptions{KeepCount: 7},
				UploadTarget{Name: "s3", Storage: good},
				UploadTarget{Name: "gdrive", Storage: bad},
			).Execute(ctx, 0, "logs")

			Convey("It should copy the archive and ignore failing targets", func() {
				So(err, ShouldBeNil)
				So(outcome, ShouldNotBeNil)
				So(good.uploads, ShouldResemble, []string{"logs.zip"})
				So(bad.uploads, ShouldBeEmpty)
			})
		})
	})
}
