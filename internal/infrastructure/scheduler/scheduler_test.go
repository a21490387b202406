package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
	"go.uber.org/zap"

	"github.com/semmidev/dbvault/internal/config"
)

func TestDaily(t *testing.T) {
	Convey("Given a Daily scheduler", t, func() {
		log := zap.NewNop().Sugar()

		Convey("Next function", func() {
			Convey("When the trigger is midnight and it is 23:00", func() {
				d, err := New(config.TimeOfDay{}, time.UTC, log)
				So(err, ShouldBeNil)

				now := time.Date(2024, 5, 10, 23, 0, 0, 0, time.UTC)

				Convey("It should pick midnight of the following day", func() {
					So(d.Next(now), ShouldEqual, time.Date(2024, 5, 11, 0, 0, 0, 0, time.UTC))
				})
			})

			Convey("When today's trigger is still ahead", func() {
				d, err := New(config.TimeOfDay{Hour: 2, Minute: 30}, time.UTC, log)
				So(err, ShouldBeNil)

				now := time.Date(2024, 5, 10, 1, 59, 59, 0, time.UTC)

				Convey("It should pick today", func() {
					So(d.Next(now), ShouldEqual, time.Date(2024, 5, 10, 2, 30, 0, 0, time.UTC))
				})
			})

			Convey("When now is exactly the trigger instant", func() {
				d, err := New(config.TimeOfDay{Hour: 2, Minute: 30}, time.UTC, log)
				So(err, ShouldBeNil)

				now := time.Date(2024, 5, 10, 2, 30, 0, 0, time.UTC)

				Convey("It should pick tomorrow because the instant is no longer in the future", func() {
					So(d.Next(now), ShouldEqual, time.Date(2024, 5, 11, 2, 30, 0, 0, time.UTC))
				})
			})

			Convey("When the trigger crosses a month boundary", func() {
				d, err := New(config.TimeOfDay{Hour: 1}, time.UTC, log)
				So(err, ShouldBeNil)

				now := time.Date(2024, 12, 31, 12, 0, 0, 0, time.UTC)

				Convey("It should roll into the next year", func() {
					So(d.Next(now), ShouldEqual, time.Date(2025, 1, 1, 1, 0, 0, 0, time.UTC))
				})
			})

			Convey("When a timezone is configured", func() {
				loc := time.FixedZone("UTC+8", 8*60*60)
				d, err := New(config.TimeOfDay{}, loc, log)
				So(err, ShouldBeNil)

				now := time.Date(2024, 5, 10, 10, 0, 0, 0, time.UTC) // 18:00 in UTC+8

				Convey("It should compute the instant in that zone", func() {
					next := d.Next(now)
					So(next.Equal(time.Date(2024, 5, 11, 0, 0, 0, 0, loc)), ShouldBeTrue)
				})
			})
		})

		Convey("Run function", func() {
			current := time.Date(2024, 5, 10, 23, 0, 0, 0, time.UTC)
			var waits []time.Duration

			now := func() time.Time { return current }
			after := func(d time.Duration) <-chan time.Time {
				waits = append(waits, d)
				current = current.Add(d)
				ch := make(chan time.Time, 1)
				ch <- current
				return ch
			}

			d, err := New(config.TimeOfDay{}, time.UTC, log, WithClock(now, after))
			So(err, ShouldBeNil)

			Convey("When the job runs several times", func() {
				ctx, cancel := context.WithCancel(context.Background())
				defer cancel()

				var runs []time.Time
				err := d.Run(ctx, func(ctx context.Context) {
					runs = append(runs, current)
					current = current.Add(90 * time.Minute)
					if len(runs) == 3 {
						cancel()
					}
				})

				Convey("It should run once per day at the trigger instant", func() {
					So(errors.Is(err, context.Canceled), ShouldBeTrue)
					So(len(runs), ShouldEqual, 3)
					So(runs[0], ShouldEqual, time.Date(2024, 5, 11, 0, 0, 0, 0, time.UTC))
					So(runs[1], ShouldEqual, time.Date(2024, 5, 12, 0, 0, 0, 0, time.UTC))
					So(runs[2], ShouldEqual, time.Date(2024, 5, 13, 0, 0, 0, 0, time.UTC))
				})

				Convey("It should wait in bounded steps from the end of the previous cycle", func() {
					var total time.Duration
					for _, wait := range waits {
						So(wait, ShouldBeLessThanOrEqualTo, maxWait)
						total += wait
					}
					So(total, ShouldEqual, time.Hour+2*(22*time.Hour+30*time.Minute))
				})
			})

			Convey("When the wall clock lags behind the timer", func() {
				ctx, cancel := context.WithCancel(context.Background())
				defer cancel()

				// The first timer fires while the wall clock was stepped back
				// ten minutes.
				stepped := false
				d.after = func(wait time.Duration) <-chan time.Time {
					waits = append(waits, wait)
					current = current.Add(wait)
					if !stepped {
						stepped = true
						current = current.Add(-10 * time.Minute)
					}
					ch := make(chan time.Time, 1)
					ch <- current
					return ch
				}

				var runs []time.Time
				err := d.Run(ctx, func(context.Context) {
					runs = append(runs, current)
					cancel()
				})

				Convey("It should keep waiting until the trigger instant", func() {
					So(errors.Is(err, context.Canceled), ShouldBeTrue)
					So(runs, ShouldResemble, []time.Time{time.Date(2024, 5, 11, 0, 0, 0, 0, time.UTC)})
				})
			})

			Convey("When the host sleeps through part of a wait", func() {
				ctx, cancel := context.WithCancel(context.Background())
				defer cancel()

				d.maxWait = 10 * time.Minute
				d.after = func(wait time.Duration) <-chan time.Time {
					waits = append(waits, wait)
					// Suspended for half an hour during the first step.
					if len(waits) == 1 {
						wait += 30 * time.Minute
					}
					current = current.Add(wait)
					ch := make(chan time.Time, 1)
					ch <- current
					return ch
				}

				var runs []time.Time
				err := d.Run(ctx, func(context.Context) {
					runs = append(runs, current)
					cancel()
				})

				Convey("It should notice on the next step and fire on time", func() {
					So(errors.Is(err, context.Canceled), ShouldBeTrue)
					So(runs, ShouldResemble, []time.Time{time.Date(2024, 5, 11, 0, 0, 0, 0, time.UTC)})
					So(len(waits), ShouldEqual, 3)
				})
			})

			Convey("When the context is already cancelled", func() {
				ctx, cancel := context.WithCancel(context.Background())
				cancel()

				ran := false
				err := d.Run(ctx, func(context.Context) { ran = true })

				Convey("It should return without running the job", func() {
					So(errors.Is(err, context.Canceled), ShouldBeTrue)
					So(ran, ShouldBeFalse)
				})
			})
		})
	})
}
