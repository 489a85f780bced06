// Package loadtest exercises the Controller under concurrent writers.
//
// It simulates several operators editing the same roster at once (taking
// attendance, updating student details) against a real Local Store, and
// reports per-mutation latency plus a check that every committed change
// received its own version.
package loadtest

import (
	"context"
	"fmt"
	"io"
	"log"
	"sort"
	gosync "sync"
	"time"

	"github.com/clubroster/roster/internal/app"
	"github.com/clubroster/roster/internal/club"
	"github.com/clubroster/roster/internal/remote"
	"github.com/clubroster/roster/internal/schema"
	"github.com/clubroster/roster/internal/store"
	"github.com/clubroster/roster/internal/sync"
)

// Fixture is a seeded store with a started, local-only controller over it.
type Fixture struct {
	Store      *store.Store
	Ctrl       *app.Controller
	StudentIDs []string

	versions *versionRecorder
}

// LatencyStats captures performance metrics from load tests.
type LatencyStats struct {
	Min          time.Duration
	Max          time.Duration
	Mean         time.Duration
	P50          time.Duration // Median
	P95          time.Duration
	P99          time.Duration
	TotalUpdates int
	Errors       int
}

// CreateFixture opens a store at dbPath seeded with numStudents students
// in local-only mode, and starts a controller over it.
func CreateFixture(dbPath string, numStudents int) (*Fixture, error) {
	quiet := log.New(io.Discard, "", 0)

	st, err := store.Open(dbPath, quiet)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}

	ds := schema.Empty()
	ds.Settings = &schema.Settings{ClubName: "Load Test"}
	ds.Students = generateStudents(numStudents)
	ds.LastUpdated = 1

	ctx := context.Background()
	if err := st.Save(ctx, ds); err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("failed to seed store: %w", err)
	}

	ctrl := app.New(st, remote.NewHTTPClient(&remote.Config{Logger: quiet}), &app.Config{Logger: quiet})
	versions := &versionRecorder{}
	ctrl.Subscribe(versions)
	if err := ctrl.Start(ctx); err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("failed to start controller: %w", err)
	}

	f := &Fixture{Store: st, Ctrl: ctrl, versions: versions}
	for _, s := range ds.Students {
		f.StudentIDs = append(f.StudentIDs, s.ID)
	}
	return f, nil
}

// Close stops the controller and closes the store.
func (f *Fixture) Close() error {
	_ = f.Ctrl.Close(context.Background())
	return f.Store.Close()
}

// RunConcurrentUpdates runs numWriters goroutines, each committing
// updatesPerWriter mutations. Writers alternate between recording an
// attendance sheet and renaming a student's class.
func (f *Fixture) RunConcurrentUpdates(numWriters, updatesPerWriter int) (*LatencyStats, error) {
	if len(f.StudentIDs) == 0 {
		return nil, fmt.Errorf("fixture has no students")
	}

	var wg gosync.WaitGroup
	resultsChan := make(chan []time.Duration, numWriters)
	errorsChan := make(chan error, numWriters*updatesPerWriter)

	for i := 0; i < numWriters; i++ {
		wg.Add(1)
		go func(writer int) {
			defer wg.Done()

			book := club.NewAttendanceBook(f.Ctrl)
			durations := make([]time.Duration, 0, updatesPerWriter)

			for j := 0; j < updatesPerWriter; j++ {
				id := f.StudentIDs[(writer*updatesPerWriter+j)%len(f.StudentIDs)]

				start := time.Now()
				var err error
				if j%2 == 0 {
					_, err = book.Record("", fmt.Sprintf("writer %d meeting %d", writer, j), []string{id}, "")
				} else {
					err = f.Ctrl.Mutate(func(ds *schema.Dataset) (app.Patch, error) {
						s, ok := ds.StudentByID(id)
						if !ok {
							return app.Patch{}, club.ErrStudentNotFound
						}
						s.Class = fmt.Sprintf("%d%c", 7+writer%3, 'A'+rune(j%4))
						students := replaceStudent(ds.Students, s)
						return app.Patch{Students: &students}, nil
					})
				}
				durations = append(durations, time.Since(start))

				if err != nil {
					errorsChan <- fmt.Errorf("writer %d update %d failed: %w", writer, j, err)
				}
			}

			resultsChan <- durations
		}(i)
	}

	wg.Wait()
	close(resultsChan)
	close(errorsChan)

	var all []time.Duration
	for durations := range resultsChan {
		all = append(all, durations...)
	}
	errorCount := 0
	for range errorsChan {
		errorCount++
	}

	if len(all) == 0 {
		return nil, fmt.Errorf("no updates completed")
	}

	stats := computeLatencyStats(all)
	stats.Errors = errorCount
	return stats, nil
}

// VerifyVersions checks that every local change observed so far carried a
// distinct version and that the controller holds the highest one.
func (f *Fixture) VerifyVersions() error {
	versions := f.versions.snapshot()
	if len(versions) == 0 {
		return nil
	}

	sort.Slice(versions, func(i, j int) bool { return versions[i] < versions[j] })
	for i := 1; i < len(versions); i++ {
		if versions[i] == versions[i-1] {
			return fmt.Errorf("version %d committed twice", versions[i])
		}
	}

	latest := versions[len(versions)-1]
	if got := f.Ctrl.Snapshot().LastUpdated; got != latest {
		return fmt.Errorf("controller at version %d, last committed %d", got, latest)
	}

	persisted := f.Store.Load(context.Background()).LastUpdated
	if persisted != latest {
		return fmt.Errorf("store at version %d, last committed %d", persisted, latest)
	}
	return nil
}

// Commits returns how many local changes were observed.
func (f *Fixture) Commits() int {
	return len(f.versions.snapshot())
}

// Fprint writes latency statistics to w.
func (s *LatencyStats) Fprint(w io.Writer) {
	fmt.Fprintf(w, "Latency Statistics:\n")
	fmt.Fprintf(w, "  Total Updates: %d\n", s.TotalUpdates)
	fmt.Fprintf(w, "  Errors:        %d\n", s.Errors)
	fmt.Fprintf(w, "  Min:           %v\n", s.Min)
	fmt.Fprintf(w, "  P50 (Median):  %v\n", s.P50)
	fmt.Fprintf(w, "  Mean:          %v\n", s.Mean)
	fmt.Fprintf(w, "  P95:           %v\n", s.P95)
	fmt.Fprintf(w, "  P99:           %v\n", s.P99)
	fmt.Fprintf(w, "  Max:           %v\n", s.Max)
}

// versionRecorder collects the versions of local Dataset changes.
type versionRecorder struct {
	mu       gosync.Mutex
	versions []int64
}

func (r *versionRecorder) OnStatus(app.Status, error) {}

func (r *versionRecorder) OnDatasetChanged(ds *schema.Dataset, source app.Source) {
	if source != app.SourceLocal {
		return
	}
	r.mu.Lock()
	r.versions = append(r.versions, ds.LastUpdated)
	r.mu.Unlock()
}

func (r *versionRecorder) OnPull(bool, sync.PullResult, error) {}

func (r *versionRecorder) snapshot() []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int64{}, r.versions...)
}

// generateStudents creates count students spread over six classes.
func generateStudents(count int) []schema.Student {
	students := make([]schema.Student, count)
	genders := []string{"L", "P"}
	for i := range students {
		students[i] = schema.Student{
			ID:       fmt.Sprintf("load-%05d", i),
			NIS:      fmt.Sprintf("%06d", 100000+i),
			Name:     fmt.Sprintf("Student %d", i),
			Class:    fmt.Sprintf("%d%c", 7+i%3, 'A'+rune(i%2)),
			Gender:   genders[i%len(genders)],
			JoinedAt: "2024-07-15",
		}
	}
	return students
}

func replaceStudent(students []schema.Student, s schema.Student) []schema.Student {
	out := append([]schema.Student{}, students...)
	for i := range out {
		if out[i].ID == s.ID {
			out[i] = s
		}
	}
	return out
}

// computeLatencyStats calculates statistics from a slice of durations.
func computeLatencyStats(durations []time.Duration) *LatencyStats {
	if len(durations) == 0 {
		return &LatencyStats{}
	}

	sorted := make([]time.Duration, len(durations))
	copy(sorted, durations)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i] < sorted[j]
	})

	var sum time.Duration
	for _, d := range durations {
		sum += d
	}

	return &LatencyStats{
		Min:          sorted[0],
		Max:          sorted[len(sorted)-1],
		Mean:         sum / time.Duration(len(durations)),
		P50:          sorted[len(sorted)*50/100],
		P95:          sorted[len(sorted)*95/100],
		P99:          sorted[len(sorted)*99/100],
		TotalUpdates: len(durations),
	}
}
