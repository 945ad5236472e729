package progress

import (
	"context"
	"sync"

	"github.com/guigasprogramador/oneeduca/core"
	"github.com/guigasprogramador/oneeduca/core/course"
)

type progressKey struct {
	learnerID string
	courseID  string
}

// progressSlot orders the enrollment writes of one (learner, course) pair.
type progressSlot struct {
	sync.Mutex // held while writing

	latest uint64 // guarded by recorder.mu
	refs   int    // guarded by recorder.mu
}

// recorder stores enrollment progress off the request path.
// Writes of a pair run one at a time and store the progress recomputed at write time,
// so the last write reflects the latest completions. A write superseded by a newer request is dropped.
type recorder struct {
	repo   course.Repository
	logger core.Logger

	mu      sync.Mutex
	slots   map[progressKey]*progressSlot
	pending sync.WaitGroup
}

func newRecorder(repo course.Repository, logger core.Logger) *recorder {
	return &recorder{
		repo:   repo,
		logger: logger,
		slots:  make(map[progressKey]*progressSlot),
	}
}

// record schedules a progress write for the pair and returns immediately.
func (r *recorder) record(ctx context.Context, learnerID, courseID string) {
	key := progressKey{learnerID: learnerID, courseID: courseID}

	r.mu.Lock()
	slot, ok := r.slots[key]
	if !ok {
		slot = &progressSlot{}
		r.slots[key] = slot
	}
	slot.latest++
	slot.refs++
	seq := slot.latest
	r.mu.Unlock()

	ctx = context.WithoutCancel(ctx)
	r.pending.Add(1)
	go func() {
		defer r.pending.Done()
		slot.Lock()
		defer r.release(key, slot)

		if r.superseded(slot, seq) {
			return
		}
		pct, err := aggregate(ctx, r.repo, learnerID, courseID)
		if err != nil {
			r.logger.Warn("recomputing course progress", "error", err, "learner", learnerID, "course", courseID)
			return
		}
		if err = r.repo.UpdateEnrollmentProgress(ctx, learnerID, courseID, pct); err != nil {
			r.logger.Warn("persisting course progress", "error", err, "learner", learnerID, "course", courseID, "progress", pct)
		}
	}()
}

func (r *recorder) superseded(slot *progressSlot, seq uint64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return seq < slot.latest
}

func (r *recorder) release(key progressKey, slot *progressSlot) {
	slot.Unlock()

	r.mu.Lock()
	defer r.mu.Unlock()
	slot.refs--
	if slot.refs == 0 {
		delete(r.slots, key)
	}
}

// flush waits for the scheduled writes.
func (r *recorder) flush() {
	r.pending.Wait()
}
