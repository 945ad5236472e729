package dummydb

import (
	"sync"

	"github.com/guigasprogramador/oneeduca/core/certificate"
	"github.com/guigasprogramador/oneeduca/core/course"
	"github.com/guigasprogramador/oneeduca/core/user"
)

// Op names a repository operation, for fault injection and call counting.
type Op string

const (
	OpCreateCertificate Op = "certificate.create"
	OpGetCertificate    Op = "certificate.get"
	OpFilterCertificate Op = "certificate.filter"
	OpFindEnrollment    Op = "enrollment.find"
	OpUpdateEnrollment  Op = "enrollment.update"
	OpListEnrollments   Op = "enrollment.list"
	OpListModules       Op = "module.list"
	OpListCompletions   Op = "completion.list"
	OpGetCourse         Op = "course.get"
	OpGetProfile        Op = "profile.get"
)

type (
	// DB is an in-memory database for tests and local runs.
	DB struct {
		profile     *profileTable
		course      *courseTables
		certificate *certificateTable
		faults      *faultTable
	}

	profileTable struct {
		sync.RWMutex
		table map[string]*user.Profile
	}

	courseTables struct {
		sync.RWMutex
		courses     map[string]*course.Course
		modules     map[string]*course.Module
		lessons     map[string]*course.Lesson
		enrollments map[[2]string]*course.Enrollment       // {learner, course}
		completions map[[2]string]*course.LessonCompletion // {learner, lesson}
	}

	certificateTable struct {
		sync.RWMutex
		table map[string]*certificate.Certificate // {id}
	}

	faultTable struct {
		sync.Mutex
		errs  map[Op]error
		calls map[Op]int
	}
)

func Open() (*DB, error) {
	db := &DB{
		profile: &profileTable{table: make(map[string]*user.Profile)},
		course: &courseTables{
			courses:     make(map[string]*course.Course),
			modules:     make(map[string]*course.Module),
			lessons:     make(map[string]*course.Lesson),
			enrollments: make(map[[2]string]*course.Enrollment),
			completions: make(map[[2]string]*course.LessonCompletion),
		},
		certificate: &certificateTable{table: make(map[string]*certificate.Certificate)},
		faults:      &faultTable{errs: make(map[Op]error), calls: make(map[Op]int)},
	}
	return db, nil
}

// SetFault makes every following call of op fail with err. A nil err clears the fault.
func (db *DB) SetFault(op Op, err error) {
	db.faults.Lock()
	defer db.faults.Unlock()
	if err == nil {
		delete(db.faults.errs, op)
		return
	}
	db.faults.errs[op] = err
}

// Calls returns how many times op was called.
func (db *DB) Calls(op Op) int {
	db.faults.Lock()
	defer db.faults.Unlock()
	return db.faults.calls[op]
}

func (db *DB) hit(op Op) error {
	db.faults.Lock()
	defer db.faults.Unlock()
	db.faults.calls[op]++
	return db.faults.errs[op]
}
