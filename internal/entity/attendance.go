package entity

import "time"

type AttendanceStatus uint8

const (
	AttendanceStatusUnknown AttendanceStatus = 0
	AttendanceStatusPresent AttendanceStatus = 1
	AttendanceStatusAbsent  AttendanceStatus = 2
)

var attendanceStatusMap = map[AttendanceStatus]string{
	AttendanceStatusPresent: "present",
	AttendanceStatusAbsent:  "absent",
}

func (s AttendanceStatus) String() string {
	return attendanceStatusMap[s]
}

func ParseAttendanceStatus(s string) AttendanceStatus {
	switch s {
	case "present":
		return AttendanceStatusPresent
	case "absent":
		return AttendanceStatusAbsent
	default:
		return AttendanceStatusUnknown
	}
}

// AttendanceRecord is append-only. The engine never mutates or deletes rows;
// at most one row exists per (student, course, day).
type AttendanceRecord struct {
	ID             string
	StudentID      string
	CourseID       string
	Status         AttendanceStatus
	AttendanceDate string // YYYY-MM-DD, course-local day
	Distance       float64
	RecordedAt     time.Time
}

type ClosureStatus uint8

const (
	ClosureStatusNone    ClosureStatus = 0
	ClosureStatusClosing ClosureStatus = 1
	ClosureStatusClosed  ClosureStatus = 2
)

var closureStatusMap = map[ClosureStatus]string{
	ClosureStatusClosing: "closing",
	ClosureStatusClosed:  "closed",
}

func (s ClosureStatus) String() string {
	return closureStatusMap[s]
}

// SessionClosure records the absentee sweep for one (course, day). It stays
// in "closing" when the sweep fails partway so a retry can finish it.
type SessionClosure struct {
	ID          string
	CourseID    string
	ClosureDate string
	Status      ClosureStatus
	ClosedAt    time.Time
}

// DayStatus is the derived display status: present beats everything, absent
// requires a closure to have run, otherwise the day is still pending.
type DayStatus struct {
	StudentID string
	Name      string
	Status    string // present | absent | pending
}
