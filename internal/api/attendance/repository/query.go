package attendanceRepository

const (
	queryCreateRecord = `
INSERT INTO Attendance_Records (id, student_id, course_id, status, attendance_date, distance, recorded_at)
VALUES (:id, :student_id, :course_id, :status, :attendance_date, :distance, :recorded_at)`

	queryRecordExistsForDay = `
SELECT EXISTS (
    SELECT 1
    FROM Attendance_Records
    WHERE student_id = :student_id
      AND course_id = :course_id
      AND attendance_date = :attendance_date
) AS present`

	queryListRecordsByCourseDay = `
SELECT id, student_id, course_id, status, attendance_date, distance, recorded_at
FROM Attendance_Records
    WHERE course_id = :course_id
      AND attendance_date = :attendance_date
ORDER BY recorded_at`

	queryListRecordsByCourseRange = `
SELECT id, student_id, course_id, status, attendance_date, distance, recorded_at
FROM Attendance_Records
    WHERE course_id = :course_id
      AND attendance_date BETWEEN :from AND :to
ORDER BY attendance_date, recorded_at`

	queryUpsertClosing = `
INSERT INTO Session_Closures (id, course_id, closure_date, status)
VALUES (:id, :course_id, :closure_date, :status)
ON CONFLICT (course_id, closure_date)
    DO UPDATE SET status = EXCLUDED.status`

	queryMarkClosed = `
UPDATE Session_Closures
SET status = :status,
    closed_at = :closed_at
WHERE course_id = :course_id
  AND closure_date = :closure_date`

	queryGetClosureByCourseDay = `
SELECT id, course_id, closure_date, status, closed_at
FROM Session_Closures
    WHERE course_id = :course_id
      AND closure_date = :closure_date`
)
