package enrollmentRepository

const (
	queryCreateStudent = `
INSERT INTO Students (id, course_id, name, student_number, photo_url, created_at)
VALUES (:id, :course_id, :name, :student_number, :photo_url, :created_at)`

	queryGetStudentById = `
SELECT id, course_id, name, student_number, photo_url, created_at, updated_at
FROM Students
    WHERE id = :id`

	queryListStudentsByCourse = `
SELECT id, course_id, name, student_number, photo_url, created_at, updated_at
FROM Students
    WHERE course_id = :course_id
ORDER BY name`

	queryUpdateStudentPhoto = `
UPDATE Students
SET photo_url = :photo_url,
    updated_at = :updated_at
WHERE id = :id`

	queryDeleteStudent = `
DELETE FROM Students
WHERE id = :id`

	queryCreateCourse = `
INSERT INTO Courses (id, code, name, created_at)
VALUES (:id, :code, :name, :created_at)`

	queryGetCourseById = `
SELECT id, code, name, created_at
FROM Courses
    WHERE id = :id`

	queryCreateStudentFace = `
INSERT INTO Student_Faces (id, student_id, embedding, source_photo_url, created_at)
VALUES (:id, :student_id, :embedding, :source_photo_url, :created_at)`

	queryListFacesByStudent = `
SELECT id, student_id, embedding, source_photo_url, created_at
FROM Student_Faces
    WHERE student_id = :student_id
ORDER BY created_at`

	queryListFacesByCourse = `
SELECT f.id, f.student_id, f.embedding, f.source_photo_url, f.created_at
FROM Student_Faces f
    JOIN Students s ON s.id = f.student_id
WHERE s.course_id = :course_id
ORDER BY f.student_id, f.created_at`

	queryDeleteFacesByStudent = `
DELETE FROM Student_Faces
WHERE student_id = :student_id`
)
