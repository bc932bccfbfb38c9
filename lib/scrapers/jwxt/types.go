package jwxt

// ScoreRow is one parsed row of the jwxt score table. Rows are value
// objects; CourseID is the stable identity used for de-duplication, the
// remaining fields exist for display only.
type ScoreRow struct {
	Term           string `json:"term"`
	CourseID       string `json:"course_id"`
	CourseName     string `json:"course_name"`
	Group          string `json:"group"`
	Score          string `json:"score"`
	ScoreFlag      string `json:"score_flag"`
	Credit         string `json:"credit"`
	TotalHours     string `json:"total_hours"`
	GPA            string `json:"gpa"`
	RetakeTerm     string `json:"retake_term"`
	AssessMethod   string `json:"assess_method"`
	ExamNature     string `json:"exam_nature"`
	CourseAttr     string `json:"course_attr"`
	CourseNature   string `json:"course_nature"`
	CourseCategory string `json:"course_category"`
}
