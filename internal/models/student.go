package models

// Student represents one learner on the class roster. Students are never
// physically deleted; withdrawals and transfers flip Active to false so the
// roll number can be reassigned within the class.
type Student struct {
	ID        string `db:"id" json:"id"`
	Number    int    `db:"number" json:"number"`
	Name      string `db:"name" json:"name"`
	ClassName string `db:"class_name" json:"className"`
	Grade     int    `db:"grade" json:"grade"`
	Active    bool   `db:"active" json:"active"`
	CreatedAt int64  `db:"created_at" json:"createdAt"`
	UpdatedAt int64  `db:"updated_at" json:"updatedAt"`
}

// StudentFilter encapsulates allowed search parameters for listing students.
type StudentFilter struct {
	ClassName string
	Active    *bool
	Search    string
	SortBy    string
	SortOrder string
}

// ClassStatistics summarises roster sizes per class label.
type ClassStatistics struct {
	ClassName        string `json:"className"`
	TotalStudents    int    `json:"totalStudents"`
	ActiveStudents   int    `json:"activeStudents"`
	InactiveStudents int    `json:"inactiveStudents"`
}
