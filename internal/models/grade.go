package models

import "time"

// GradedItem is a single recorded evaluation (nota) for a student in a course.
// Weight is an audit copy of the scheme weight at entry time; the computation
// always uses the scheme's current weight, never this field.
type GradedItem struct {
	ID             string    `db:"id" json:"id"`
	StudentID      string    `db:"student_id" json:"student_id"`
	CourseID       string    `db:"course_id" json:"course_id"`
	Category       string    `db:"category" json:"categoria"`
	Score          float64   `db:"score" json:"nota"`
	Weight         float64   `db:"weight" json:"peso"`
	EvaluationDate time.Time `db:"evaluation_date" json:"fecha_evaluacion"`
	Notes          string    `db:"notes" json:"observaciones,omitempty"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

// GradedItemFilter restricts graded item listings.
type GradedItemFilter struct {
	StudentID string
	CourseID  string
	Category  string
}

// GradeScheme is the per course+cycle category configuration: which
// evaluation categories exist, how they weigh into the final average and
// how many items each is expected to accumulate.
type GradeScheme struct {
	ID         string           `db:"id" json:"id"`
	CourseID   string           `db:"course_id" json:"course_id"`
	CycleID    string           `db:"cycle_id" json:"cycle_id"`
	Finalized  bool             `db:"finalized" json:"finalized"`
	CreatedAt  time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time        `db:"updated_at" json:"updated_at"`
	Categories []SchemeCategory `json:"categories,omitempty"`
}

// SchemeCategory is one category row of a grade scheme.
type SchemeCategory struct {
	ID            string    `db:"id" json:"id"`
	SchemeID      string    `db:"scheme_id" json:"scheme_id"`
	Category      string    `db:"category" json:"categoria"`
	Weight        float64   `db:"weight" json:"peso"`
	ExpectedCount int       `db:"expected_count" json:"esperadas"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
}

// GradeHistory records every mutation of a graded item (historial de notas).
type GradeHistory struct {
	ID        string    `db:"id" json:"id"`
	ItemID    string    `db:"item_id" json:"item_id"`
	OldScore  *float64  `db:"old_score" json:"nota_anterior,omitempty"`
	NewScore  float64   `db:"new_score" json:"nota_nueva"`
	Reason    string    `db:"reason" json:"motivo_cambio"`
	ChangedBy string    `db:"changed_by" json:"usuario_modificacion"`
	ChangedAt time.Time `db:"changed_at" json:"fecha_modificacion"`
}
