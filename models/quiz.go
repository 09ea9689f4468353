package models

import "time"

// Quiz holds generated questions for a user, optionally tied to one document.
// Questions are stored server-side with answers; the API strips answer and
// explanation fields before returning questions to the client.
type Quiz struct {
	ID         string         `bson:"_id,omitempty" json:"id"`
	UserID     string         `bson:"user_id" json:"user_id"`
	DocumentID string         `bson:"document_id,omitempty" json:"document_id,omitempty"`
	Questions  []QuizQuestion `bson:"questions" json:"questions"`
	Difficulty string         `bson:"difficulty" json:"difficulty"`
	Score      *float64       `bson:"score,omitempty" json:"score,omitempty"`
	Answers    []QuizAnswer   `bson:"answers,omitempty" json:"answers,omitempty"`
	TakenAt    *time.Time     `bson:"taken_at,omitempty" json:"taken_at,omitempty"`
	CreatedAt  time.Time      `bson:"created_at" json:"created_at"`
}

// QuizQuestion is one generated question tagged with its source concept
type QuizQuestion struct {
	Type        string   `bson:"type" json:"type"` // mcq, fillblank
	Question    string   `bson:"question" json:"question"`
	Options     []string `bson:"options,omitempty" json:"options,omitempty"`
	Answer      string   `bson:"answer" json:"answer"`
	Explanation string   `bson:"explanation,omitempty" json:"explanation,omitempty"`
	Concept     string   `bson:"concept,omitempty" json:"concept,omitempty"`
	ConceptID   string   `bson:"concept_id,omitempty" json:"concept_id,omitempty"`
}

// QuizAnswer records a graded submission for one question
type QuizAnswer struct {
	QuestionIndex int       `bson:"question_index" json:"question_index"`
	ConceptID     string    `bson:"concept_id,omitempty" json:"concept_id,omitempty"`
	UserAnswer    string    `bson:"user_answer" json:"user_answer"`
	Correct       bool      `bson:"correct" json:"correct"`
	AnsweredAt    time.Time `bson:"answered_at" json:"answered_at"`
}
