package model

// Fixtures is the JSON structure accepted by the import command. It seeds the
// question bank, per-session answers and the two performance read models.
type Fixtures struct {
	Questions             []QuestionImport        `json:"questions"`
	SessionAnswers        []SessionAnswerImport   `json:"session_answers"`
	CategoryPerformance   []CategoryPerformance   `json:"category_performance"`
	DifficultyAchievement []DifficultyAchievement `json:"difficulty_achievement"`
}

// QuestionImport is one question bank entry.
type QuestionImport struct {
	ID              string   `json:"id"`
	Text            string   `json:"text"`
	Options         []string `json:"options"`
	CorrectAnswer   string   `json:"correct_answer"`
	Explanation     string   `json:"explanation"`
	MajorCategory   string   `json:"major_category"`
	MinorCategory   string   `json:"minor_category"`
	DifficultyLevel int      `json:"difficulty_level"`
}

// SessionAnswerImport is one answered question inside a stored session.
type SessionAnswerImport struct {
	SessionID    string `json:"session_id"`
	UserID       string `json:"user_id"`
	QuestionID   string `json:"question_id"`
	UserAnswer   string `json:"user_answer"`
	IsCorrect    bool   `json:"is_correct"`
	TimeSpent    int    `json:"time_spent"`
	AttemptCount int    `json:"attempt_count"`
}
