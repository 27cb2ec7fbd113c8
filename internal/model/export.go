package model

// ReviewedAtLayout is the timestamp layout used by FinalSummary.ReviewedAt.
const ReviewedAtLayout = "2006-01-02 15:04:05"

// Decision is the overall verdict of a compiled assessment.
// The set is open: values produced by newer servers are passed through as is.
type Decision string

const (
	DecisionPass       Decision = "PASS"
	DecisionFail       Decision = "FAIL"
	DecisionBorderline Decision = "BORDERLINE"
)

// FinalSummary is the compiled, read-only result of a complete session.
type FinalSummary struct {
	PerQuestion  []ReviewOutcome `json:"perQuestion"`
	TotalScore   float64         `json:"totalScore"`
	MaxScore     float64         `json:"maxScore"`
	Decision     Decision        `json:"decision"`
	OverallNotes string          `json:"overallNotes"`
	ReviewedAt   string          `json:"reviewedAt"`
}

// QuestionsResponse is the body of GET /questions.
type QuestionsResponse struct {
	Questions     []Question      `json:"questions"`
	CurrentScores []ReviewOutcome `json:"current_scores"`
}

// ProcessVideoResponse is the body of a successful POST /process_video.
type ProcessVideoResponse struct {
	AssessmentData []ReviewOutcome `json:"assessment_data"`
	LatestScore    ReviewOutcome   `json:"latest_score"`
}

// CompileResponse is the body of a successful GET /compile_summary.
type CompileResponse struct {
	FinalPayload FinalSummary `json:"final_payload"`
}

// ErrorResponse is the body of any non-2xx response.
type ErrorResponse struct {
	Error string `json:"error"`
}
