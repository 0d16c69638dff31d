package entities

// ModelStats is a derived leaderboard row, aggregated from model_predictions
// joined with the owning video's ground truth. It is never written back.
type ModelStats struct {
	ModelName          string  `json:"model_name"`
	TotalPredictions   int     `json:"total_predictions"`
	CorrectPredictions int     `json:"correct_predictions"`
	Accuracy           float64 `json:"accuracy"`
	AvgResponseTime    float64 `json:"avg_response_time"`
}
