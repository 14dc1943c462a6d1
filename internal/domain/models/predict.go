package models

// PredictRequest is the JSON body of the prediction API.
type PredictRequest struct {
	Rows    []map[string]interface{} `json:"rows" validate:"required"`
	MaxRows int                      `json:"max_rows" default:"100" validate:"gte=1,lte=100000"`
}

// PredictResponse carries one prediction per input row, in input order.
type PredictResponse struct {
	ModelID     string    `json:"model_id"`
	Rows        int       `json:"rows"`
	Predictions []float64 `json:"predictions"`
}
