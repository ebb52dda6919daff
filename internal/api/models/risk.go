package models

// RiskForecast is the response of the risk endpoints.
type RiskForecast struct {
	Start string           `json:"start"`
	Days  int              `json:"days"`
	Items []RiskDay        `json:"items"`
	Meta  RiskForecastMeta `json:"meta"`
}

// RiskDay is one user's forecast for one date.
type RiskDay struct {
	UserID     string    `json:"userId"`
	Date       string    `json:"date"`
	Risk       float64   `json:"risk"`
	Confidence *float64  `json:"confidence,omitempty"`
	Model      string    `json:"model"`
	UpdatedAt  Timestamp `json:"updatedAt"`
}

// RiskForecastMeta describes how the forecast was produced.
type RiskForecastMeta struct {
	Cached         bool     `json:"cached"`
	UnknownUsers   []string `json:"unknownUsers,omitempty"`
	FallbackUsers  []string `json:"fallbackUsers,omitempty"`
	MissingColumns []string `json:"missingColumns,omitempty"`
	Stored         bool     `json:"stored"`
}

// RiskQuery holds validated query parameters of the risk endpoints.
type RiskQuery struct {
	UserIDs []string `validate:"required,min=1,max=50,dive,required,max=128"`
	Start   string   `validate:"omitempty,datetime=2006-01-02"`
	Days    int      `validate:"gte=0,lte=14"`
	Refresh bool
}
