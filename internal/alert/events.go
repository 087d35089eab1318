package alert

// Event topics published by the Alert module.
const (
	TopicBreachDetected = "alert.breach_detected"
)

// BreachEvent is the payload published on TopicBreachDetected.
type BreachEvent struct {
	AlertID   string   `json:"alert_id"`
	AlertName string   `json:"alert_name"`
	Label     string   `json:"label"`
	Value     *float64 `json:"value"`
	Message   string   `json:"message"`
	Indices   []int    `json:"indices"`
}
