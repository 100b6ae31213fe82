package models

// AnomalyEvent is published once per detected anomaly for downstream
// notification dispatchers
type AnomalyEvent struct {
	EventID    string       `json:"event_id"`
	MerchantID string       `json:"merchant_id"`
	DetectedAt string       `json:"detected_at"` // RFC3339
	Anomaly    AnomalyEntry `json:"anomaly"`
}
