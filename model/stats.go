package model

// Stats represents the aggregate notification counts reported by the backend
// for a single user. The unread count here is authoritative over any count
// derived locally from a loaded page.
type Stats struct {
	Total      int            `json:"total"`
	Unread     int            `json:"unread"`
	ByType     map[string]int `json:"byType"`
	ByPriority map[string]int `json:"byPriority"`
}
