package scan

import "time"

// CartItem is the canonical cart-candidate representation of a supply item.
// ID is a locally generated opaque key and never leaves the app; ProductID
// is the remote catalog product it was matched to (0 until matched) and is
// the only id ever sent to the partner store.
type CartItem struct {
	ID                string  `json:"id"`
	ProductID         int     `json:"productId,omitempty"`
	Name              string  `json:"name"`
	Brand             string  `json:"brand"`
	Price             float64 `json:"price"`
	Image             string  `json:"image"`
	InCart            bool    `json:"inCart"`
	OriginalTerm      string  `json:"originalTerm"`
	RequestedQuantity int     `json:"requestedQuantity"`
}

// SchoolInfo is the session-level record describing the scanned document
type SchoolInfo struct {
	SchoolName  string `json:"schoolName"`
	Grade       string `json:"grade"`
	TeacherName string `json:"teacherName"`
	Year        string `json:"year"`
}

// HistoryEntry is an immutable snapshot appended when a list is finalized
type HistoryEntry struct {
	ID          string     `json:"id"`
	Timestamp   time.Time  `json:"timestamp"`
	SchoolName  string     `json:"schoolName"`
	Grade       string     `json:"grade"`
	TeacherName string     `json:"teacherName"`
	Year        string     `json:"year"`
	ItemCount   int        `json:"itemCount"`
	Items       []CartItem `json:"items"`
}
