package domain

import "time"

// NewsletterEmail is one message supplied by a mail source.
type NewsletterEmail struct {
	Subject string
	Sender  string
	// Date is the Date header exactly as delivered.
	Date string
	// ReceivedAt is the parsed Date, zero when the header could not be parsed.
	ReceivedAt time.Time
	// HTML is transient and never persisted.
	HTML string
}

// ResultLink is an accepted destination as exposed to pollers.
type ResultLink struct {
	URL         string `json:"url"`
	OriginalURL string `json:"original_url,omitempty"`
}

// LinkStats accounts for every candidate seen while processing one newsletter.
type LinkStats struct {
	Extracted     int `json:"extracted"`
	Junk          int `json:"junk"`
	Direct        int `json:"direct"`
	Tracking      int `json:"tracking"`
	Budgeted      int `json:"budgeted"`
	Resolved      int `json:"resolved"`
	ResolveFailed int `json:"resolve_failed"`
	Rejected      int `json:"rejected"`
	Duplicates    int `json:"duplicates"`
}

// NewsletterResult is the aggregated outcome for a single newsletter.
type NewsletterResult struct {
	Subject   string       `json:"subject"`
	Sender    string       `json:"sender"`
	Date      string       `json:"date"`
	Links     []ResultLink `json:"links"`
	LinkCount int          `json:"link_count"`
	Stats     LinkStats    `json:"stats"`
}
