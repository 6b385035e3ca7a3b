// Package domain contains the core entities shared across the resolver.
package domain

import "time"

// ResolutionLog records one completed client resolution for the audit
// trail. It is append-only: nothing ever updates or reads it back to
// answer a query, which is what keeps it from doubling as a cache.
type ResolutionLog struct {
	ID            string    `json:"id"`
	CorrelationID string    `json:"correlation_id"`
	ClientIP      string    `json:"client_ip"`
	QName         string    `json:"qname"`
	QType         string    `json:"qtype"`
	RCode         uint8     `json:"rcode"`
	Hops          int       `json:"hops"`
	DurationMS    int64     `json:"duration_ms"`
	CreatedAt     time.Time `json:"created_at"`
}
