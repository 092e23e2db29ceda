package model

// Record is one parsed access-log line.
// Values are kept exactly as they appeared in the line. Request fields that
// were absent from the quoted section are empty strings; Status and Size keep
// the raw token, including the "-" sentinel, until a batch is finalized.
type Record struct {
	ClientIP  string
	Identity  string // RFC 931 ident, dropped when the record is columnized
	UserID    string
	Timestamp string // DD/Mon/YYYY:HH:MM:SS +ZZZZ, not interpreted
	Method    string
	Resource  string
	Protocol  string
	Status    string
	Size      string
}

// NullToken marks an absent value in the text format.
const NullToken = "-"

// Tuple returns the record in grammar order.
func (r Record) Tuple() [9]string {
	return [9]string{
		r.ClientIP, r.Identity, r.UserID, r.Timestamp,
		r.Method, r.Resource, r.Protocol, r.Status, r.Size,
	}
}
