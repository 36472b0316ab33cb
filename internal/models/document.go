package models

import "strings"

// DocumentLine is one line of a purchase request, both on submission and
// when reading documents back.
type DocumentLine struct {
	ItemCode  string  `json:"ItemCode"`
	Quantity  float64 `json:"Quantity"`
	LineTotal float64 `json:"LineTotal,omitempty"`
}

// PurchaseRequest is the document posted to /PurchaseRequests and read
// back from it. RequriedDate is misspelled on the wire; that is the
// backend's field name, not ours to fix.
type PurchaseRequest struct {
	DocEntry       int            `json:"DocEntry,omitempty"`
	DocNum         int            `json:"DocNum,omitempty"`
	DocDate        string         `json:"DocDate"`
	RequriedDate   string         `json:"RequriedDate"`
	DocumentStatus string         `json:"DocumentStatus,omitempty"`
	DocTotal       float64        `json:"DocTotal,omitempty"`
	DocumentLines  []DocumentLine `json:"DocumentLines,omitempty"`
}

// Status returns the document status without the backend's "bost_" prefix.
func (p PurchaseRequest) Status() string {
	return strings.TrimPrefix(p.DocumentStatus, "bost_")
}

// Total returns DocTotal when the backend filled it, otherwise the sum of
// the line totals.
func (p PurchaseRequest) Total() float64 {
	if p.DocTotal != 0 {
		return p.DocTotal
	}
	var sum float64
	for _, line := range p.DocumentLines {
		sum += line.LineTotal
	}
	return sum
}

// PeriodStatusOpen marks a posting period that accepts documents.
const PeriodStatusOpen = "pps_Open"

// PostingPeriod is one accounting period from /PostingPeriods. Only the
// status and start date matter to the purchasing flow.
type PostingPeriod struct {
	AbsoluteEntry   int    `json:"AbsoluteEntry"`
	Code            string `json:"Code"`
	PeriodStatus    string `json:"PeriodStatus"`
	PeriodStartDate string `json:"PeriodStartDate"`
}

// Open reports whether documents may be posted into this period.
func (p PostingPeriod) Open() bool { return p.PeriodStatus == PeriodStatusOpen }

// StartDate returns the period start trimmed to its date part, since the
// backend sometimes returns a full timestamp.
func (p PostingPeriod) StartDate() string {
	if i := strings.IndexByte(p.PeriodStartDate, 'T'); i >= 0 {
		return p.PeriodStartDate[:i]
	}
	return p.PeriodStartDate
}
