// Package instagram is the Instagram Graph API client used by the ingestor.
//
// It implements driven.GraphClient over plain HTTP: one method call issues
// exactly one request, so callers can account for every call against their
// request budget. Non-2xx responses are returned as *APIError, decoded from
// the Graph error envelope, or *RateLimitError when the API reports
// throttling.
package instagram
