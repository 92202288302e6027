package types

// RequestType classifies a remote call for logging and error context
type RequestType string

const (
	RequestTypeGetByID      RequestType = "get_by_id"
	RequestTypeListOrSearch RequestType = "list_or_search"
	RequestTypeMutation     RequestType = "mutation"
	RequestTypeUpload       RequestType = "upload"
)

// RequestContext travels with every remote call made for one logical
// operation so log lines and errors share a trace ID.
type RequestContext struct {
	TargetID          string      `json:"targetId,omitempty"`
	InvolvedFileIDs   []string    `json:"involvedFileIds"`
	InvolvedParentIDs []string    `json:"involvedParentIds"`
	RequestType       RequestType `json:"requestType"`
	TraceID           string      `json:"traceId"`
}
