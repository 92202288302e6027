package types

// Credentials is the minimal triple needed to mint bearer tokens for one
// remote account. Values are supplied per call and never persisted by the
// transfer engine.
type Credentials struct {
	ClientID     string `json:"clientId"`
	ClientSecret string `json:"clientSecret"`
	RefreshToken string `json:"-"`
}

// SyncTarget identifies one configured remote account
type SyncTarget struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// RemoteObject is the only view of a remote node the engine holds. It is
// rebuilt from the store on every call.
type RemoteObject struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	IsDirectory bool     `json:"isDirectory"`
	ParentID    string   `json:"parentId,omitempty"`
	Parents     []string `json:"parents,omitempty"`
	MimeType    string   `json:"mimeType,omitempty"`
	Size        int64    `json:"size,omitempty"`
	DownloadURL string   `json:"-"`
}

// MarkerProperty is written on every folder the engine creates. Folder
// lookups only match folders carrying the exact same triple.
type MarkerProperty struct {
	Key        string
	Value      string
	Visibility string
}

// NewFile describes a file object to create
type NewFile struct {
	Name     string
	ParentID string
	MimeType string
	// PublicRead grants an anyone/reader permission so retrieval URLs work
	// without an Authorization header.
	PublicRead bool
	// Progress, when set, is called with the bytes acknowledged so far
	// after each uploaded chunk. total is zero when the store cannot tell.
	Progress func(sent, total int64)
}

// ListPage is a single page returned by a listing call
type ListPage struct {
	Items         []*RemoteObject
	NextPageToken string
}

// UploadResult is returned by a successful upload
type UploadResult struct {
	RemoteID     string `json:"remoteId"`
	RetrievalURL string `json:"retrievalUrl"`
}

// ResolveResult is the outcome of walking a folder path. Found=false is the
// NotFound outcome; it is not an error.
type ResolveResult struct {
	FolderID       string   `json:"folderId,omitempty"`
	Found          bool     `json:"found"`
	Created        []string `json:"created,omitempty"`
	MissingSegment string   `json:"missingSegment,omitempty"`
}

// SyncedFileInfo describes where a synced item can be fetched from
type SyncedFileInfo struct {
	ID       string `json:"id"`
	Path     string `json:"path"`
	Protocol string `json:"protocol"`
}
