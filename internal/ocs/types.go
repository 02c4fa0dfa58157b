package ocs

// ShareTypePublicLink is the OCS share type of a public link share. It is
// the only type this package creates.
const ShareTypePublicLink = 3

// Share is a share as reported by the server.
type Share struct {
	ID          string `json:"id" yaml:"id"`
	ShareType   int    `json:"share_type" yaml:"share_type"`
	Permissions int    `json:"permissions" yaml:"permissions"`
	// Expiration is YYYY-MM-DD, or empty when the share never expires.
	Expiration string `json:"expiration,omitempty" yaml:"expiration,omitempty"`
	Path       string `json:"path" yaml:"path"`
	URL        string `json:"url,omitempty" yaml:"url,omitempty"`
	Token      string `json:"token,omitempty" yaml:"token,omitempty"`
	ItemType   string `json:"item_type,omitempty" yaml:"item_type,omitempty"`
	FileTarget string `json:"file_target,omitempty" yaml:"file_target,omitempty"`
	Owner      string `json:"uid_owner,omitempty" yaml:"owner,omitempty"`
	CreatedAt  int64  `json:"stime,omitempty" yaml:"created_at,omitempty"`
}

// IsPublicLink reports whether the share is a public link.
func (s Share) IsPublicLink() bool {
	return s.ShareType == ShareTypePublicLink
}

// CreateRequest is the form body of a share creation call.
type CreateRequest struct {
	Path        string `url:"path"`
	ShareType   int    `url:"shareType"`
	Permissions int    `url:"permissions"`
	// ExpireDate is YYYY-MM-DD; omitted when empty.
	ExpireDate string `url:"expireDate,omitempty"`
}

// listQuery is the query string of a share listing call.
type listQuery struct {
	Path     string `url:"path,omitempty"`
	Reshares bool   `url:"reshares,omitempty"`
}
