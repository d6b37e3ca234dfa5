package models

// ContentItem is a content node as delivered by the CMS publish stream.
type ContentItem struct {
	NID      int64     `json:"nid"`
	Type     string    `json:"type"`
	Langcode string    `json:"langcode"`
	Title    string    `json:"title"`
	Status   bool      `json:"status"`
	Images   []FileRef `json:"images"`
}

// FileRef describes a managed file attached to a content node's image field.
type FileRef struct {
	FID      int64  `json:"fid"`
	URI      string `json:"uri"`
	Filename string `json:"filename"`
	Filemime string `json:"filemime"`
	Filesize int64  `json:"filesize"`
}
