package models

import "time"

// ArticleRecord is one row of the article listing.
type ArticleRecord struct {
	Title string `json:"title"`
	Image string `json:"image"`
}

// ArticleListResponse is the payload returned by the article listing endpoint.
// MaxAge travels as a Cache-Control header, not in the body.
type ArticleListResponse struct {
	Articles []ArticleRecord `json:"articles"`
	MaxAge   time.Duration   `json:"-"`
}
