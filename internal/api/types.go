package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// ItemID identifies an artwork. The API sends it either as a string or a number.
type ItemID string

func (id *ItemID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("decode item id: %w", err)
		}
		*id = ItemID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("decode item id: %w", err)
	}
	*id = ItemID(n.String())
	return nil
}

func (id ItemID) String() string { return string(id) }

// Artist is the subset of the artist reference shown on a card.
type Artist struct {
	ID       ItemID `json:"_id"`
	Username string `json:"username"`
}

// Artwork is a single feed item.
type Artwork struct {
	ID          ItemID   `json:"_id"`
	Title       string   `json:"title"`
	Artist      *Artist  `json:"artist,omitempty"`
	Images      []string `json:"images"`
	AspectRatio string   `json:"aspectRatio,omitempty"`
	LikeCount   int      `json:"likeCount"`
	ViewCount   int      `json:"viewCount"`
}

// ImageURL returns the first image reference, if any.
func (a Artwork) ImageURL() string {
	if len(a.Images) == 0 {
		return ""
	}
	return a.Images[0]
}

// ArtistName returns the artist username or an empty string.
func (a Artwork) ArtistName() string {
	if a.Artist == nil {
		return ""
	}
	return a.Artist.Username
}

type Pagination struct {
	Page       int `json:"page"`
	TotalPages int `json:"totalPages"`
}

// ArtworkPage is one page of the artworks listing.
type ArtworkPage struct {
	Artworks   []Artwork  `json:"artworks"`
	Pagination Pagination `json:"pagination"`
}

// HasMore reports whether a page after this one exists.
func (p ArtworkPage) HasMore() bool {
	return p.Pagination.Page < p.Pagination.TotalPages
}

const (
	likedMessage   = "Artwork liked"
	unlikedMessage = "Artwork unliked"
)

// LikeResult is the authoritative outcome of a like toggle.
type LikeResult struct {
	Liked     bool
	LikeCount int
}

type likeResponse struct {
	Message   string `json:"message"`
	LikeCount int    `json:"likeCount"`
}

func (r likeResponse) result() (LikeResult, error) {
	switch r.Message {
	case likedMessage:
		return LikeResult{Liked: true, LikeCount: r.LikeCount}, nil
	case unlikedMessage:
		return LikeResult{Liked: false, LikeCount: r.LikeCount}, nil
	default:
		return LikeResult{}, fmt.Errorf("unexpected like response message %s", strconv.Quote(r.Message))
	}
}

// EngagementEvent is the wire shape of a tracked interaction.
type EngagementEvent struct {
	ArtworkID ItemID            `json:"artworkId"`
	EventType string            `json:"eventType"`
	Duration  *float64          `json:"duration,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

type batchRequest struct {
	BatchID string            `json:"batchId,omitempty"`
	Events  []EngagementEvent `json:"events"`
}
