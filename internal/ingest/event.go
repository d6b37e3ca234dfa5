// Package ingest decodes and normalizes content events published by the CMS.
package ingest

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"regexp"
	"strconv"
	"strings"

	"github.com/DeafMist/demo-rest/internal/models"
)

// Op is the change carried by an event.
type Op string

const (
	OpUpsert Op = "upsert"
	OpDelete Op = "delete"
)

const defaultLangcode = "en"

var (
	ErrMissingNID   = errors.New("event has no nid")
	ErrUnknownOp    = errors.New("unknown event op")
	ErrMissingTitle = errors.New("content has no title")
	ErrMissingType  = errors.New("content has no type")
	ErrBadImage     = errors.New("invalid image reference")
)

var (
	whitespace = regexp.MustCompile(`\s+`)
	tags       = regexp.MustCompile(`<[^>]*>`)
)

// Event is one message on the content topic.
type Event struct {
	ID      string             `json:"event_id"`
	Op      Op                 `json:"op"`
	Content models.ContentItem `json:"content"`
}

// Decode parses a raw message and normalizes its content.
func Decode(data []byte) (Event, error) {
	var ev Event
	if err := json.Unmarshal(data, &ev); err != nil {
		return Event{}, fmt.Errorf("decode event: %w", err)
	}

	ev.ID = strings.TrimSpace(ev.ID)
	ev.Op = Op(strings.ToLower(strings.TrimSpace(string(ev.Op))))
	if ev.Op == "" {
		ev.Op = OpUpsert
	}

	if err := Normalize(&ev); err != nil {
		return Event{}, err
	}
	return ev, nil
}

// Normalize validates the event and cleans the content in place.
func Normalize(ev *Event) error {
	if ev.Content.NID <= 0 {
		return ErrMissingNID
	}

	switch ev.Op {
	case OpDelete:
		return nil
	case OpUpsert:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownOp, ev.Op)
	}

	c := &ev.Content
	c.Type = strings.ToLower(strings.TrimSpace(c.Type))
	if c.Type == "" {
		return ErrMissingType
	}

	c.Title = CleanTitle(c.Title)
	if c.Title == "" {
		return ErrMissingTitle
	}

	c.Langcode = strings.TrimSpace(c.Langcode)
	if c.Langcode == "" {
		c.Langcode = defaultLangcode
	}

	for i := range c.Images {
		img := &c.Images[i]
		img.URI = strings.TrimSpace(img.URI)
		if img.FID <= 0 {
			return fmt.Errorf("%w: image %d has no fid", ErrBadImage, i)
		}
		if !strings.Contains(img.URI, "://") {
			return fmt.Errorf("%w: %q has no scheme", ErrBadImage, img.URI)
		}
		if img.Filename == "" {
			img.Filename = img.URI[strings.LastIndex(img.URI, "/")+1:]
		}
	}
	return nil
}

// CleanTitle strips markup, decodes entities and squeezes whitespace.
func CleanTitle(input string) string {
	if input == "" {
		return ""
	}
	out := tags.ReplaceAllString(input, "")
	out = html.UnescapeString(out)
	out = whitespace.ReplaceAllString(out, " ")
	return strings.TrimSpace(out)
}

// EventKey returns the event's id, or a hash of its stable fields when the
// producer did not set one.
func EventKey(ev Event) string {
	if ev.ID != "" {
		return ev.ID
	}

	var b strings.Builder
	b.WriteString(string(ev.Op))
	b.WriteString("|")
	b.WriteString(strconv.FormatInt(ev.Content.NID, 10))
	b.WriteString("|")
	b.WriteString(ev.Content.Type)
	b.WriteString("|")
	b.WriteString(ev.Content.Title)
	b.WriteString("|")
	b.WriteString(strconv.FormatBool(ev.Content.Status))
	for _, img := range ev.Content.Images {
		b.WriteString("|")
		b.WriteString(strconv.FormatInt(img.FID, 10))
		b.WriteString("=")
		b.WriteString(img.URI)
	}

	s := sha1.Sum([]byte(b.String()))
	return hex.EncodeToString(s[:])
}
