package provider

import (
	"context"
	"time"

	"github.com/rockfordlhotka/calendar-mcp/internal/model"
)

// DefaultMaxSearchPages caps how far CollectInRange pages through a
// superset before giving up.
const DefaultMaxSearchPages = 10

// Page is one batch of a recency-ordered message listing.
type Page struct {
	Items []model.EmailMessage
	// Next is the continuation token; empty on the last page.
	Next string
}

// PageFunc fetches the page identified by token ("" for the first one).
type PageFunc func(ctx context.Context, token string) (Page, error)

// InRange reports whether t lies within [from, to]. Nil bounds are open.
func InRange(t time.Time, from, to *time.Time) bool {
	if from != nil && t.Before(*from) {
		return false
	}
	if to != nil && t.After(*to) {
		return false
	}
	return true
}

// FilterByReceived keeps messages whose ReceivedDateTime is in range,
// preserving order.
func FilterByReceived(msgs []model.EmailMessage, from, to *time.Time) []model.EmailMessage {
	if from == nil && to == nil {
		return msgs
	}
	out := make([]model.EmailMessage, 0, len(msgs))
	for _, m := range msgs {
		if InRange(m.ReceivedDateTime, from, to) {
			out = append(out, m)
		}
	}
	return out
}

// CollectInRange serves text search combined with a date window on
// providers whose search endpoint cannot also filter by date. It pages
// through fetch, keeps items received within [from, to], and stops as soon
// as count items are collected, a whole page falls before from, the
// listing ends, or maxPages pages have been read.
func CollectInRange(
	ctx context.Context,
	fetch PageFunc,
	from, to *time.Time,
	count, maxPages int,
) ([]model.EmailMessage, error) {
	if maxPages <= 0 {
		maxPages = DefaultMaxSearchPages
	}
	out := make([]model.EmailMessage, 0, count)
	token := ""
	for page := 0; page < maxPages; page++ {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		p, err := fetch(ctx, token)
		if err != nil {
			return out, err
		}

		allOlder := len(p.Items) > 0
		for _, m := range p.Items {
			if from == nil || !m.ReceivedDateTime.Before(*from) {
				allOlder = false
			}
			if !InRange(m.ReceivedDateTime, from, to) {
				continue
			}
			out = append(out, m)
			if count > 0 && len(out) >= count {
				return out, nil
			}
		}

		if allOlder || p.Next == "" {
			break
		}
		token = p.Next
	}
	return out, nil
}
