package services

import (
	"context"
	"fmt"
	"time"

	"github.com/connect3/instagram-ingestor/internal/core/domain"
	"github.com/connect3/instagram-ingestor/internal/core/ports/driven"
	"github.com/connect3/instagram-ingestor/internal/logger"
)

// StopReason explains why a walk ended.
type StopReason string

// Walk stop reasons.
const (
	// StopExhausted means the feed had no further pages.
	StopExhausted StopReason = "exhausted"
	// StopReachedWatermark means a post at or before the watermark was seen.
	StopReachedWatermark StopReason = "reached_watermark"
	// StopBudget means the request budget ran out before the next page.
	StopBudget StopReason = "budget"
	// StopFetchError means a page could not be fetched.
	StopFetchError StopReason = "fetch_error"
)

// WalkResult summarises one account walk.
type WalkResult struct {
	// Upserted counts posts handed to the store.
	Upserted int
	// Inserted counts posts the store did not have yet.
	Inserted int
	// Skipped counts records dropped for an unparseable timestamp.
	Skipped int
	// Failed counts records the store rejected.
	Failed int
	// Pages counts fetched feed pages.
	Pages int
	// Newest is the newest post timestamp observed, nil if none parsed.
	Newest *time.Time
	// Stop is why the walk ended.
	Stop StopReason
	// WatermarkAdvanced reports whether the account's watermark moved.
	WatermarkAdvanced bool
}

// PostWalker ingests posts newer than an account's watermark, walking the
// feed newest first.
type PostWalker struct {
	accounts driven.AccountStore
	posts    driven.PostStore
	graph    driven.GraphClient
	now      func() time.Time
}

// NewPostWalker creates a post walker.
func NewPostWalker(accounts driven.AccountStore, posts driven.PostStore, graph driven.GraphClient) *PostWalker {
	return &PostWalker{
		accounts: accounts,
		posts:    posts,
		graph:    graph,
		now:      time.Now,
	}
}

// Walk fetches feed pages until it reaches the watermark, the end of the
// feed, a fetch failure, or the end of the budget. Each page costs one budget
// unit. Afterwards the watermark is moved to the newest post seen when that
// is newer than the stored one.
//
// Fetch and per-record failures end up in the result, not the error. The only
// error returned is a failure to persist the new watermark.
func (w *PostWalker) Walk(ctx context.Context, budget *domain.RequestBudget, account *domain.Account) (WalkResult, error) {
	var res WalkResult

	var watermark *time.Time
	if account.HasWatermark() {
		watermark = account.LastSyncedAt
	}

	logger.Info("Fetching posts for %s...", account.DisplayName())

	cursor := w.graph.MediaURL(account.ExternalUserID)

walk:
	for {
		if cursor == "" {
			res.Stop = StopExhausted
			break
		}
		if err := budget.Take(); err != nil {
			logger.Warn("Rate limit reached, stopping fetch.")
			res.Stop = StopBudget
			break
		}

		page, err := w.graph.FetchMediaPage(ctx, account.AccessToken, cursor)
		if err != nil {
			logger.Error("Error fetching posts for %s: %v", account.DisplayName(), err)
			res.Stop = StopFetchError
			break
		}
		res.Pages++

		if len(page.Items) == 0 {
			res.Stop = StopExhausted
			break
		}

		for _, item := range page.Items {
			ts, err := domain.ParseTimestamp(item.Timestamp)
			if err != nil {
				logger.Warn("Skipping post %s: %v", item.ID, err)
				res.Skipped++
				continue
			}

			if res.Newest == nil || ts.After(*res.Newest) {
				t := ts
				res.Newest = &t
			}

			if watermark != nil && !ts.After(*watermark) {
				logger.Debug("post %s at %s is not newer than watermark %s",
					item.ID, ts.Format(time.RFC3339), watermark.Format(time.RFC3339))
				res.Stop = StopReachedWatermark
				break walk
			}

			post := domain.Post{
				MediaID:        item.ID,
				ExternalUserID: account.ExternalUserID,
				Caption:        item.Caption,
				MediaType:      item.MediaType,
				MediaURL:       item.ResolvedMediaURL(),
				Permalink:      item.Permalink,
				Timestamp:      ts,
				CreatedAt:      w.now(),
			}

			inserted, err := w.posts.Upsert(ctx, post)
			if err != nil {
				logger.Error("Failed to store post %s: %v", item.ID, err)
				res.Failed++
				continue
			}
			res.Upserted++
			if inserted {
				res.Inserted++
			}
		}

		cursor = page.Next
	}

	logger.Info("Inserted %d new posts for %s.", res.Inserted, account.DisplayName())

	if res.Newest == nil {
		return res, nil
	}
	if watermark != nil && !res.Newest.After(*watermark) {
		return res, nil
	}

	now := w.now()
	advanced, err := w.accounts.AdvanceWatermark(ctx, account.ID, *res.Newest, now)
	if err != nil {
		return res, fmt.Errorf("advance watermark for %s: %w", account.DisplayName(), err)
	}
	res.WatermarkAdvanced = advanced
	if advanced {
		newest := *res.Newest
		account.LastSyncedAt = &newest
		account.UpdatedAt = now
	}

	return res, nil
}
