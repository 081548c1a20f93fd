package tmdb

import (
	"context"
	"fmt"
	"time"
)

// TMDB rejects pagination past page 500, so a busy year is walked in
// quarterly release-date windows.
const maxDiscoverPage = 500

// MinSyncYear is the earliest year the sync pipeline accepts.
const MinSyncYear = 1900

// ValidateYear checks a sync year is within the supported range.
func ValidateYear(year int) error {
	current := time.Now().Year()
	if year < MinSyncYear || year > current {
		return fmt.Errorf("year %d out of range (%d..%d)", year, MinSyncYear, current)
	}
	return nil
}

type dateRange struct {
	from string
	to   string
}

func quarterRanges(year int) []dateRange {
	return []dateRange{
		{fmt.Sprintf("%d-01-01", year), fmt.Sprintf("%d-03-31", year)},
		{fmt.Sprintf("%d-04-01", year), fmt.Sprintf("%d-06-30", year)},
		{fmt.Sprintf("%d-07-01", year), fmt.Sprintf("%d-09-30", year)},
		{fmt.Sprintf("%d-10-01", year), fmt.Sprintf("%d-12-31", year)},
	}
}

// ForEachMovieInYear streams discover results for a year, walking each
// quarter page by page. fn is invoked once per movie; returning an error
// stops the stream. maxResults caps the total yield when positive.
func (c *Client) ForEachMovieInYear(ctx context.Context, year int, maxResults int, fn func(DiscoverMovie) error) error {
	if err := ValidateYear(year); err != nil {
		return err
	}

	yielded := 0
	for _, quarter := range quarterRanges(year) {
		page := 1
		for {
			result, err := c.DiscoverPage(ctx, DiscoverOptions{
				Year:     year,
				FromDate: quarter.from,
				ToDate:   quarter.to,
				Page:     page,
			})
			if err != nil {
				return fmt.Errorf("discover %d (%s..%s) page %d: %w", year, quarter.from, quarter.to, page, err)
			}

			for _, movie := range result.Results {
				if maxResults > 0 && yielded >= maxResults {
					return nil
				}
				if err := fn(movie); err != nil {
					return err
				}
				yielded++
			}

			if page >= result.TotalPages || page >= maxDiscoverPage {
				break
			}
			page++
		}
	}
	return nil
}
