package settlement

import (
	"sort"

	"github.com/fabiodmueller-cmd/CASSINO/internal/model"
)

// PickLink chooses the link that decides a client's operator: the earliest
// created, ties broken by id. More than one link for a client is a data
// anomaly; callers log it and use the returned link anyway.
func PickLink(links []model.Link) (model.Link, bool) {
	if len(links) == 0 {
		return model.Link{}, false
	}

	sorted := make([]model.Link, len(links))
	copy(sorted, links)
	sort.SliceStable(sorted, func(i, j int) bool {
		if !sorted[i].CreatedAt.Equal(sorted[j].CreatedAt) {
			return sorted[i].CreatedAt.Before(sorted[j].CreatedAt)
		}
		return sorted[i].ID.String() < sorted[j].ID.String()
	})
	return sorted[0], true
}
