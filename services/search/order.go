package search

import (
	"hotel-search-go/models"
	"hotel-search-go/services/providers/rates"
)

// RecommendedOrder returns hotel ids in upstream ranking order: the hotels list when the
// response has one, otherwise the rate array. Ids are de-duplicated keeping the first
// occurrence and empty ids are skipped.
func RecommendedOrder(resp *rates.Response) []string {
	if resp == nil {
		return nil
	}

	seen := make(map[string]struct{})
	var order []string
	add := func(id string) {
		if id == "" {
			return
		}
		if _, dup := seen[id]; dup {
			return
		}
		seen[id] = struct{}{}
		order = append(order, id)
	}

	if len(resp.Hotels) > 0 {
		for _, h := range resp.Hotels {
			add(h.ID)
		}
		return order
	}
	for _, d := range resp.Data {
		add(d.HotelID)
	}
	return order
}

// MergeOrder appends the ids of secondary not already present in primary.
func MergeOrder(primary, secondary []string) []string {
	out := make([]string, 0, len(primary)+len(secondary))
	seen := make(map[string]struct{}, len(primary))
	for _, id := range primary {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	for _, id := range secondary {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// hotelsInOrder pairs each ordered id with its display name from the response.
func hotelsInOrder(order []string, resp *rates.Response) []models.Hotel {
	names := make(map[string]string, len(resp.Hotels))
	for _, h := range resp.Hotels {
		if _, ok := names[h.ID]; !ok {
			names[h.ID] = h.Name
		}
	}
	hotels := make([]models.Hotel, len(order))
	for i, id := range order {
		hotels[i] = models.Hotel{ID: id, Name: names[id]}
	}
	return hotels
}
