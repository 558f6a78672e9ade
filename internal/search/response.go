package search

import (
	"encoding/json"
	"strings"

	"github.com/nao1215/imagecrawl/internal/model"
)

// response is the subset of a Custom Search response imagecrawl reads.
type response struct {
	Queries struct {
		NextPage []struct {
			StartIndex int `json:"startIndex"`
		} `json:"nextPage"`
	} `json:"queries"`
	Items []json.RawMessage `json:"items"`
}

type item struct {
	Link  string `json:"link"`
	Image struct {
		ThumbnailLink string `json:"thumbnailLink"`
	} `json:"image"`
}

// decodeResponse parses raw into candidates and the next start index
// (zero when the response has none). Items that do not decode or lack
// either link are dropped.
func decodeResponse(raw []byte) ([]model.Candidate, int, error) {
	var resp response
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, 0, err
	}

	candidates := make([]model.Candidate, 0, len(resp.Items))
	for _, rawItem := range resp.Items {
		var it item
		if err := json.Unmarshal(rawItem, &it); err != nil {
			continue
		}
		link := strings.TrimSpace(it.Link)
		thumb := strings.TrimSpace(it.Image.ThumbnailLink)
		if link == "" || thumb == "" {
			continue
		}
		candidates = append(candidates, model.Candidate{PrimaryURL: link, FallbackURL: thumb})
	}

	next := 0
	if len(resp.Queries.NextPage) > 0 {
		next = resp.Queries.NextPage[0].StartIndex
	}
	return candidates, next, nil
}
