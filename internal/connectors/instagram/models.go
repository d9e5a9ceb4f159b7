package instagram

import "github.com/connect3/instagram-ingestor/internal/core/domain"

// mediaFields are the fields requested for every media node.
const mediaFields = "id,caption,media_type,media_url,permalink,timestamp"

// profileFields are the fields requested for the user node.
const profileFields = "id,name,username"

// mediaNode is a media object as returned by the Graph API.
type mediaNode struct {
	ID        string `json:"id"`
	Caption   string `json:"caption"`
	MediaType string `json:"media_type"`
	MediaURL  string `json:"media_url"`
	Permalink string `json:"permalink"`
	Timestamp string `json:"timestamp"`
}

func (n mediaNode) toDomain() domain.MediaItem {
	return domain.MediaItem{
		ID:        n.ID,
		Caption:   n.Caption,
		MediaType: n.MediaType,
		MediaURL:  n.MediaURL,
		Permalink: n.Permalink,
		Timestamp: n.Timestamp,
	}
}

// paging is the cursor block of an edge response.
type paging struct {
	Cursors struct {
		Before string `json:"before"`
		After  string `json:"after"`
	} `json:"cursors"`
	Next     string `json:"next"`
	Previous string `json:"previous"`
}

// mediaResponse is one page of the /{user-id}/media edge.
type mediaResponse struct {
	Data   []mediaNode `json:"data"`
	Paging *paging     `json:"paging"`
}

func (r mediaResponse) toDomain() *domain.MediaPage {
	page := &domain.MediaPage{Items: make([]domain.MediaItem, 0, len(r.Data))}
	for _, n := range r.Data {
		page.Items = append(page.Items, n.toDomain())
	}
	if r.Paging != nil {
		page.Next = r.Paging.Next
	}
	return page
}

// profileNode is the user node.
type profileNode struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Username string `json:"username"`
}

// errorEnvelope wraps a Graph API error.
type errorEnvelope struct {
	Error *struct {
		Message      string `json:"message"`
		Type         string `json:"type"`
		Code         int    `json:"code"`
		ErrorSubcode int    `json:"error_subcode"`
		FBTraceID    string `json:"fbtrace_id"`
	} `json:"error"`
}
