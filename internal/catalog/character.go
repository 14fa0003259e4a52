package catalog

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var ErrInvalidPayload = errors.New("invalid payload")

type Character struct {
	Info    Info     `json:"info"`
	Results []Result `json:"results"`
}

type Info struct {
	Count int     `json:"count"`
	Pages int     `json:"pages"`
	Next  string  `json:"next"`
	Prev  *string `json:"prev"`
}

type Result struct {
	ID       int64      `json:"id"`
	Name     string     `json:"name"`
	Status   string     `json:"status"`
	Species  string     `json:"species"`
	Type     string     `json:"type"`
	Gender   string     `json:"gender"`
	Origin   Location   `json:"origin"`
	Location Location   `json:"location"`
	Image    string     `json:"image"`
	Episode  []string   `json:"episode"`
	URL      string     `json:"url"`
	Created  *time.Time `json:"created,omitempty"`
	Show     bool       `json:"show"`
}

type Location struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

func (r Result) Validate() error {
	if r.ID <= 0 {
		return fmt.Errorf("%w: result id must be > 0", ErrInvalidPayload)
	}
	if strings.TrimSpace(r.Name) == "" {
		return fmt.Errorf("%w: result %d has no name", ErrInvalidPayload, r.ID)
	}
	if strings.TrimSpace(r.URL) == "" {
		return fmt.Errorf("%w: result %d has no url", ErrInvalidPayload, r.ID)
	}
	return nil
}
