// Package rating holds the per-profile swipe deck: which page of captions is
// loaded, which card is on top, and which tab is showing.
package rating

import (
	"sync"

	"captionrate/internal/caption"
)

type Tab string

const (
	TabRating Tab = "rating"
	TabTable  Tab = "table"
	TabUpload Tab = "upload"
)

func ParseTab(s string) (Tab, bool) {
	switch t := Tab(s); t {
	case TabRating, TabTable, TabUpload:
		return t, true
	}
	return "", false
}

// visibleCards is how many cards the deck shows at once: the top card and the one under it.
const visibleCards = 2

// Card is a caption paired with its resolved image.
type Card struct {
	Caption  caption.Caption `json:"caption"`
	ImageURL string          `json:"image_url"`
}

// Ticket identifies one page fetch. Only the most recent ticket may apply its result.
type Ticket struct {
	Page int
	gen  uint64
}

// State is a copy of the deck for rendering.
type State struct {
	Page      int               `json:"page"`
	Cursor    int               `json:"cursor"`
	Tab       Tab               `json:"tab"`
	Loaded    bool              `json:"loaded"`
	Exhausted bool              `json:"exhausted"`
	Cards     []Card            `json:"cards"`
	Captions  []caption.Caption `json:"-"`
	Images    map[string]string `json:"-"`
}

type Deck struct {
	mu       sync.Mutex
	page     int
	cursor   int
	tab      Tab
	gen      uint64
	loaded   bool
	captions []caption.Caption
	images   map[string]string
}

func NewDeck() *Deck {
	return &Deck{tab: TabRating, images: map[string]string{}}
}

func (d *Deck) Page() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.page
}

func (d *Deck) Cursor() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.cursor
}

func (d *Deck) Tab() Tab {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.tab
}

// Loaded reports whether the current page has been applied.
func (d *Deck) Loaded() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.loaded
}

// SetTab switches tabs. Page and cursor are kept.
func (d *Deck) SetTab(t Tab) {
	d.mu.Lock()
	d.tab = t
	d.mu.Unlock()
}

// Begin starts a fetch for page and invalidates every earlier ticket.
func (d *Deck) Begin(page int) Ticket {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.gen++
	return Ticket{Page: page, gen: d.gen}
}

// Apply replaces captions and images with a fetch result.
// It returns false and leaves the deck alone when t is stale.
func (d *Deck) Apply(t Ticket, captions []caption.Caption, images map[string]string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if t.gen != d.gen || t.Page != d.page {
		return false
	}

	d.captions = append([]caption.Caption(nil), captions...)
	d.images = make(map[string]string, len(images))
	for k, v := range images {
		d.images[k] = v
	}
	d.loaded = true
	return true
}

// Visible returns up to two displayable cards starting at the cursor, top card first.
func (d *Deck) Visible() []Card {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.visible()
}

func (d *Deck) visible() []Card {
	shown := caption.Displayable(d.captions, d.images)
	if d.cursor >= len(shown) {
		return []Card{}
	}
	end := d.cursor + visibleCards
	if end > len(shown) {
		end = len(shown)
	}

	cards := make([]Card, 0, end-d.cursor)
	for _, c := range shown[d.cursor:end] {
		cards = append(cards, Card{Caption: c, ImageURL: d.images[c.ImageID]})
	}
	return cards
}

// Advance moves past the top card. A captionID that is not on top is ignored.
func (d *Deck) Advance(captionID string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	cards := d.visible()
	if len(cards) == 0 || cards[0].Caption.ID != captionID {
		return false
	}
	d.cursor++
	return true
}

// Exhausted is true once every displayable card on a loaded page has been rated.
func (d *Deck) Exhausted() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.exhausted()
}

func (d *Deck) exhausted() bool {
	return d.loaded && d.cursor >= len(caption.Displayable(d.captions, d.images))
}

// LoadMore moves to the next page with the cursor back at zero.
// Any fetch still in flight for the old page is invalidated.
func (d *Deck) LoadMore() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.page++
	d.cursor = 0
	d.gen++
	d.loaded = false
	d.captions = nil
	d.images = map[string]string{}
	return d.page
}

func (d *Deck) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()

	images := make(map[string]string, len(d.images))
	for k, v := range d.images {
		images[k] = v
	}
	return State{
		Page:      d.page,
		Cursor:    d.cursor,
		Tab:       d.tab,
		Loaded:    d.loaded,
		Exhausted: d.exhausted(),
		Cards:     d.visible(),
		Captions:  append([]caption.Caption(nil), d.captions...),
		Images:    images,
	}
}
