package messaging

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/FranksOps/stylus/internal/extract"
)

// PageHandler answers page-context actions for one loaded document.
type PageHandler struct {
	engine *extract.Engine
	page   *extract.Page
	bus    *Bus
	logger *slog.Logger

	// OnScrape, when set, is called with every scrape result after the
	// response has been built.
	OnScrape func(extract.Result)
}

// NewPageHandler binds engine to page. bus may be nil; when set, scrape
// diagnostics are posted to the background debug log.
func NewPageHandler(engine *extract.Engine, page *extract.Page, bus *Bus, logger *slog.Logger) *PageHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &PageHandler{engine: engine, page: page, bus: bus, logger: logger}
}

func (h *PageHandler) scrape() extract.Result {
	res := h.engine.ScrapeAll(h.page)
	h.report(res)
	return res
}

// report emits diagnostics without touching the result.
func (h *PageHandler) report(res extract.Result) {
	d := res.Diagnostics
	h.logger.Debug("scrape finished",
		"url", d.URL,
		"records", len(res.Records),
		"containerless", d.Containerless,
		"failures", len(d.Failures),
		"duration", d.Duration,
	)
	if h.OnScrape != nil {
		h.OnScrape(res)
	}
	if h.bus == nil {
		return
	}
	req, err := NewRequest(ActionDebugLog, LogEntry{
		Level:   "info",
		Message: fmt.Sprintf("scraped %d records from %s", len(res.Records), d.URL),
		Data:    rawJSON(d),
	})
	if err != nil {
		return
	}
	h.bus.Post(TargetBackground, req)
}

// Handle implements Handler.
func (h *PageHandler) Handle(ctx context.Context, req Request) Response {
	switch req.Action {
	case ActionGetAllURLs:
		res := h.scrape()
		return Response{Success: true, URLs: res.Records, Diagnostics: &res.Diagnostics}

	case ActionExtractSongData:
		song := h.engine.ExtractSong(h.page)
		return Response{Success: true, Data: &song}

	case ActionGetPageInfo:
		song := h.engine.ExtractSong(h.page)
		res := h.scrape()
		return Response{Success: true, PageInfo: &PageInfo{
			URL:      h.page.Origin(),
			Title:    h.page.Title(),
			SongData: song,
			AllURLs:  res.Records,
		}}
	}
	return Failure(fmt.Errorf("unknown page action %q", req.Action))
}
