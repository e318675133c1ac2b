package extract

import (
	"errors"
	"fmt"

	"github.com/andybalholm/cascadia"
)

// ImageSource pairs an image selector with the attribute holding its URL.
type ImageSource struct {
	Selector string `mapstructure:"selector" json:"selector"`
	Attr     string `mapstructure:"attr" json:"attr"`
}

// Heuristics holds every tunable value the extraction engine relies on. The
// values are tuned against the current suno.com markup and are expected to
// drift; change them through configuration rather than code.
type Heuristics struct {
	// Hosts accepted by the normalizer, subdomains included. Empty accepts any host.
	Hosts       []string `mapstructure:"hosts" json:"hosts"`
	PathPrefix  string   `mapstructure:"path_prefix" json:"pathPrefix"`
	TitleSuffix string   `mapstructure:"title_suffix" json:"titleSuffix"`
	Placeholder string   `mapstructure:"placeholder" json:"placeholder"`

	PromptClassFragments []string `mapstructure:"prompt_class_fragments" json:"promptClassFragments"`
	PromptSelectors      []string `mapstructure:"prompt_selectors" json:"promptSelectors"`
	MinClassPromptLen    int      `mapstructure:"min_class_prompt_len" json:"minClassPromptLen"`
	MinScanPromptLen     int      `mapstructure:"min_scan_prompt_len" json:"minScanPromptLen"`
	MinSiblingPromptLen  int      `mapstructure:"min_sibling_prompt_len" json:"minSiblingPromptLen"`
	MaxSiblingWalk       int      `mapstructure:"max_sibling_walk" json:"maxSiblingWalk"`

	ContainerRoles       []string `mapstructure:"container_roles" json:"containerRoles"`
	ContainerClassHints  []string `mapstructure:"container_class_hints" json:"containerClassHints"`
	ContainerTestIDHints []string `mapstructure:"container_testid_hints" json:"containerTestidHints"`

	IconSelector        string `mapstructure:"icon_selector" json:"iconSelector"`
	InteractiveSelector string `mapstructure:"interactive_selector" json:"interactiveSelector"`

	ImageSources       []ImageSource `mapstructure:"image_sources" json:"imageSources"`
	PageTitleSelectors []string      `mapstructure:"page_title_selectors" json:"pageTitleSelectors"`

	HookMarkers      []string `mapstructure:"hook_markers" json:"hookMarkers"`
	AppRootSelectors []string `mapstructure:"app_root_selectors" json:"appRootSelectors"`

	SongTitleSelectors  []string `mapstructure:"song_title_selectors" json:"songTitleSelectors"`
	SongLyricsSelectors []string `mapstructure:"song_lyrics_selectors" json:"songLyricsSelectors"`
	SongStyleSelectors  []string `mapstructure:"song_style_selectors" json:"songStyleSelectors"`
	SongTagSelector     string   `mapstructure:"song_tag_selector" json:"songTagSelector"`
}

// DefaultHeuristics returns the values observed on suno.com.
func DefaultHeuristics() Heuristics {
	return Heuristics{
		Hosts:       []string{"suno.com"},
		PathPrefix:  "/song/",
		TitleSuffix: " | Suno",
		Placeholder: "(no styles)",

		PromptClassFragments: []string{"ingj1g", "1q8qbjw"},
		PromptSelectors: []string{
			`[data-testid="style-prompt"]`,
			`[data-testid="song-style"]`,
			`[data-testid="tags"]`,
			`.style-prompt`,
			`[class*="prompt"]`,
		},
		MinClassPromptLen:   20,
		MinScanPromptLen:    50,
		MinSiblingPromptLen: 30,
		MaxSiblingWalk:      10,

		ContainerRoles:       []string{"row", "listitem", "article"},
		ContainerClassHints:  []string{"row", "card", "item"},
		ContainerTestIDHints: []string{"song", "clip", "row", "card"},

		IconSelector:        `svg, [class*="icon"], [data-icon], [role="img"]`,
		InteractiveSelector: `a, button, input, select, textarea, [role="button"]`,

		ImageSources: []ImageSource{
			{Selector: `img[data-src]`, Attr: "data-src"},
			{Selector: `img[src]`, Attr: "src"},
			{Selector: `img[alt*="image"]`, Attr: "src"},
			{Selector: `img[alt*="cover"]`, Attr: "src"},
			{Selector: `img`, Attr: "src"},
		},
		PageTitleSelectors: []string{
			`h1`,
			`[data-testid="song-title"]`,
			`.song-title`,
		},

		HookMarkers:      []string{"__REACT_DEVTOOLS_GLOBAL_HOOK__", "__NEXT_DATA__", "self.__next_f"},
		AppRootSelectors: []string{"#__next", "#root", "[data-reactroot]", "main"},

		SongTitleSelectors:  []string{`h1`, `[data-testid="song-title"]`, `.song-title`, `h2`, `title`},
		SongLyricsSelectors: []string{`[data-testid="lyrics"]`, `.lyrics`, `[class*="lyric"]`, `pre`},
		SongStyleSelectors:  []string{`[data-testid="style-prompt"]`, `.style-prompt`, `[class*="style"]`, `[class*="prompt"]`},
		SongTagSelector:     `[class*="tag"], [data-testid="tag"]`,
	}
}

func (h Heuristics) selectors() []string {
	out := make([]string, 0, 32)
	out = append(out, h.PromptSelectors...)
	out = append(out, h.PageTitleSelectors...)
	out = append(out, h.AppRootSelectors...)
	out = append(out, h.SongTitleSelectors...)
	out = append(out, h.SongLyricsSelectors...)
	out = append(out, h.SongStyleSelectors...)
	for _, s := range h.ImageSources {
		out = append(out, s.Selector)
	}
	for _, s := range []string{h.IconSelector, h.InteractiveSelector, h.SongTagSelector} {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Validate checks thresholds and that every selector compiles.
func (h Heuristics) Validate() error {
	var errs []error
	if h.PathPrefix == "" || h.PathPrefix[0] != '/' {
		errs = append(errs, fmt.Errorf("path prefix must start with '/', got %q", h.PathPrefix))
	}
	if h.MinClassPromptLen <= 0 || h.MinScanPromptLen <= 0 || h.MinSiblingPromptLen <= 0 {
		errs = append(errs, errors.New("prompt length thresholds must be positive"))
	}
	// Zero turns the sibling walk off.
	if h.MaxSiblingWalk < 0 {
		errs = append(errs, errors.New("max sibling walk must not be negative"))
	}
	for _, s := range h.selectors() {
		if _, err := cascadia.Compile(s); err != nil {
			errs = append(errs, fmt.Errorf("selector %q: %w", s, err))
		}
	}
	for _, s := range h.ImageSources {
		if s.Attr == "" {
			errs = append(errs, fmt.Errorf("image source %q has no attribute", s.Selector))
		}
	}
	return errors.Join(errs...)
}
