package extract

import "testing"

func TestHighRes(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"https://cdn1.suno.ai/image_abc.png?width=100", "https://cdn1.suno.ai/image_large_abc.png"},
		{"https://cdn1.suno.ai/image_small_abc.png", "https://cdn1.suno.ai/image_large_abc.png"},
		{"https://cdn1.suno.ai/image_large_abc.png?v=2&width=100", "https://cdn1.suno.ai/image_large_abc.png?v=2"},
		{"https://cdn1.suno.ai/cover.png", "https://cdn1.suno.ai/cover.png"},
		{"//cdn1.suno.ai/img/image_x.jpeg", "//cdn1.suno.ai/img/image_large_x.jpeg"},
	}
	for _, tt := range tests {
		if got := HighRes(tt.in); got != tt.want {
			t.Errorf("HighRes(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestPrompt_PlaceholderNeverSelected(t *testing.T) {
	p := mustPage(t, "https://suno.com/me", `
<html><body>
<div class="clip-row">
  <a href="/song/ph1">Quiet</a>
  <div class="css-ingj1g">(no styles)</div>
  <div data-testid="style-prompt">(No Styles)</div>
</div>
</body></html>`)

	res := newTestEngine().ScrapeAll(p)
	if len(res.Records) != 1 {
		t.Fatalf("Expected 1 record, got %+v", res.Records)
	}
	if res.Records[0].Prompt != "" {
		t.Errorf("Expected placeholder to be ignored, got %q", res.Records[0].Prompt)
	}
}

func TestPrompt_FingerprintRejectsNoise(t *testing.T) {
	p := mustPage(t, "https://suno.com/me", `
<html><body>
<div role="row">
  <a href="/song/n1">Noise</a>
  <div class="x-ingj1g">v3.5</div>
  <div class="x-ingj1g">https://suno.com/some/long/link/here</div>
  <div class="x-ingj1g">short</div>
  <div class="x-1q8qbjw"><button>Play</button>jazz, swing</div>
  <div class="x-1q8qbjw">a long prompt without any commas at all</div>
</div>
</body></html>`)

	res := newTestEngine().ScrapeAll(p)
	if got := res.Records[0].Prompt; got != "a long prompt without any commas at all" {
		t.Errorf("Unexpected prompt %q", got)
	}
}

func TestPrompt_TextScanSkipsTitleEcho(t *testing.T) {
	p := mustPage(t, "https://suno.com/me", `
<html><body>
<div class="song-card">
  <a href="/song/t1">A Very Long Song Title Goes Here</a>
  <div>A Very Long Song Title Goes Here, extended remix mix</div>
  <div>warm analog synths, slow tempo, dreamy female vocals, reverb</div>
</div>
</body></html>`)

	res := newTestEngine().ScrapeAll(p)
	if got := res.Records[0].Prompt; got != "warm analog synths, slow tempo, dreamy female vocals, reverb" {
		t.Errorf("Unexpected prompt %q", got)
	}
	if res.Diagnostics.FieldHits["prompt:text-scan"] != 1 {
		t.Errorf("Expected text scan pass to hit, got %v", res.Diagnostics.FieldHits)
	}
}

func TestPrompt_Siblings(t *testing.T) {
	p := mustPage(t, "https://suno.com/me", `
<html><body>
<div class="card">
  <div class="title-wrap"><a href="/song/s1">Sib Song</a></div>
  <div><button>Play</button> rock, metal, heavy guitars, loud drums</div>
  <div>v3</div>
  <div>rock, metal, heavy guitars, loud drums here</div>
</div>
</body></html>`)

	res := newTestEngine().ScrapeAll(p)
	if got := res.Records[0].Prompt; got != "rock, metal, heavy guitars, loud drums here" {
		t.Errorf("Unexpected prompt %q", got)
	}
	if res.Diagnostics.FieldHits["prompt:siblings"] != 1 {
		t.Errorf("Expected sibling pass to hit, got %v", res.Diagnostics.FieldHits)
	}
}

func TestTitle_LeadingText(t *testing.T) {
	p := mustPage(t, "https://suno.com/me", `
<html><body>
<div class="song-row"><span>Leading Title <a href="/song/lt1"></a></span></div>
</body></html>`)

	res := newTestEngine().ScrapeAll(p)
	if got := res.Records[0].Title; got != "Leading Title" {
		t.Errorf("Unexpected title %q", got)
	}
}

func TestTitle_AriaLabel(t *testing.T) {
	p := mustPage(t, "https://suno.com/me", `
<html><body><a href="/song/al1" aria-label=" Labelled  Song "></a></body></html>`)

	res := newTestEngine().ScrapeAll(p)
	if got := res.Records[0].Title; got != "Labelled Song" {
		t.Errorf("Unexpected title %q", got)
	}
}

func TestImage_SkipsRelative(t *testing.T) {
	p := mustPage(t, "https://suno.com/me", `
<html><body>
<div role="listitem">
  <a href="/song/i1">Pic</a>
  <img data-src="/lazy.png" src="/local.png">
  <img src="//cdn1.suno.ai/image_q.png?width=50">
</div>
</body></html>`)

	res := newTestEngine().ScrapeAll(p)
	if got := res.Records[0].ImageURL; got != "https://cdn1.suno.ai/image_large_q.png" {
		t.Errorf("Unexpected image %q", got)
	}
}
