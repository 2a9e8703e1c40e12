package tool

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/net/html"

	"github.com/martinemde/manus/agentloop"
)

// BrowserName is the registered name of the browser tool.
const BrowserName = agentloop.BrowserToolName

const (
	maxPageBytes      = 5 << 20
	maxPromptElements = 30
)

const browserDescription = `Interact with web pages over HTTP. Pages are fetched and reduced to their title, visible text, and numbered links.
* go_to_url: open url in the current tab
* go_back: return to the previous page in the current tab
* click_element: follow the link with the given index
* open_tab: open url in a new tab
* switch_tab: switch to tab_id
* close_tab: close the current tab
* scroll_down / scroll_up: move the text viewport
* extract_content: return the full visible text of the current page, optionally filtered by goal keywords`

// BrowserOptions configures the browser tool.
type BrowserOptions struct {
	Timeout         time.Duration
	UserAgent       string
	MaxContentChars int // characters in one viewport
	Client          *http.Client
}

// Browser is a lightweight tabbed web session. It is also the agent's
// browser context collaborator.
type Browser struct {
	client    *http.Client
	userAgent string
	viewport  int

	mu         sync.Mutex
	tabs       []*browserTab
	active     int
	lastResult string
}

type browserTab struct {
	history []*page
	offset  int
}

func (t *browserTab) current() *page {
	if len(t.history) == 0 {
		return nil
	}
	return t.history[len(t.history)-1]
}

type page struct {
	URL   string
	Title string
	Text  string
	Links []pageLink
}

type pageLink struct {
	Text string
	Href string
}

var (
	_ agentloop.Tool           = (*Browser)(nil)
	_ agentloop.BrowserContext = (*Browser)(nil)
)

// NewBrowser creates the browser tool.
func NewBrowser(opts BrowserOptions) *Browser {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.MaxContentChars <= 0 {
		opts.MaxContentChars = 2000
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "manus-agent/1.0"
	}
	client := opts.Client
	if client == nil {
		client = &http.Client{Timeout: opts.Timeout}
	}
	return &Browser{
		client:    client,
		userAgent: opts.UserAgent,
		viewport:  opts.MaxContentChars,
		active:    -1,
	}
}

func (b *Browser) Definition() agentloop.ToolDefinition {
	return agentloop.ToolDefinition{
		Name:        BrowserName,
		Description: browserDescription,
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"action": map[string]any{
					"type": "string",
					"enum": []string{
						"go_to_url", "go_back", "click_element", "open_tab", "switch_tab",
						"close_tab", "scroll_down", "scroll_up", "extract_content",
					},
					"description": "The browser action to perform.",
				},
				"url": map[string]any{
					"type":        "string",
					"description": "URL for go_to_url or open_tab.",
				},
				"index": map[string]any{
					"type":        "integer",
					"description": "Link index for click_element.",
				},
				"tab_id": map[string]any{
					"type":        "integer",
					"description": "Tab index for switch_tab.",
				},
				"goal": map[string]any{
					"type":        "string",
					"description": "Keywords for extract_content.",
				},
			},
			"required": []string{"action"},
		},
	}
}

type browserArgs struct {
	Action string `json:"action"`
	URL    string `json:"url"`
	Index  *int   `json:"index"`
	TabID  *int   `json:"tab_id"`
	Goal   string `json:"goal"`
}

func (b *Browser) Execute(ctx context.Context, raw json.RawMessage) (string, error) {
	var args browserArgs
	if err := json.Unmarshal(raw, &args); err != nil {
		return "", fmt.Errorf("%w: %v", agentloop.ErrInvalidArguments, err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	out, err := b.do(ctx, args)
	if err != nil {
		b.lastResult = "Error: " + err.Error()
		return "", fmt.Errorf("browser action %q failed: %w", args.Action, err)
	}
	b.lastResult = out
	return out, nil
}

func (b *Browser) do(ctx context.Context, args browserArgs) (string, error) {
	switch args.Action {
	case "go_to_url":
		if args.URL == "" {
			return "", errors.New("url is required for go_to_url")
		}
		tab := b.ensureTab()
		p, err := b.fetch(ctx, args.URL)
		if err != nil {
			return "", err
		}
		tab.history = append(tab.history, p)
		tab.offset = 0
		return fmt.Sprintf("Navigated to %s", p.URL), nil

	case "go_back":
		tab := b.activeTab()
		if tab == nil || len(tab.history) < 2 {
			return "", errors.New("no previous page in this tab")
		}
		tab.history = tab.history[:len(tab.history)-1]
		tab.offset = 0
		return fmt.Sprintf("Navigated back to %s", tab.current().URL), nil

	case "click_element":
		if args.Index == nil {
			return "", errors.New("index is required for click_element")
		}
		tab := b.activeTab()
		if tab == nil || tab.current() == nil {
			return "", errors.New("no page is open")
		}
		links := tab.current().Links
		if *args.Index < 0 || *args.Index >= len(links) {
			return "", fmt.Errorf("element %d not found (page has %d elements)", *args.Index, len(links))
		}
		target := links[*args.Index]
		p, err := b.fetch(ctx, target.Href)
		if err != nil {
			return "", err
		}
		tab.history = append(tab.history, p)
		tab.offset = 0
		return fmt.Sprintf("Clicked element %d: %s", *args.Index, target.Text), nil

	case "open_tab":
		if args.URL == "" {
			return "", errors.New("url is required for open_tab")
		}
		p, err := b.fetch(ctx, args.URL)
		if err != nil {
			return "", err
		}
		b.tabs = append(b.tabs, &browserTab{history: []*page{p}})
		b.active = len(b.tabs) - 1
		return fmt.Sprintf("Opened tab %d with %s", b.active, p.URL), nil

	case "switch_tab":
		if args.TabID == nil {
			return "", errors.New("tab_id is required for switch_tab")
		}
		if *args.TabID < 0 || *args.TabID >= len(b.tabs) {
			return "", fmt.Errorf("tab %d does not exist", *args.TabID)
		}
		b.active = *args.TabID
		return fmt.Sprintf("Switched to tab %d", b.active), nil

	case "close_tab":
		if b.activeTab() == nil {
			return "", errors.New("no tab is open")
		}
		closed := b.active
		b.tabs = append(b.tabs[:closed], b.tabs[closed+1:]...)
		if b.active >= len(b.tabs) {
			b.active = len(b.tabs) - 1
		}
		return fmt.Sprintf("Closed tab %d", closed), nil

	case "scroll_down", "scroll_up":
		tab := b.activeTab()
		if tab == nil || tab.current() == nil {
			return "", errors.New("no page is open")
		}
		n := len([]rune(tab.current().Text))
		if args.Action == "scroll_down" {
			tab.offset = min(tab.offset+b.viewport, max(0, n-1))
		} else {
			tab.offset = max(0, tab.offset-b.viewport)
		}
		return fmt.Sprintf("Scrolled %s to character %d of %d", strings.TrimPrefix(args.Action, "scroll_"), tab.offset, n), nil

	case "extract_content":
		tab := b.activeTab()
		if tab == nil || tab.current() == nil {
			return "", errors.New("no page is open")
		}
		return extractContent(tab.current(), args.Goal), nil

	default:
		return "", fmt.Errorf("unknown action %q", args.Action)
	}
}

func (b *Browser) ensureTab() *browserTab {
	if tab := b.activeTab(); tab != nil {
		return tab
	}
	b.tabs = append(b.tabs, &browserTab{})
	b.active = len(b.tabs) - 1
	return b.tabs[b.active]
}

func (b *Browser) activeTab() *browserTab {
	if b.active < 0 || b.active >= len(b.tabs) {
		return nil
	}
	return b.tabs[b.active]
}

func (b *Browser) fetch(ctx context.Context, rawURL string) (*page, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid url %q: %w", rawURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("unsupported url scheme %q", u.Scheme)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", b.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,text/plain;q=0.9,*/*;q=0.8")

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", u, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("fetch %s: HTTP %d", u, resp.StatusCode)
	}

	body := io.LimitReader(resp.Body, maxPageBytes)
	final := resp.Request.URL
	mediaType, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if mediaType != "" && mediaType != "text/html" && mediaType != "application/xhtml+xml" {
		data, err := io.ReadAll(body)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", u, err)
		}
		return &page{URL: final.String(), Text: strings.TrimSpace(string(data))}, nil
	}

	doc, err := html.Parse(body)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", u, err)
	}
	p := parsePage(doc, final)
	return p, nil
}

// FormatContextPrompt renders the next-step prompt for the current page.
// It fails when no page is open.
func (b *Browser) FormatContextPrompt(context.Context) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	tab := b.activeTab()
	if tab == nil || tab.current() == nil {
		return "", errors.New("no page is open")
	}
	p := tab.current()

	runes := []rune(p.Text)
	start := min(tab.offset, len(runes))
	end := min(start+b.viewport, len(runes))
	excerpt := string(runes[start:end])

	var sb strings.Builder
	sb.WriteString("What should I do next to achieve my goal?\n\n")
	sb.WriteString("When you see [Current state starts here], focus on the following:\n")
	fmt.Fprintf(&sb, "- Current URL and page title:\n  URL: %s\n  Title: %s\n", p.URL, p.Title)
	fmt.Fprintf(&sb, "- Available tabs:\n  %d tab(s) available, tab %d is active\n", len(b.tabs), b.active)
	fmt.Fprintf(&sb, "- Interactive elements and their indices (%d interactive elements):\n", len(p.Links))
	for i, l := range p.Links {
		if i == maxPromptElements {
			fmt.Fprintf(&sb, "  ... %d more\n", len(p.Links)-maxPromptElements)
			break
		}
		fmt.Fprintf(&sb, "  [%d] %s\n", i, l.Text)
	}
	fmt.Fprintf(&sb, "- Content above or below the viewport:\n  %d characters above, %d characters below\n", start, len(runes)-end)
	if b.lastResult != "" {
		fmt.Fprintf(&sb, "- Any action results or errors:\n  %s\n", agentloop.Truncate(b.lastResult, 500))
	}
	sb.WriteString("\n[Current state starts here]\n")
	sb.WriteString(excerpt)
	sb.WriteString("\n[Current state ends here]\n\n")
	sb.WriteString("Remember:\n")
	sb.WriteString("- Use one browser action per step and check the result before the next.\n")
	sb.WriteString("- Use element indices exactly as listed above.\n")
	sb.WriteString("- If the task is complete or cannot continue, use the `terminate` tool/function call.")
	return sb.String(), nil
}

// CloseSession drops all tabs and idle connections. Safe to call repeatedly.
func (b *Browser) CloseSession(context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.tabs = nil
	b.active = -1
	b.lastResult = ""
	b.client.CloseIdleConnections()
	return nil
}

// extractContent returns the page text, or only the paragraphs mentioning
// one of goal's words when goal is set and matches something.
func extractContent(p *page, goal string) string {
	header := fmt.Sprintf("Extracted from %s (%s):\n", p.URL, p.Title)
	words := strings.Fields(strings.ToLower(goal))
	if len(words) == 0 {
		return header + p.Text
	}
	var kept []string
	for _, para := range strings.Split(p.Text, "\n") {
		lower := strings.ToLower(para)
		for _, w := range words {
			if strings.Contains(lower, w) {
				kept = append(kept, para)
				break
			}
		}
	}
	if len(kept) == 0 {
		return header + p.Text
	}
	return header + strings.Join(kept, "\n")
}

var skippedElements = map[string]bool{
	"script": true, "style": true, "noscript": true, "template": true,
	"svg": true, "iframe": true,
}

var blockElements = map[string]bool{
	"p": true, "div": true, "br": true, "li": true, "tr": true, "section": true,
	"article": true, "header": true, "footer": true, "h1": true, "h2": true,
	"h3": true, "h4": true, "h5": true, "h6": true, "pre": true, "table": true,
	"ul": true, "ol": true, "main": true, "nav": true, "blockquote": true,
}

// parsePage extracts the title, visible text, and links of doc. Link hrefs
// are resolved against base.
func parsePage(doc *html.Node, base *url.URL) *page {
	p := &page{URL: base.String()}
	var text strings.Builder

	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			if n.Data == "title" {
				if p.Title == "" {
					p.Title = collapseSpace(nodeText(n))
				}
				return
			}
			if skippedElements[n.Data] {
				return
			}
			if n.Data == "a" {
				if href := attr(n, "href"); href != "" && !strings.HasPrefix(href, "#") && !strings.HasPrefix(href, "javascript:") {
					if ref, err := base.Parse(href); err == nil {
						label := collapseSpace(nodeText(n))
						if label == "" {
							label = ref.String()
						}
						p.Links = append(p.Links, pageLink{Text: label, Href: ref.String()})
					}
				}
			}
			if blockElements[n.Data] {
				text.WriteString("\n")
			}
		}
		if n.Type == html.TextNode {
			if s := collapseSpace(n.Data); s != "" {
				text.WriteString(s)
				text.WriteString(" ")
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
		if n.Type == html.ElementNode && blockElements[n.Data] {
			text.WriteString("\n")
		}
	}
	walk(doc)

	var lines []string
	for _, line := range strings.Split(text.String(), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	p.Text = strings.Join(lines, "\n")
	return p
}

func nodeText(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
			sb.WriteString(" ")
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
