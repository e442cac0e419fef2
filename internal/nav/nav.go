// Package nav holds the portal's navigation menu. Every menu entry points at a
// Target from a closed set, so a typo is a compile or test failure rather than
// a broken link at runtime.
package nav

import (
	"shokucho.jp/portal/internal/apperr"
)

// AppName is shown in every page header.
const AppName = "ショクチョー！"

// Target identifies a page of the portal.
type Target string

const (
	Home           Target = "index"
	Converter      Target = "converter"
	UnitConverter  Target = "unit_converter"
	Calculator     Target = "calculator"
	DXFTool        Target = "dxf_tool"
	ComparisonTool Target = "comparison_tool"
	Forum          Target = "forum"
)

// Page describes one page.
type Page struct {
	Target Target `json:"id"`
	Title  string `json:"title"`
	Path   string `json:"path"`
}

var pages = []Page{
	{Home, "ホーム", "/"},
	{Converter, "HEIC to JPG 変換", "/converter"},
	{UnitConverter, "単位換算", "/unit_converter"},
	{Calculator, "計算ツール", "/calculator"},
	{DXFTool, "DXF座標出力ツール", "/dxf_tool"},
	{ComparisonTool, "比較見積もりツール", "/comparison_tool"},
	{Forum, "知恵袋・掲示板", "/forum"},
}

// Item is a menu entry. Group entries have Children and no Target.
type Item struct {
	Target   Target `json:"id,omitempty"`
	Name     string `json:"name"`
	Path     string `json:"path,omitempty"`
	Children []Item `json:"children,omitempty"`
}

// PageContext is what every page needs to render its frame.
type PageContext struct {
	AppName   string `json:"app_name"`
	Current   Target `json:"current_app"`
	PageTitle string `json:"page_title"`
	Nav       []Item `json:"nav"`
}

// Pages returns every page in menu order.
func Pages() []Page {
	out := make([]Page, len(pages))
	copy(out, pages)
	return out
}

// Lookup returns the page for t.
func Lookup(t Target) (Page, bool) {
	for _, p := range pages {
		if p.Target == t {
			return p, true
		}
	}
	return Page{}, false
}

// Valid reports whether t names a page.
func (t Target) Valid() bool {
	_, ok := Lookup(t)
	return ok
}

func leaf(t Target, name string) Item {
	p, _ := Lookup(t)
	return Item{Target: t, Name: name, Path: p.Path}
}

// Menu returns the navigation tree.
func Menu() []Item {
	return []Item{
		leaf(Home, "🏠 ホーム"),
		{
			Name: "🛠️ 便利アプリ",
			Children: []Item{
				leaf(Converter, "📸 HEIC to JPG 変換"),
				leaf(UnitConverter, "📏 単位換算"),
				leaf(Calculator, "📐 計算ツール"),
				leaf(DXFTool, "🗺️ DXF座標出力ツール"),
				leaf(ComparisonTool, "📊 比較見積もりツール"),
			},
		},
		leaf(Forum, "💬 知恵袋・掲示板"),
	}
}

// Context builds the page frame for current.
func Context(current Target) (PageContext, error) {
	p, ok := Lookup(current)
	if !ok {
		return PageContext{}, apperr.NotFoundf("unknown page %q", current)
	}
	return PageContext{AppName: AppName, Current: p.Target, PageTitle: p.Title, Nav: Menu()}, nil
}
