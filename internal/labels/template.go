package labels

import (
	"encoding/xml"
	"errors"
	"fmt"
	"regexp"
	"strings"

	qrcode "github.com/skip2/go-qrcode"
)

// Element kinds a label layout may contain.
const (
	KindRect       = "rect"
	KindLine       = "line"
	KindText       = "text"
	KindBarcode    = "barcode"
	KindQRCode     = "qrcode"
	KindPDF417     = "pdf417"
	KindDataMatrix = "datamatrix"
	KindTable      = "table"
)

var (
	// ErrEmptyTemplate indicates a layout with no drawable elements.
	ErrEmptyTemplate = errors.New("labels: template has no elements")
	// ErrBadRotation indicates a rotation other than 0, 90 or 270 degrees.
	ErrBadRotation = errors.New("labels: rotation must be 0, 90 or 270")
)

// placeholderPattern matches %%%Name%%% markers, tolerating inner whitespace.
var placeholderPattern = regexp.MustCompile(`%%%\s*(.*?)\s*%%%`)

// Template is a parsed label layout.
type Template struct {
	XMLName  xml.Name  `xml:"Label"`
	Width    float64   `xml:"width,attr"`
	Height   float64   `xml:"height,attr"`
	Elements []Element `xml:",any"`
}

// Element is one drawable node of the layout. Content may carry
// %%%Name%%% placeholders resolved at render time.
type Element struct {
	XMLName  xml.Name
	X        float64 `xml:"x,attr"`
	Y        float64 `xml:"y,attr"`
	Width    float64 `xml:"width,attr"`
	Height   float64 `xml:"height,attr"`
	Rotation int     `xml:"rotation,attr"`
	Font     string  `xml:"font,attr"`
	FontSize float64 `xml:"fontSize,attr"`
	Content  string  `xml:",chardata"`
	Rows     []Row   `xml:"Row"`
}

// Row holds the cells of one table row.
type Row struct {
	Cells []string `xml:"Cell"`
}

// DrawCommand is one resolved drawing instruction, placeholder-free and
// ready for a renderer.
type DrawCommand struct {
	Kind     string     `json:"kind"`
	X        float64    `json:"x"`
	Y        float64    `json:"y"`
	Width    float64    `json:"width"`
	Height   float64    `json:"height"`
	Rotation int        `json:"rotation"`
	Font     string     `json:"font,omitempty"`
	FontSize float64    `json:"font_size,omitempty"`
	Content  string     `json:"content,omitempty"`
	Table    [][]string `json:"table,omitempty"`
}

// Parse decodes an XML label layout.
func Parse(body string) (*Template, error) {
	var tpl Template
	if err := xml.Unmarshal([]byte(body), &tpl); err != nil {
		return nil, fmt.Errorf("labels: parse template: %w", err)
	}
	if len(tpl.Elements) == 0 {
		return nil, ErrEmptyTemplate
	}
	for i := range tpl.Elements {
		kind := strings.ToLower(tpl.Elements[i].XMLName.Local)
		switch kind {
		case KindRect, KindLine, KindText, KindBarcode, KindQRCode, KindPDF417, KindDataMatrix, KindTable:
		default:
			return nil, fmt.Errorf("labels: unknown element %q", tpl.Elements[i].XMLName.Local)
		}
		switch tpl.Elements[i].Rotation {
		case 0, 90, 270:
		default:
			return nil, ErrBadRotation
		}
	}
	return &tpl, nil
}

// Substitute resolves %%%Name%%% markers from values, returning the result
// plus the names of markers with no value. Unresolved markers render empty.
func Substitute(content string, values map[string]string) (string, []string) {
	var missing []string
	result := placeholderPattern.ReplaceAllStringFunc(content, func(match string) string {
		name := strings.TrimSpace(placeholderPattern.FindStringSubmatch(match)[1])
		if value, ok := values[name]; ok {
			return value
		}
		missing = append(missing, name)
		return ""
	})
	return result, missing
}

// Placeholders lists the distinct marker names a layout references.
func Placeholders(body string) []string {
	seen := map[string]bool{}
	var names []string
	for _, match := range placeholderPattern.FindAllStringSubmatch(body, -1) {
		name := strings.TrimSpace(match[1])
		if !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	return names
}

// Render resolves the template against values into draw commands. QR
// elements are checked for encodability so bad payloads fail here rather
// than at print time.
func (t *Template) Render(values map[string]string) ([]DrawCommand, error) {
	commands := make([]DrawCommand, 0, len(t.Elements))
	for _, el := range t.Elements {
		kind := strings.ToLower(el.XMLName.Local)

		cmd := DrawCommand{
			Kind:     kind,
			X:        el.X,
			Y:        el.Y,
			Width:    el.Width,
			Height:   el.Height,
			Rotation: el.Rotation,
			Font:     el.Font,
			FontSize: el.FontSize,
		}

		switch kind {
		case KindTable:
			table := make([][]string, 0, len(el.Rows))
			for _, row := range el.Rows {
				cells := make([]string, 0, len(row.Cells))
				for _, cell := range row.Cells {
					resolved, _ := Substitute(cell, values)
					cells = append(cells, resolved)
				}
				table = append(table, cells)
			}
			cmd.Table = table

		default:
			resolved, _ := Substitute(strings.TrimSpace(el.Content), values)
			cmd.Content = resolved
		}

		if kind == KindQRCode && cmd.Content != "" {
			if _, err := qrcode.New(cmd.Content, qrcode.Medium); err != nil {
				return nil, fmt.Errorf("labels: encode qr payload: %w", err)
			}
		}

		commands = append(commands, cmd)
	}
	return commands, nil
}
