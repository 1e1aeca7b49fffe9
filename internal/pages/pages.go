// Package pages finds batch OCR inputs and turns each of them into the page
// images sent to the model.
package pages

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Kind is the input file type.
type Kind int

const (
	KindImage Kind = iota
	KindPDF
)

var extensions = map[string]Kind{
	".jpg":  KindImage,
	".jpeg": KindImage,
	".png":  KindImage,
	".pdf":  KindPDF,
}

// Input is a supported file found under the batch root.
type Input struct {
	Path string
	// Rel is Path relative to the batch root.
	Rel  string
	Kind Kind
}

// Stem is the file name without its extension.
func (in Input) Stem() string {
	base := filepath.Base(in.Path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// Page is one image to process.
type Page struct {
	Input Input
	// Number is the 1-based page within a PDF, or 0 for an image input.
	Number int
	// Name is the output file stem.
	Name string
}

// Discover walks root recursively and returns the supported inputs in
// natural order of their relative paths.
func Discover(root string, includePDF bool) ([]Input, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("failed to open input folder: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", root)
	}

	var inputs []Input
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		kind, ok := extensions[strings.ToLower(filepath.Ext(path))]
		if !ok || (kind == KindPDF && !includePDF) {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			rel = filepath.Base(path)
		}
		inputs = append(inputs, Input{Path: path, Rel: rel, Kind: kind})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan input folder: %w", err)
	}

	sort.SliceStable(inputs, func(i, j int) bool {
		return naturalLess(inputs[i].Rel, inputs[j].Rel)
	})
	return inputs, nil
}

// Skipped is an input that contributed no pages.
type Skipped struct {
	Input Input
	Err   error
}

// Expand lists the pages of every input. PDFs contribute one page per PDF
// page, named <stem>_page_0001 and so on. A PDF whose pages cannot be
// counted is returned in skipped and the remaining inputs are still
// expanded. The error is non-nil only when ctx is done.
func Expand(ctx context.Context, inputs []Input, r Renderer) (out []Page, skipped []Skipped, err error) {
	for _, in := range inputs {
		if in.Kind == KindImage {
			out = append(out, Page{Input: in, Name: in.Stem()})
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		if r == nil {
			skipped = append(skipped, Skipped{Input: in, Err: errors.New("no PDF renderer configured")})
			continue
		}
		n, err := r.PageCount(in.Path)
		if err != nil {
			skipped = append(skipped, Skipped{Input: in, Err: err})
			continue
		}
		for p := 1; p <= n; p++ {
			out = append(out, Page{
				Input:  in,
				Number: p,
				Name:   fmt.Sprintf("%s_page_%04d", in.Stem(), p),
			})
		}
	}
	return out, skipped, nil
}

// Load returns the image bytes of a page.
func Load(ctx context.Context, p Page, r Renderer) ([]byte, error) {
	if p.Input.Kind == KindImage {
		data, err := os.ReadFile(p.Input.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to read image: %w", err)
		}
		return data, nil
	}
	if r == nil {
		return nil, fmt.Errorf("no PDF renderer configured")
	}
	return r.RenderPage(ctx, p.Input.Path, p.Number)
}

// naturalLess orders strings so that embedded numbers compare by value:
// page-2 sorts before page-10.
func naturalLess(a, b string) bool {
	for a != "" && b != "" {
		ca, cb := a[0], b[0]
		if isDigit(ca) && isDigit(cb) {
			na, ra := leadingDigits(a)
			nb, rb := leadingDigits(b)
			ta, tb := strings.TrimLeft(na, "0"), strings.TrimLeft(nb, "0")
			if len(ta) != len(tb) {
				return len(ta) < len(tb)
			}
			if ta != tb {
				return ta < tb
			}
			if len(na) != len(nb) {
				return len(na) < len(nb)
			}
			a, b = ra, rb
			continue
		}
		la, lb := lower(ca), lower(cb)
		if la != lb {
			return la < lb
		}
		a, b = a[1:], b[1:]
	}
	return len(a) < len(b)
}

func leadingDigits(s string) (string, string) {
	i := 0
	for i < len(s) && isDigit(s[i]) {
		i++
	}
	return s[:i], s[i:]
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func lower(c byte) byte {
	if c >= 'A' && c <= 'Z' {
		return c + 'a' - 'A'
	}
	return c
}
