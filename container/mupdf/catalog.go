package mupdf

import (
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/ledongthuc/pdf"

	"github.com/wudi/slidekit/container"
	"github.com/wudi/slidekit/coords"
	"github.com/wudi/slidekit/labels"
	"github.com/wudi/slidekit/security"
)

// maxTreeDepth bounds recursion through number trees, name trees and page
// parents, which may contain reference cycles in damaged files.
const maxTreeDepth = 32

type catalog struct {
	r      *pdf.Reader
	root   pdf.Value
	limits security.Limits
}

func newCatalog(f io.ReaderAt, size int64, limits security.Limits) (cat *catalog, err error) {
	// The object reader panics on some malformed input.
	defer func() {
		if r := recover(); r != nil {
			cat, err = nil, fmt.Errorf("malformed pdf: %v", r)
		}
	}()
	r, err := pdf.NewReader(f, size)
	if err != nil {
		return nil, err
	}
	root := r.Trailer().Key("Root")
	if root.Kind() != pdf.Dict {
		return nil, fmt.Errorf("catalog not found in trailer")
	}
	return &catalog{r: r, root: root, limits: limits}, nil
}

func guard(err *error) {
	if r := recover(); r != nil {
		*err = fmt.Errorf("malformed pdf: %v", r)
	}
}

// pageLabels reads the /PageLabels number tree. Entries whose key is not an
// integer or whose value is not a label dictionary make the tree
// uninterpretable and are reported as errors.
func (c *catalog) pageLabels() (ranges []labels.Range, err error) {
	defer guard(&err)
	tree := c.root.Key("PageLabels")
	if tree.IsNull() {
		return nil, nil
	}
	if tree.Kind() != pdf.Dict {
		return nil, fmt.Errorf("page labels: expected dictionary, got %v", tree.Kind())
	}
	err = walkTree(tree, "Nums", 0, func(key, val pdf.Value) error {
		if len(ranges) >= c.limits.MaxLabelRanges {
			return &security.LimitError{Limit: "label ranges", Max: int64(c.limits.MaxLabelRanges), Got: int64(len(ranges) + 1)}
		}
		if key.Kind() != pdf.Integer {
			return fmt.Errorf("page labels: non-integer page index %v", key)
		}
		if val.Kind() != pdf.Dict {
			return fmt.Errorf("page labels: entry for page %d is not a dictionary", key.Int64())
		}
		first := 1
		if st := val.Key("St"); !st.IsNull() {
			if st.Kind() != pdf.Integer || st.Int64() < 1 {
				return fmt.Errorf("page labels: invalid start %v for page %d", st, key.Int64())
			}
			first = int(st.Int64())
		}
		ranges = append(ranges, labels.Range{Start: int(key.Int64()), First: first})
		return nil
	})
	return ranges, err
}

// embeddedFiles walks the /Names /EmbeddedFiles name tree.
func (c *catalog) embeddedFiles() (files []container.EmbeddedFile, err error) {
	defer guard(&err)
	tree := c.root.Key("Names").Key("EmbeddedFiles")
	if tree.IsNull() {
		return nil, nil
	}
	err = walkTree(tree, "Names", 0, func(key, spec pdf.Value) error {
		if len(files) >= c.limits.MaxEmbeddedFiles {
			return errStopWalk
		}
		if spec.Kind() != pdf.Dict {
			return nil
		}
		data, err := c.fileData(spec)
		if err != nil {
			return fmt.Errorf("embedded file %q: %w", key.Text(), err)
		}
		name := spec.Key("UF").Text()
		if name == "" {
			name = spec.Key("F").Text()
		}
		files = append(files, container.EmbeddedFile{
			Name:        key.Text(),
			Filename:    name,
			Description: spec.Key("Desc").Text(),
			Data:        data,
		})
		return nil
	})
	if errors.Is(err, errStopWalk) {
		err = nil
	}
	return files, err
}

// fileData reads the embedded stream. Reads stop one byte past the sidecar
// limit so oversized payloads are still recognisable as such downstream.
func (c *catalog) fileData(spec pdf.Value) ([]byte, error) {
	ef := spec.Key("EF")
	stream := ef.Key("F")
	if stream.Kind() != pdf.Stream {
		stream = ef.Key("UF")
	}
	if stream.Kind() != pdf.Stream {
		return nil, nil
	}
	rc := stream.Reader()
	defer rc.Close()
	return io.ReadAll(io.LimitReader(rc, c.limits.MaxSidecarSize+1))
}

var errStopWalk = errors.New("stop walk")

// walkTree visits the key/value pairs of a number tree (leaf key "Nums") or
// name tree (leaf key "Names") in order.
func walkTree(node pdf.Value, leaf string, depth int, visit func(key, val pdf.Value) error) error {
	if depth > maxTreeDepth {
		return fmt.Errorf("%s tree nested deeper than %d", leaf, maxTreeDepth)
	}
	if kids := node.Key("Kids"); kids.Kind() == pdf.Array {
		for i := 0; i < kids.Len(); i++ {
			if err := walkTree(kids.Index(i), leaf, depth+1, visit); err != nil {
				return err
			}
		}
	}
	pairs := node.Key(leaf)
	if pairs.IsNull() {
		return nil
	}
	if pairs.Kind() != pdf.Array {
		return fmt.Errorf("/%s is not an array", leaf)
	}
	if pairs.Len()%2 != 0 {
		return fmt.Errorf("/%s has odd length %d", leaf, pairs.Len())
	}
	for i := 0; i+1 < pairs.Len(); i += 2 {
		if err := visit(pairs.Index(i), pairs.Index(i+1)); err != nil {
			return err
		}
	}
	return nil
}

// pageBounds computes the visible page rectangle the way MuPDF reports it:
// CropBox clipped to MediaBox, rotated, origin moved to (0,0).
func (c *catalog) pageBounds(page int) (r coords.Rect, ok bool) {
	defer func() {
		if recover() != nil {
			r, ok = coords.Rect{}, false
		}
	}()
	p := c.r.Page(page + 1)
	if p.V.IsNull() {
		return coords.Rect{}, false
	}
	media, ok := boxValue(inherited(p.V, "MediaBox"))
	if !ok {
		return coords.Rect{}, false
	}
	box := media
	if crop, ok := boxValue(inherited(p.V, "CropBox")); ok {
		if clipped := crop.Intersect(media); !clipped.Empty() {
			box = clipped
		}
	}
	size := box.Size()
	rot := int(inherited(p.V, "Rotate").Int64()) % 360
	if rot < 0 {
		rot += 360
	}
	if rot == 90 || rot == 270 {
		size.W, size.H = size.H, size.W
	}
	return coords.RectFromSize(size), true
}

func inherited(v pdf.Value, key string) pdf.Value {
	for depth := 0; depth <= maxTreeDepth && !v.IsNull(); depth++ {
		if x := v.Key(key); !x.IsNull() {
			return x
		}
		v = v.Key("Parent")
	}
	return pdf.Value{}
}

func boxValue(v pdf.Value) (coords.Rect, bool) {
	if v.Kind() != pdf.Array || v.Len() != 4 {
		return coords.Rect{}, false
	}
	var n [4]float64
	for i := range n {
		x := v.Index(i)
		if x.Kind() != pdf.Integer && x.Kind() != pdf.Real {
			return coords.Rect{}, false
		}
		n[i] = x.Float64()
		if math.IsNaN(n[i]) || math.IsInf(n[i], 0) {
			return coords.Rect{}, false
		}
	}
	r := coords.Rect{X0: n[0], Y0: n[1], X1: n[2], Y1: n[3]}.Normalize()
	if r.Empty() {
		return coords.Rect{}, false
	}
	return r, true
}
