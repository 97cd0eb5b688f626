package export

import "fmt"

// Section is a titled table inside a document.
type Section struct {
	Heading string
	Headers []string
	Rows    [][]string
	Footer  []string
}

// Document is renderer-agnostic export content.
type Document struct {
	Title    string
	Subtitle string
	Sections []Section
}

// Renderer turns a document into bytes of a given content type.
type Renderer interface {
	Render(doc Document) ([]byte, error)
	ContentType() string
	Extension() string
}

func (d Document) validate() error {
	if len(d.Sections) == 0 {
		return fmt.Errorf("document has no sections")
	}
	for i, s := range d.Sections {
		if len(s.Headers) == 0 {
			return fmt.Errorf("section %d has no headers", i)
		}
		for j, row := range s.Rows {
			if len(row) != len(s.Headers) {
				return fmt.Errorf("section %d row %d has %d cells, want %d", i, j, len(row), len(s.Headers))
			}
		}
	}
	return nil
}
