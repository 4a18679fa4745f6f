package printer

import (
	"bufio"
	"fmt"
	"io"

	"v8heap/internal/constants"
)

// Constants writes every constant the schema has looked up, resolved ones
// with their value and absent ones with the default in use, followed by the
// V8 version and descriptor layout.
func (p *Printer) Constants(w io.Writer, s *constants.Schema) error {
	s.LoadAll()
	bw := bufio.NewWriter(w)
	var absent int
	for _, c := range s.Loader().Entries() {
		switch c.State {
		case constants.Resolved:
			fmt.Fprintf(bw, "  %-72s %d\n", c.Name, c.Value)
		default:
			absent++
			fmt.Fprintf(bw, "  %-72s %s\n", c.Name, p.pal.bad.Sprintf("<%s, default %d>", c.State, c.Value))
		}
	}
	fmt.Fprintf(bw, "V8 version: %s\n", s.Common().Version())
	fmt.Fprintf(bw, "descriptor layout: %s\n", s.DescriptorArray().Layout)
	fmt.Fprintf(bw, "%d constants, %d absent\n", len(s.Loader().Entries()), absent)
	return bw.Flush()
}
