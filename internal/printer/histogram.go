package printer

import (
	"bufio"
	"fmt"
	"io"

	"v8heap/internal/refs"
	"v8heap/internal/scan"
)

// Histogram writes the findjsobjects table, one row per hidden class in
// sort order. withMap adds the hidden-class address column.
func (p *Printer) Histogram(w io.Writer, hist *scan.Histogram, withMap bool) error {
	bw := bufio.NewWriter(w)
	if withMap {
		fmt.Fprintln(bw, "                Map  Instances  Total Size Name")
		fmt.Fprintln(bw, " ------------------ ---------- ---------- ----")
	} else {
		fmt.Fprintln(bw, " Instances  Total Size Name")
		fmt.Fprintln(bw, " ---------- ---------- ----")
	}
	for _, r := range hist.Sorted() {
		if withMap {
			fmt.Fprintf(bw, " %s", p.pal.addr.Sprintf("0x%016x", p.tagged(r.Map)))
		}
		fmt.Fprintf(bw, " %10d %10d %s\n", r.Count(), r.Size(), p.pal.value.Sprint(r.Name))
	}
	count, size := hist.Totals()
	if withMap {
		fmt.Fprintln(bw, " ------------------ ---------- ---------- ")
		fmt.Fprintf(bw, " %18s %10d %10d \n", "", count, size)
	} else {
		fmt.Fprintln(bw, " ---------- ---------- ")
		fmt.Fprintf(bw, " %10d %10d \n", count, size)
	}
	return bw.Flush()
}

// DetailedHistogram writes the findjsobjects -d table. Hidden classes that
// share a name, element count and key list are merged; maxKeys bounds the
// property names shown per row.
func (p *Printer) DetailedHistogram(w io.Writer, hist *scan.Histogram, maxKeys int) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintln(bw, "   Sample Obj.  Instances  Total Size  Properties  Elements  Name")
	fmt.Fprintln(bw, " ------------- ---------- ----------- ----------- --------- -----")
	var count, size int64
	for _, s := range hist.Shapes(maxKeys) {
		count += s.Count
		size += s.Size
		fmt.Fprintf(bw, " %s %10d %11d %11d %9d %s\n",
			p.pal.addr.Sprintf("%13x", p.tagged(s.Sample)), s.Count, s.Size, s.Descriptors, s.Elements,
			p.pal.value.Sprint(s.Name))
	}
	fmt.Fprintln(bw, " ------------ ---------- ----------- ----------- ----------- ----")
	fmt.Fprintf(bw, "             %11d %11d \n", count, size)
	return bw.Flush()
}

// Instances writes one inspected instance per line. It returns the number
// of instances written.
func (p *Printer) Instances(w io.Writer, addrs []uint64) (int, error) {
	bw := bufio.NewWriter(w)
	n := 0
	for _, a := range addrs {
		s, err := p.Inspect(p.tagged(a))
		if err != nil {
			s = p.pal.addr.Sprintf("0x%x", p.tagged(a)) + ":" + p.pal.bad.Sprint("<unreadable>")
		}
		fmt.Fprintln(bw, s)
		n++
	}
	return n, bw.Flush()
}

// Refs writes reference search results, one per line.
func (p *Printer) Refs(w io.Writer, rs []refs.Ref) error {
	bw := bufio.NewWriter(w)
	for _, r := range rs {
		fmt.Fprintln(bw, r.String())
	}
	return bw.Flush()
}
