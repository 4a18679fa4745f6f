package render

// Theme holds the colors of rendered graphs.
type Theme struct {
	Background string
	NodeFill   string
	NodeBorder string
	TextColor  string

	EdgeTaken       string // conditional branch taken
	EdgeFallthrough string // conditional branch not taken
	EdgePlain       string // unconditional flow

	EntryBorder string // first block of a code object
	ExitFill    string // blocks ending in a return or indirect jump
	Comment     string // inline instruction annotations
}

// Paper is a light, mostly monochrome theme.
var Paper = Theme{
	Background: "#FAFAFA",
	NodeFill:   "white",
	NodeBorder: "#212121",
	TextColor:  "#212121",

	EdgeTaken:       "#1565C0", // blue
	EdgeFallthrough: "#C62828", // red
	EdgePlain:       "#424242",

	EntryBorder: "#1565C0",
	ExitFill:    "#ECEFF1",
	Comment:     "#2E7D32", // green
}
