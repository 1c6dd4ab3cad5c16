package office

import "strconv"

// Filter is one fixed load/export configuration handed to the office suite.
type Filter struct {
	// Name is the export filter, e.g. "HTML (StarWriter)".
	Name string
	// ConvertTo is the target extension.
	ConvertTo string
	// InputFilter forces the import filter; empty lets the suite detect it.
	InputFilter string
	// Options are name=value export filter options.
	Options []string
}

var (
	// DocxToHTML exports Writer documents as UTF-8 HTML with styles and images.
	DocxToHTML = Filter{
		Name:      "HTML (StarWriter)",
		ConvertTo: "html",
		Options: []string{
			"CharacterSet=UTF-8",
			"SaveImages=1",
			"SaveOriginalImages=1",
			"LoadStyles=1",
			"SaveStyles=1",
		},
	}

	// HTMLToDocx loads HTML through the Writer import filter and saves Word 2007 XML.
	HTMLToDocx = Filter{
		Name:        "MS Word 2007 XML",
		ConvertTo:   "docx",
		InputFilter: "HTML (StarWriter)",
	}
)

// args is the unoconvert (unoserver 2.x) command line. Filter options are
// passed as repeated --filter-options flags.
func (f Filter) args(host string, port int, in, out string) []string {
	args := []string{"--host", host, "--port", strconv.Itoa(port)}
	if f.InputFilter != "" {
		args = append(args, "--input-filter", f.InputFilter)
	}
	args = append(args, "--convert-to", f.ConvertTo, "--filter", f.Name)
	for _, opt := range f.Options {
		args = append(args, "--filter-options", opt)
	}
	return append(args, in, out)
}
