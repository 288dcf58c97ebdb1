package program

// Kind enumerates the built-in program variants. Host extensions registered at
// startup report KindExtension.
type Kind int

const (
	KindCopy Kind = iota + 1
	KindHTML
	KindMarkdown
	KindSCSS
	KindExtension
)

// Built-in program names as used in the `programs` mapping and the `program` key.
const (
	NameCopy     = "copy"
	NameHTML     = "html"
	NameMarkdown = "md"
	NameSCSS     = "scss"
)

func (k Kind) String() string {
	switch k {
	case KindCopy:
		return NameCopy
	case KindHTML:
		return NameHTML
	case KindMarkdown:
		return NameMarkdown
	case KindSCSS:
		return NameSCSS
	case KindExtension:
		return "extension"
	default:
		return "unknown"
	}
}

// FrontMatter reports whether sources of this kind start with a header block.
func (k Kind) FrontMatter() bool {
	return k == KindHTML || k == KindMarkdown
}
