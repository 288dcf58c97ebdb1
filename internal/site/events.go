package site

// Lifecycle events published on the builder's bus. Handlers receive them
// synchronously, in subscription order, on the goroutine running the pass.

// FileEvent is implemented by every per-file event.
type FileEvent interface {
	File() *Context
}

// BuildStarted opens a pass, before any file is visited.
type BuildStarted struct {
	BuildID string
	Builder *Builder
}

// FileProcessing is published for a stale file before its program prepares it.
type FileProcessing struct{ Context *Context }

// FilePrepared is published once the file's program has prepared it.
type FilePrepared struct{ Context *Context }

// FilePublished follows FilePrepared for files whose `public` flag is true.
type FilePublished struct{ Context *Context }

// FileBuilding is published right before the program writes the destination.
type FileBuilding struct{ Context *Context }

// FileBuilt is published after the destination has been written.
type FileBuilt struct {
	Context *Context
	// Marker is "A" for a new destination and "U" for an updated one.
	Marker string
}

// BuildFinishing is published once after every file has been visited.
// Aggregation modules write their pages in response.
type BuildFinishing struct {
	BuildID string
	Builder *Builder
	Built   []BuiltFile
}

// TemplateRendering is published before a template executes. Handlers may add
// to Vars.
type TemplateRendering struct {
	Name string
	Vars map[string]any
}

func (e FileProcessing) File() *Context { return e.Context }
func (e FilePrepared) File() *Context   { return e.Context }
func (e FilePublished) File() *Context  { return e.Context }
func (e FileBuilding) File() *Context   { return e.Context }
func (e FileBuilt) File() *Context      { return e.Context }

// eventName labels events in logs and metrics.
func eventName(evt any) string {
	switch evt.(type) {
	case BuildStarted:
		return "BuildStarted"
	case FileProcessing:
		return "FileProcessing"
	case FilePrepared:
		return "FilePrepared"
	case FilePublished:
		return "FilePublished"
	case FileBuilding:
		return "FileBuilding"
	case FileBuilt:
		return "FileBuilt"
	case BuildFinishing:
		return "BuildFinishing"
	case TemplateRendering:
		return "TemplateRendering"
	default:
		return "unknown"
	}
}
