package store

// Opener opens journals. The CLI resolves it through the dependency
// container so tests can substitute their own.
type Opener interface {
	OpenJournal(dataDir string) (*Journal, error)
}

// DefaultOpener opens pebble journals on disk.
type DefaultOpener struct{}

// NewOpener creates the default journal opener
func NewOpener() Opener {
	return &DefaultOpener{}
}

func (o *DefaultOpener) OpenJournal(dataDir string) (*Journal, error) {
	return Open(dataDir)
}
