package document

import (
	"embed"
	"fmt"

	"github.com/pavelanni/sequencer/internal/model"
)

//go:embed samples/*.json
var samplesFS embed.FS

// Sample returns a ready-to-edit example document of the given layout.
func Sample(shape model.Shape) ([]byte, error) {
	name := "samples/new.json"
	if shape == model.ShapeLegacy {
		name = "samples/legacy.json"
	}
	data, err := samplesFS.ReadFile(name)
	if err != nil {
		return nil, fmt.Errorf("read sample %s: %w", name, err)
	}
	return data, nil
}
