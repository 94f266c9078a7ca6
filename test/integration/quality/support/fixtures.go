package support

import (
	"fmt"
	"image"

	"github.com/MeKo-Tech/scanqa/internal/locator"
	"github.com/MeKo-Tech/scanqa/internal/testutil"
	"github.com/MeKo-Tech/scanqa/internal/utils"
)

func passport(box utils.Box) locator.RawDetection {
	return locator.RawDetection{Box: box, Label: "passport", Confidence: 0.91}
}

func idCard(box utils.Box) locator.RawDetection {
	return locator.RawDetection{Box: box, ClassID: 1, Label: "id_card", Confidence: 0.87}
}

// scan renders the default synthetic document with the given stains on its paper.
func scan(stains ...image.Rectangle) ([]byte, error) {
	cfg := testutil.DefaultDocumentConfig()
	cfg.Stains = stains
	data, err := utils.EncodePNG(testutil.GenerateDocument(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to encode fixture: %w", err)
	}
	return data, nil
}

// stain covers roughly half of the default document's paper.
var stain = image.Rect(150, 120, 450, 360)
