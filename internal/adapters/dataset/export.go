package dataset

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/okian/dealsync/internal/adapters/repository"
)

// Export writes the loaded document with its deals replaced by deals, so the
// output can be fed back as the next run's input.
func (d *Dataset) Export(w io.Writer, deals []repository.Deal) error {
	doc := d.doc
	doc.Deals = encodeDeals(deals)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encode dataset: %w", err)
	}
	return nil
}

// ExportFile writes Export's output to path atomically.
func (d *Dataset) ExportFile(path string, deals []repository.Deal) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".dealsync-*.json")
	if err != nil {
		return fmt.Errorf("create export file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := d.Export(tmp, deals); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close export file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replace export file: %w", err)
	}
	return nil
}

func encodeDeals(deals []repository.Deal) []dealDoc {
	out := make([]dealDoc, 0, len(deals))
	for _, dl := range deals {
		p := dl.Properties
		doc := dealDoc{
			ID:             string(dl.Ref),
			Name:           p.Name,
			AddonKey:       p.AddonKey,
			Stage:          string(p.Stage),
			Amount:         p.Amount,
			Tier:           p.Tier,
			LicenseIDs:     p.LicenseIDs,
			TransactionIDs: p.TransactionIDs,
			Contacts:       dl.Contacts,
			Companies:      dl.Companies,
			Partner:        dl.Partner,
		}
		if doc.LicenseIDs == nil {
			doc.LicenseIDs = []string{}
		}
		if !p.CloseDate.IsZero() {
			doc.CloseDate = p.CloseDate.Format(time.DateOnly)
		}
		if p.Hosting != 0 {
			doc.Hosting = p.Hosting.String()
		}
		out = append(out, doc)
	}
	return out
}
