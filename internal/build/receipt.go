package build

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/goplus/llbrew/formula"
)

// Keg layout:
//
//	<prefix>/Cellar/<name>/<version>/   # install prefix of one version (keg)
//	  INSTALL_RECEIPT.json             # written after a successful install
//	  include/
//	  lib/
//	  ...
const ReceiptFile = "INSTALL_RECEIPT.json"

// Receipt records how a keg was installed.
type Receipt struct {
	Name        string    `json:"name"`
	Version     string    `json:"version"`
	RunID       string    `json:"run_id"`
	Source      string    `json:"source"`
	Revision    string    `json:"revision,omitempty"` // commit or archive checksum fetched
	Platform    string    `json:"platform,omitempty"`
	Options     []string  `json:"options"`
	Patches     []string  `json:"patches,omitempty"`
	Overrides   []string  `json:"overrides,omitempty"`
	Steps       []Step    `json:"steps"`
	InstalledAt time.Time `json:"installed_at"`
}

// NewReceipt describes a successful run of plan.
func NewReceipt(plan Plan, res *Result, platform string) *Receipt {
	f := plan.Formula
	r := &Receipt{
		Name:        f.Name(),
		Version:     f.Version().String(),
		RunID:       res.RunID,
		Source:      f.Source().String(),
		Platform:    platform,
		Options:     plan.Options,
		Overrides:   plan.Overrides,
		Steps:       res.Steps,
		InstalledAt: res.Finished,
	}
	for _, p := range plan.Patches {
		r.Patches = append(r.Patches, p.URL)
	}
	return r
}

// Matches reports whether the receipt was written for f.
func (r *Receipt) Matches(f *formula.Formula) bool {
	return r.Name == f.Name() && r.Version == f.Version().String()
}

// ReadReceipt loads the receipt of the keg at dir.
func ReadReceipt(dir string) (*Receipt, error) {
	data, err := os.ReadFile(filepath.Join(dir, ReceiptFile))
	if err != nil {
		return nil, err
	}
	var r Receipt
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// WriteReceipt stores r in the keg at dir.
func WriteReceipt(dir string, r *Receipt) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, ReceiptFile), data, 0o644)
}
