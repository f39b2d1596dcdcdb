package dataset

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-resty/resty/v2"
)

var apiClient = resty.New()

type manifest struct {
	Files []manifestFile `json:"files"`
}

type manifestFile struct {
	Name  string `json:"name"`
	Label int    `json:"label"`
}

// Fetch downloads a split's manifest.json from baseURL and mirrors the
// listed wav files plus generated label files into dir, skipping files that
// already exist. The resulting directory satisfies the Load contract.
func Fetch(baseURL, dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %v", dir, err)
	}

	resp, err := apiClient.R().Get(baseURL + "/manifest.json")
	if err != nil {
		return fmt.Errorf("failed to fetch manifest: %v", err)
	}
	if resp.IsError() {
		return fmt.Errorf("manifest fetch returned %s", resp.Status())
	}

	var m manifest
	if err := json.Unmarshal(resp.Body(), &m); err != nil {
		return fmt.Errorf("failed to parse manifest: %v", err)
	}
	if len(m.Files) == 0 {
		return fmt.Errorf("manifest at %s lists no files", baseURL)
	}

	for _, f := range m.Files {
		// Download to a temp path and rename only once the response checks
		// out, so a failed or partial download never masquerades as a
		// completed one on the next Fetch.
		wavPath := filepath.Join(dir, f.Name)
		if _, err := os.Stat(wavPath); os.IsNotExist(err) {
			tmpPath := wavPath + ".part"
			resp, err := apiClient.R().SetOutput(tmpPath).Get(baseURL + "/" + f.Name)
			if err != nil {
				os.Remove(tmpPath)
				return fmt.Errorf("failed to fetch %s: %v", f.Name, err)
			}
			if resp.IsError() {
				os.Remove(tmpPath)
				return fmt.Errorf("fetching %s returned %s", f.Name, resp.Status())
			}
			if err := os.Rename(tmpPath, wavPath); err != nil {
				return fmt.Errorf("failed to finalize %s: %v", f.Name, err)
			}
		}

		base := f.Name[:len(f.Name)-len(filepath.Ext(f.Name))]
		labelPath := filepath.Join(dir, base+".txt")
		if err := os.WriteFile(labelPath, fmt.Appendf([]byte{}, "%d", f.Label), 0o644); err != nil {
			return fmt.Errorf("failed to write label for %s: %v", base, err)
		}
	}

	return nil
}
