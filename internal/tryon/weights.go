// Package tryon checks the provisioning of HR-VITON generator weights.
// The pretrained checkpoints are not mirrored anywhere public, so they
// have to be uploaded by hand into a volume before the try-on pipeline
// can run.
package tryon

import (
	"context"
	"fmt"
	"io"

	"github.com/styl-labs/styld/internal/volume"
)

const (
	// VolumeName is the volume holding the HR-VITON checkpoints.
	VolumeName = "hr-viton-weights"

	// WeightsDir is where the checkpoints live inside the volume.
	WeightsDir = "/weights"
)

// RequiredWeights are the checkpoint files the try-on pipeline loads.
var RequiredWeights = []string{
	"alias_final.pth",
	"segment_final.pth",
	"G_final.pth",
}

// Report classifies the required weights into present and absent.
type Report struct {
	Found   []string
	Missing []string
}

// Complete reports whether every required weight is present.
func (r *Report) Complete() bool {
	return len(r.Missing) == 0
}

// CheckWeights lists the weights directory of the volume and matches
// it against RequiredWeights. A volume without the directory counts as
// entirely missing.
func CheckWeights(ctx context.Context, store *volume.Store) (*Report, error) {
	entries, err := store.List(ctx, WeightsDir)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", WeightsDir, err)
	}

	have := map[string]bool{}
	for _, e := range entries {
		if !e.Dir {
			have[e.Name] = true
		}
	}

	report := &Report{}
	for _, name := range RequiredWeights {
		if have[name] {
			report.Found = append(report.Found, name)
		} else {
			report.Missing = append(report.Missing, name)
		}
	}

	return report, nil
}

// Render writes the human readable report, including the manual upload
// commands for anything missing.
func (r *Report) Render(w io.Writer) {
	fmt.Fprintf(w, "Checking for HR-VITON weights in volume %s...\n", VolumeName)

	for _, name := range r.Found {
		fmt.Fprintf(w, "  found    %s\n", name)
	}
	for _, name := range r.Missing {
		fmt.Fprintf(w, "  missing  %s\n", name)
	}

	if r.Complete() {
		fmt.Fprintln(w, "\nAll required weights are present.")
		return
	}

	fmt.Fprintln(w, "\nThe official mirrors are gated, the files must be uploaded manually.")
	fmt.Fprintln(w, "Download them from the HR-VITON release and run:")
	fmt.Fprintln(w)
	for _, name := range r.Missing {
		fmt.Fprintf(w, "  styld volume put %s /local/path/to/%s %s/%s\n",
			VolumeName, name, WeightsDir, name)
	}
}
