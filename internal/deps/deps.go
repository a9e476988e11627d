// Package deps reports on the external tools archivist shells out to.
package deps

import (
	"fmt"
	"os/exec"
	"strings"

	"archivist/internal/config"
)

// Requirement defines an external binary archivist relies on.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
}

// Status reports the availability of a dependency.
type Status struct {
	Name        string
	Command     string
	Description string
	Optional    bool
	Available   bool
	Detail      string
}

// ForConfig builds the requirement list for the given configuration. Media
// tools are always required; inference commands are listed only when that
// lane is enabled.
func ForConfig(cfg *config.Config) []Requirement {
	reqs := []Requirement{
		{Name: "ffprobe", Command: cfg.FFprobeBinary(), Description: "Video and audio metadata extraction"},
		{Name: "ffmpeg", Command: cfg.FFmpegBinary(), Description: "Poster frame extraction"},
	}
	if cfg.Inference.Enabled {
		reqs = append(reqs,
			Requirement{Name: "faces model", Command: commandBinary(cfg.Inference.FacesCommand), Description: "Face detection", Optional: true},
			Requirement{Name: "caption model", Command: commandBinary(cfg.Inference.CaptionCommand), Description: "Image captioning", Optional: true},
			Requirement{Name: "embedding model", Command: commandBinary(cfg.Inference.EmbedCommand), Description: "Semantic embeddings", Optional: true},
			Requirement{Name: "transcription model", Command: commandBinary(cfg.Inference.TranscribeCommand), Description: "Audio transcription", Optional: true},
		)
	}
	return reqs
}

// CheckBinaries evaluates the provided requirements and reports availability.
func CheckBinaries(requirements []Requirement) []Status {
	results := make([]Status, 0, len(requirements))
	for _, req := range requirements {
		cmd := strings.TrimSpace(req.Command)
		status := Status{
			Name:        req.Name,
			Command:     cmd,
			Description: strings.TrimSpace(req.Description),
			Optional:    req.Optional,
		}
		if cmd == "" {
			status.Available = false
			status.Detail = "command not configured"
			results = append(results, status)
			continue
		}
		if _, err := exec.LookPath(cmd); err != nil {
			status.Available = false
			status.Detail = fmt.Sprintf("binary %q not found", cmd)
			results = append(results, status)
			continue
		}
		status.Available = true
		results = append(results, status)
	}
	return results
}

// MissingRequired returns the unavailable, non-optional entries.
func MissingRequired(statuses []Status) []Status {
	var missing []Status
	for _, status := range statuses {
		if !status.Available && !status.Optional {
			missing = append(missing, status)
		}
	}
	return missing
}

func commandBinary(command string) string {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}
