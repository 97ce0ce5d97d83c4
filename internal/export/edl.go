package export

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
)

// GenerateEDL renders a CMX3600 list that lays the clips back to back on the
// record side.
func GenerateEDL(clips []Clip, title string, frameRate float64) string {
	fps := int(math.Round(frameRate))
	if fps <= 0 {
		fps = 30
	}

	lines := []string{"TITLE: " + title}
	if isDropFrame(frameRate) {
		lines = append(lines, "FCM: DROP FRAME")
	} else {
		lines = append(lines, "FCM: NON-DROP FRAME")
	}
	lines = append(lines, "")

	record := 0
	for i, c := range clips {
		in := secondsToFrames(c.Start, fps)
		out := secondsToFrames(c.End, fps)
		length := out - in

		lines = append(lines,
			fmt.Sprintf("%03d  %-8s %-5s C        %s %s %s %s", i+1, "AX", "V",
				timecode(in, fps), timecode(out, fps), timecode(record, fps), timecode(record+length, fps)),
			"* FROM CLIP NAME:  "+c.Name,
			"* MEDIA PATH:  "+c.MediaPath,
		)
		if len(c.Labels) > 0 {
			lines = append(lines, "* DETECTED:  "+strings.Join(c.Labels, ", "))
		}
		record += length
	}

	lines = append(lines, "")
	return strings.Join(lines, "\n")
}

// WriteEDL writes the list to <dir>/<project>.edl and returns the path.
func WriteEDL(dir, project, content string) (string, error) {
	if err := ValidateOutputDir(dir); err != nil {
		return "", err
	}
	name := SanitizeName(project, 100)
	if name == "" {
		return "", fmt.Errorf("project_name is empty after sanitizing")
	}

	path := filepath.Join(dir, name+".edl")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return "", fmt.Errorf("write edl: %w", err)
	}
	return path, nil
}

func isDropFrame(frameRate float64) bool {
	return math.Abs(frameRate-29.97) < 0.01 || math.Abs(frameRate-59.94) < 0.01
}

func secondsToFrames(sec float64, fps int) int {
	return int(math.Round(sec * float64(fps)))
}

func timecode(totalFrames, fps int) string {
	frames := totalFrames % fps
	totalSeconds := totalFrames / fps
	return fmt.Sprintf("%02d:%02d:%02d:%02d", totalSeconds/3600, (totalSeconds/60)%60, totalSeconds%60, frames)
}
