// gen3dapi/pipeline/sampler.go
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
)

// Sampler extracts frames from a video at a uniform stride by driving
// ffprobe and ffmpeg. Identical source bytes and target always yield
// the identical frame set.
type Sampler struct {
	FFprobeBin string
	FFmpegBin  string
	Runner     ProcessRunner
}

// probeStreams matches the ffprobe -show_streams JSON envelope.
type probeStreams struct {
	Streams []struct {
		NbFrames     string `json:"nb_frames"`
		NbReadFrames string `json:"nb_read_frames"`
		RFrameRate   string `json:"r_frame_rate"`
	} `json:"streams"`
}

// Probe returns the native frame count and frame rate of the first
// video stream.
func (s *Sampler) Probe(ctx context.Context, src string) (frames int, fps float64, err error) {
	args := []string{
		"-v", "error",
		"-select_streams", "v:0",
		"-count_frames",
		"-show_entries", "stream=nb_frames,nb_read_frames,r_frame_rate",
		"-of", "json",
		src,
	}
	res, err := s.Runner.Run(ctx, "", s.FFprobeBin, args...)
	if err != nil {
		return 0, 0, fmt.Errorf("ffprobe failed: %w: %s", err, tail(res.Stderr, 300))
	}

	var probed probeStreams
	if err := json.Unmarshal([]byte(res.Stdout), &probed); err != nil {
		return 0, 0, fmt.Errorf("cannot parse ffprobe output: %w", err)
	}
	if len(probed.Streams) == 0 {
		return 0, 0, fmt.Errorf("no video stream found")
	}

	st := probed.Streams[0]
	count := st.NbReadFrames
	if count == "" || count == "N/A" {
		count = st.NbFrames
	}
	frames, err = strconv.Atoi(count)
	if err != nil {
		return 0, 0, fmt.Errorf("cannot parse frame count %q", count)
	}

	return frames, parseFrameRate(st.RFrameRate), nil
}

// Sample writes up to target frames, evenly spaced across the source,
// into dir as frame_0000.jpg, frame_0001.jpg, ... It returns the
// number of frames kept; fewer than min is an InsufficientFramesError.
func (s *Sampler) Sample(ctx context.Context, src, dir string, target, min int) (int, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, fmt.Errorf("cannot create frames directory: %w", err)
	}

	total, fps, err := s.Probe(ctx, src)
	if err != nil {
		return 0, err
	}

	interval := total / target
	if interval < 1 {
		interval = 1
	}
	log.Printf("Sampling %s: %d frames at %.2f fps, keeping every %d-th", src, total, fps, interval)

	args := []string{
		"-hide_banner",
		"-nostdin",
		"-y",
		"-i", src,
		"-vf", fmt.Sprintf("select=not(mod(n\\,%d))", interval),
		"-vsync", "vfr",
		"-frames:v", strconv.Itoa(target),
		"-q:v", "2",
		dir + "/frame_%04d.jpg",
	}
	res, err := s.Runner.Run(ctx, "", s.FFmpegBin, args...)
	if err != nil {
		return 0, fmt.Errorf("frame extraction failed: %w: %s", err, tail(res.Stderr, 300))
	}

	kept, err := countFrames(dir)
	if err != nil {
		return 0, err
	}
	if kept < min {
		return kept, &InsufficientFramesError{Got: kept, Min: min}
	}
	return kept, nil
}

func countFrames(dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("cannot read frames directory: %w", err)
	}
	n := 0
	for _, e := range entries {
		if !e.IsDir() && strings.HasPrefix(e.Name(), "frame_") && strings.HasSuffix(e.Name(), ".jpg") {
			n++
		}
	}
	return n, nil
}

// parseFrameRate converts ffprobe's rational rate ("30000/1001") to a float.
func parseFrameRate(r string) float64 {
	num, den, found := strings.Cut(r, "/")
	n, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0
	}
	if !found {
		return n
	}
	d, err := strconv.ParseFloat(den, 64)
	if err != nil || d == 0 {
		return 0
	}
	return n / d
}
