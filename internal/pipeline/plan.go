package pipeline

import (
	"fmt"
	"path/filepath"
	"strings"

	"shuttle/internal/config"
	"shuttle/internal/queue"
)

// Command is one external process invocation within a step.
type Command struct {
	Binary string
	Args   []string
}

// stage is the ordered command chain for one step. Multi-command stages
// are connected stdout to stdin, mirroring the shell pipeline the
// conversion step requires.
type stage []Command

// jobPaths resolves every file location a job's plan can reference.
type jobPaths struct {
	input      string
	base       string
	p7HEVC     string
	p81HEVC    string
	rpu        string
	finalVideo string
	dolbyHEVC  string
	chapters   string
	output     string
}

func newJobPaths(job *queue.Job, ws *workspace) jobPaths {
	base := strings.TrimSuffix(filepath.Base(job.InputPath), filepath.Ext(job.InputPath))
	return jobPaths{
		input:      job.InputPath,
		base:       base,
		p7HEVC:     filepath.Join(ws.Dir, base+"_p7.hevc"),
		p81HEVC:    filepath.Join(ws.Dir, base+"_p81.hevc"),
		rpu:        filepath.Join(ws.RAMDir, "rpu_81.bin"),
		finalVideo: filepath.Join(ws.Dir, base+"_final_video.hevc"),
		dolbyHEVC:  filepath.Join(ws.Dir, base+"_dolby.hevc"),
		chapters:   filepath.Join(ws.RAMDir, "chapters.txt"),
		output:     outputPathFor(job.InputPath),
	}
}

// outputPathFor places the finished file alongside the original source.
func outputPathFor(inputPath string) string {
	base := strings.TrimSuffix(filepath.Base(inputPath), filepath.Ext(inputPath))
	return filepath.Join(filepath.Dir(inputPath), base+"_final.mkv")
}

// planFor builds the command chain for one named step. Probe and verify
// steps have no plan; the executor handles them through ffprobe directly.
func planFor(bins config.Binaries, job *queue.Job, paths jobPaths, step string) (stage, error) {
	switch step {
	case "extract_hevc":
		return stage{{
			Binary: bins.FFmpeg,
			Args: []string{
				"-hide_banner", "-loglevel", "error", "-y",
				"-i", paths.input,
				"-map", "0:v:0", "-c", "copy",
				paths.p7HEVC,
			},
		}}, nil

	case "convert_p81":
		// ffmpeg re-wraps the stream as annex B and dovi_tool consumes it
		// from the pipe, discarding the enhancement layer.
		return stage{
			{
				Binary: bins.FFmpeg,
				Args: []string{
					"-hide_banner", "-loglevel", "error",
					"-i", paths.p7HEVC,
					"-c:v", "copy", "-bsf:v", "hevc_mp4toannexb",
					"-f", "hevc", "-",
				},
			},
			{
				Binary: bins.DoviTool,
				Args:   []string{"-m", "2", "convert", "--discard", "-", "-o", paths.p81HEVC},
			},
		}, nil

	case "extract_rpu":
		return stage{{
			Binary: bins.DoviTool,
			Args:   []string{"extract-rpu", paths.p81HEVC, "-o", paths.rpu},
		}}, nil

	case "encode_video":
		source := paths.p81HEVC
		if job.JobType == queue.JobTypeStandard {
			source = paths.input
		}
		return stage{{
			Binary: bins.FFmpeg,
			Args: []string{
				"-hide_banner", "-loglevel", "error", "-y",
				"-i", source,
				"-an", "-sn", "-dn",
				"-c:v", "libx265", "-preset", "slow", "-crf", "20.5",
				"-tune", "fastdecode",
				"-g", "240", "-keyint_min", "24",
				"-x265-params", "pools=1:wpp=1",
				paths.finalVideo,
			},
		}}, nil

	case "inject_rpu":
		return stage{{
			Binary: bins.DoviTool,
			Args:   []string{"inject-rpu", "-i", paths.finalVideo, "--rpu-in", paths.rpu, "-o", paths.dolbyHEVC},
		}}, nil

	case "extract_chapters":
		return stage{{
			Binary: bins.FFmpeg,
			Args: []string{
				"-hide_banner", "-loglevel", "error", "-y",
				"-i", paths.input,
				"-f", "ffmetadata", paths.chapters,
			},
		}}, nil

	case "remux":
		video := paths.dolbyHEVC
		args := []string{"-o", paths.output, "--language", "0:eng", "--default-track", "0:yes"}
		if job.JobType == queue.JobTypeStandard {
			video = paths.finalVideo
			args = append(args, video, "--no-video", paths.input)
		} else {
			args = append(args, video, "--chapters", paths.chapters, "--no-video", paths.input)
		}
		return stage{{Binary: bins.MKVMerge, Args: args}}, nil

	default:
		return nil, fmt.Errorf("no command plan for step %q", step)
	}
}
