package ffprobe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// Result represents the parsed output from an ffprobe inspection.
type Result struct {
	Streams []Stream `json:"streams"`
	Format  Format   `json:"format"`
}

// Stream describes a single stream in the media container.
type Stream struct {
	Index        int        `json:"index"`
	CodecName    string     `json:"codec_name"`
	CodecType    string     `json:"codec_type"`
	CodecTag     string     `json:"codec_tag_string"`
	Profile      string     `json:"profile"`
	Duration     string     `json:"duration"`
	Width        int        `json:"width"`
	Height       int        `json:"height"`
	Channels     int        `json:"channels"`
	SideDataList []SideData `json:"side_data_list"`
}

// SideData captures per-stream side data entries.
type SideData struct {
	SideDataType string `json:"side_data_type"`
	DVProfile    int    `json:"dv_profile"`
	DVLevel      int    `json:"dv_level"`
}

// Format captures container-level metadata extracted by ffprobe.
type Format struct {
	Filename   string `json:"filename"`
	NBStreams  int    `json:"nb_streams"`
	Duration   string `json:"duration"`
	Size       string `json:"size"`
	FormatName string `json:"format_name"`
}

// Inspect executes ffprobe against the provided path and decodes the JSON
// response.
func Inspect(ctx context.Context, binary string, path string) (Result, error) {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		binary = "ffprobe"
	}
	path = strings.TrimSpace(path)
	if path == "" {
		return Result{}, errors.New("ffprobe inspect: empty path")
	}

	cmd := exec.CommandContext(ctx, binary, "-v", "error", "-hide_banner", "-show_format", "-show_streams", "-of", "json", "--", path)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return Result{}, fmt.Errorf("ffprobe inspect: %w: %s", err, strings.TrimSpace(string(output)))
	}

	return Parse(output)
}

// Parse decodes raw ffprobe JSON output.
func Parse(data []byte) (Result, error) {
	var result Result
	if err := json.Unmarshal(data, &result); err != nil {
		return Result{}, fmt.Errorf("ffprobe parse: %w", err)
	}
	return result, nil
}

// VideoStreams returns the video streams in container order.
func (r Result) VideoStreams() []Stream {
	var streams []Stream
	for _, stream := range r.Streams {
		if stream.CodecType == "video" {
			streams = append(streams, stream)
		}
	}
	return streams
}

// HasDolbyVision reports whether any video stream carries a Dolby Vision
// configuration record or a dvhe/dvh1 codec tag.
func (r Result) HasDolbyVision() bool {
	for _, stream := range r.VideoStreams() {
		tag := strings.ToLower(stream.CodecTag)
		if tag == "dvhe" || tag == "dvh1" {
			return true
		}
		for _, side := range stream.SideDataList {
			if strings.Contains(strings.ToLower(side.SideDataType), "dovi") {
				return true
			}
		}
	}
	return false
}

// DurationSeconds parses the container duration; zero when unavailable.
func (r Result) DurationSeconds() float64 {
	value := strings.TrimSpace(r.Format.Duration)
	if value == "" {
		return 0
	}
	seconds, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0
	}
	return seconds
}
