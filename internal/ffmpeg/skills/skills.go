// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// FrameGrab - 视频逐秒截帧工具

package skills

import (
	"bufio"
	"bytes"
	"fmt"
	"os/exec"
	"regexp"
	"strings"
)

// Codec represents a codec with encoders and decoders
type Codec struct {
	Id       string
	Name     string
	Encoders []string
	Decoders []string
}

// Format represents a supported format
type Format struct {
	Id   string
	Name string
}

// Protocol represents a supported protocol
type Protocol struct {
	Id   string
	Name string
}

// HWAccel represents hardware acceleration
type HWAccel struct {
	Id   string
	Name string
}

// Library represents a linked av library
type Library struct {
	Name     string
	Compiled string
	Linked   string
}

// Info is the parsed output of ffmpeg -version
type Info struct {
	Version       string
	Compiler      string
	Configuration string
	Libraries     []Library
}

// Codecs grouped by media type
type Codecs struct {
	Audio    []Codec
	Video    []Codec
	Subtitle []Codec
}

// Formats grouped by direction
type Formats struct {
	Demuxers []Format
	Muxers   []Format
}

// Protocols grouped by direction
type Protocols struct {
	Input  []Protocol
	Output []Protocol
}

// Skills are the detected capabilities of FFmpeg
type Skills struct {
	FFmpeg    Info
	HWAccels  []HWAccel
	Codecs    Codecs
	Formats   Formats
	Protocols Protocols
}

// New returns all skills that FFmpeg provides
func New(binary string) (Skills, error) {
	c := Skills{}

	out, err := run(binary, "-version")
	if err != nil {
		return Skills{}, fmt.Errorf("can't run ffmpeg: %w", err)
	}
	c.FFmpeg = parseVersion(out)
	if c.FFmpeg.Version == "" {
		return Skills{}, fmt.Errorf("can't parse ffmpeg version")
	}

	out, _ = run(binary, "-hwaccels")
	c.HWAccels = parseHWAccels(out)

	out, _ = run(binary, "-codecs")
	c.Codecs = parseCodecs(out)

	out, _ = run(binary, "-formats")
	c.Formats = parseFormats(out)

	out, _ = run(binary, "-protocols")
	c.Protocols = parseProtocols(out)

	return c, nil
}

func run(binary string, arg string) ([]byte, error) {
	cmd := exec.Command(binary, "-hide_banner", arg)
	if arg == "-version" {
		cmd = exec.Command(binary, arg)
	}
	cmd.Env = []string{}
	return cmd.Output()
}

// HasEncoder reports whether any video codec lists name as an encoder.
func (s Skills) HasEncoder(name string) bool {
	for _, c := range s.Codecs.Video {
		for _, e := range c.Encoders {
			if e == name {
				return true
			}
		}
	}
	return false
}

// HasDecoder reports whether any video codec lists name as a decoder.
func (s Skills) HasDecoder(name string) bool {
	for _, c := range s.Codecs.Video {
		for _, d := range c.Decoders {
			if d == name {
				return true
			}
		}
	}
	return false
}

// HasDemuxer reports whether a demuxer with the given id exists.
func (s Skills) HasDemuxer(id string) bool {
	for _, f := range s.Formats.Demuxers {
		if f.Id == id {
			return true
		}
	}
	return false
}

// HasInputProtocol reports whether ffmpeg can read from protocol id.
func (s Skills) HasInputProtocol(id string) bool {
	for _, p := range s.Protocols.Input {
		if p.Id == id {
			return true
		}
	}
	return false
}

// HasHWAccel reports whether the hardware acceleration method is available.
// "auto" and "none" are always accepted.
func (s Skills) HasHWAccel(id string) bool {
	if id == "auto" || id == "none" {
		return true
	}
	for _, h := range s.HWAccels {
		if h.Id == id {
			return true
		}
	}
	return false
}

func parseVersion(data []byte) Info {
	f := Info{}
	reVersion := regexp.MustCompile(`^ffmpeg version n?([0-9]+\.[0-9]+(\.[0-9]+)?)`)
	reCompiler := regexp.MustCompile(`(?m)^\s*built with (.*)$`)
	reConfiguration := regexp.MustCompile(`(?m)^\s*configuration: (.*)$`)
	reLibrary := regexp.MustCompile(`(?m)^\s*(lib(?:[a-z]+))\s+([0-9]+\.\s*[0-9]+\.\s*[0-9]+) /\s+([0-9]+\.\s*[0-9]+\.\s*[0-9]+)`)

	if m := reVersion.FindSubmatch(data); m != nil {
		f.Version = string(m[1])
		if len(m[2]) == 0 {
			f.Version += ".0"
		}
	}
	if m := reCompiler.FindSubmatch(data); m != nil {
		f.Compiler = string(m[1])
	}
	if m := reConfiguration.FindSubmatch(data); m != nil {
		f.Configuration = string(m[1])
	}
	for _, m := range reLibrary.FindAllSubmatch(data, -1) {
		f.Libraries = append(f.Libraries, Library{
			Name:     string(m[1]),
			Compiled: string(m[2]),
			Linked:   string(m[3]),
		})
	}
	return f
}

func parseCodecs(data []byte) Codecs {
	codecs := Codecs{}
	re := regexp.MustCompile(`^\s([D.])([E.])([VAS]).{3} ([0-9A-Za-z_]+)\s+(.*?)(?:\(decoders:([^\)]+)\))?\s?(?:\(encoders:([^\)]+)\))?$`)
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		m := re.FindStringSubmatch(scanner.Text())
		if m == nil {
			continue
		}
		c := Codec{Id: m[4], Name: strings.TrimSpace(m[5])}
		if m[1] == "D" {
			if len(m[6]) == 0 {
				c.Decoders = []string{m[4]}
			} else {
				c.Decoders = strings.Fields(m[6])
			}
		}
		if m[2] == "E" {
			if len(m[7]) == 0 {
				c.Encoders = []string{m[4]}
			} else {
				c.Encoders = strings.Fields(m[7])
			}
		}
		switch m[3] {
		case "V":
			codecs.Video = append(codecs.Video, c)
		case "A":
			codecs.Audio = append(codecs.Audio, c)
		case "S":
			codecs.Subtitle = append(codecs.Subtitle, c)
		}
	}
	return codecs
}

func parseFormats(data []byte) Formats {
	f := Formats{}
	re := regexp.MustCompile(`^\s([D ])([E ])d? ([0-9A-Za-z_,]+)\s+(.*?)$`)
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		m := re.FindStringSubmatch(scanner.Text())
		if m == nil {
			continue
		}
		// "mov,mp4,m4a,3gp" 这类别名全部登记
		for _, id := range strings.Split(m[3], ",") {
			format := Format{Id: id, Name: m[4]}
			if m[1] == "D" {
				f.Demuxers = append(f.Demuxers, format)
			}
			if m[2] == "E" {
				f.Muxers = append(f.Muxers, format)
			}
		}
	}
	return f
}

func parseProtocols(data []byte) Protocols {
	p := Protocols{}
	mode := ""
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := scanner.Text()
		switch strings.TrimSpace(line) {
		case "Input:":
			mode = "input"
			continue
		case "Output:":
			mode = "output"
			continue
		}
		id := strings.TrimSpace(line)
		if mode == "" || id == "" {
			continue
		}
		proto := Protocol{Id: id, Name: id}
		if mode == "input" {
			p.Input = append(p.Input, proto)
		} else {
			p.Output = append(p.Output, proto)
		}
	}
	return p
}

func parseHWAccels(data []byte) []HWAccel {
	var accels []HWAccel
	re := regexp.MustCompile(`^[A-Za-z0-9_]+$`)
	start := false
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "Hardware acceleration methods:" {
			start = true
			continue
		}
		if !start || !re.MatchString(line) {
			continue
		}
		accels = append(accels, HWAccel{Id: line, Name: line})
	}
	return accels
}
